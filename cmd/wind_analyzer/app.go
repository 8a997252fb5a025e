package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/user/wind_analyzer_go/internal/backend"
	"github.com/user/wind_analyzer_go/internal/config"
	"github.com/user/wind_analyzer_go/internal/logging"
	"github.com/user/wind_analyzer_go/internal/parser"
	"github.com/user/wind_analyzer_go/internal/service"
	"github.com/user/wind_analyzer_go/internal/task"
)

// App struct
type App struct {
	ctx  context.Context
	log  *logging.Logger
	svc  *service.Service
	ctrl *task.Controller

	mu   sync.Mutex
	view *service.WindRoseView
	aep  *task.Result
}

// AEPStatus is the analysis state as shown in the UI.
type AEPStatus struct {
	State    string       `json:"state"`
	TaskID   string       `json:"task_id,omitempty"`
	Attempts int          `json:"attempts"`
	Result   *task.Result `json:"result,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func newAEPStatus(s task.Snapshot) AEPStatus {
	st := AEPStatus{State: s.State.String(), Attempts: s.Attempts, Result: s.Result}
	if s.Task != nil {
		st.TaskID = string(s.Task.Ref)
	}
	switch {
	case s.Failure != nil:
		st.Error = s.Failure.Error()
	case s.LastError != nil:
		st.Error = s.LastError.Error()
	}
	return st
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{}
}

// Startup loads the configuration and connects to the backend. Errors are
// reported to the UI; the app still starts with the built-in defaults.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
	runtime.WindowSetTitle(a.ctx, "Wind Analyzer GO")

	cfg, cfgErr := loadConfig()
	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		logger = logging.NewWriterLogger(os.Stderr, cfg.Logging.Level)
	}
	a.log = logger.WithComponent("app")
	if cfgErr != nil {
		a.sendStatus(fmt.Sprintf("Configuration error, using defaults: %v", cfgErr))
	}

	a.svc, err = service.New(ctx, cfg, a.log)
	if err != nil {
		a.sendStatus(fmt.Sprintf("Service unavailable: %v", err))
		return
	}
	a.ctrl = a.svc.NewController(a.onAEPChange, a.onAEPError)

	config.Watch(func(cfg *config.Config, err error) {
		if err != nil {
			a.sendStatus(fmt.Sprintf("Ignoring invalid configuration change: %v", err))
			return
		}
		old := a.svc.Config().Polling
		a.svc.UpdateConfig(cfg)
		if cfg.Polling != old {
			a.svc.ApplyPolling(a.ctrl)
		}
		a.sendStatus("Configuration reloaded.")
	})
}

func loadConfig() (*config.Config, error) {
	if err := config.Init(""); err != nil {
		return config.Default(), err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Default(), err
	}
	return cfg, nil
}

// Shutdown stops polling and releases the cache and log file.
func (a *App) Shutdown(ctx context.Context) {
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.svc != nil {
		if err := a.svc.Close(); err != nil {
			a.log.Warn("failed to close service", "error", err)
		}
	}
	if a.log != nil {
		a.log.Close()
	}
}

func (a *App) sendStatus(message string) {
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, "statusUpdate", message)
	}
	if a.log != nil {
		a.log.Info(message)
	}
}

func (a *App) clearLog() {
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, "clearLog")
	}
}

func (a *App) service() (*service.Service, error) {
	if a.svc == nil {
		return nil, errors.New("backend service is not available")
	}
	return a.svc, nil
}

var dateLayouts = []string{"2006-01-02", "2006-01-02T15:04", "2006-01-02T15:04:05"}

// parseDate accepts the values of HTML date and datetime-local inputs.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func (a *App) setView(view *service.WindRoseView) {
	a.mu.Lock()
	a.view = view
	a.mu.Unlock()
	for _, w := range view.Warnings {
		a.sendStatus(w)
	}
}

// LoadWindRose builds the wind rose from the backend. Without a time range
// the backend's aggregated rose is used.
func (a *App) LoadWindRose(turbineID, start, end string, bins int) (*service.WindRoseView, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	from, err := parseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(end)
	if err != nil {
		return nil, err
	}
	view, err := svc.LoadWindRose(a.ctx, backend.SCADAQuery{TurbineID: turbineID, Start: from, End: to}, bins)
	if err != nil {
		a.sendStatus(fmt.Sprintf("Error loading wind rose: %v", err))
		return nil, err
	}
	a.setView(view)
	return view, nil
}

// SelectCSVFile opens a file dialog for a SCADA export.
func (a *App) SelectCSVFile() (string, error) {
	return runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select SCADA export",
		Filters: []runtime.FileFilter{
			{DisplayName: "CSV files (*.csv)", Pattern: "*.csv"},
		},
	})
}

// WindRoseFromCSV builds the wind rose from a local SCADA export.
func (a *App) WindRoseFromCSV(path string, bins int) (*service.WindRoseView, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	a.clearLog()
	a.sendStatus(fmt.Sprintf("Parsing: %s", path))
	view, err := svc.WindRoseFromCSV(path, parser.Filter{}, bins)
	if err != nil {
		a.sendStatus(fmt.Sprintf("Error parsing CSV: %v", err))
		return nil, err
	}
	a.sendStatus(fmt.Sprintf("Binned %d samples into %d sectors.", view.Model.TotalCount, len(view.Model.Sectors)))
	a.setView(view)
	return view, nil
}

func (a *App) onAEPChange(s task.Snapshot) {
	if s.State == task.Completed && s.Result != nil {
		a.mu.Lock()
		a.aep = s.Result
		a.mu.Unlock()
	}
	runtime.EventsEmit(a.ctx, "aepStatus", newAEPStatus(s))
}

func (a *App) onAEPError(err error) {
	a.sendStatus(fmt.Sprintf("AEP poll error: %v", err))
}

// SubmitAEP starts an AEP analysis and returns its task id. Progress is
// pushed to the UI as aepStatus events.
func (a *App) SubmitAEP(params task.Params) (string, error) {
	if a.ctrl == nil {
		return "", errors.New("backend service is not available")
	}
	if len(params.ReanalysisProducts) == 0 {
		params.ReanalysisProducts = task.DefaultParams().ReanalysisProducts
	}
	t, err := a.ctrl.Submit(a.ctx, params)
	if err != nil {
		a.sendStatus(fmt.Sprintf("AEP submission failed: %v", err))
		return "", err
	}
	a.sendStatus(fmt.Sprintf("AEP analysis %s submitted.", t.Ref))
	return string(t.Ref), nil
}

// CancelAEP stops polling the current analysis.
func (a *App) CancelAEP() {
	if a.ctrl != nil {
		a.ctrl.Cancel()
	}
}

// AEPState returns the current analysis state.
func (a *App) AEPState() AEPStatus {
	if a.ctrl == nil {
		return AEPStatus{State: task.Idle.String()}
	}
	return newAEPStatus(a.ctrl.Snapshot())
}

// GenerateReport writes the PDF dashboard in the background. Progress is
// reported through statusUpdate events and the outcome through
// generationComplete.
func (a *App) GenerateReport(pdfFilePath string) (string, error) {
	svc, err := a.service()
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	view, aep := a.view, a.aep
	a.mu.Unlock()

	a.clearLog()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errMsg := fmt.Sprintf("PANIC recovered: %v", r)
				a.sendStatus(errMsg)
				runtime.EventsEmit(a.ctx, "generationComplete", false, errMsg)
			}
		}()

		runtime.EventsEmit(a.ctx, "generationStart")
		if view == nil {
			a.sendStatus("No wind rose loaded; the report will omit wind statistics.")
		}

		a.sendStatus("Collecting dashboard data...")
		d, err := svc.BuildDashboard(a.ctx, view, aep)
		if err != nil {
			a.sendStatus(fmt.Sprintf("Some sections are missing: %v", err))
		}

		path := svc.ReportPath(pdfFilePath, time.Now())
		a.sendStatus(fmt.Sprintf("Generating PDF: %s...", path))
		warnings, err := svc.GenerateReport(a.ctx, path, d)
		for _, w := range warnings {
			a.sendStatus(fmt.Sprintf("Chart skipped: %v", w))
		}
		if err != nil {
			errMsg := fmt.Sprintf("Error generating PDF report: %v", err)
			a.sendStatus(errMsg)
			runtime.EventsEmit(a.ctx, "generationComplete", false, errMsg)
			return
		}
		successMsg := fmt.Sprintf("PDF report successfully generated: %s", path)
		a.sendStatus(successMsg)
		runtime.EventsEmit(a.ctx, "generationComplete", true, successMsg)
	}()

	return "Report generation started in background.", nil
}
