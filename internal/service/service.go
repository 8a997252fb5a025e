// Package service wires configuration, logging, the cache and the backend
// client into the workflows shared by the desktop app and the CLI: building
// wind roses, running AEP jobs and generating reports.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/user/wind_analyzer_go/internal/analysis"
	"github.com/user/wind_analyzer_go/internal/backend"
	"github.com/user/wind_analyzer_go/internal/cache"
	"github.com/user/wind_analyzer_go/internal/config"
	"github.com/user/wind_analyzer_go/internal/logging"
	"github.com/user/wind_analyzer_go/internal/parser"
	"github.com/user/wind_analyzer_go/internal/polar"
	"github.com/user/wind_analyzer_go/internal/report"
	"github.com/user/wind_analyzer_go/internal/task"
	"github.com/user/wind_analyzer_go/internal/windrose"
)

// maxFetchWorkers bounds concurrent backend requests while building a
// dashboard.
const maxFetchWorkers = 4

// Service holds the long-lived dependencies.
type Service struct {
	Log    *logging.Logger
	Client *backend.Client

	mu    sync.RWMutex
	cfg   *config.Config
	cache cache.Cache
}

// New builds a service from cfg. An unreachable Redis cache is replaced by
// an in-memory one so the backend stays usable.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("service: nil config")
	}
	log = logging.OrNop(log).WithComponent("service")

	cacheOpts := cfg.Cache.CacheOptions()
	c, err := cache.New(ctx, cacheOpts)
	if err != nil {
		log.Warn("analysis cache unavailable, falling back to memory", "backend", cacheOpts.Backend, "error", err)
		c = cache.NewMemoryCache()
	}

	opts := []backend.Option{backend.WithLogger(log)}
	if c != nil {
		opts = append(opts, backend.WithCache(c, cacheOpts.TTL))
	}
	return &Service{
		Log:    log,
		Client: backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout(), opts...),
		cfg:    cfg,
		cache:  c,
	}, nil
}

// Config returns the active configuration.
func (s *Service) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig swaps in a reloaded configuration. Settings read per call
// (wind rose bins, geometry, polling, report directory) take effect at once;
// the backend client and cache keep their original settings.
func (s *Service) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.Log.Info("configuration reloaded")
}

// Close releases the cache connection, if any.
func (s *Service) Close() error {
	if closer, ok := s.cache.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// WindRoseConfig returns the configured binning, with bins overriding the
// direction count when positive.
func (s *Service) WindRoseConfig(bins int) windrose.Config {
	wc := s.Config().WindRose
	edges := make([]float64, len(wc.SpeedEdges))
	copy(edges, wc.SpeedEdges)
	wc.SpeedEdges = edges
	if bins > 0 {
		wc.DirectionBins = bins
	}
	return wc
}

// WindRoseView is a binned wind rose ready for display.
type WindRoseView struct {
	Source   string                `json:"source"`
	Model    *windrose.SectorModel `json:"model"`
	SVG      string                `json:"svg"`
	Summary  analysis.WindSummary  `json:"summary"`
	Warnings []string              `json:"warnings"`

	// Analysis is set for CSV input, where per-turbine records are known.
	Analysis *analysis.AnalysisResults `json:"-"`
}

func (s *Service) newView(source string, model *windrose.SectorModel, samples []windrose.WindSample) *WindRoseView {
	view := &WindRoseView{
		Source:   source,
		Model:    model,
		SVG:      polar.SVGDocument(model, s.Config().Geometry.Full()),
		Summary:  analysis.SummarizeWind(samples, model),
		Warnings: make([]string, 0),
	}
	if n := len(model.InputErrors); n > 0 {
		view.Warnings = append(view.Warnings, fmt.Sprintf("Warning: %d records dropped while binning (first: %s).", n, model.InputErrors[0].Error()))
	}
	return view
}

// WindRoseFromCSV builds a wind rose from a SCADA CSV export.
func (s *Service) WindRoseFromCSV(path string, filter parser.Filter, bins int) (*WindRoseView, error) {
	wc := s.WindRoseConfig(bins)
	if err := wc.Validate(); err != nil {
		return nil, err
	}
	parsed, err := parser.ParseSCADACSV(path, filter)
	if err != nil {
		return nil, err
	}
	model, err := windrose.Bin(parsed.Samples, wc)
	if err != nil {
		return nil, err
	}
	results, err := analysis.AnalyzeSCADA(parsed, model)
	if err != nil {
		return nil, err
	}

	view := s.newView(filepath.Base(path), model, parsed.Samples)
	view.Analysis = results
	view.Warnings = append(append(parsed.ParseErrors, results.AnalysisErrors...), view.Warnings...)
	s.Log.Info("wind rose built from csv", "path", path, "rows", parsed.Rows, "samples", len(parsed.Samples), "turbines", len(parsed.Turbines))
	return view, nil
}

// LoadWindRose builds a wind rose from the backend. With a time range the
// raw SCADA series is binned and full statistics are available; otherwise
// the backend's pre-aggregated rose is re-binned, which yields the
// prevailing direction but no speed statistics.
func (s *Service) LoadWindRose(ctx context.Context, q backend.SCADAQuery, bins int) (*WindRoseView, error) {
	wc := s.WindRoseConfig(bins)
	if err := wc.Validate(); err != nil {
		return nil, err
	}
	source := "plant"
	if q.TurbineID != "" {
		source = q.TurbineID
	}

	if q.Start.IsZero() && q.End.IsZero() {
		cells, err := s.Client.WindRose(ctx, q.TurbineID)
		if err != nil {
			return nil, err
		}
		model, err := windrose.BinAggregated(backend.DirectionalBins(cells), wc)
		if err != nil {
			return nil, err
		}
		view := s.newView(source, model, nil)
		view.Warnings = append(view.Warnings, "Speed statistics need a time range; showing the backend's aggregated rose.")
		return view, nil
	}

	points, err := s.Client.SCADA(ctx, q)
	if err != nil {
		return nil, err
	}
	samples := make([]windrose.WindSample, len(points))
	for i, p := range points {
		samples[i] = p.WindSample()
	}
	model, err := windrose.Bin(samples, wc)
	if err != nil {
		return nil, err
	}
	s.Log.Info("wind rose built from scada", "turbine_id", q.TurbineID, "points", len(points))
	return s.newView(source, model, samples), nil
}

// NewController creates an AEP task controller using the polling settings.
func (s *Service) NewController(onChange func(task.Snapshot), onError func(error)) *task.Controller {
	opts := s.Config().Polling.TaskOptions()
	opts.Logger = s.Log
	opts.OnChange = onChange
	opts.OnError = onError
	return task.NewController(backend.AEPJobs{Client: s.Client}, opts)
}

// ApplyPolling hands the current polling settings to ctrl. They take effect
// at its next submission.
func (s *Service) ApplyPolling(ctrl *task.Controller) {
	opts := s.Config().Polling.TaskOptions()
	ctrl.SetPolling(opts.Interval, opts.MaxAttempts, opts.MaxDuration)
}

// BuildDashboard gathers everything the backend offers for a report. Each
// section is fetched concurrently; sections that fail are left empty and
// their errors joined into the returned error, which is not fatal.
func (s *Service) BuildDashboard(ctx context.Context, view *WindRoseView, aep *task.Result) (*report.Dashboard, error) {
	d := &report.Dashboard{
		Title:       report.DefaultTitle,
		GeneratedAt: time.Now(),
		Geometry:    s.Config().Geometry.Full(),
		AEP:         aep,
	}
	if view != nil {
		d.WindRose = view.Model
		summary := view.Summary
		d.Wind = &summary
		d.SCADA = view.Analysis
	}

	p := pool.New().WithErrors().WithMaxGoroutines(maxFetchWorkers)
	fetch := func(section string, fn func() error) {
		p.Go(func() error {
			if err := fn(); err != nil {
				s.Log.Warn("dashboard section unavailable", "section", section, "error", err)
				return fmt.Errorf("%s: %w", section, err)
			}
			return nil
		})
	}
	fetch("plant summary", func() (err error) {
		d.Plant, err = s.Client.PlantSummary(ctx)
		return err
	})
	fetch("turbines", func() (err error) {
		d.Turbines, err = s.Client.Turbines(ctx)
		return err
	})
	fetch("power curve", func() (err error) {
		d.PowerCurve, err = s.Client.PowerCurve(ctx, backend.PowerCurveRequest{})
		return err
	})
	fetch("monthly energy", func() (err error) {
		d.MonthlyEnergy, err = s.Client.MonthlyEnergy(ctx, "")
		return err
	})
	fetch("electrical losses", func() (err error) {
		d.ElectricalLosses, err = s.Client.ElectricalLosses(ctx, backend.ElectricalLossesRequest{})
		return err
	})
	fetch("wake losses", func() (err error) {
		d.WakeLosses, err = s.Client.WakeLosses(ctx, backend.WakeLossesRequest{})
		return err
	})
	fetch("yaw misalignment", func() (err error) {
		d.Yaw, err = s.Client.YawMisalignment(ctx, backend.YawMisalignmentRequest{})
		return err
	})
	err := p.Wait()
	if d.Plant != nil && d.Plant.Name != "" {
		d.Title = fmt.Sprintf("%s: %s", report.DefaultTitle, d.Plant.Name)
	}
	return d, err
}

// ReportPath resolves the output path: name as given when absolute or
// containing a directory, otherwise inside the configured output directory.
// An empty name gets a timestamped default.
func (s *Service) ReportPath(name string, now time.Time) string {
	if name == "" {
		name = fmt.Sprintf("wind_report_%s.pdf", now.Format("20060102_150405"))
	}
	if filepath.IsAbs(name) || filepath.Dir(name) != "." {
		return name
	}
	return filepath.Join(s.Config().Report.OutputDir, name)
}

// GenerateReport renders the charts and writes the PDF. Chart failures are
// returned as warnings; only a failure to write the PDF is an error.
func (s *Service) GenerateReport(ctx context.Context, path string, d *report.Dashboard) ([]error, error) {
	images, plotErrs := report.RenderPlots(ctx, d)
	for _, err := range plotErrs {
		s.Log.Warn("chart skipped", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return plotErrs, err
	}
	if err := report.BuildPDFReport(path, d, images); err != nil {
		return plotErrs, fmt.Errorf("failed to write report: %w", err)
	}
	s.Log.Info("report written", "path", path, "charts", len(images))
	return plotErrs, nil
}
