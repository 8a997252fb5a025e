package service

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/wind_analyzer_go/internal/backend"
	"github.com/user/wind_analyzer_go/internal/cache"
	"github.com/user/wind_analyzer_go/internal/config"
	"github.com/user/wind_analyzer_go/internal/parser"
	"github.com/user/wind_analyzer_go/internal/task"
	"github.com/user/wind_analyzer_go/internal/testutil"
)

func newTestService(t *testing.T, baseURL string) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.Backend.BaseURL = baseURL
	cfg.Cache.Backend = cache.BackendNone
	cfg.Report.OutputDir = t.TempDir()
	cfg.Polling.IntervalMs = 100

	svc, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestNewFallsBackToMemoryCache(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Backend = cache.BackendRedis
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	svc, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := svc.cache.(*cache.MemoryCache); !ok {
		t.Errorf("cache = %T, want *cache.MemoryCache", svc.cache)
	}
	if _, err := New(context.Background(), nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestWindRoseFromCSV(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1")
	path := testutil.WriteCSV(t, testutil.SampleCSV)

	view, err := svc.WindRoseFromCSV(path, parser.Filter{}, 8)
	if err != nil {
		t.Fatalf("WindRoseFromCSV() error = %v", err)
	}
	if len(view.Model.Sectors) != 8 {
		t.Errorf("got %d sectors, want 8", len(view.Model.Sectors))
	}
	if view.Summary.ValidSamples != 4 || view.Model.TotalCount != 4 {
		t.Errorf("summary = %+v, total = %d", view.Summary, view.Model.TotalCount)
	}
	if !strings.Contains(view.SVG, "<svg") {
		t.Error("view lacks SVG")
	}
	if view.Analysis == nil || len(view.Analysis.Turbines) != 2 {
		t.Errorf("Analysis = %+v", view.Analysis)
	}
	if view.Source != "scada.csv" {
		t.Errorf("Source = %q", view.Source)
	}

	if _, err := svc.WindRoseFromCSV(path, parser.Filter{}, -1); err != nil {
		t.Errorf("non-positive bins should keep the configured count: %v", err)
	}
	if _, err := svc.WindRoseFromCSV(filepath.Join(t.TempDir(), "missing.csv"), parser.Filter{}, 0); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadWindRose(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	svc := newTestService(t, fb.URL())
	ctx := context.Background()

	agg, err := svc.LoadWindRose(ctx, backend.SCADAQuery{TurbineID: "R80711"}, 0)
	if err != nil {
		t.Fatalf("LoadWindRose() aggregated error = %v", err)
	}
	if agg.Model.TotalCount != 8 || agg.Source != "R80711" {
		t.Errorf("aggregated view = %+v", agg)
	}
	if agg.Summary.PrevailingDirectionDeg != 180 {
		t.Errorf("prevailing = %v, want 180", agg.Summary.PrevailingDirectionDeg)
	}
	if len(agg.Warnings) == 0 || !strings.Contains(agg.Warnings[len(agg.Warnings)-1], "time range") {
		t.Errorf("Warnings = %v", agg.Warnings)
	}

	raw, err := svc.LoadWindRose(ctx, backend.SCADAQuery{Start: time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)}, 0)
	if err != nil {
		t.Fatalf("LoadWindRose() raw error = %v", err)
	}
	if raw.Summary.ValidSamples != 1 || raw.Summary.MeanSpeed != 7.1 {
		t.Errorf("raw summary = %+v", raw.Summary)
	}
	if fb.Hits("/api/data/scada") != 1 || fb.Hits("/api/data/wind-rose") != 1 {
		t.Error("each mode should hit its own endpoint once")
	}
	if raw.Source != "plant" {
		t.Errorf("Source = %q, want plant", raw.Source)
	}
}

func TestBuildDashboardCollectsSectionErrors(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Fail("/api/analysis/yaw-misalignment", http.StatusInternalServerError, "Analysis failed")
	svc := newTestService(t, fb.URL())

	view, err := svc.WindRoseFromCSV(testutil.WriteCSV(t, testutil.SampleCSV), parser.Filter{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	d, err := svc.BuildDashboard(context.Background(), view, &task.Result{AEPGWh: 12.3})
	if err == nil || !strings.Contains(err.Error(), "yaw misalignment") {
		t.Fatalf("BuildDashboard() error = %v, want yaw misalignment failure", err)
	}
	if d.Yaw != nil {
		t.Error("failed section should stay empty")
	}
	if d.Plant == nil || len(d.Turbines) != 2 || d.PowerCurve == nil || len(d.MonthlyEnergy) != 2 ||
		d.ElectricalLosses == nil || d.WakeLosses == nil {
		t.Errorf("dashboard missing sections: %+v", d)
	}
	if !strings.Contains(d.Title, "La Haute Borne") {
		t.Errorf("Title = %q", d.Title)
	}
	if d.WindRose != view.Model || d.SCADA != view.Analysis || d.AEP.AEPGWh != 12.3 {
		t.Error("view and AEP result not carried into the dashboard")
	}
}

func TestGenerateReport(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	svc := newTestService(t, fb.URL())
	ctx := context.Background()

	d, err := svc.BuildDashboard(ctx, nil, nil)
	if err != nil {
		t.Fatalf("BuildDashboard() error = %v", err)
	}
	path := svc.ReportPath("", time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
	warnings, err := svc.GenerateReport(ctx, path, d)
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Error("report is not a PDF")
	}
}

func TestReportPath(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1")
	dir := svc.Config().Report.OutputDir
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"default", "", filepath.Join(dir, "wind_report_20240506_070809.pdf")},
		{"bare name", "plant.pdf", filepath.Join(dir, "plant.pdf")},
		{"relative dir", filepath.Join("out", "plant.pdf"), filepath.Join("out", "plant.pdf")},
		{"absolute", "/tmp/plant.pdf", "/tmp/plant.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.ReportPath(tt.in, now); got != tt.want {
				t.Errorf("ReportPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestControllerRunsAEPAgainstBackend(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	svc := newTestService(t, fb.URL())
	ctrl := svc.NewController(nil, nil)
	defer ctrl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := ctrl.Submit(ctx, task.DefaultParams()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	snap, err := ctrl.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.State != task.Completed || snap.Result == nil || snap.Result.AEPGWh != 12.3 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestApplyPollingKeepsOneController(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Handle("/api/analysis/aep/status/task-1", testutil.Respond(http.StatusOK,
		`{"task_id":"task-1","status":"running"}`))
	svc := newTestService(t, fb.URL())

	states := make(chan task.State, 64)
	ctrl := svc.NewController(func(s task.Snapshot) { states <- s.State }, nil)
	defer ctrl.Close()

	reloaded := *svc.Config()
	reloaded.Polling.MaxAttempts = 1
	svc.UpdateConfig(&reloaded)
	svc.ApplyPolling(ctrl)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := ctrl.Submit(ctx, task.DefaultParams()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	snap, err := ctrl.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.State != task.Failed || !errors.Is(snap.Failure, task.ErrPollLimitExceeded) {
		t.Fatalf("snapshot = %+v, want failed by the reloaded poll limit", snap)
	}
	if hits := fb.Hits("/api/analysis/aep/status/task-1"); hits != 1 {
		t.Errorf("status hits = %d, want 1", hits)
	}

	var last task.State
	for last != task.Failed {
		select {
		case last = <-states:
		case <-ctx.Done():
			t.Fatalf("last published state = %v, want %v", last, task.Failed)
		}
	}
	select {
	case s := <-states:
		t.Errorf("state %v published after the terminal one", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUpdateConfig(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1")
	cfg := config.Default()
	cfg.WindRose.DirectionBins = 12
	svc.UpdateConfig(cfg)
	svc.UpdateConfig(nil)
	if got := svc.WindRoseConfig(0).DirectionBins; got != 12 {
		t.Errorf("DirectionBins = %d, want 12", got)
	}
}
