package report

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/wind_analyzer_go/internal/analysis"
	"github.com/user/wind_analyzer_go/internal/backend"
	"github.com/user/wind_analyzer_go/internal/polar"
	"github.com/user/wind_analyzer_go/internal/task"
	"github.com/user/wind_analyzer_go/internal/windrose"
)

var pngMagic = []byte("\x89PNG")

func testModel(t *testing.T) *windrose.SectorModel {
	t.Helper()
	m, err := windrose.Bin([]windrose.WindSample{
		{DirectionDeg: 0, Speed: 2}, {DirectionDeg: 10, Speed: 7},
		{DirectionDeg: 180, Speed: 11}, {DirectionDeg: 225, Speed: 14},
		{DirectionDeg: 270, Speed: 5},
	}, windrose.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func fullDashboard(t *testing.T) *Dashboard {
	model := testModel(t)
	summary := analysis.SummarizeWind([]windrose.WindSample{{DirectionDeg: 0, Speed: 2}, {DirectionDeg: 180, Speed: 11}}, model)
	lower, upper := 1.5, 2.5
	return &Dashboard{
		Title:       "Test Report",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Plant: &backend.PlantSummary{
			Name: "La Haute Borne", CapacityMW: 8.2, TurbineCount: 4,
			DateRangeStart: time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC),
			DateRangeEnd:   time.Date(2015, 12, 31, 0, 0, 0, 0, time.UTC),
			Latitude:       48.45, Longitude: 5.59,
		},
		Turbines: []backend.Turbine{{AssetID: "R80711", Type: "MM82", RatedPowerKW: 2050, HubHeight: 80, RotorDiameter: 82}},
		WindRose: model,
		Geometry: polar.CompactGeometry(),
		Wind:     &summary,
		AEP: &task.Result{
			AEPGWh: 12.3, AEPLowerGWh: 11.1, AEPUpperGWh: 13.4, NPoints: 24,
			IterationsGWh: []float64{11.8, 12.1, 12.3, 12.4, 12.9, 13.0},
		},
		PowerCurve: &backend.PowerCurve{
			Scatter: []backend.CurvePoint{{WindSpeed: 3, Power: 10}, {WindSpeed: 8, Power: 900}, {WindSpeed: math.NaN(), Power: 5}},
			Fitted:  []backend.CurvePoint{{WindSpeed: 3, Power: 0}, {WindSpeed: 8, Power: 950}, {WindSpeed: 14, Power: 2050}},
			Method:  "IEC",
		},
		MonthlyEnergy: []backend.MonthlyEnergy{
			{Month: "January", Year: 2014, EnergyMWh: 1200}, {Month: "February", Year: 2014, EnergyMWh: 980},
		},
		ElectricalLosses: &backend.ElectricalLosses{LossPercent: 1.9, TotalTurbineEnergy: 100, TotalMeterEnergy: 98.1, UncertaintyLower: &lower, UncertaintyUpper: &upper},
		WakeLosses: &backend.WakeLosses{PlantWakeLossPercent: 4.2, Turbines: []backend.TurbineValue{
			{TurbineID: "R80711", Value: 3.1}, {TurbineID: "R80790", Value: 5.4},
		}},
		Yaw: &backend.YawMisalignment{Turbines: []backend.TurbineValue{{TurbineID: "R80711", Value: -2.5}}},
	}
}

func TestRenderPlotsAllCharts(t *testing.T) {
	images, errs := RenderPlots(context.Background(), fullDashboard(t))
	if len(errs) != 0 {
		t.Fatalf("RenderPlots() errors = %v", errs)
	}
	for _, key := range []string{
		PlotWindRose, PlotFrequency, PlotPowerCurve, PlotMonthlyEnergy,
		PlotWakeLosses, PlotYawMisalignment, PlotAEPDistribution,
	} {
		img, ok := images[key]
		if !ok {
			t.Errorf("missing plot %s", key)
			continue
		}
		if !bytes.HasPrefix(img, pngMagic) {
			t.Errorf("plot %s is not a PNG", key)
		}
	}
}

func TestRenderPlotsCollectsErrors(t *testing.T) {
	d := &Dashboard{
		WindRose:   testModel(t),
		PowerCurve: &backend.PowerCurve{Scatter: []backend.CurvePoint{{WindSpeed: math.NaN(), Power: 1}}},
	}
	images, errs := RenderPlots(context.Background(), d)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	var perr *PlotError
	if !errors.As(errs[0], &perr) || perr.Key != PlotPowerCurve {
		t.Errorf("error = %v, want PlotError for %s", errs[0], PlotPowerCurve)
	}
	if _, ok := images[PlotWindRose]; !ok {
		t.Error("a failing chart should not prevent the others")
	}
}

func TestRenderPlotsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	images, errs := RenderPlots(ctx, &Dashboard{WindRose: testModel(t)})
	if len(images) != 0 || len(errs) != 2 {
		t.Fatalf("images=%d errs=%d, want 0 and 2", len(images), len(errs))
	}
	if !errors.Is(errs[0], context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", errs[0])
	}
}

func TestRenderPlotsEmptyDashboard(t *testing.T) {
	images, errs := RenderPlots(context.Background(), &Dashboard{})
	if len(images) != 0 || len(errs) != 0 {
		t.Errorf("empty dashboard rendered %d images, %d errors", len(images), len(errs))
	}
}

func TestFrequencyGrid(t *testing.T) {
	m := testModel(t)
	g := frequencyGrid{model: m}
	c, r := g.Dims()
	if c != windrose.DefaultDirectionBins || r != len(windrose.DefaultSpeedEdges) {
		t.Fatalf("Dims() = %d, %d", c, r)
	}
	// One of five samples falls north in the 0-3 band.
	if got := g.Z(0, 0); math.Abs(got-20) > 1e-9 {
		t.Errorf("Z(0,0) = %v, want 20", got)
	}
	if g.X(4) != 90 || g.Y(2) != 2 {
		t.Errorf("X(4)=%v Y(2)=%v", g.X(4), g.Y(2))
	}
	if g.maxZ() != 20 {
		t.Errorf("maxZ() = %v, want 20", g.maxZ())
	}
}

func TestChartInputValidation(t *testing.T) {
	tests := []struct {
		name string
		fn   func() ([]byte, error)
	}{
		{"nil wind rose", func() ([]byte, error) { return CreateWindRosePlot(nil, polar.DefaultGeometry()) }},
		{"nil heatmap", func() ([]byte, error) { return CreateFrequencyHeatmap(nil) }},
		{"nil power curve", func() ([]byte, error) { return CreatePowerCurvePlot(nil) }},
		{"no months", func() ([]byte, error) { return CreateMonthlyEnergyPlot(nil) }},
		{"no turbines", func() ([]byte, error) { return CreateTurbineBarPlot("t", "y", nil) }},
		{"one iteration", func() ([]byte, error) { return CreateAEPDistributionPlot([]float64{1, math.NaN()}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestBuildPDFReport(t *testing.T) {
	d := fullDashboard(t)
	images, errs := RenderPlots(context.Background(), d)
	if len(errs) != 0 {
		t.Fatalf("RenderPlots() errors = %v", errs)
	}
	d.SCADA = &analysis.AnalysisResults{
		RankedByMeanSpeed: []analysis.RankedTurbine{{TurbineID: "R80711", Value: 6.4}},
		AnalysisErrors:    []string{"Turbine 'X' has no valid wind speed samples."},
	}

	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := BuildPDFReport(path, d, images); err != nil {
		t.Fatalf("BuildPDFReport() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
}

func TestBuildPDFReportMissingPlots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.pdf")
	if err := BuildPDFReport(path, &Dashboard{WindRose: testModel(t)}, nil); err != nil {
		t.Fatalf("BuildPDFReport() error = %v", err)
	}
	if err := BuildPDFReport(path, nil, nil); err == nil {
		t.Error("expected error for nil dashboard")
	}
}
