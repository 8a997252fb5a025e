// Package report renders dashboard charts with gonum/plot and assembles
// them into a PDF report.
package report

import (
	"time"

	"github.com/user/wind_analyzer_go/internal/analysis"
	"github.com/user/wind_analyzer_go/internal/backend"
	"github.com/user/wind_analyzer_go/internal/polar"
	"github.com/user/wind_analyzer_go/internal/task"
	"github.com/user/wind_analyzer_go/internal/windrose"
)

// Plot keys used by RenderPlots and BuildPDFReport.
const (
	PlotWindRose        = "wind_rose"
	PlotFrequency       = "heatmap_frequency"
	PlotPowerCurve      = "line_power_curve"
	PlotMonthlyEnergy   = "bar_monthly_energy"
	PlotWakeLosses      = "bar_wake_losses"
	PlotYawMisalignment = "bar_yaw_misalignment"
	PlotAEPDistribution = "hist_aep"
)

// Dashboard is everything a report can show. Nil or empty sections are
// skipped.
type Dashboard struct {
	Title       string
	GeneratedAt time.Time

	Plant    *backend.PlantSummary
	Turbines []backend.Turbine

	WindRose *windrose.SectorModel
	Geometry polar.Geometry
	Wind     *analysis.WindSummary
	SCADA    *analysis.AnalysisResults

	AEP              *task.Result
	PowerCurve       *backend.PowerCurve
	MonthlyEnergy    []backend.MonthlyEnergy
	ElectricalLosses *backend.ElectricalLosses
	WakeLosses       *backend.WakeLosses
	Yaw              *backend.YawMisalignment
}

func (d *Dashboard) geometry() polar.Geometry {
	if d.Geometry == (polar.Geometry{}) {
		return polar.DefaultGeometry()
	}
	return d.Geometry
}
