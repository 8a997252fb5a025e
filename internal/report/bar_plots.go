package report

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/user/wind_analyzer_go/internal/backend"
)

// CreateMonthlyEnergyPlot plots energy per month in the order given.
func CreateMonthlyEnergyPlot(points []backend.MonthlyEnergy) ([]byte, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no monthly energy to plot")
	}
	values := make(plotter.Values, len(points))
	labels := make([]string, len(points))
	for i, m := range points {
		values[i] = m.EnergyMWh
		if math.IsNaN(values[i]) {
			values[i] = 0
		}
		labels[i] = fmt.Sprintf("%s %d", shortMonth(m.Month), m.Year)
	}

	p := plot.New()
	p.Title.Text = "Monthly Energy Production"
	p.Y.Label.Text = "Energy (MWh)"

	bars, err := plotter.NewBarChart(values, barWidth(len(points)))
	if err != nil {
		return nil, fmt.Errorf("failed to create bar chart: %w", err)
	}
	bars.Color = seriesGreen
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(labels...)
	if len(labels) > 12 {
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = draw.XRight
	}
	return writePNG(p, vg.Points(800), vg.Points(400))
}

func shortMonth(m string) string {
	if len(m) > 3 {
		return m[:3]
	}
	return m
}

func barWidth(n int) vg.Length {
	w := vg.Points(600 / float64(n+1))
	if w > vg.Points(40) {
		return vg.Points(40)
	}
	return w
}

// CreateTurbineBarPlot plots one value per turbine, e.g. wake loss or yaw
// misalignment.
func CreateTurbineBarPlot(title, yLabel string, values []backend.TurbineValue) ([]byte, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no turbine results to plot")
	}
	vals := make(plotter.Values, len(values))
	names := make([]string, len(values))
	for i, v := range values {
		vals[i] = v.Value
		if math.IsNaN(vals[i]) {
			vals[i] = 0
		}
		names[i] = v.TurbineID
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	bars, err := plotter.NewBarChart(vals, barWidth(len(values)))
	if err != nil {
		return nil, fmt.Errorf("failed to create bar chart: %w", err)
	}
	bars.Color = seriesOrange
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)
	return writePNG(p, vg.Points(800), vg.Points(400))
}

// CreateAEPDistributionPlot plots the Monte Carlo AEP iterations with the
// mean marked.
func CreateAEPDistributionPlot(iterations []float64) ([]byte, error) {
	vals := make(plotter.Values, 0, len(iterations))
	for _, v := range iterations {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) < 2 {
		return nil, fmt.Errorf("need at least 2 AEP iterations for a distribution, have %d", len(vals))
	}

	p := plot.New()
	p.Title.Text = "AEP Distribution"
	p.X.Label.Text = "AEP (GWh/yr)"
	p.Y.Label.Text = "Iterations"

	bins := int(math.Ceil(math.Sqrt(float64(len(vals)))))
	if bins > 40 {
		bins = 40
	}
	hist, err := plotter.NewHist(vals, bins)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	hist.FillColor = seriesBlue
	p.Add(hist)

	mean := stat.Mean(vals, nil)
	_, maxCount := histMax(hist)
	meanLine, err := plotter.NewLine(plotter.XYs{{X: mean, Y: 0}, {X: mean, Y: maxCount}})
	if err != nil {
		return nil, fmt.Errorf("failed to create mean line: %w", err)
	}
	meanLine.Color = seriesRed
	meanLine.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(meanLine)
	p.Legend.Add(fmt.Sprintf("Mean %.2f GWh", mean), meanLine)
	p.Legend.Top = true

	return writePNG(p, vg.Points(800), vg.Points(400))
}

func histMax(h *plotter.Histogram) (bin int, count float64) {
	for i, b := range h.Bins {
		if b.Weight > count {
			bin, count = i, b.Weight
		}
	}
	return bin, count
}
