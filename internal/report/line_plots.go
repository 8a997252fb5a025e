package report

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/user/wind_analyzer_go/internal/backend"
)

// curveXYs converts curve points, dropping non-finite pairs.
func curveXYs(points []backend.CurvePoint) plotter.XYs {
	pts := make(plotter.XYs, 0, len(points))
	for _, cp := range points {
		if math.IsNaN(cp.WindSpeed) || math.IsNaN(cp.Power) || math.IsInf(cp.WindSpeed, 0) || math.IsInf(cp.Power, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: cp.WindSpeed, Y: cp.Power})
	}
	return pts
}

// CreatePowerCurvePlot plots the measured scatter and the fitted curve.
func CreatePowerCurvePlot(pc *backend.PowerCurve) ([]byte, error) {
	if pc == nil {
		return nil, fmt.Errorf("no power curve to plot")
	}
	scatterPts := curveXYs(pc.Scatter)
	fittedPts := curveXYs(pc.Fitted)
	if len(scatterPts) == 0 && len(fittedPts) == 0 {
		return nil, fmt.Errorf("power curve has no finite points")
	}

	p := plot.New()
	title := "Power Curve"
	if pc.TurbineID != "" {
		title = fmt.Sprintf("Power Curve (%s)", pc.TurbineID)
	}
	p.Title.Text = title
	p.X.Label.Text = "Wind speed (m/s)"
	p.Y.Label.Text = "Power (kW)"
	p.Add(plotter.NewGrid())

	if len(scatterPts) > 0 {
		sc, err := plotter.NewScatter(scatterPts)
		if err != nil {
			return nil, fmt.Errorf("failed to create scatter: %w", err)
		}
		sc.GlyphStyle.Color = seriesBlue
		sc.GlyphStyle.Radius = vg.Points(1)
		p.Add(sc)
		p.Legend.Add("Measured", sc)
	}
	if len(fittedPts) > 0 {
		line, err := plotter.NewLine(fittedPts)
		if err != nil {
			return nil, fmt.Errorf("failed to create fitted curve: %w", err)
		}
		line.Color = seriesRed
		line.LineStyle.Width = vg.Points(2)
		p.Add(line)
		method := pc.Method
		if method == "" {
			method = "fit"
		}
		p.Legend.Add(fmt.Sprintf("Fitted (%s)", method), line)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = vg.Points(10)
	return writePNG(p, vg.Points(800), vg.Points(400))
}
