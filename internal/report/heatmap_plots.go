package report

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/user/wind_analyzer_go/internal/windrose"
)

// frequencyGrid exposes a sector model as a plotter.GridXYZ: columns are
// sectors, rows are speed bands, Z is the frequency in percent.
type frequencyGrid struct {
	model *windrose.SectorModel
}

func (g frequencyGrid) Dims() (c, r int) {
	return len(g.model.Sectors), len(g.model.Bands)
}

func (g frequencyGrid) Z(c, r int) float64 {
	segs := g.model.Sectors[c].Segments
	if r >= len(segs) {
		return math.NaN()
	}
	return segs[r].Frequency * 100
}

func (g frequencyGrid) X(c int) float64 {
	return g.model.Sectors[c].DirectionCenterDeg
}

func (g frequencyGrid) Y(r int) float64 {
	return float64(r)
}

// maxZ returns the largest finite cell value.
func (g frequencyGrid) maxZ() float64 {
	c, r := g.Dims()
	maxVal := 0.0
	for i := 0; i < c; i++ {
		for j := 0; j < r; j++ {
			if z := g.Z(i, j); !math.IsNaN(z) && z > maxVal {
				maxVal = z
			}
		}
	}
	return maxVal
}

// CreateFrequencyHeatmap plots the sector by speed band frequency table.
func CreateFrequencyHeatmap(model *windrose.SectorModel) ([]byte, error) {
	if model == nil || len(model.Sectors) == 0 || len(model.Bands) == 0 {
		return nil, fmt.Errorf("no wind rose data to plot heatmap")
	}
	grid := frequencyGrid{model: model}

	p := plot.New()
	p.Title.Text = "Wind Frequency by Direction and Speed (%)"
	p.X.Label.Text = "Direction (deg)"
	p.Y.Label.Text = "Wind speed (m/s)"

	yTicks := make([]plot.Tick, len(model.Bands))
	for i, b := range model.Bands {
		yTicks[i] = plot.Tick{Value: float64(i), Label: b.Label()}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)
	p.Y.Min = -0.5
	p.Y.Max = float64(len(model.Bands)) - 0.5

	p.X.Tick.Marker = plot.ConstantTicks([]plot.Tick{
		{Value: 0, Label: "N"}, {Value: 90, Label: "E"},
		{Value: 180, Label: "S"}, {Value: 270, Label: "W"},
	})
	half := model.StepDeg / 2
	p.X.Min = -half
	p.X.Max = 360 - half

	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	hm.Min = 0
	hm.Max = grid.maxZ()
	if hm.Max == hm.Min {
		hm.Max = hm.Min + 1
	}
	hm.NaN = color.Gray{Y: 200}
	p.Add(hm)

	return writePNG(p, vg.Points(800), vg.Points(360))
}
