package polar

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg" // registers png
	_ "gonum.org/v1/plot/vg/vgsvg" // registers svg

	"github.com/user/wind_analyzer_go/internal/windrose"
)

var (
	ringColor  = color.RGBA{R: 0x3a, G: 0x4a, B: 0x55, A: 0xff}
	coreColor  = color.RGBA{R: 0x16, G: 0x22, B: 0x2b, A: 0xff}
	labelColor = color.RGBA{R: 0x9b, G: 0xa8, B: 0xb4, A: 0xff}
)

// Draw paints primitives onto a gonum canvas. The canvas is expected to be
// geom.Size points square; pixel coordinates are flipped into vg's y-up
// space.
func Draw(c draw.Canvas, prims []Primitive, geom Geometry) {
	toVG := func(p Point) vg.Point {
		return vg.Point{X: vg.Length(p.X), Y: vg.Length(geom.Size - p.Y)}
	}

	for _, p := range prims {
		if p.Kind != KindWedge {
			continue
		}
		center := toVG(p.Center)
		startPhi := compassToMath(p.StartDeg)
		endPhi := compassToMath(p.EndDeg)
		sweep := (p.EndDeg - p.StartDeg) * math.Pi / 180

		var path vg.Path
		path.Move(toVG(At(p.Center, p.StartDeg, p.Inner)))
		path.Line(toVG(At(p.Center, p.StartDeg, p.Outer)))
		path.Arc(center, vg.Length(p.Outer), startPhi, -sweep)
		path.Line(toVG(At(p.Center, p.EndDeg, p.Inner)))
		if p.Inner > 0 {
			path.Arc(center, vg.Length(p.Inner), endPhi, sweep)
		}
		path.Close()

		c.SetColor(p.Fill)
		c.Fill(path)
	}

	// Rings go on top so the core hides the wedge roots.
	for _, p := range prims {
		if p.Kind != KindRing {
			continue
		}
		var path vg.Path
		path.Arc(toVG(p.Center), vg.Length(p.Radius), 0, 2*math.Pi)
		path.Close()
		if p.Role == RingCore {
			c.SetColor(coreColor)
			c.Fill(path)
		}
		c.SetLineWidth(vg.Points(1))
		c.SetColor(ringColor)
		c.Stroke(path)
	}

	sty := draw.TextStyle{
		Color:   labelColor,
		Font:    font.From(plot.DefaultFont, 11),
		Handler: plot.DefaultTextHandler,
		XAlign:  draw.XCenter,
		YAlign:  draw.YCenter,
	}
	for _, l := range cardinalLabels(geom) {
		c.FillText(sty, toVG(l.At), l.Text)
	}
}

// Encode renders the model into an image. Supported formats are "png" and
// "svg".
func Encode(model *windrose.SectorModel, geom Geometry, format string) ([]byte, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	size := vg.Length(geom.Size)
	cw, err := draw.NewFormattedCanvas(size, size, format)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s canvas: %w", format, err)
	}
	Draw(draw.New(cw), Render(model, geom), geom)

	buf := new(bytes.Buffer)
	if _, err := cw.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write wind rose: %w", err)
	}
	return buf.Bytes(), nil
}

type label struct {
	Text string
	At   Point
}

func cardinalLabels(geom Geometry) []label {
	c := geom.Center()
	return []label{
		{Text: "N", At: Point{X: c.X, Y: 14}},
		{Text: "S", At: Point{X: c.X, Y: geom.Size - 14}},
		{Text: "W", At: Point{X: 14, Y: c.Y}},
		{Text: "E", At: Point{X: geom.Size - 14, Y: c.Y}},
	}
}

// compassToMath converts a clockwise-from-north angle in degrees into a
// counter-clockwise-from-east angle in radians.
func compassToMath(deg float64) float64 {
	return (90 - deg) * math.Pi / 180
}
