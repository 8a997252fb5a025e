// Package polar maps a windrose.SectorModel onto 2-D vector geometry.
//
// Render is pure: the same model and geometry always produce the same
// primitives, which keeps rendered output stable for visual comparisons.
// Angles are compass degrees, 0° pointing up (north) and growing clockwise.
// Pixel coordinates have their origin at the top-left corner with y pointing
// down, as in SVG.
package polar

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/user/wind_analyzer_go/internal/windrose"
)

// FrameRingPadding is the gap between the outer radius and the frame ring.
const FrameRingPadding = 8.0

// Palette colors speed bands from calm (innermost) to strong.
var Palette = []color.RGBA{
	{R: 0x0b, G: 0x2f, B: 0x3f, A: 0xff},
	{R: 0x14, G: 0x5f, B: 0x73, A: 0xff},
	{R: 0x00, G: 0xd4, B: 0xaa, A: 0xff},
	{R: 0xf5, G: 0xa6, B: 0x23, A: 0xff},
	{R: 0xff, G: 0xdd, B: 0x82, A: 0xff},
	{R: 0xff, G: 0xd5, B: 0xa6, A: 0xff},
}

// BandColor returns the palette color for a speed band index.
func BandColor(band int) color.RGBA {
	if band < 0 {
		band = -band
	}
	return Palette[band%len(Palette)]
}

// Geometry sets the canvas size and the radial range wedges are scaled into.
type Geometry struct {
	Size        float64 `json:"size" mapstructure:"size"`
	InnerRadius float64 `json:"inner_radius" mapstructure:"inner_radius"`
	OuterRadius float64 `json:"outer_radius" mapstructure:"outer_radius"`
}

// DefaultGeometry is the full-size dashboard rose.
func DefaultGeometry() Geometry {
	return Geometry{Size: 320, InnerRadius: 34, OuterRadius: 134}
}

// CompactGeometry is the small rose used on overview cards.
func CompactGeometry() Geometry {
	return Geometry{Size: 200, InnerRadius: 20, OuterRadius: 84}
}

// Validate checks that the radii are ordered and fit the canvas.
func (g Geometry) Validate() error {
	if g.Size <= 0 {
		return fmt.Errorf("geometry size must be positive, got %g", g.Size)
	}
	if g.InnerRadius < 0 || g.OuterRadius <= g.InnerRadius {
		return fmt.Errorf("geometry radii must satisfy 0 <= inner < outer, got inner=%g outer=%g", g.InnerRadius, g.OuterRadius)
	}
	if g.OuterRadius+FrameRingPadding > g.Size/2 {
		return fmt.Errorf("outer radius %g does not fit a canvas of size %g", g.OuterRadius, g.Size)
	}
	return nil
}

// Center returns the canvas center.
func (g Geometry) Center() Point {
	return Point{X: g.Size / 2, Y: g.Size / 2}
}

// Point is a pixel position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// At returns the point at compass angle deg and radius r around c.
func At(c Point, deg, r float64) Point {
	rad := deg * math.Pi / 180
	return Point{X: c.X + r*math.Sin(rad), Y: c.Y - r*math.Cos(rad)}
}

// Kind distinguishes the primitive shapes.
type Kind int

const (
	// KindRing is a reference circle drawn regardless of data.
	KindRing Kind = iota
	// KindWedge is one filled stacked segment of a sector.
	KindWedge
)

func (k Kind) String() string {
	switch k {
	case KindRing:
		return "ring"
	case KindWedge:
		return "wedge"
	default:
		return "unknown"
	}
}

// Ring roles.
const (
	RingCore  = "core"
	RingFrame = "frame"
)

// Primitive is a drawable shape. Rings use Center, Radius and Role; wedges use
// Center, Sector, Band, StartDeg, EndDeg, Inner, Outer and Fill.
type Primitive struct {
	Kind     Kind       `json:"kind"`
	Role     string     `json:"role,omitempty"`
	Center   Point      `json:"center"`
	Radius   float64    `json:"radius,omitempty"`
	Sector   int        `json:"sector"`
	Band     int        `json:"band"`
	StartDeg float64    `json:"start_deg"`
	EndDeg   float64    `json:"end_deg"`
	Inner    float64    `json:"inner"`
	Outer    float64    `json:"outer"`
	Fill     color.RGBA `json:"fill"`
}

// Render lays out the model. The largest sector total spans the full radial
// range [InnerRadius, OuterRadius]; segments stack outward from InnerRadius
// in band order. Zero-valued segments produce no wedge, and an all-zero model
// produces only the base rings.
func Render(model *windrose.SectorModel, geom Geometry) []Primitive {
	center := geom.Center()
	prims := []Primitive{
		{Kind: KindRing, Role: RingFrame, Center: center, Radius: geom.OuterRadius + FrameRingPadding},
		{Kind: KindRing, Role: RingCore, Center: center, Radius: geom.InnerRadius},
	}
	if model == nil || len(model.Sectors) == 0 {
		return prims
	}
	maxTotal := model.MaxSectorTotal()
	if maxTotal <= 0 {
		return prims
	}

	span := 360.0 / float64(len(model.Sectors))
	scale := (geom.OuterRadius - geom.InnerRadius) / maxTotal
	for _, sector := range model.Sectors {
		start := sector.DirectionCenterDeg - span/2
		end := sector.DirectionCenterDeg + span/2
		inner := geom.InnerRadius
		for band, seg := range sector.Segments {
			outer := inner + seg.Frequency*scale
			if seg.Frequency > 0 {
				prims = append(prims, Primitive{
					Kind:     KindWedge,
					Center:   center,
					Sector:   sector.Index,
					Band:     band,
					StartDeg: start,
					EndDeg:   end,
					Inner:    inner,
					Outer:    outer,
					Fill:     BandColor(band),
				})
			}
			inner = outer
		}
	}
	return prims
}

// Wedges filters the wedge primitives.
func Wedges(prims []Primitive) []Primitive {
	var out []Primitive
	for _, p := range prims {
		if p.Kind == KindWedge {
			out = append(out, p)
		}
	}
	return out
}

// SVGPath returns the wedge outline as an SVG path in pixel coordinates.
// Arcs wider than 180° are split so the path stays valid for a single sector
// covering the full circle.
func (p Primitive) SVGPath() string {
	if p.Kind != KindWedge {
		return ""
	}
	var b strings.Builder
	start := At(p.Center, p.StartDeg, p.Inner)
	b.WriteString("M " + fmtPoint(start))
	b.WriteString(" L " + fmtPoint(At(p.Center, p.StartDeg, p.Outer)))
	for _, deg := range arcStops(p.StartDeg, p.EndDeg) {
		b.WriteString(fmt.Sprintf(" A %s %s 0 0 1 %s", fmtNum(p.Outer), fmtNum(p.Outer), fmtPoint(At(p.Center, deg, p.Outer))))
	}
	b.WriteString(" L " + fmtPoint(At(p.Center, p.EndDeg, p.Inner)))
	if p.Inner > 0 {
		for _, deg := range reverseStops(p.StartDeg, p.EndDeg) {
			b.WriteString(fmt.Sprintf(" A %s %s 0 0 0 %s", fmtNum(p.Inner), fmtNum(p.Inner), fmtPoint(At(p.Center, deg, p.Inner))))
		}
	}
	b.WriteString(" Z")
	return b.String()
}

// arcStops returns the end angles of clockwise arc pieces from start to end,
// each no wider than 180°.
func arcStops(start, end float64) []float64 {
	span := end - start
	if span <= 180 {
		return []float64{end}
	}
	return []float64{start + span/2, end}
}

// reverseStops walks counter-clockwise from end back to start.
func reverseStops(start, end float64) []float64 {
	span := end - start
	if span <= 180 {
		return []float64{start}
	}
	return []float64{end - span/2, start}
}

func fmtPoint(p Point) string {
	return fmtNum(p.X) + " " + fmtNum(p.Y)
}

func fmtNum(v float64) string {
	// Avoid "-0" which makes otherwise identical output diff.
	if math.Abs(v) < 0.005 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
