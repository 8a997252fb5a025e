package polar

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"

	"github.com/user/wind_analyzer_go/internal/windrose"
)

// WriteSVG writes a standalone SVG document for the primitives. The markup
// mirrors what the dashboard frontend styles: wind-rose-ring, wind-rose-core
// and wind-rose-label classes.
func WriteSVG(w io.Writer, prims []Primitive, geom Geometry) {
	size := int(math.Round(geom.Size))
	canvas := svg.New(w)
	canvas.Start(size, size, fmt.Sprintf(`viewBox="0 0 %d %d"`, size, size), `class="wind-rose-svg"`)

	for _, p := range prims {
		if p.Kind != KindRing || p.Role != RingFrame {
			continue
		}
		canvas.Circle(round(p.Center.X), round(p.Center.Y), round(p.Radius), `class="wind-rose-ring"`, "fill:none;stroke:#3a4a55")
	}
	for _, p := range prims {
		if p.Kind != KindWedge {
			continue
		}
		canvas.Path(p.SVGPath(), fmt.Sprintf(`fill="%s"`, hexColor(p.Fill)), `opacity="0.9"`)
	}
	for _, p := range prims {
		if p.Kind != KindRing || p.Role != RingCore {
			continue
		}
		canvas.Circle(round(p.Center.X), round(p.Center.Y), round(p.Radius), `class="wind-rose-core"`, "fill:#16222b;stroke:#3a4a55")
	}
	for _, l := range cardinalLabels(geom) {
		canvas.Text(round(l.At.X), round(l.At.Y)+4, l.Text, `text-anchor="middle"`, `class="wind-rose-label"`)
	}
	canvas.End()
}

// SVGDocument renders the model straight to SVG markup.
func SVGDocument(model *windrose.SectorModel, geom Geometry) string {
	var buf bytes.Buffer
	WriteSVG(&buf, Render(model, geom), geom)
	return buf.String()
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func round(v float64) int {
	return int(math.Round(v))
}
