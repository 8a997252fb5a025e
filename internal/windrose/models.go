package windrose

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// DefaultDirectionBins is the default number of direction sectors.
const DefaultDirectionBins = 16

// DefaultSpeedEdges are the lower bounds of the default speed bands in m/s.
// The band starting at the last edge is unbounded.
var DefaultSpeedEdges = []float64{0, 3, 6, 9, 12}

// ErrInvalidConfig is returned when a binning configuration cannot describe a
// usable angular grid or set of speed bands.
var ErrInvalidConfig = errors.New("invalid wind rose configuration")

// WindSample is a single raw wind observation. A NaN direction or speed marks
// a missing value.
type WindSample struct {
	DirectionDeg float64 `json:"direction_deg"`
	Speed        float64 `json:"speed"`
}

// DirectionalBin is a pre-aggregated histogram cell as served by the backend.
type DirectionalBin struct {
	DirectionCenterDeg float64 `json:"direction_center_deg"`
	SpeedMin           float64 `json:"speed_min"`
	SpeedMax           float64 `json:"speed_max"`
	Count              int     `json:"count"`
}

// SpeedBand is the half-open interval [Min, Max). Max is +Inf for the last band.
type SpeedBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether speed falls inside the band.
func (b SpeedBand) Contains(speed float64) bool {
	return speed >= b.Min && speed < b.Max
}

// Unbounded reports whether the band has no upper limit.
func (b SpeedBand) Unbounded() bool {
	return math.IsInf(b.Max, 1)
}

type speedBandJSON struct {
	Min float64  `json:"min"`
	Max *float64 `json:"max"`
}

// MarshalJSON writes an unbounded Max as null.
func (b SpeedBand) MarshalJSON() ([]byte, error) {
	out := speedBandJSON{Min: b.Min}
	if !b.Unbounded() {
		out.Max = &b.Max
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null or missing Max as unbounded.
func (b *SpeedBand) UnmarshalJSON(data []byte) error {
	var in speedBandJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	b.Min = in.Min
	b.Max = math.Inf(1)
	if in.Max != nil {
		b.Max = *in.Max
	}
	return nil
}

// Label returns a short human readable label, e.g. "3-6" or "12+".
func (b SpeedBand) Label() string {
	if b.Unbounded() {
		return fmt.Sprintf("%g+", b.Min)
	}
	return fmt.Sprintf("%g-%g", b.Min, b.Max)
}

// Segment is one speed band's share of a sector.
type Segment struct {
	Band      SpeedBand `json:"band"`
	Count     int       `json:"count"`
	Frequency float64   `json:"frequency"`
}

// Sector is one angular slice of the wind rose. Segments are ordered from the
// lowest speed band (innermost) to the highest.
type Sector struct {
	Index              int       `json:"index"`
	DirectionCenterDeg float64   `json:"direction_center_deg"`
	Segments           []Segment `json:"segments"`
}

// Total returns the summed frequency of all segments in the sector.
func (s Sector) Total() float64 {
	total := 0.0
	for _, seg := range s.Segments {
		total += seg.Frequency
	}
	return total
}

// SectorModel is the renderable form of a wind rose. It always holds one
// sector per configured direction bin, whatever the input.
type SectorModel struct {
	Sectors     []Sector            `json:"sectors"`
	Bands       []SpeedBand         `json:"bands"`
	StepDeg     float64             `json:"step_deg"`
	TotalCount  int                 `json:"total_count"`
	InputErrors []BinningInputError `json:"input_errors,omitempty"`
}

// SectorTotal returns the summed frequency of sector i.
func (m *SectorModel) SectorTotal(i int) float64 {
	if i < 0 || i >= len(m.Sectors) {
		return 0
	}
	return m.Sectors[i].Total()
}

// MaxSectorTotal returns the largest sector total, 0 for an all-zero model.
func (m *SectorModel) MaxSectorTotal() float64 {
	maxTotal := 0.0
	for _, s := range m.Sectors {
		if t := s.Total(); t > maxTotal {
			maxTotal = t
		}
	}
	return maxTotal
}

// IsZero reports whether no observation contributed to the model.
func (m *SectorModel) IsZero() bool {
	return m.MaxSectorTotal() == 0
}

// Prevailing returns the index of the sector with the highest total, or -1
// when the model is empty. Ties go to the lower index.
func (m *SectorModel) Prevailing() int {
	best := -1
	bestTotal := 0.0
	for i, s := range m.Sectors {
		if t := s.Total(); t > bestTotal {
			best, bestTotal = i, t
		}
	}
	return best
}

// BinningInputError describes an input record that was dropped from the
// aggregation. The rest of the input is still binned.
type BinningInputError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

func (e BinningInputError) Error() string {
	return fmt.Sprintf("record %d dropped: %s", e.Index, e.Reason)
}

// Config controls the angular grid and the speed bands.
type Config struct {
	DirectionBins int       `json:"direction_bins" mapstructure:"direction_bins"`
	SpeedEdges    []float64 `json:"speed_edges" mapstructure:"speed_edges"`
}

// DefaultConfig returns 16 direction bins and bands [0,3,6,9,12,∞).
func DefaultConfig() Config {
	edges := make([]float64, len(DefaultSpeedEdges))
	copy(edges, DefaultSpeedEdges)
	return Config{DirectionBins: DefaultDirectionBins, SpeedEdges: edges}
}

// Validate checks the configuration. A trailing +Inf edge is accepted since it
// only restates that the last band is unbounded.
func (c Config) Validate() error {
	if c.DirectionBins < 1 {
		return fmt.Errorf("%w: direction bins must be >= 1, got %d", ErrInvalidConfig, c.DirectionBins)
	}
	edges := c.finiteEdges()
	if len(edges) == 0 {
		return fmt.Errorf("%w: at least one finite speed edge is required", ErrInvalidConfig)
	}
	for i, e := range edges {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return fmt.Errorf("%w: speed edge %d is not finite", ErrInvalidConfig, i)
		}
		if i > 0 && e <= edges[i-1] {
			return fmt.Errorf("%w: speed edges must be strictly ascending (%g after %g)", ErrInvalidConfig, e, edges[i-1])
		}
	}
	return nil
}

// StepDeg is the angular width of one sector.
func (c Config) StepDeg() float64 {
	return 360.0 / float64(c.DirectionBins)
}

// Centers returns the direction bin centers, starting at north.
func (c Config) Centers() []float64 {
	step := c.StepDeg()
	centers := make([]float64, c.DirectionBins)
	for i := range centers {
		centers[i] = float64(i) * step
	}
	return centers
}

// Bands expands the edges into half-open bands, the last one unbounded.
func (c Config) Bands() []SpeedBand {
	edges := c.finiteEdges()
	bands := make([]SpeedBand, len(edges))
	for i, e := range edges {
		upper := math.Inf(1)
		if i+1 < len(edges) {
			upper = edges[i+1]
		}
		bands[i] = SpeedBand{Min: e, Max: upper}
	}
	return bands
}

func (c Config) finiteEdges() []float64 {
	edges := c.SpeedEdges
	for len(edges) > 0 && math.IsInf(edges[len(edges)-1], 1) {
		edges = edges[:len(edges)-1]
	}
	return edges
}
