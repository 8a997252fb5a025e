package windrose

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

const tolerance = 1e-9

func sumFrequencies(m *SectorModel) float64 {
	total := 0.0
	for _, s := range m.Sectors {
		total += s.Total()
	}
	return total
}

func TestBinEmptyInputKeepsGrid(t *testing.T) {
	for _, n := range []int{1, 4, 12, 16, 24, 36} {
		cfg := DefaultConfig()
		cfg.DirectionBins = n

		m, err := Bin(nil, cfg)
		if err != nil {
			t.Fatalf("Bin(nil) n=%d error: %v", n, err)
		}
		if len(m.Sectors) != n {
			t.Fatalf("n=%d: got %d sectors", n, len(m.Sectors))
		}
		for _, s := range m.Sectors {
			if len(s.Segments) != len(DefaultSpeedEdges) {
				t.Errorf("n=%d sector %d: got %d segments, want %d", n, s.Index, len(s.Segments), len(DefaultSpeedEdges))
			}
			for _, seg := range s.Segments {
				if seg.Count != 0 || seg.Frequency != 0 {
					t.Errorf("n=%d sector %d: non-zero segment %+v", n, s.Index, seg)
				}
			}
		}
		if got := sumFrequencies(m); got != 0 {
			t.Errorf("n=%d: frequency sum = %v, want 0", n, got)
		}
		if !m.IsZero() {
			t.Errorf("n=%d: IsZero() = false for empty input", n)
		}
	}
}

func TestBinCentersEvenlySpaced(t *testing.T) {
	cfg := Config{DirectionBins: 12, SpeedEdges: []float64{0, 5}}
	m, err := Bin(nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[float64]bool)
	for i, s := range m.Sectors {
		want := float64(i) * 30
		if math.Abs(s.DirectionCenterDeg-want) > tolerance {
			t.Errorf("sector %d center = %v, want %v", i, s.DirectionCenterDeg, want)
		}
		key := math.Mod(s.DirectionCenterDeg, 360)
		if seen[key] {
			t.Errorf("duplicate center %v", key)
		}
		seen[key] = true
	}
	if m.StepDeg != 30 {
		t.Errorf("StepDeg = %v, want 30", m.StepDeg)
	}
}

func TestBinFrequenciesSumToOne(t *testing.T) {
	samples := []WindSample{
		{DirectionDeg: 0, Speed: 1},
		{DirectionDeg: 45, Speed: 4},
		{DirectionDeg: 90, Speed: 7.5},
		{DirectionDeg: 180, Speed: 10},
		{DirectionDeg: 270, Speed: 25},
		{DirectionDeg: 300, Speed: 0},
		{DirectionDeg: 359.9, Speed: 12},
	}
	m, err := Bin(samples, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalCount != len(samples) {
		t.Errorf("TotalCount = %d, want %d", m.TotalCount, len(samples))
	}
	if got := sumFrequencies(m); math.Abs(got-1) > tolerance {
		t.Errorf("frequency sum = %v, want 1", got)
	}
}

func TestBinSpeedEdgeBelongsToUpperBand(t *testing.T) {
	cfg := Config{DirectionBins: 4, SpeedEdges: []float64{0, 3, 6}}
	m, err := Bin([]WindSample{{DirectionDeg: 0, Speed: 3.0}}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	segs := m.Sectors[0].Segments
	if segs[0].Count != 0 {
		t.Errorf("band [0,3) count = %d, want 0", segs[0].Count)
	}
	if segs[1].Count != 1 {
		t.Errorf("band [3,6) count = %d, want 1", segs[1].Count)
	}
	if segs[1].Band.Min != 3 || segs[1].Band.Max != 6 {
		t.Errorf("band 1 = %+v, want [3,6)", segs[1].Band)
	}
}

func TestBinUnboundedLastBand(t *testing.T) {
	cfg := Config{DirectionBins: 4, SpeedEdges: []float64{0, 3, 6, math.Inf(1)}}
	m, err := Bin([]WindSample{{DirectionDeg: 90, Speed: 6}, {DirectionDeg: 90, Speed: 80}}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Bands) != 3 {
		t.Fatalf("got %d bands, want 3", len(m.Bands))
	}
	last := m.Sectors[1].Segments[2]
	if last.Count != 2 {
		t.Errorf("last band count = %d, want 2", last.Count)
	}
	if !last.Band.Unbounded() {
		t.Errorf("last band %+v should be unbounded", last.Band)
	}
}

func TestBinDirectionAssignment(t *testing.T) {
	tests := []struct {
		name string
		n    int
		deg  float64
		want int
	}{
		{"wrap 359 to north", 4, 359, 0},
		{"just past half step", 4, 45.01, 1},
		{"exact tie goes lower", 4, 45, 0},
		{"wrap tie goes to sector 0", 4, 315, 0},
		{"south", 4, 180, 2},
		{"360 is north", 4, 360, 0},
		{"negative wraps", 4, -80, 3},
		{"16 bins backend center", 16, 11.25, 0},
		{"16 bins", 16, 33.75, 1},
		{"single bin", 1, 200, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := directionIndex(tt.deg, tt.n); got != tt.want {
				t.Errorf("directionIndex(%v, %d) = %d, want %d", tt.deg, tt.n, got, tt.want)
			}
		})
	}
}

func TestBinSample359GoesNorth(t *testing.T) {
	cfg := Config{DirectionBins: 4, SpeedEdges: []float64{0}}
	m, err := Bin([]WindSample{{DirectionDeg: 359, Speed: 5}}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if m.Sectors[0].Segments[0].Count != 1 {
		t.Errorf("sector 0 count = %d, want 1", m.Sectors[0].Segments[0].Count)
	}
	if m.Sectors[3].Segments[0].Count != 0 {
		t.Errorf("sector 270 count = %d, want 0", m.Sectors[3].Segments[0].Count)
	}
}

func TestBinDropsMalformedSamples(t *testing.T) {
	samples := []WindSample{
		{DirectionDeg: math.NaN(), Speed: 4},
		{DirectionDeg: 10, Speed: -1},
		{DirectionDeg: 10, Speed: math.NaN()},
		{DirectionDeg: 10, Speed: 4},
	}
	m, err := Bin(samples, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", m.TotalCount)
	}
	if len(m.InputErrors) != 3 {
		t.Fatalf("got %d input errors, want 3: %v", len(m.InputErrors), m.InputErrors)
	}
	for i, e := range m.InputErrors {
		if e.Index != i {
			t.Errorf("input error %d has index %d", i, e.Index)
		}
	}
	if got := sumFrequencies(m); math.Abs(got-1) > tolerance {
		t.Errorf("frequency sum = %v, want 1", got)
	}
}

func TestBinAggregated(t *testing.T) {
	// Backend grid: 16 sectors centered at 11.25 + k*22.5, bands [0,3,6,10,15,100).
	bins := []DirectionalBin{
		{DirectionCenterDeg: 11.25, SpeedMin: 0, SpeedMax: 3, Count: 4},
		{DirectionCenterDeg: 11.25, SpeedMin: 6, SpeedMax: 10, Count: 2},
		{DirectionCenterDeg: 191.25, SpeedMin: 15, SpeedMax: 100, Count: 2},
		{DirectionCenterDeg: 90, SpeedMin: 3, SpeedMax: 6, Count: -1},
		{DirectionCenterDeg: math.NaN(), SpeedMin: 3, SpeedMax: 6, Count: 9},
	}
	m, err := BinAggregated(bins, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalCount != 8 {
		t.Fatalf("TotalCount = %d, want 8", m.TotalCount)
	}
	north := m.Sectors[0].Segments
	if north[0].Count != 4 || north[2].Count != 2 {
		t.Errorf("north segments = %+v", north)
	}
	if got := m.Sectors[8].Segments[4].Count; got != 2 {
		t.Errorf("south 12+ count = %d, want 2", got)
	}
	if math.Abs(m.Sectors[0].Segments[0].Frequency-0.5) > tolerance {
		t.Errorf("north [0,3) frequency = %v, want 0.5", m.Sectors[0].Segments[0].Frequency)
	}
	if len(m.InputErrors) != 2 {
		t.Errorf("got %d input errors, want 2", len(m.InputErrors))
	}
}

func TestBinAggregatedEmpty(t *testing.T) {
	m, err := BinAggregated(nil, Config{DirectionBins: 8, SpeedEdges: []float64{0, 4}})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Sectors) != 8 || !m.IsZero() {
		t.Errorf("empty aggregated input: %d sectors, zero=%v", len(m.Sectors), m.IsZero())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero bins", Config{DirectionBins: 0, SpeedEdges: []float64{0}}, true},
		{"no edges", Config{DirectionBins: 4}, true},
		{"only inf", Config{DirectionBins: 4, SpeedEdges: []float64{math.Inf(1)}}, true},
		{"descending", Config{DirectionBins: 4, SpeedEdges: []float64{0, 6, 3}}, true},
		{"duplicate", Config{DirectionBins: 4, SpeedEdges: []float64{0, 3, 3}}, true},
		{"nan", Config{DirectionBins: 4, SpeedEdges: []float64{0, math.NaN()}}, true},
		{"trailing inf", Config{DirectionBins: 4, SpeedEdges: []float64{0, 3, math.Inf(1)}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}

	if _, err := Bin(nil, Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Bin with zero config error = %v", err)
	}
}

func TestPrevailing(t *testing.T) {
	m, err := Bin([]WindSample{
		{DirectionDeg: 270, Speed: 5},
		{DirectionDeg: 268, Speed: 8},
		{DirectionDeg: 90, Speed: 5},
	}, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Prevailing(); got != 12 {
		t.Errorf("Prevailing() = %d, want 12", got)
	}

	empty, _ := Bin(nil, DefaultConfig())
	if got := empty.Prevailing(); got != -1 {
		t.Errorf("Prevailing() on empty = %d, want -1", got)
	}
}

func TestSpeedBandLabel(t *testing.T) {
	bands := DefaultConfig().Bands()
	if got := bands[0].Label(); got != "0-3" {
		t.Errorf("Label() = %q, want 0-3", got)
	}
	if got := bands[len(bands)-1].Label(); got != "12+" {
		t.Errorf("Label() = %q, want 12+", got)
	}
}

func TestModelJSONRoundTripsUnboundedBand(t *testing.T) {
	m, err := Bin([]WindSample{{DirectionDeg: 0, Speed: 20}}, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `{"min":12,"max":null}`) {
		t.Errorf("unbounded band not encoded as null max: %s", data)
	}

	var back SectorModel
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	last := back.Bands[len(back.Bands)-1]
	if !last.Unbounded() || back.Bands[0].Max != 3 {
		t.Errorf("decoded bands = %+v", back.Bands)
	}
}
