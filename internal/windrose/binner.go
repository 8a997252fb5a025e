// Package windrose turns raw wind observations or pre-aggregated histogram
// cells into a SectorModel: a fixed angular grid of sectors, each holding
// stacked speed-band segments with relative frequencies.
package windrose

import (
	"fmt"
	"math"
	"sort"
)

// Bin aggregates raw samples. Each valid sample goes to the sector whose
// center is nearest (wrapping at 0/360, ties to the lower index) and to the
// speed band whose half-open interval contains its speed. Malformed samples
// are dropped and reported in InputErrors.
func Bin(samples []WindSample, cfg Config) (*SectorModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bands := cfg.Bands()
	grid := newCountGrid(cfg.DirectionBins, len(bands))
	var inputErrors []BinningInputError

	for i, s := range samples {
		if math.IsNaN(s.DirectionDeg) || math.IsInf(s.DirectionDeg, 0) {
			inputErrors = append(inputErrors, BinningInputError{Index: i, Reason: "missing direction"})
			continue
		}
		if math.IsNaN(s.Speed) || math.IsInf(s.Speed, 0) {
			inputErrors = append(inputErrors, BinningInputError{Index: i, Reason: "missing speed"})
			continue
		}
		if s.Speed < 0 {
			inputErrors = append(inputErrors, BinningInputError{Index: i, Reason: fmt.Sprintf("negative speed %g", s.Speed)})
			continue
		}
		band := bandIndex(bands, s.Speed)
		if band < 0 {
			inputErrors = append(inputErrors, BinningInputError{Index: i, Reason: fmt.Sprintf("speed %g below first band edge %g", s.Speed, bands[0].Min)})
			continue
		}
		grid[directionIndex(s.DirectionDeg, cfg.DirectionBins)][band]++
	}

	return buildModel(grid, cfg, bands, inputErrors), nil
}

// BinAggregated re-bins histogram cells produced elsewhere (typically by the
// backend, whose grid may differ). A cell is matched to the nearest configured
// center within half a step and to the configured band containing its lower
// speed bound. Cells that cannot be matched are dropped.
func BinAggregated(bins []DirectionalBin, cfg Config) (*SectorModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bands := cfg.Bands()
	grid := newCountGrid(cfg.DirectionBins, len(bands))
	var inputErrors []BinningInputError
	tolerance := cfg.StepDeg() / 2

	for i, b := range bins {
		if math.IsNaN(b.DirectionCenterDeg) || math.IsInf(b.DirectionCenterDeg, 0) {
			inputErrors = append(inputErrors, BinningInputError{Index: i, Reason: "missing direction"})
			continue
		}
		if math.IsNaN(b.SpeedMin) || b.SpeedMin < 0 {
			inputErrors = append(inputErrors, BinningInputError{Index: i, Reason: fmt.Sprintf("invalid speed bound %g", b.SpeedMin)})
			continue
		}
		if b.Count < 0 {
			inputErrors = append(inputErrors, BinningInputError{Index: i, Reason: fmt.Sprintf("negative count %d", b.Count)})
			continue
		}
		dir := directionIndex(b.DirectionCenterDeg, cfg.DirectionBins)
		if angularDistance(b.DirectionCenterDeg, float64(dir)*cfg.StepDeg()) > tolerance {
			continue
		}
		band := bandIndex(bands, b.SpeedMin)
		if band < 0 {
			continue
		}
		grid[dir][band] += b.Count
	}

	return buildModel(grid, cfg, bands, inputErrors), nil
}

func newCountGrid(directions, bands int) [][]int {
	grid := make([][]int, directions)
	for i := range grid {
		grid[i] = make([]int, bands)
	}
	return grid
}

func buildModel(grid [][]int, cfg Config, bands []SpeedBand, inputErrors []BinningInputError) *SectorModel {
	total := 0
	for _, row := range grid {
		for _, c := range row {
			total += c
		}
	}

	centers := cfg.Centers()
	model := &SectorModel{
		Sectors:     make([]Sector, len(grid)),
		Bands:       bands,
		StepDeg:     cfg.StepDeg(),
		TotalCount:  total,
		InputErrors: inputErrors,
	}
	for i, row := range grid {
		segments := make([]Segment, len(bands))
		for j, c := range row {
			freq := 0.0
			if total > 0 {
				freq = float64(c) / float64(total)
			}
			segments[j] = Segment{Band: bands[j], Count: c, Frequency: freq}
		}
		model.Sectors[i] = Sector{Index: i, DirectionCenterDeg: centers[i], Segments: segments}
	}
	return model
}

// directionIndex returns the index of the nearest center on an n-sector grid
// whose first center is 0°. On an exact tie the lower index wins, including
// the wrap-around tie between the last sector and sector 0.
func directionIndex(deg float64, n int) int {
	step := 360.0 / float64(n)
	d := normalizeDeg(deg)
	x := d / step
	lo := int(math.Floor(x))
	frac := x - float64(lo)
	hi := (lo + 1) % n
	lo %= n
	switch {
	case frac < 0.5:
		return lo
	case frac > 0.5:
		return hi
	default:
		return min(lo, hi)
	}
}

// bandIndex returns the band containing speed, or -1 when speed is below the
// first edge. An edge value belongs to the band it opens.
func bandIndex(bands []SpeedBand, speed float64) int {
	i := sort.Search(len(bands), func(i int) bool { return bands[i].Min > speed })
	return i - 1
}

func normalizeDeg(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

func angularDistance(a, b float64) float64 {
	d := math.Abs(normalizeDeg(a) - normalizeDeg(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}
