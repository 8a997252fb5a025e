// Package analysis derives descriptive wind statistics for dashboards and
// reports.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/user/wind_analyzer_go/internal/backend"
	"github.com/user/wind_analyzer_go/internal/parser"
	"github.com/user/wind_analyzer_go/internal/windrose"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SummarizeWind computes speed statistics over samples whose speed and
// direction are both usable, and the prevailing direction from model. The
// model may be nil.
func SummarizeWind(samples []windrose.WindSample, model *windrose.SectorModel) WindSummary {
	s := emptySummary()
	s.Samples = len(samples)

	speeds := make([]float64, 0, len(samples))
	for _, sample := range samples {
		if finite(sample.Speed) && sample.Speed >= 0 && finite(sample.DirectionDeg) {
			speeds = append(speeds, sample.Speed)
		}
	}
	s.ValidSamples = len(speeds)

	if len(speeds) > 0 {
		s.MeanSpeed, s.StdDevSpeed = stat.PopMeanStdDev(speeds, nil)
		s.MaxSpeed = floats.Max(speeds)
		s.WeibullK, s.WeibullC = fitWeibull(s.MeanSpeed, s.StdDevSpeed)
	}

	if model != nil && len(model.Bands) > 0 {
		if len(speeds) > 0 {
			calmBelow := model.Bands[0].Max
			calm := 0
			for _, v := range speeds {
				if v < calmBelow {
					calm++
				}
			}
			s.CalmFraction = float64(calm) / float64(len(speeds))
		}
		if i := model.Prevailing(); i >= 0 {
			s.PrevailingDirectionDeg = model.Sectors[i].DirectionCenterDeg
			s.PrevailingFrequency = model.SectorTotal(i)
		}
	}
	return s
}

// fitWeibull estimates the Weibull shape and scale from the mean and
// standard deviation (Justus' empirical method).
func fitWeibull(mean, std float64) (k, c float64) {
	if !(mean > 0) || !(std > 0) {
		return math.NaN(), math.NaN()
	}
	k = math.Pow(std/mean, -1.086)
	c = mean / math.Gamma(1+1/k)
	return k, c
}

// AnalyzeSCADA summarizes a parsed SCADA export overall and per turbine.
func AnalyzeSCADA(parsed *parser.ParsedSCADA, model *windrose.SectorModel) (*AnalysisResults, error) {
	if parsed == nil {
		return nil, fmt.Errorf("parsed data is nil, cannot analyze")
	}

	results := NewAnalysisResults()
	results.Summary = SummarizeWind(parsed.Samples, model)
	if results.Summary.ValidSamples == 0 {
		results.AnalysisErrors = append(results.AnalysisErrors, "No valid wind samples; statistics are empty.")
	}

	byTurbine := make(map[string][]parser.Record)
	for _, r := range parsed.Records {
		if r.TurbineID != "" {
			byTurbine[r.TurbineID] = append(byTurbine[r.TurbineID], r)
		}
	}

	for _, id := range parsed.Turbines {
		records := byTurbine[id]
		ts := TurbineWindStats{
			TurbineID:   id,
			Samples:     len(records),
			MeanSpeed:   math.NaN(),
			StdDevSpeed: math.NaN(),
			MeanPowerKW: math.NaN(),
		}

		speeds := make([]float64, 0, len(records))
		powers := make([]float64, 0, len(records))
		for _, r := range records {
			if finite(r.WindSpeed) && r.WindSpeed >= 0 {
				speeds = append(speeds, r.WindSpeed)
			}
			if finite(r.PowerKW) {
				powers = append(powers, r.PowerKW)
			}
		}
		ts.ValidSamples = len(speeds)
		if len(speeds) > 0 {
			ts.MeanSpeed, ts.StdDevSpeed = stat.PopMeanStdDev(speeds, nil)
			results.RankedByMeanSpeed = append(results.RankedByMeanSpeed, RankedTurbine{TurbineID: id, Value: ts.MeanSpeed})
		} else {
			results.AnalysisErrors = append(results.AnalysisErrors, fmt.Sprintf("Turbine '%s' has no valid wind speed samples.", id))
		}
		if len(powers) > 0 {
			ts.MeanPowerKW = stat.Mean(powers, nil)
		}
		results.Turbines = append(results.Turbines, ts)
	}

	sort.SliceStable(results.RankedByMeanSpeed, func(i, j int) bool {
		return results.RankedByMeanSpeed[i].Value > results.RankedByMeanSpeed[j].Value
	})
	return results, nil
}

// RankTurbines orders per-turbine results by magnitude, largest first. Ties
// keep the backend's order.
func RankTurbines(values []backend.TurbineValue) []RankedTurbine {
	ranked := make([]RankedTurbine, 0, len(values))
	for _, v := range values {
		if !finite(v.Value) {
			continue
		}
		ranked = append(ranked, RankedTurbine{TurbineID: v.TurbineID, Value: v.Value})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Value) > math.Abs(ranked[j].Value)
	})
	return ranked
}
