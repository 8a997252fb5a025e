package analysis

import (
	"encoding/json"
	"math"
)

// WindSummary describes a set of wind samples.
type WindSummary struct {
	Samples      int     // samples offered
	ValidSamples int     // samples with finite speed and direction
	MeanSpeed    float64 // m/s
	StdDevSpeed  float64 // population standard deviation, m/s
	MaxSpeed     float64
	// CalmFraction is the share of valid samples below the upper edge of the
	// lowest speed band.
	CalmFraction float64
	// WeibullK and WeibullC are the shape and scale fitted by the moment
	// method; NaN when the data cannot support a fit.
	WeibullK float64
	WeibullC float64

	PrevailingDirectionDeg float64 // NaN when the rose is empty
	PrevailingFrequency    float64
}

func emptySummary() WindSummary {
	return WindSummary{
		MeanSpeed:              math.NaN(),
		StdDevSpeed:            math.NaN(),
		MaxSpeed:               math.NaN(),
		CalmFraction:           math.NaN(),
		WeibullK:               math.NaN(),
		WeibullC:               math.NaN(),
		PrevailingDirectionDeg: math.NaN(),
	}
}

// nullable maps NaN and infinities to nil so they encode as JSON null.
func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// MarshalJSON writes undefined statistics as null.
func (s WindSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Samples                int      `json:"samples"`
		ValidSamples           int      `json:"valid_samples"`
		MeanSpeed              *float64 `json:"mean_speed"`
		StdDevSpeed            *float64 `json:"std_dev_speed"`
		MaxSpeed               *float64 `json:"max_speed"`
		CalmFraction           *float64 `json:"calm_fraction"`
		WeibullK               *float64 `json:"weibull_k"`
		WeibullC               *float64 `json:"weibull_c"`
		PrevailingDirectionDeg *float64 `json:"prevailing_direction_deg"`
		PrevailingFrequency    float64  `json:"prevailing_frequency"`
	}{
		Samples:                s.Samples,
		ValidSamples:           s.ValidSamples,
		MeanSpeed:              nullable(s.MeanSpeed),
		StdDevSpeed:            nullable(s.StdDevSpeed),
		MaxSpeed:               nullable(s.MaxSpeed),
		CalmFraction:           nullable(s.CalmFraction),
		WeibullK:               nullable(s.WeibullK),
		WeibullC:               nullable(s.WeibullC),
		PrevailingDirectionDeg: nullable(s.PrevailingDirectionDeg),
		PrevailingFrequency:    s.PrevailingFrequency,
	})
}

// TurbineWindStats holds the statistics for one turbine.
type TurbineWindStats struct {
	TurbineID    string
	Samples      int
	ValidSamples int
	MeanSpeed    float64
	StdDevSpeed  float64
	MeanPowerKW  float64 // NaN without power data
}

// RankedTurbine is used for ranking turbines by a scalar.
type RankedTurbine struct {
	TurbineID string
	Value     float64 // the value being ranked
}

// AnalysisResults holds everything derived from a SCADA export.
type AnalysisResults struct {
	Summary           WindSummary
	Turbines          []TurbineWindStats
	RankedByMeanSpeed []RankedTurbine // descending
	AnalysisErrors    []string
}

func NewAnalysisResults() *AnalysisResults {
	return &AnalysisResults{
		Summary:           emptySummary(),
		Turbines:          make([]TurbineWindStats, 0),
		RankedByMeanSpeed: make([]RankedTurbine, 0),
		AnalysisErrors:    make([]string, 0),
	}
}
