package parser

import (
	"time"

	"github.com/user/wind_analyzer_go/internal/windrose"
)

// MaxReportedErrors caps ParseErrors; further problems are only counted.
const MaxReportedErrors = 100

// Record is one SCADA row. Missing or unparsable numbers are NaN.
type Record struct {
	Time          time.Time
	TurbineID     string
	WindSpeed     float64
	WindDirection float64
	PowerKW       float64
}

// ParsedSCADA holds the rows kept from a SCADA export.
type ParsedSCADA struct {
	Records     []Record
	Samples     []windrose.WindSample // one per record, same order
	Turbines    []string              // in order of first appearance
	Rows        int                   // data rows read, before filtering
	ParseErrors []string              // non-fatal problems

	suppressed int
}

// NewParsedSCADA returns an empty result.
func NewParsedSCADA() *ParsedSCADA {
	return &ParsedSCADA{
		Records:     make([]Record, 0),
		Samples:     make([]windrose.WindSample, 0),
		Turbines:    make([]string, 0),
		ParseErrors: make([]string, 0),
	}
}

func (p *ParsedSCADA) addError(msg string) {
	if len(p.ParseErrors) < MaxReportedErrors {
		p.ParseErrors = append(p.ParseErrors, msg)
		return
	}
	p.suppressed++
}

// Filter restricts parsing to one turbine and a time window. Zero values
// disable the respective filter; End is inclusive.
type Filter struct {
	TurbineID string
	Start     time.Time
	End       time.Time
}

func (f Filter) hasTimeRange() bool {
	return !f.Start.IsZero() || !f.End.IsZero()
}

func (f Filter) keep(r Record) bool {
	if f.TurbineID != "" && r.TurbineID != f.TurbineID {
		return false
	}
	if !f.Start.IsZero() && r.Time.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && r.Time.After(f.End) {
		return false
	}
	return true
}

// Column aliases, first match wins. They cover the plain export, the
// La Haute Borne names and the IEC 61400-25 tags.
var (
	timeColumns      = []string{"time", "Date_time", "timestamp"}
	turbineColumns   = []string{"turbine_id", "asset_id", "Wind_turbine_name"}
	speedColumns     = []string{"wind_speed", "Ws_avg", "WMET_HorWdSpd"}
	directionColumns = []string{"wind_direction", "Wa_avg", "WMET_HorWdDir"}
	powerColumns     = []string{"power_kw", "P_avg", "WTUR_W"}
)

// Samples converts records into wind samples.
func Samples(records []Record) []windrose.WindSample {
	out := make([]windrose.WindSample, len(records))
	for i, r := range records {
		out[i] = windrose.WindSample{DirectionDeg: r.WindDirection, Speed: r.WindSpeed}
	}
	return out
}
