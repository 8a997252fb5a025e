package backend

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/user/wind_analyzer_go/internal/task"
)

// timestampLayouts covers ISO 8601 with and without zone and the
// space-separated form pandas prints.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validatePlantSummary(dto plantSummaryDTO) (*PlantSummary, error) {
	const endpoint = "plant summary"
	if dto.TurbineCount < 0 {
		return nil, &ValidationError{endpoint, "turbine_count", "negative"}
	}
	start, err := parseTimestamp(dto.DateRangeStart)
	if err != nil {
		return nil, &ValidationError{endpoint, "date_range_start", err.Error()}
	}
	end, err := parseTimestamp(dto.DateRangeEnd)
	if err != nil {
		return nil, &ValidationError{endpoint, "date_range_end", err.Error()}
	}
	if end.Before(start) {
		return nil, &ValidationError{endpoint, "date_range_end", "before date_range_start"}
	}
	return &PlantSummary{
		Name:           dto.Name,
		CapacityMW:     dto.CapacityMW,
		TurbineCount:   dto.TurbineCount,
		DateRangeStart: start,
		DateRangeEnd:   end,
		Latitude:       dto.Latitude,
		Longitude:      dto.Longitude,
	}, nil
}

func validateSCADA(dtos []scadaPointDTO) ([]SCADAPoint, error) {
	points := make([]SCADAPoint, 0, len(dtos))
	for i, d := range dtos {
		ts, err := parseTimestamp(d.Time)
		if err != nil {
			return nil, &ValidationError{"scada", fmt.Sprintf("data[%d].time", i), err.Error()}
		}
		points = append(points, SCADAPoint{
			Time:          ts,
			PowerKW:       floatOrNaN(d.PowerKW),
			WindSpeed:     floatOrNaN(d.WindSpeed),
			WindDirection: floatOrNaN(d.WindDirection),
			Temperature:   floatOrNaN(d.Temperature),
			EnergyKWh:     floatOrNaN(d.EnergyKWh),
		})
	}
	return points, nil
}

// validateWindRose only checks the envelope. Cell-level problems (missing
// centre, negative count) are left for the binner, which drops and reports
// them instead of failing the whole rose.
func validateWindRose(resp windRoseResponse) []WindRoseBin {
	bins := make([]WindRoseBin, 0, len(resp.Bins))
	for _, d := range resp.Bins {
		bins = append(bins, WindRoseBin{
			DirectionCenterDeg: floatOrNaN(d.DirectionCenter),
			SpeedMin:           floatOrNaN(d.SpeedMin),
			SpeedMax:           floatOrNaN(d.SpeedMax),
			Frequency:          d.Frequency,
			Count:              d.Count,
		})
	}
	return bins
}

func validateMonthlyEnergy(points []MonthlyEnergy) error {
	for i, p := range points {
		if p.Month == "" {
			return &ValidationError{"monthly energy", fmt.Sprintf("data[%d].month", i), "empty"}
		}
	}
	return nil
}

func validateWakeLosses(dto wakeLossesDTO) *WakeLosses {
	out := &WakeLosses{PlantWakeLossPercent: dto.PlantWakeLossPercent}
	for _, t := range dto.TurbineLosses {
		out.Turbines = append(out.Turbines, TurbineValue{TurbineID: t.TurbineID, Value: t.WakeLossPct})
	}
	return out
}

func validateYaw(dto yawMisalignmentDTO) *YawMisalignment {
	out := &YawMisalignment{}
	for _, t := range dto.TurbineResults {
		out.Turbines = append(out.Turbines, TurbineValue{TurbineID: t.TurbineID, Value: t.YawMisalignmentDeg})
	}
	return out
}

// validateAEPStatus converts a status payload into a task report. A
// completed job must carry results; a completed job whose results only hold
// an error message is reported as failed.
func validateAEPStatus(dto aepStatusDTO) (task.Ref, task.StatusReport, error) {
	const endpoint = "aep status"
	if dto.TaskID == "" {
		return "", task.StatusReport{}, &ValidationError{endpoint, "task_id", "empty"}
	}
	ref := task.Ref(dto.TaskID)

	switch strings.ToLower(dto.Status) {
	case "pending", "running":
		return ref, task.StatusReport{Status: task.StatusRunning}, nil
	case "failed":
		msg := "analysis failed"
		if dto.Error != nil && *dto.Error != "" {
			msg = *dto.Error
		}
		return ref, task.StatusReport{Status: task.StatusFailed, Error: msg}, nil
	case "completed":
		if dto.Results == nil {
			return ref, task.StatusReport{}, &ValidationError{endpoint, "results", "missing for completed task"}
		}
		if dto.Results.AEPGWh == nil && dto.Results.Error != "" {
			return ref, task.StatusReport{Status: task.StatusFailed, Error: dto.Results.Error}, nil
		}
		res, err := convertAEPResults(*dto.Results)
		if err != nil {
			return ref, task.StatusReport{}, err
		}
		return ref, task.StatusReport{Status: task.StatusCompleted, Result: res}, nil
	default:
		return ref, task.StatusReport{}, &ValidationError{endpoint, "status", fmt.Sprintf("unknown value %q", dto.Status)}
	}
}

func convertAEPResults(d aepResultsDTO) (*task.Result, error) {
	const endpoint = "aep results"
	if d.AEPGWh == nil {
		return nil, &ValidationError{endpoint, "aep_gwh", "missing"}
	}
	if d.NPoints < 0 {
		return nil, &ValidationError{endpoint, "n_points", "negative"}
	}
	res := &task.Result{
		AEPGWh:          *d.AEPGWh,
		AEPLowerGWh:     floatOrNaN(d.AEPLower),
		AEPUpperGWh:     floatOrNaN(d.AEPUpper),
		AvailabilityPct: d.AvailabilityPct,
		CurtailmentPct:  d.CurtailmentPct,
		LTPORRatio:      d.LTPORRatio,
		R2:              d.R2,
		NPoints:         d.NPoints,
		IterationsGWh:   d.IterationsGWh,
	}
	// Bounds are optional; fall back to the point estimate so the result
	// stays JSON-encodable.
	if !finite(res.AEPLowerGWh) {
		res.AEPLowerGWh = res.AEPGWh
	}
	if !finite(res.AEPUpperGWh) {
		res.AEPUpperGWh = res.AEPGWh
	}
	if res.AEPLowerGWh > res.AEPUpperGWh {
		return nil, &ValidationError{endpoint, "aep_lower", "greater than aep_upper"}
	}
	return res, nil
}
