package backend

import (
	"math"
	"time"

	"github.com/user/wind_analyzer_go/internal/windrose"
)

// Health is the backend liveness report.
type Health struct {
	Status      string `json:"status"`
	PlantLoaded bool   `json:"plant_loaded"`
}

// PlantSummary describes the plant the backend has loaded.
type PlantSummary struct {
	Name           string    `json:"name"`
	CapacityMW     float64   `json:"capacity_mw"`
	TurbineCount   int       `json:"turbine_count"`
	DateRangeStart time.Time `json:"date_range_start"`
	DateRangeEnd   time.Time `json:"date_range_end"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
}

type plantSummaryDTO struct {
	Name           string  `json:"name"`
	CapacityMW     float64 `json:"capacity_mw"`
	TurbineCount   int     `json:"turbine_count"`
	DateRangeStart string  `json:"date_range_start"`
	DateRangeEnd   string  `json:"date_range_end"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
}

// Turbine is one turbine asset.
type Turbine struct {
	AssetID       string  `json:"asset_id"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Elevation     float64 `json:"elevation"`
	HubHeight     float64 `json:"hub_height"`
	RotorDiameter float64 `json:"rotor_diameter"`
	RatedPowerKW  float64 `json:"rated_power"`
	Type          string  `json:"type"`
}

// SCADAQuery filters the SCADA time series.
type SCADAQuery struct {
	TurbineID string
	Start     time.Time
	End       time.Time
	// Resample is one of 10min, 1h or 1D. Empty lets the backend pick.
	Resample string
}

// SCADAPoint is one resampled SCADA row. Missing values are NaN.
type SCADAPoint struct {
	Time          time.Time `json:"time"`
	PowerKW       float64   `json:"power_kw"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection float64   `json:"wind_direction"`
	Temperature   float64   `json:"temperature"`
	EnergyKWh     float64   `json:"energy_kwh"`
}

// WindSample converts the point for binning.
func (p SCADAPoint) WindSample() windrose.WindSample {
	return windrose.WindSample{DirectionDeg: p.WindDirection, Speed: p.WindSpeed}
}

type scadaPointDTO struct {
	Time          string   `json:"time"`
	PowerKW       *float64 `json:"power_kw"`
	WindSpeed     *float64 `json:"wind_speed"`
	WindDirection *float64 `json:"wind_direction"`
	Temperature   *float64 `json:"temperature"`
	EnergyKWh     *float64 `json:"energy_kwh"`
}

type scadaResponse struct {
	Data []scadaPointDTO `json:"data"`
}

// WindRoseBin is one pre-aggregated direction/speed cell from the backend.
type WindRoseBin struct {
	DirectionCenterDeg float64 `json:"direction_center"`
	SpeedMin           float64 `json:"speed_min"`
	SpeedMax           float64 `json:"speed_max"`
	Frequency          float64 `json:"frequency"`
	Count              int     `json:"count"`
}

// DirectionalBin converts the cell for re-binning.
func (b WindRoseBin) DirectionalBin() windrose.DirectionalBin {
	return windrose.DirectionalBin{
		DirectionCenterDeg: b.DirectionCenterDeg,
		SpeedMin:           b.SpeedMin,
		SpeedMax:           b.SpeedMax,
		Count:              b.Count,
	}
}

// DirectionalBins converts a backend wind rose for windrose.BinAggregated.
func DirectionalBins(bins []WindRoseBin) []windrose.DirectionalBin {
	out := make([]windrose.DirectionalBin, len(bins))
	for i, b := range bins {
		out[i] = b.DirectionalBin()
	}
	return out
}

type windRoseBinDTO struct {
	DirectionCenter *float64 `json:"direction_center"`
	SpeedMin        *float64 `json:"speed_min"`
	SpeedMax        *float64 `json:"speed_max"`
	Frequency       float64  `json:"frequency"`
	Count           int      `json:"count"`
}

type windRoseResponse struct {
	Bins []windRoseBinDTO `json:"bins"`
}

// MonthlyEnergy is the energy produced in one calendar month.
type MonthlyEnergy struct {
	Month     string  `json:"month"`
	Year      int     `json:"year"`
	EnergyMWh float64 `json:"energy_mwh"`
	TurbineID string  `json:"turbine_id,omitempty"`
}

type monthlyEnergyResponse struct {
	Data []MonthlyEnergy `json:"data"`
}

// CurvePoint is a wind speed / power pair.
type CurvePoint struct {
	WindSpeed float64 `json:"wind_speed"`
	Power     float64 `json:"power"`
}

// PowerCurveRequest selects the turbine and fitting method (IEC, logistic_5
// or gam).
type PowerCurveRequest struct {
	TurbineID string `json:"turbine_id,omitempty"`
	Method    string `json:"method"`
}

// PowerCurve holds the measured scatter and the fitted curve.
type PowerCurve struct {
	Scatter   []CurvePoint `json:"scatter_data"`
	Fitted    []CurvePoint `json:"fitted_curve"`
	TurbineID string       `json:"turbine_id,omitempty"`
	Method    string       `json:"method"`
}

// ElectricalLossesRequest toggles Monte Carlo uncertainty.
type ElectricalLossesRequest struct {
	Uncertainty bool `json:"uncertainty"`
}

// ElectricalLosses is the plant electrical loss estimate.
type ElectricalLosses struct {
	LossPercent        float64  `json:"loss_percent"`
	TotalTurbineEnergy float64  `json:"total_turbine_energy"`
	TotalMeterEnergy   float64  `json:"total_meter_energy"`
	UncertaintyLower   *float64 `json:"uncertainty_lower,omitempty"`
	UncertaintyUpper   *float64 `json:"uncertainty_upper,omitempty"`
}

// WakeLossesRequest selects the wind direction source (scada or
// reanalysis).
type WakeLossesRequest struct {
	WindDirectionDataType string `json:"wind_direction_data_type"`
}

// TurbineValue is a per-turbine scalar result.
type TurbineValue struct {
	TurbineID string  `json:"turbine_id"`
	Value     float64 `json:"value"`
}

// WakeLosses is the plant and per-turbine wake loss in percent.
type WakeLosses struct {
	PlantWakeLossPercent float64        `json:"plant_wake_loss_percent"`
	Turbines             []TurbineValue `json:"turbines"`
}

type wakeLossesDTO struct {
	PlantWakeLossPercent float64 `json:"plant_wake_loss_percent"`
	TurbineLosses        []struct {
		TurbineID   string  `json:"turbine_id"`
		WakeLossPct float64 `json:"wake_loss_pct"`
	} `json:"turbine_losses"`
}

// YawMisalignmentRequest limits the turbines and wind speed bins.
type YawMisalignmentRequest struct {
	TurbineIDs []string  `json:"turbine_ids,omitempty"`
	WSBins     []float64 `json:"ws_bins,omitempty"`
}

// YawMisalignment is the static yaw misalignment per turbine in degrees.
type YawMisalignment struct {
	Turbines []TurbineValue `json:"turbines"`
}

type yawMisalignmentDTO struct {
	TurbineResults []struct {
		TurbineID          string  `json:"turbine_id"`
		YawMisalignmentDeg float64 `json:"yaw_misalignment_deg"`
	} `json:"turbine_results"`
}

type aepStatusDTO struct {
	TaskID  string         `json:"task_id"`
	Status  string         `json:"status"`
	Results *aepResultsDTO `json:"results"`
	Error   *string        `json:"error"`
}

type aepResultsDTO struct {
	AEPGWh          *float64  `json:"aep_gwh"`
	AEPLower        *float64  `json:"aep_lower"`
	AEPUpper        *float64  `json:"aep_upper"`
	AvailabilityPct float64   `json:"availability_pct"`
	CurtailmentPct  float64   `json:"curtailment_pct"`
	LTPORRatio      float64   `json:"lt_por_ratio"`
	R2              float64   `json:"r2"`
	NPoints         int       `json:"n_points"`
	IterationsGWh   []float64 `json:"iterations_gwh"`
	Error           string    `json:"error"`
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
