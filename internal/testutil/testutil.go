// Package testutil provides testing utilities for wind analyzer tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// SampleCSV is a small semicolon separated La Haute Borne style export.
const SampleCSV = "Wind_turbine_name;Date_time;Ws_avg;Wa_avg;P_avg\n" +
	"R80711;2014-01-01 00:00:00;4.2;182.0;150.3\n" +
	"R80711;2014-01-01 00:10:00;6.8;190.5;620.0\n" +
	"R80790;2014-01-01 00:00:00;8.1;270.0;1010.7\n" +
	"R80790;2014-01-01 00:10:00;12.6;275.0;2010.0\n"

// WriteCSV writes content to a CSV file in a temporary directory and
// returns its path.
func WriteCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scada.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write CSV: %v", err)
	}
	return path
}

// Default responses of the fake backend, keyed by path.
var defaultResponses = map[string]string{
	"/api/health": `{"status":"ok","plant_loaded":true}`,
	"/api/plant/summary": `{"name":"La Haute Borne","capacity_mw":8.2,"turbine_count":2,
		"date_range_start":"2014-01-01T00:00:00","date_range_end":"2015-12-31T23:50:00",
		"latitude":48.4497,"longitude":5.5896}`,
	"/api/plant/turbines": `[{"asset_id":"R80711","latitude":48.45,"longitude":5.58,"elevation":411,
		"hub_height":80,"rotor_diameter":82,"rated_power":2050,"type":"MM82"},
		{"asset_id":"R80790","latitude":48.45,"longitude":5.59,"elevation":406,
		"hub_height":80,"rotor_diameter":82,"rated_power":2050,"type":"MM82"}]`,
	"/api/data/scada": `{"data":[
		{"time":"2014-01-01 00:00:00","power_kw":512.5,"wind_speed":7.1,"wind_direction":210,"temperature":4.5,"energy_kwh":85.4},
		{"time":"2014-01-01 01:00:00","power_kw":null,"wind_speed":null,"wind_direction":190,"temperature":4.1,"energy_kwh":null}]}`,
	"/api/data/wind-rose": `{"bins":[
		{"direction_center":11.25,"speed_min":0,"speed_max":3,"frequency":0.25,"count":2},
		{"direction_center":191.25,"speed_min":6,"speed_max":10,"frequency":0.75,"count":6}]}`,
	"/api/data/monthly-energy": `{"data":[
		{"month":"January","year":2014,"energy_mwh":1210.5},{"month":"February","year":2014,"energy_mwh":980.2}]}`,
	"/api/analysis/power-curve": `{"scatter_data":[{"wind_speed":5,"power":300},{"wind_speed":9,"power":1300}],
		"fitted_curve":[{"wind_speed":5,"power":280},{"wind_speed":9,"power":1250},{"wind_speed":14,"power":2050}],"method":"IEC"}`,
	"/api/analysis/electrical-losses": `{"loss_percent":1.9,"total_turbine_energy":100.0,"total_meter_energy":98.1}`,
	"/api/analysis/wake-losses": `{"plant_wake_loss_percent":4.2,"turbine_losses":[
		{"turbine_id":"R80711","wake_loss_pct":3.1},{"turbine_id":"R80790","wake_loss_pct":6.0}]}`,
	"/api/analysis/yaw-misalignment": `{"turbine_results":[{"turbine_id":"R80711","yaw_misalignment_deg":-2.5}]}`,
	"/api/analysis/aep": `{"task_id":"task-1","status":"running"}`,
	"/api/analysis/aep/status/task-1": `{"task_id":"task-1","status":"completed","results":{
		"aep_gwh":12.3,"aep_lower":11.1,"aep_upper":13.4,"availability_pct":1.2,
		"curtailment_pct":0.3,"lt_por_ratio":1.01,"r2":0.93,"n_points":24}}`,
}

// FakeBackend is an httptest server speaking the analysis API with canned
// responses. Individual paths can be overridden or failed.
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
}

// NewFakeBackend starts a fake backend that is closed with the test.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{
		handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]int),
	}
	for path, body := range defaultResponses {
		fb.handlers[path] = Respond(http.StatusOK, body)
	}
	fb.Server = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL is the server's base URL.
func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

// Handle replaces the handler for path.
func (fb *FakeBackend) Handle(path string, h http.HandlerFunc) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.handlers[path] = h
}

// Fail makes path answer with status and a FastAPI style detail.
func (fb *FakeBackend) Fail(path string, status int, detail string) {
	fb.Handle(path, Respond(status, `{"detail":"`+detail+`"}`))
}

// Hits returns how often path was requested.
func (fb *FakeBackend) Hits(path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.hits[path]
}

func (fb *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	h, ok := fb.handlers[r.URL.Path]
	fb.hits[r.URL.Path]++
	fb.mu.Unlock()
	if !ok {
		Respond(http.StatusNotFound, `{"detail":"Not Found"}`)(w, r)
		return
	}
	h(w, r)
}

// Respond returns a handler writing a fixed JSON body.
func Respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}
