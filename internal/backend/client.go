// Package backend is the HTTP client for the wind plant analysis API. All
// responses are validated and converted into typed models before they reach
// the rest of the application.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/wind_analyzer_go/internal/cache"
	"github.com/user/wind_analyzer_go/internal/logging"
	"github.com/user/wind_analyzer_go/internal/task"
)

// RequestIDHeader correlates client and backend logs.
const RequestIDHeader = "X-Request-ID"

// Client talks to the analysis backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	cacheTTL   time.Duration
	log        *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache serves repeated analysis requests from c.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for the backend at baseURL, e.g.
// http://localhost:8000.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrNop(c.log).WithComponent("backend")
	return c
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("request done", "method", method, "path", path, "request_id", reqID,
		"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// readDetail extracts the "detail" member of an error body. Validation
// errors carry a list there, which is returned as raw JSON.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(raw))
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	return string(body.Detail)
}

// cachedPost serves an analysis request from the cache when possible and
// stores fresh responses. Cache failures never fail the request.
func (c *Client) cachedPost(ctx context.Context, analysisType, path string, req, out any) error {
	var key string
	if c.cache != nil {
		k, err := cache.Key(analysisType, req)
		if err == nil {
			key = k
			err := c.cache.Get(ctx, key, out)
			if err == nil {
				c.log.Debug("analysis served from cache", "analysis", analysisType)
				return nil
			}
			if !errors.Is(err, cache.ErrMiss) {
				c.log.Warn("cache read failed", "analysis", analysisType, "error", err)
			}
		}
	}

	if err := c.do(ctx, http.MethodPost, path, nil, req, out); err != nil {
		return err
	}

	if key != "" {
		if err := c.cache.Set(ctx, key, out, c.cacheTTL); err != nil {
			c.log.Warn("cache write failed", "analysis", analysisType, "error", err)
		}
	}
	return nil
}

// Health checks that the backend is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// PlantSummary returns the plant overview.
func (c *Client) PlantSummary(ctx context.Context) (*PlantSummary, error) {
	var dto plantSummaryDTO
	if err := c.do(ctx, http.MethodGet, "/api/plant/summary", nil, nil, &dto); err != nil {
		return nil, err
	}
	return validatePlantSummary(dto)
}

// Turbines lists the turbine assets.
func (c *Client) Turbines(ctx context.Context) ([]Turbine, error) {
	var out []Turbine
	if err := c.do(ctx, http.MethodGet, "/api/plant/turbines", nil, nil, &out); err != nil {
		return nil, err
	}
	for i, t := range out {
		if t.AssetID == "" {
			return nil, &ValidationError{"turbines", fmt.Sprintf("[%d].asset_id", i), "empty"}
		}
	}
	return out, nil
}

// Timestamps are sent without a zone, as the backend expects naive times.
const queryTimeLayout = "2006-01-02T15:04:05"

var validResample = map[string]bool{"": true, "10min": true, "1h": true, "1D": true}

// SCADA returns the resampled SCADA series.
func (c *Client) SCADA(ctx context.Context, q SCADAQuery) ([]SCADAPoint, error) {
	if !validResample[q.Resample] {
		return nil, fmt.Errorf("unsupported resample interval %q", q.Resample)
	}
	v := url.Values{}
	if q.TurbineID != "" {
		v.Set("turbine_id", q.TurbineID)
	}
	if !q.Start.IsZero() {
		v.Set("start", q.Start.Format(queryTimeLayout))
	}
	if !q.End.IsZero() {
		v.Set("end", q.End.Format(queryTimeLayout))
	}
	if q.Resample != "" {
		v.Set("resample", q.Resample)
	}

	var resp scadaResponse
	if err := c.do(ctx, http.MethodGet, "/api/data/scada", v, nil, &resp); err != nil {
		return nil, err
	}
	return validateSCADA(resp.Data)
}

// WindRose returns the backend's pre-aggregated wind rose.
func (c *Client) WindRose(ctx context.Context, turbineID string) ([]WindRoseBin, error) {
	v := url.Values{}
	if turbineID != "" {
		v.Set("turbine_id", turbineID)
	}
	var resp windRoseResponse
	if err := c.do(ctx, http.MethodGet, "/api/data/wind-rose", v, nil, &resp); err != nil {
		return nil, err
	}
	return validateWindRose(resp), nil
}

// MonthlyEnergy returns energy per month for the plant or one turbine.
func (c *Client) MonthlyEnergy(ctx context.Context, turbineID string) ([]MonthlyEnergy, error) {
	v := url.Values{}
	if turbineID != "" {
		v.Set("turbine_id", turbineID)
	}
	var resp monthlyEnergyResponse
	if err := c.do(ctx, http.MethodGet, "/api/data/monthly-energy", v, nil, &resp); err != nil {
		return nil, err
	}
	if err := validateMonthlyEnergy(resp.Data); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// PowerCurve fits a power curve.
func (c *Client) PowerCurve(ctx context.Context, req PowerCurveRequest) (*PowerCurve, error) {
	if req.Method == "" {
		req.Method = "IEC"
	}
	var out PowerCurve
	if err := c.cachedPost(ctx, "power_curve", "/api/analysis/power-curve", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ElectricalLosses estimates losses between turbines and the revenue meter.
func (c *Client) ElectricalLosses(ctx context.Context, req ElectricalLossesRequest) (*ElectricalLosses, error) {
	var out ElectricalLosses
	if err := c.cachedPost(ctx, "electrical_losses", "/api/analysis/electrical-losses", req, &out); err != nil {
		return nil, err
	}
	if out.LossPercent < -100 || out.LossPercent > 100 {
		return nil, &ValidationError{"electrical losses", "loss_percent", fmt.Sprintf("out of range: %g", out.LossPercent)}
	}
	return &out, nil
}

// WakeLosses estimates plant and per-turbine wake losses.
func (c *Client) WakeLosses(ctx context.Context, req WakeLossesRequest) (*WakeLosses, error) {
	if req.WindDirectionDataType == "" {
		req.WindDirectionDataType = "scada"
	}
	var dto wakeLossesDTO
	if err := c.cachedPost(ctx, "wake_losses", "/api/analysis/wake-losses", req, &dto); err != nil {
		return nil, err
	}
	return validateWakeLosses(dto), nil
}

// YawMisalignment estimates static yaw misalignment per turbine.
func (c *Client) YawMisalignment(ctx context.Context, req YawMisalignmentRequest) (*YawMisalignment, error) {
	var dto yawMisalignmentDTO
	if err := c.cachedPost(ctx, "yaw_misalignment", "/api/analysis/yaw-misalignment", req, &dto); err != nil {
		return nil, err
	}
	return validateYaw(dto), nil
}

// SubmitAEP starts an AEP analysis. The returned status is already terminal
// when the backend had the result cached.
func (c *Client) SubmitAEP(ctx context.Context, params task.Params) (task.Submission, error) {
	var dto aepStatusDTO
	if err := c.do(ctx, http.MethodPost, "/api/analysis/aep", nil, params, &dto); err != nil {
		return task.Submission{}, err
	}
	ref, report, err := validateAEPStatus(dto)
	if err != nil {
		return task.Submission{}, err
	}
	return task.Submission{Ref: ref, Status: report}, nil
}

// AEPStatus polls an AEP analysis. Unknown tasks yield ErrTaskNotFound.
func (c *Client) AEPStatus(ctx context.Context, ref task.Ref) (task.StatusReport, error) {
	var dto aepStatusDTO
	path := "/api/analysis/aep/status/" + url.PathEscape(string(ref))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &dto); err != nil {
		var herr *HTTPError
		if errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound {
			return task.StatusReport{}, fmt.Errorf("%w: %s", ErrTaskNotFound, ref)
		}
		return task.StatusReport{}, err
	}
	got, report, err := validateAEPStatus(dto)
	if err != nil {
		return task.StatusReport{}, err
	}
	if got != ref {
		return task.StatusReport{}, &ValidationError{"aep status", "task_id", fmt.Sprintf("got %q, asked for %q", got, ref)}
	}
	return report, nil
}
