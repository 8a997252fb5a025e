package report

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/user/wind_analyzer_go/internal/polar"
	"github.com/user/wind_analyzer_go/internal/windrose"
)

// maxPlotWorkers bounds concurrent chart rendering.
const maxPlotWorkers = 4

var (
	seriesBlue   = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}
	seriesOrange = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 255}
	seriesGreen  = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 255}
	seriesRed    = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 255}
)

// writePNG renders p into PNG bytes.
func writePNG(p *plot.Plot, width, height vg.Length) ([]byte, error) {
	writer, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create plot writer: %w", err)
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write plot to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

// CreateWindRosePlot draws the wind rose as a PNG.
func CreateWindRosePlot(model *windrose.SectorModel, geom polar.Geometry) ([]byte, error) {
	if model == nil {
		return nil, fmt.Errorf("no wind rose to plot")
	}
	return polar.Encode(model, geom, "png")
}

// PlotError is a chart that could not be rendered.
type PlotError struct {
	Key string
	Err error
}

func (e *PlotError) Error() string {
	return fmt.Sprintf("plot %s: %v", e.Key, e.Err)
}

func (e *PlotError) Unwrap() error { return e.Err }

type plotJob struct {
	key    string
	render func() ([]byte, error)
}

type plotResult struct {
	key   string
	image []byte
	err   error
}

// plotJobs lists the charts the dashboard has data for.
func plotJobs(d *Dashboard) []plotJob {
	var jobs []plotJob
	if d.WindRose != nil {
		model, geom := d.WindRose, d.geometry()
		jobs = append(jobs,
			plotJob{PlotWindRose, func() ([]byte, error) { return CreateWindRosePlot(model, geom) }},
			plotJob{PlotFrequency, func() ([]byte, error) { return CreateFrequencyHeatmap(model) }},
		)
	}
	if d.PowerCurve != nil {
		pc := d.PowerCurve
		jobs = append(jobs, plotJob{PlotPowerCurve, func() ([]byte, error) { return CreatePowerCurvePlot(pc) }})
	}
	if len(d.MonthlyEnergy) > 0 {
		points := d.MonthlyEnergy
		jobs = append(jobs, plotJob{PlotMonthlyEnergy, func() ([]byte, error) { return CreateMonthlyEnergyPlot(points) }})
	}
	if d.WakeLosses != nil && len(d.WakeLosses.Turbines) > 0 {
		values := d.WakeLosses.Turbines
		jobs = append(jobs, plotJob{PlotWakeLosses, func() ([]byte, error) {
			return CreateTurbineBarPlot("Wake Losses by Turbine", "Wake loss (%)", values)
		}})
	}
	if d.Yaw != nil && len(d.Yaw.Turbines) > 0 {
		values := d.Yaw.Turbines
		jobs = append(jobs, plotJob{PlotYawMisalignment, func() ([]byte, error) {
			return CreateTurbineBarPlot("Static Yaw Misalignment", "Misalignment (deg)", values)
		}})
	}
	if d.AEP != nil && len(d.AEP.IterationsGWh) > 1 {
		values := d.AEP.IterationsGWh
		jobs = append(jobs, plotJob{PlotAEPDistribution, func() ([]byte, error) { return CreateAEPDistributionPlot(values) }})
	}
	return jobs
}

// RenderPlots renders every chart the dashboard has data for, concurrently.
// A chart that fails is reported in the returned errors and left out of the
// image map; the other charts are unaffected. Charts not yet started when ctx
// ends are reported with ctx's error.
func RenderPlots(ctx context.Context, d *Dashboard) (map[string][]byte, []error) {
	images := make(map[string][]byte)
	if d == nil {
		return images, nil
	}

	p := pool.NewWithResults[plotResult]().WithMaxGoroutines(maxPlotWorkers)
	for _, job := range plotJobs(d) {
		p.Go(func() (res plotResult) {
			res.key = job.key
			if err := ctx.Err(); err != nil {
				res.err = err
				return res
			}
			defer func() {
				if r := recover(); r != nil {
					res.err = fmt.Errorf("panic while rendering: %v", r)
				}
			}()
			res.image, res.err = job.render()
			return res
		})
	}

	var errs []error
	for _, res := range p.Wait() {
		if res.err != nil {
			errs = append(errs, &PlotError{Key: res.key, Err: res.err})
			continue
		}
		images[res.key] = res.image
	}
	sort.Slice(errs, func(i, j int) bool {
		return errs[i].(*PlotError).Key < errs[j].(*PlotError).Key
	})
	return images, errs
}
