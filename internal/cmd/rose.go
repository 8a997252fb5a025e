package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/wind_analyzer_go/internal/backend"
	"github.com/user/wind_analyzer_go/internal/parser"
	"github.com/user/wind_analyzer_go/internal/polar"
	"github.com/user/wind_analyzer_go/internal/service"
)

var timeFlagLayouts = []string{"2006-01-02", "2006-01-02T15:04:05", "2006-01-02 15:04"}

// parseTimeFlag accepts a date or a naive date-time; empty means unset.
func parseTimeFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeFlagLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --%s %q: use YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS", name, value)
}

// imageFormat picks the output format from the flag or the file extension.
func imageFormat(flag, out string) (string, error) {
	format := strings.ToLower(flag)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
	}
	switch format {
	case "png", "svg":
		return format, nil
	case "":
		return "png", nil
	default:
		return "", fmt.Errorf("unsupported image format %q (want png or svg)", format)
	}
}

type roseSelection struct {
	csvPath  string
	turbine  string
	start    string
	end      string
	resample string
	bins     int
}

func (r roseSelection) load(cmd *cobra.Command, svc *service.Service) (*service.WindRoseView, error) {
	start, err := parseTimeFlag("start", r.start)
	if err != nil {
		return nil, err
	}
	end, err := parseTimeFlag("end", r.end)
	if err != nil {
		return nil, err
	}
	if r.csvPath != "" {
		return svc.WindRoseFromCSV(r.csvPath, parser.Filter{TurbineID: r.turbine, Start: start, End: end}, r.bins)
	}
	return svc.LoadWindRose(cmd.Context(), backend.SCADAQuery{
		TurbineID: r.turbine, Start: start, End: end, Resample: r.resample,
	}, r.bins)
}

func (r *roseSelection) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&r.csvPath, "csv", "", "SCADA CSV export (default: query the backend)")
	f.StringVar(&r.turbine, "turbine", "", "restrict to one turbine")
	f.StringVar(&r.start, "start", "", "start of the time range")
	f.StringVar(&r.end, "end", "", "end of the time range (inclusive)")
	f.StringVar(&r.resample, "resample", "", "backend resample interval: 10min, 1h or 1D")
	f.IntVar(&r.bins, "bins", 0, "number of direction sectors (default from config)")
}

func newRoseCmd(a *cliApp) *cobra.Command {
	var (
		sel     roseSelection
		edges   []float64
		out     string
		format  string
		compact bool
	)
	cmd := &cobra.Command{
		Use:   "rose",
		Short: "Render a wind rose image",
		Long: `Render a wind rose from a SCADA CSV export (--csv) or from the analysis
backend. With a time range the backend's raw SCADA series is binned; without
one its pre-aggregated rose is used.`,
		Example: `  windctl rose --csv la-haute-borne.csv --out rose.png
  windctl rose --turbine R80711 --start 2014-01-01 --end 2014-12-31 --bins 36 --out rose.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			imgFormat, err := imageFormat(format, out)
			if err != nil {
				return err
			}
			if len(edges) > 0 {
				a.cfg.WindRose.SpeedEdges = edges
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			view, err := sel.load(cmd, svc)
			if err != nil {
				return err
			}

			geom := a.cfg.Geometry.Full()
			if compact {
				geom = a.cfg.Geometry.Compact
			}
			data, err := polar.Encode(view.Model, geom, imgFormat)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}

			w := cmd.OutOrStdout()
			printWindSummary(w, view)
			fmt.Fprintf(w, "Wrote %s (%s, %d sectors)\n", out, imgFormat, len(view.Model.Sectors))
			return nil
		},
	}
	sel.addFlags(cmd)
	cmd.Flags().Float64SliceVar(&edges, "edges", nil, "speed band lower edges in m/s (default from config)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output image path")
	cmd.Flags().StringVar(&format, "format", "", "png or svg (default from --out extension)")
	cmd.Flags().BoolVar(&compact, "compact", false, "use the compact geometry")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func printWindSummary(w io.Writer, view *service.WindRoseView) {
	s := view.Summary
	fmt.Fprintf(w, "Source: %s\n", view.Source)
	fmt.Fprintf(w, "Samples: %d valid of %d (binned %d)\n", s.ValidSamples, s.Samples, view.Model.TotalCount)
	if s.ValidSamples > 0 {
		fmt.Fprintf(w, "Mean speed: %.2f m/s (std %.2f, max %.2f)\n", s.MeanSpeed, s.StdDevSpeed, s.MaxSpeed)
		fmt.Fprintf(w, "Calm fraction: %.1f%%\n", s.CalmFraction*100)
	}
	if view.Model.Prevailing() >= 0 {
		fmt.Fprintf(w, "Prevailing: %.1f deg (%.1f%%)\n", s.PrevailingDirectionDeg, s.PrevailingFrequency*100)
	}
	for _, warning := range view.Warnings {
		fmt.Fprintf(w, "  %s\n", warning)
	}
}
