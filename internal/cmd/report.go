package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/wind_analyzer_go/internal/service"
	"github.com/user/wind_analyzer_go/internal/task"
)

func newReportCmd(a *cliApp) *cobra.Command {
	var (
		sel     roseSelection
		out     string
		withAEP bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a PDF dashboard report",
		Long: `Collect the plant summary, wind rose, loss analyses and optionally a fresh
AEP estimate into a PDF report. Sections the backend cannot provide are
skipped with a warning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			errw := cmd.ErrOrStderr()

			view, err := sel.load(cmd, svc)
			if err != nil {
				fmt.Fprintf(errw, "Warning: wind rose unavailable: %v\n", err)
				view = nil
			}

			var aep *task.Result
			if withAEP {
				aep, err = runAEP(cmd, svc)
				if err != nil {
					fmt.Fprintf(errw, "Warning: AEP unavailable: %v\n", err)
				}
			}

			d, err := svc.BuildDashboard(ctx, view, aep)
			if err != nil {
				fmt.Fprintf(errw, "Warning: some sections are missing: %v\n", err)
			}
			path := svc.ReportPath(out, time.Now())
			warnings, err := svc.GenerateReport(ctx, path, d)
			for _, warning := range warnings {
				fmt.Fprintf(errw, "Warning: %v\n", warning)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Report written to %s\n", path)
			return nil
		},
	}
	sel.addFlags(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output PDF (default: timestamped name in report.output_dir)")
	cmd.Flags().BoolVar(&withAEP, "with-aep", false, "run an AEP analysis with default parameters first")
	return cmd
}

// runAEP submits with default parameters and blocks until the analysis ends.
func runAEP(cmd *cobra.Command, svc *service.Service) (*task.Result, error) {
	ctrl := svc.NewController(nil, nil)
	defer ctrl.Close()
	if _, err := ctrl.Submit(cmd.Context(), task.DefaultParams()); err != nil {
		return nil, err
	}
	snap, err := ctrl.Wait(cmd.Context())
	if err != nil {
		return nil, err
	}
	if snap.State != task.Completed {
		if snap.Failure != nil {
			return nil, snap.Failure
		}
		return nil, fmt.Errorf("analysis ended in state %s", snap.State)
	}
	return snap.Result, nil
}
