package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/user/wind_analyzer_go/internal/task"
)

// aepEvent carries one controller callback to the command goroutine.
type aepEvent struct {
	snap *task.Snapshot
	err  error
}

func newAEPCmd(a *cliApp) *cobra.Command {
	var (
		products       []string
		regModel       string
		timeResolution string
		wait           bool
		timeout        time.Duration
	)
	defaults := task.DefaultParams()

	cmd := &cobra.Command{
		Use:   "aep",
		Short: "Run a Monte Carlo AEP analysis",
		Long: `Submit an annual energy production analysis to the backend. With --wait the
command polls until the analysis completes or fails and prints the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			params := task.Params{
				ReanalysisProducts: products,
				RegModel:           regModel,
				TimeResolution:     timeResolution,
			}
			w := cmd.OutOrStdout()

			if !wait {
				ctrl := svc.NewController(nil, nil)
				defer ctrl.Close()
				t, err := ctrl.Submit(cmd.Context(), params)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Submitted AEP analysis %s\n", t.Ref)
				if snap := ctrl.Snapshot(); snap.State.Terminal() {
					return printAEPOutcome(w, snap)
				}
				fmt.Fprintf(w, "Check progress with: windctl aep status %s\n", t.Ref)
				return nil
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			events := make(chan aepEvent)
			done := make(chan struct{})
			send := func(e aepEvent) {
				select {
				case events <- e:
				case <-done:
				}
			}
			ctrl := svc.NewController(
				func(s task.Snapshot) { send(aepEvent{snap: &s}) },
				func(err error) { send(aepEvent{err: err}) },
			)
			defer func() {
				close(done)
				ctrl.Close()
			}()

			t, err := ctrl.Submit(ctx, params)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Submitted AEP analysis %s\n", t.Ref)

			last := task.Submitting
			for {
				select {
				case e := <-events:
					if e.err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "poll error: %v\n", e.err)
						continue
					}
					if e.snap.State != last {
						fmt.Fprintf(w, "State: %s\n", e.snap.State)
						last = e.snap.State
					}
					if !e.snap.State.Busy() {
						return printAEPOutcome(w, *e.snap)
					}
				case <-ctx.Done():
					return fmt.Errorf("waiting for analysis %s: %w", t.Ref, ctx.Err())
				}
			}
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&products, "product", defaults.ReanalysisProducts, "reanalysis products")
	f.StringVar(&regModel, "reg-model", defaults.RegModel, "regression model: lin, gbm, etr or gam")
	f.StringVar(&timeResolution, "time-resolution", defaults.TimeResolution, "time resolution: MS, D or h")
	f.BoolVarP(&wait, "wait", "w", false, "poll until the analysis finishes")
	f.DurationVar(&timeout, "timeout", 0, "give up waiting after this long (0 waits forever)")

	cmd.AddCommand(newAEPStatusCmd(a))
	return cmd
}

func newAEPStatusCmd(a *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "status TASK_ID",
		Short: "Show the status of an AEP analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			report, err := svc.Client.AEPStatus(cmd.Context(), task.Ref(args[0]))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Task %s: %s\n", args[0], report.Status)
			switch report.Status {
			case task.StatusCompleted:
				return printYAML(w, report.Result)
			case task.StatusFailed:
				fmt.Fprintf(w, "Error: %s\n", report.Error)
			}
			return nil
		},
	}
}

func printAEPOutcome(w io.Writer, snap task.Snapshot) error {
	switch snap.State {
	case task.Completed:
		return printYAML(w, snap.Result)
	case task.Failed:
		if snap.Failure != nil {
			return snap.Failure
		}
		return fmt.Errorf("analysis failed")
	default:
		return fmt.Errorf("analysis stopped in state %s", snap.State)
	}
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return enc.Close()
}
