// Package cmd implements the windctl command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/wind_analyzer_go/internal/config"
	"github.com/user/wind_analyzer_go/internal/logging"
	"github.com/user/wind_analyzer_go/internal/service"
)

// cliApp carries state shared by the subcommands of one invocation.
type cliApp struct {
	cfgFile string
	verbose bool

	cfg *config.Config
	log *logging.Logger
	svc *service.Service
}

// NewRootCmd builds the windctl command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCmd()
	return root
}

func newRootCmd() (*cobra.Command, *cliApp) {
	a := &cliApp{}
	root := &cobra.Command{
		Use:   "windctl",
		Short: "Wind plant analysis from the command line",
		Long: `windctl renders wind roses from SCADA exports or the analysis backend,
runs Monte Carlo AEP analyses and writes PDF dashboard reports.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/wind_analyzer/config.yaml)")
	flags.String("backend-url", "", "analysis backend base URL")
	flags.String("log-level", "", "log level: DEBUG, INFO, WARN or ERROR")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr at the configured level")
	_ = viper.BindPFlag("backend.base_url", flags.Lookup("backend-url"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))

	root.AddCommand(newRoseCmd(a))
	root.AddCommand(newAEPCmd(a))
	root.AddCommand(newReportCmd(a))
	root.AddCommand(newConfigCmd())
	return root, a
}

// Execute runs windctl with interrupt handling.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	a.close()
	return err
}

func (a *cliApp) init(cmd *cobra.Command) error {
	if err := config.Init(a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.Logging.Dir != "" {
		a.log, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return err
		}
	} else {
		level := logging.LevelWarn
		if a.verbose {
			level = cfg.Logging.Level
		}
		a.log = logging.NewWriterLogger(cmd.ErrOrStderr(), level)
	}
	a.log = a.log.WithComponent("cli").With("command", cmd.Name())
	return nil
}

// service builds the backend stack on first use.
func (a *cliApp) service(ctx context.Context) (*service.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	if a.cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	svc, err := service.New(ctx, a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

// close releases the service and the log file. It is safe to call twice.
func (a *cliApp) close() error {
	if a.svc != nil {
		if err := a.svc.Close(); err != nil {
			a.log.Warn("failed to close service", "error", err)
		}
		a.svc = nil
	}
	if a.log != nil {
		err := a.log.Close()
		a.log = nil
		return err
	}
	return nil
}
