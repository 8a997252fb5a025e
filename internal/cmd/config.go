package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/wind_analyzer_go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	})
	return cmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "# config file: %s\n", used)
	} else {
		fmt.Fprintln(w, "# no config file, using defaults")
	}
	return printYAML(w, viper.AllSettings())
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = config.ConfigFile()
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
