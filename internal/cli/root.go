// Package cli implements trafficctl, a command-line client that runs the
// trafficpulse services in-process and prints their results as JSON.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trafficpulse/trafficpulse/internal/app"
	"github.com/trafficpulse/trafficpulse/internal/config"
	"github.com/trafficpulse/trafficpulse/internal/telemetry"
)

// Version is reported by --version.
var Version = "dev"

type rootOptions struct {
	v *viper.Viper
}

// NewRootCommand builds the trafficctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "trafficctl",
		Short:         "Query the Istanbul traffic index, commute comparisons, events and weather",
		Long:          `trafficctl runs the trafficpulse services locally against the configured providers and prints the results as JSON.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (default is $"+config.FileEnv+")")
	cmd.PersistentFlags().String("log-level", "warn", "log level written to stderr")
	cmd.PersistentFlags().Bool("pretty", false, "indent JSON output")
	_ = opts.v.BindPFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newIndexCommand(opts),
		newCompareCommand(opts),
		newEventsCommand(opts),
		newWeatherCommand(opts),
	)

	return cmd
}

// Execute runs trafficctl and exits non-zero on error.
func Execute() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// services loads configuration and wires the service graph. The caller
// must Close the returned App.
func (o *rootOptions) services(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(o.v.GetString("config"))
	if err != nil {
		return nil, err
	}

	log, err := telemetry.NewLogger(cmd.ErrOrStderr(), "trafficctl", Version, o.v.GetString("log-level"))
	if err != nil {
		return nil, err
	}

	return app.New(cmd.Context(), cfg, log, app.Options{})
}

func (o *rootOptions) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if o.v.GetBool("pretty") {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
