package commands

import (
	"context"
	"fmt"
	"log/slog"
	"utf8fix/lib/telemetry"
	"utf8fix/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var verbose *bool
var configPath *string

var tel telemetry.Telemetry

// replaced in tests
var setupTelemetry = telemetry.SetupFromEnv

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output.")
	configPath = rootCmd.PersistentFlags().String("config", DefaultConfigName, "The json5 config to read, <name>.local.json5 is merged over it.")
}

var rootCmd = &cobra.Command{
	Use:           "utf8fix",
	Short:         "utf8fix repairs mojibake in csv files and scrapes the books.toscrape.com demo shop.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(*verbose)

		var err error
		tel, err = setupTelemetry(cmd.Context(), "utf8fix")
		if err != nil {
			slog.Warn("failed to setup telemetry", "err", err)
		}
		return nil
	},
}

// execute runs the command line and flushes telemetry afterwards, also when
// the command failed.
func execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)

	shutdownErr := tel.Shutdown(context.Background())
	if shutdownErr != nil {
		slog.Warn("failed to flush telemetry", "err", shutdownErr)
	}
	tel = telemetry.Telemetry{}

	return err
}

func ExecuteContext(ctx context.Context) {
	err := execute(ctx)
	if err != nil {
		serviceutil.Fatal(fmt.Sprintf("%s failed", rootCmd.Name()), err)
	}
}
