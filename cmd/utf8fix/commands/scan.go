package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"utf8fix/lib/csvrepair"

	"github.com/spf13/cobra"
)

var scanOpts repairFlags

func init() {
	scanOpts = addRepairFlags(scanCmd.Flags())
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan [file or directory...]",
	Short: "Reports what repair would do without writing any files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(*configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		scanOpts.apply(cmd.Flags(), &cfg.Repair)

		results, err := runScan(cmd.Context(), cfg.Repair, args)
		renderResults(cmd.OutOrStdout(), results, false)
		printSummary(cmd.OutOrStdout(), results)
		return err
	},
}

func runScan(ctx context.Context, cfg csvrepair.Config, paths []string) ([]csvrepair.FileResult, error) {
	fixer, err := csvrepair.New(cfg)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return fixer.ScanConfigured(ctx)
	}

	var results []csvrepair.FileResult
	var errlist []error
	for _, p := range paths {
		res, err := fixer.Scan(ctx, p)
		results = append(results, res...)
		if err != nil {
			errlist = append(errlist, err)
		}
	}
	return results, errors.Join(errlist...)
}

func printSummary(w io.Writer, results []csvrepair.FileResult) {
	changed := 0
	for _, res := range results {
		if res.Report.Changed() {
			changed++
		}
	}
	fmt.Fprintf(w, "%d of %d files would change.\n", changed, len(results))
}
