package commands

import (
	"context"
	"errors"
	"fmt"
	"utf8fix/lib/csvrepair"
	"utf8fix/lib/mojibake"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type repairFlags struct {
	suffix *string
	rounds *int
	strict *bool
	from   *string
}

func addRepairFlags(flags *pflag.FlagSet) repairFlags {
	return repairFlags{
		suffix: flags.String("suffix", csvrepair.DefaultSuffix, "Inserted before .csv in the name of every output file."),
		rounds: flags.Int("rounds", mojibake.DefaultMaxRounds, "Maximum number of correction rounds per file."),
		strict: flags.Bool("strict", false, "Fail instead of dropping characters that cannot be reinterpreted."),
		from:   flags.String("from", csvrepair.DefaultSourceEncoding, "Encoding the raw file bytes are decoded with."),
	}
}

// apply overrides the config with every flag that was set explicitly.
func (f repairFlags) apply(flags *pflag.FlagSet, cfg *csvrepair.Config) {
	if flags.Changed("suffix") {
		cfg.Suffix = *f.suffix
	}
	if flags.Changed("rounds") {
		cfg.MaxRounds = *f.rounds
	}
	if flags.Changed("strict") {
		cfg.Policy = mojibake.PolicyDrop.String()
		if *f.strict {
			cfg.Policy = mojibake.PolicyStrict.String()
		}
	}
	if flags.Changed("from") {
		cfg.SourceEncoding = *f.from
	}
}

var repairOpts repairFlags

func init() {
	repairOpts = addRepairFlags(repairCmd.Flags())
	rootCmd.AddCommand(repairCmd)
}

var repairCmd = &cobra.Command{
	Use:   "repair [file or directory...] [--suffix _utf8] [--rounds 3] [--strict] [--from ISO-8859-1]",
	Short: "Repairs mojibake in csv files, writing <name>_utf8.csv next to each input.",
	Long: `Repairs mojibake in csv files, writing <name>_utf8.csv next to each input.

Every argument may be a file or a directory, directories are not searched
recursively. Without arguments the "file" and "dir" entries of the config
are used, entries that are empty or do not exist are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(*configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		repairOpts.apply(cmd.Flags(), &cfg.Repair)

		fmt.Fprintln(cmd.OutOrStdout(), "=== utf-8 mojibake repair ===")
		results, err := runRepair(cmd.Context(), cfg.Repair, args)
		renderResults(cmd.OutOrStdout(), results, true)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "done.")
		return nil
	},
}

func runRepair(ctx context.Context, cfg csvrepair.Config, paths []string) ([]csvrepair.FileResult, error) {
	fixer, err := csvrepair.New(cfg)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return fixer.Run(ctx)
	}

	var results []csvrepair.FileResult
	var errlist []error
	for _, p := range paths {
		res, err := fixer.RepairPath(ctx, p)
		results = append(results, res...)
		if err != nil {
			errlist = append(errlist, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return results, errors.Join(errlist...)
}
