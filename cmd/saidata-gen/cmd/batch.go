package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	batchpkg "github.com/example42/saidata-gen/internal/batch"
	"github.com/example42/saidata-gen/internal/core/resilience"
	"github.com/example42/saidata-gen/internal/generator"
)

var (
	batchOutputDir     string
	batchConcurrency   int
	batchFailFast      bool
	batchNoValidate    bool
	batchMaxFailRate   float64
)

var batchCmd = &cobra.Command{
	Use:   "batch <list-file>",
	Short: "Generate metadata for every software name in a list file",
	Long: `Batch reads one software name per line from <list-file> (blank lines
and lines starting with # are ignored) and runs generate for each, with a
bounded worker pool.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchOutputDir, "output", ".", "directory each <software>/ tree is written under")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "how many software names to generate at once (0 = config default)")
	batchCmd.Flags().BoolVar(&batchFailFast, "fail-fast", false, "stop scheduling further items after the first failure")
	batchCmd.Flags().BoolVar(&batchNoValidate, "no-validate", false, "skip schema validation before writing")
	batchCmd.Flags().Float64Var(&batchMaxFailRate, "max-fail-rate", 1.0, "fail the run (exit 5) if the failed+skipped fraction exceeds this")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	names, err := batchpkg.ReadListFile(args[0])
	if err != nil {
		return err
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	concurrency := batchConcurrency
	if concurrency <= 0 {
		concurrency = a.Config.Concurrency.Batch
	}

	driver := batchpkg.NewDriver(a.Generator, a.Logger)
	summary, err := driver.Run(ctx, names, batchpkg.Options{
		Concurrency: concurrency,
		FailFast:    batchFailFast,
		GeneratorOptions: generator.Options{
			Validate:  !batchNoValidate,
			OutputDir: batchOutputDir,
		},
	})
	if err != nil && !batchFailFast {
		return err
	}

	printBatchSummary(cmd, summary)

	if resilience.SkipFractionExceeded(summary.Failed+summary.Skipped, summary.Total, batchMaxFailRate) {
		return withExitCode(ExitExcessFailureRate, fmt.Errorf("batch: %d/%d item(s) failed or were skipped, exceeding the %.0f%% threshold", summary.Failed+summary.Skipped, summary.Total, batchMaxFailRate*100))
	}
	if err != nil {
		return err
	}
	return nil
}

func printBatchSummary(cmd *cobra.Command, summary *batchpkg.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d total, %d succeeded, %d failed, %d skipped\n",
		summary.RunID, summary.Total, summary.Success, summary.Failed, summary.Skipped)
	for _, item := range summary.Items {
		if item.Status == batchpkg.StatusFailed {
			fmt.Fprintf(out, "  %s: %v\n", item.Name, item.Err)
		}
	}
}
