package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example42/saidata-gen/internal/generator"
)

var (
	genProviders   []string
	genPlatforms   []string
	genOutputDir   string
	genConcurrency int
	genNoValidate  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <software>",
	Short: "Generate metadata for a single piece of software",
	Long: `Generate fetches package data for <software> from every configured
provider, reconciles it into a shared defaults.yaml and per-provider
override files, validates the result, and writes
<output>/<software>/defaults.yaml (+ providers/<provider>.yaml).`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringSliceVar(&genProviders, "providers", nil, "restrict to these providers (default: every configured provider)")
	generateCmd.Flags().StringSliceVar(&genPlatforms, "platforms", nil, "restrict providers by platform (e.g. linux, windows, macos)")
	generateCmd.Flags().StringVar(&genOutputDir, "output", ".", "directory the <software>/ tree is written under")
	generateCmd.Flags().IntVar(&genConcurrency, "concurrency", 0, "per-software provider fan-out limit (0 = provider count)")
	generateCmd.Flags().BoolVar(&genNoValidate, "no-validate", false, "skip schema validation before writing")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	softwareName := args[0]
	ctx := cmd.Context()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := generator.Options{
		Providers:              genProviders,
		Platforms:              genPlatforms,
		PerSoftwareConcurrency: genConcurrency,
		Validate:               !genNoValidate,
		OutputDir:              genOutputDir,
	}

	result, err := a.Generator.Generate(ctx, softwareName, opts)
	if err != nil {
		if result != nil && result.DefaultsValidation != nil && !result.DefaultsValidation.Valid {
			return withExitCode(ExitValidationError, err)
		}
		return err
	}

	printGenerateSummary(cmd, softwareName, result)
	return nil
}

func printGenerateSummary(cmd *cobra.Command, softwareName string, result *generator.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: wrote %s\n", softwareName, result.Dir)
	if len(result.ProviderFilesWritten) > 0 {
		fmt.Fprintf(out, "  provider overrides: %s\n", strings.Join(result.ProviderFilesWritten, ", "))
	}
	if len(result.Degraded) > 0 {
		for _, d := range result.Degraded {
			fmt.Fprintf(out, "  degraded: %s (%s)\n", d.Provider, d.Reason)
		}
	}
}
