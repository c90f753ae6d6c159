package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example42/saidata-gen/internal/app"
	"github.com/example42/saidata-gen/internal/config"
)

// Exit codes per spec.md §6.
const (
	ExitSuccess           = 0
	ExitGenericFailure    = 1
	ExitConfigError       = 2
	ExitDependencyError   = 3
	ExitValidationError   = 4
	ExitExcessFailureRate = 5
	ExitUserInterrupt     = 130
)

// codedError pins a specific exit code to an error, for cases where the
// generic-failure default (1) is wrong.
type codedError struct {
	code int
	err  error
}

func (c *codedError) Error() string { return c.err.Error() }
func (c *codedError) Unwrap() error { return c.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// ExitCode extracts the intended process exit code from err, defaulting to
// ExitGenericFailure for an unclassified error and ExitUserInterrupt for a
// canceled context.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	if errors.Is(err, context.Canceled) {
		return ExitUserInterrupt
	}
	return ExitGenericFailure
}

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// SetVersion sets version information, populated via -ldflags at build time.
func SetVersion(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

var (
	configPath   string
	templatesDir string
	logLevel     string
	logFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "saidata-gen",
	Short: "Generate saidata software metadata from package manager repositories",
	Long: `saidata-gen aggregates package metadata from many package manager
repositories (APT, DNF/YUM, Homebrew, npm, PyPI, Cargo, Docker Hub, Helm,
Nix, and more), merges it through a layered template engine, validates it
against the saidata schema, and emits a <software>/defaults.yaml plus
<software>/providers/<provider>.yaml directory tree.

Exit codes:
  0   success
  1   generic failure
  2   configuration error
  3   dependency error
  4   validation error
  5   excess failure rate
  130 user interrupt
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&templatesDir, "templates", "templates", "root directory of defaults.yaml/provider_defaults.yaml/providers/ templates")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format: json, text")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// loadApp loads configuration and builds the shared *app.App for a
// subcommand, wrapping any failure as a configuration-class exit.
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	logger := app.NewLoggerFromConfig(logLevel, logFormat, "stdout")
	built, err := app.Build(ctx, cfg, templatesDir, logger)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return built, nil
}
