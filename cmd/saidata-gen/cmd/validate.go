package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example42/saidata-gen/internal/schema"
	"github.com/example42/saidata-gen/internal/template"
)

var validateIsOverride bool

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a generated defaults.yaml or providers/<provider>.yaml file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateIsOverride, "override", false, "validate as a provider override partial rather than a complete defaults.yaml")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	engine, err := template.NewEngine(template.Options{})
	if err != nil {
		return err
	}
	doc, _, err := engine.Render(cmd.Context(), raw, nil)
	if err != nil {
		return fmt.Errorf("validate: parsing %s: %w", path, err)
	}

	validator := schema.New()
	var result *schema.Result
	if validateIsOverride {
		result = validator.ValidateOverride(doc)
	} else {
		result = validator.ValidateDocument(doc)
	}

	out := cmd.OutOrStdout()
	for _, issue := range result.Issues {
		fmt.Fprintln(out, issue.String())
	}

	if !result.Valid {
		return withExitCode(ExitValidationError, fmt.Errorf("validate: %s failed (%d error(s))", path, len(result.Errors())))
	}
	fmt.Fprintf(out, "%s: valid\n", path)
	return nil
}
