package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/example42/saidata-gen/internal/core/resilience"
	"github.com/example42/saidata-gen/internal/generator"
)

func TestPrintGenerateSummary_ReportsDirAndOverridesAndDegradations(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)

	result := &generator.Result{
		Dir:                  "out/nginx",
		ProviderFilesWritten: []string{"providers/apt.yaml", "providers/npm.yaml"},
		Degraded: []resilience.DegradationRecord{
			{Provider: "docker", Reason: resilience.ClassDependency},
		},
	}

	printGenerateSummary(cmd, "nginx", result)

	text := out.String()
	assert.Contains(t, text, "out/nginx")
	assert.Contains(t, text, "providers/apt.yaml")
	assert.Contains(t, text, "providers/npm.yaml")
	assert.Contains(t, text, "docker")
}
