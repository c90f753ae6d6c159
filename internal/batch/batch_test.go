package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example42/saidata-gen/internal/generator"
)

// stubGenerator fails for any name in failFor and otherwise succeeds,
// recording every name it was actually asked to generate.
type stubGenerator struct {
	mu      sync.Mutex
	failFor map[string]bool
	called  []string
}

func (s *stubGenerator) Generate(ctx context.Context, name string, opts generator.Options) (*generator.Result, error) {
	s.mu.Lock()
	s.called = append(s.called, name)
	s.mu.Unlock()
	if s.failFor[name] {
		return nil, fmt.Errorf("generation of %q failed validation", name)
	}
	return &generator.Result{SoftwareName: name}, nil
}

func TestRun_ContinueOnError_ReportsAllItems(t *testing.T) {
	gen := &stubGenerator{failFor: map[string]bool{"b": true}}
	d := NewDriver(gen, nil)

	summary, err := d.Run(context.Background(), []string{"a", "b", "c"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.NotEmpty(t, summary.RunID)

	byName := map[string]Status{}
	for _, item := range summary.Items {
		byName[item.Name] = item.Status
	}
	assert.Equal(t, StatusSuccess, byName["a"])
	assert.Equal(t, StatusFailed, byName["b"])
	assert.Equal(t, StatusSuccess, byName["c"])
}

// S6 from spec.md §8: with fail_fast=true, once "b" fails, "c" is never
// scheduled. Concurrency is pinned to 1 so ordering is deterministic.
func TestRun_FailFast_StopsSchedulingLaterItems(t *testing.T) {
	gen := &stubGenerator{failFor: map[string]bool{"b": true}}
	d := NewDriver(gen, nil)

	summary, err := d.Run(context.Background(), []string{"a", "b", "c"}, Options{
		Concurrency: 1,
		FailFast:    true,
	})
	require.Error(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)

	gen.mu.Lock()
	defer gen.mu.Unlock()
	assert.NotContains(t, gen.called, "c")
}

func TestRun_EmptyList(t *testing.T) {
	gen := &stubGenerator{}
	d := NewDriver(gen, nil)

	summary, err := d.Run(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Empty(t, summary.Items)
}
