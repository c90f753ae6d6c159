// Package batch implements the C11 Batch Driver: runs the Generator across a
// list of software names with a bounded worker pool, per-item isolation, and
// aggregate reporting (spec.md §4.11).
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example42/saidata-gen/internal/generator"
	"github.com/example42/saidata-gen/pkg/logger"
)

// Status is the outcome of one software name's generation attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// SoftwareGenerator is the subset of *generator.Generator the Driver depends
// on, so tests can substitute a stub without wiring a full fetcher/manager
// stack. *generator.Generator satisfies this directly.
type SoftwareGenerator interface {
	Generate(ctx context.Context, softwareName string, opts generator.Options) (*generator.Result, error)
}

// ItemResult is one software name's entry in a run's report.
type ItemResult struct {
	Name   string
	Status Status
	Err    error
	Result *generator.Result
}

// Options configures one Run call.
type Options struct {
	// Concurrency bounds how many software names generate at once; <= 0
	// defaults to 5 (spec.md §4.11's "bounded concurrency (default 5)").
	Concurrency int
	// FailFast stops scheduling further items after the first failure
	// (spec.md S6); items already in flight still finish. Default is
	// continue-on-error.
	FailFast bool
	// GeneratorOptions is passed unchanged to every Generate call; each
	// item's software name goes to Generate as its own argument.
	GeneratorOptions generator.Options
}

func (o Options) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return 5
}

// Summary aggregates one Run's outcome.
type Summary struct {
	RunID   string
	Total   int
	Success int
	Failed  int
	Skipped int
	Items   []ItemResult
}

// Driver runs a SoftwareGenerator over a list of names.
type Driver struct {
	gen    SoftwareGenerator
	logger *slog.Logger
}

// NewDriver builds a Driver over gen.
func NewDriver(gen SoftwareGenerator, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{gen: gen, logger: logger}
}

// Run generates metadata for every name in names. Failure of one software
// name never aborts the others unless opts.FailFast is set (spec.md §4.11
// step 3, S6): names still queued behind a failed one when FailFast aborts
// are reported StatusSkipped, never attempted. The returned error is nil
// unless FailFast is set and at least one item failed.
func (d *Driver) Run(ctx context.Context, names []string, opts Options) (*Summary, error) {
	runID := uuid.NewString()
	ctx = logger.WithRequestID(ctx, runID)
	runLogger := logger.FromContext(ctx, d.logger)
	items := make([]ItemResult, len(names))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(opts.concurrency())

	var mu sync.Mutex
	var aborted bool

	for i, name := range names {
		i, name := i, name
		group.Go(func() error {
			mu.Lock()
			stop := aborted
			mu.Unlock()
			if stop {
				items[i] = ItemResult{Name: name, Status: StatusSkipped}
				return nil
			}

			itemOpts := opts.GeneratorOptions
			res, err := func() (res *generator.Result, err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("batch: generating %q panicked: %v", name, r)
					}
				}()
				return d.gen.Generate(gctx, name, itemOpts)
			}()
			if err != nil {
				runLogger.Error("software generation failed", "software", name, "error", err)
				items[i] = ItemResult{Name: name, Status: StatusFailed, Err: err, Result: res}
				if opts.FailFast {
					mu.Lock()
					aborted = true
					mu.Unlock()
					return err
				}
				return nil
			}
			items[i] = ItemResult{Name: name, Status: StatusSuccess, Result: res}
			return nil
		})
	}

	runErr := group.Wait()

	summary := &Summary{RunID: runID, Total: len(names), Items: items}
	for i := range items {
		switch items[i].Status {
		case StatusSuccess:
			summary.Success++
		case StatusFailed:
			summary.Failed++
		default:
			items[i].Status = StatusSkipped
			summary.Skipped++
		}
	}

	if opts.FailFast && runErr != nil {
		return summary, runErr
	}
	return summary, nil
}
