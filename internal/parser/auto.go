// Package parser resolves an at-rest capture or CSV export into a
// preprocessed table, falling back across extraction strategies.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"nidwatch/internal/metrics"
	"nidwatch/internal/models"
	"nidwatch/internal/preprocess"
)

// Result sources other than strategy names.
const (
	SourceCSV  = "csv"
	SourceDemo = "demo"
)

// Result is the outcome of resolving one file.
type Result struct {
	// Table is never nil; it may have zero rows.
	Table *models.Table
	// Source names what produced the table: "csv", a strategy name,
	// "demo", or "" when nothing did.
	Source string
	// Note explains an empty or synthetic result.
	Note string
}

// Resolver picks the CSV or capture path for a file and runs the capture
// strategies in order until one yields rows.
type Resolver struct {
	strategies []Strategy
	demo       atomic.Bool
	metrics    *metrics.Pipeline
}

// New creates a resolver. With no strategies given it uses
// DefaultStrategies(opts).
func New(opts Options, strategies ...Strategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies(opts)
	}
	r := &Resolver{strategies: strategies, metrics: opts.Metrics}
	r.demo.Store(opts.DemoMode)
	return r
}

// SetDemoMode toggles the synthetic fallback row. It takes effect on the
// next Resolve call.
func (r *Resolver) SetDemoMode(on bool) { r.demo.Store(on) }

// DemoMode reports the current demo flag.
func (r *Resolver) DemoMode() bool { return r.demo.Load() }

// Strategies returns the names of the configured strategies in order.
func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve reads path into a preprocessed table. Only ErrNotFound and
// ErrUnsupportedFormat are returned as errors; every other failure
// degrades to an empty table with an explanatory Note.
func (r *Resolver) Resolve(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", models.ErrNotFound, path, err)
	}

	var res *Result
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		slog.Info("reading csv", "path", path)
		res = r.resolveCSV(path)
	case ".pcap", ".pcapng":
		slog.Info("reading capture", "path", path)
		res = r.resolveCapture(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, ext)
	}

	res.Table = preprocess.Apply(res.Table)
	r.metrics.ObserveResolve(res.Source)
	slog.Info("resolved", "path", path, "source", res.Source, "rows", res.Table.Len())
	return res, nil
}

func (r *Resolver) resolveCSV(path string) *Result {
	t, err := ReadCSV(path)
	if err != nil {
		slog.Warn("csv parse failed", "path", path, "error", err)
		return &Result{Table: models.NewTable(), Note: err.Error()}
	}
	return &Result{Table: t, Source: SourceCSV}
}

func (r *Resolver) resolveCapture(ctx context.Context, path string) *Result {
	var notes []string
	for _, s := range r.strategies {
		recs, took, err := r.try(ctx, s, path)
		if len(recs) > 0 {
			return &Result{Table: models.FromRecords(recs), Source: s.Name()}
		}
		if err != nil {
			notes = append(notes, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			notes = append(notes, s.Name()+": no rows")
		}
		slog.Debug("strategy yielded nothing", "strategy", s.Name(), "took", took)
	}

	note := fmt.Sprintf("%v: %s", models.ErrMalformedInput, strings.Join(notes, "; "))
	if r.demo.Load() {
		slog.Warn("no strategy produced rows, substituting demo record", "path", path)
		return &Result{
			Table:  models.FromRecords([]models.PacketRecord{models.DemoRecord()}),
			Source: SourceDemo,
			Note:   note,
		}
	}
	return &Result{Table: models.FromRecords(nil), Note: note}
}

// try runs one strategy, containing any panic it raises.
func (r *Resolver) try(ctx context.Context, s Strategy, path string) (recs []models.PacketRecord, took time.Duration, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			recs, err = nil, fmt.Errorf("panic: %v", p)
		}
		took = time.Since(start)

		outcome := metrics.OutcomeEmpty
		switch {
		case len(recs) > 0:
			outcome = metrics.OutcomeRows
		case errors.Is(err, models.ErrTimeout):
			outcome = metrics.OutcomeTimeout
		case err != nil:
			outcome = metrics.OutcomeError
		}
		r.metrics.ObserveStrategy(s.Name(), outcome, len(recs), took)
		slog.Info("strategy attempt", "strategy", s.Name(), "outcome", outcome, "rows", len(recs), "took", took, "error", err)
	}()

	recs, err = s.Extract(ctx, path)
	return recs, 0, err
}
