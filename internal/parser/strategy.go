package parser

import (
	"context"
	"time"

	"nidwatch/internal/capture"
	"nidwatch/internal/capture/libpcap"
	"nidwatch/internal/metrics"
	"nidwatch/internal/models"
	"nidwatch/internal/tshark"
)

// Strategy turns a capture file into normalized packet records. A returned
// error explains why the strategy produced nothing; the resolver logs it and
// moves on to the next strategy.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, path string) ([]models.PacketRecord, error)
}

// Options configures a Resolver.
type Options struct {
	DemoMode       bool
	TsharkPath     string
	TsharkTimeout  time.Duration
	AllowLibpcap   bool
	LibpcapTimeout time.Duration
	Metrics        *metrics.Pipeline
}

// DefaultStrategies returns the capture strategies in priority order:
// tshark, libpcap (when allowed), then the streaming reader.
func DefaultStrategies(opts Options) []Strategy {
	return []Strategy{
		tshark.New(opts.TsharkPath, opts.TsharkTimeout),
		libpcap.New(opts.AllowLibpcap, opts.LibpcapTimeout),
		capture.NewStreamStrategy(),
	}
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc struct {
	Label string
	Fn    func(ctx context.Context, path string) ([]models.PacketRecord, error)
}

// Name implements Strategy.
func (f StrategyFunc) Name() string { return f.Label }

// Extract implements Strategy.
func (f StrategyFunc) Extract(ctx context.Context, path string) ([]models.PacketRecord, error) {
	return f.Fn(ctx, path)
}
