// Package libpcap extracts packets through libpcap's offline reader under
// a wall-clock budget. It is off unless explicitly enabled.
package libpcap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nidwatch/internal/capture"
	"nidwatch/internal/models"
)

// DefaultTimeout is the wall-clock budget for one file.
const DefaultTimeout = 5 * time.Second

// Source is an open offline capture.
type Source interface {
	capture.PacketDataSource
	Close()
}

// Opener opens a capture file.
type Opener func(path string) (Source, error)

// Strategy reads packets via libpcap with a hard timeout.
type Strategy struct {
	Enabled bool
	Timeout time.Duration
	Open    Opener
}

// New creates a libpcap strategy. A disabled strategy always yields nothing.
func New(enabled bool, timeout time.Duration) *Strategy {
	return &Strategy{Enabled: enabled, Timeout: timeout, Open: OpenOffline}
}

// Name implements parser.Strategy.
func (s *Strategy) Name() string { return "libpcap" }

type result struct {
	recs    []models.PacketRecord
	skipped int
	err     error
}

// Extract implements parser.Strategy. When the budget runs out it returns
// ErrTimeout at once; the reader goroutine notices the cancelled context at
// its next packet and releases the handle.
func (s *Strategy) Extract(ctx context.Context, path string) ([]models.PacketRecord, error) {
	if !s.Enabled {
		return nil, nil
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	open := s.Open
	if open == nil {
		open = OpenOffline
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		done <- read(ctx, open, path)
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: libpcap after %s", models.ErrTimeout, timeout)
			}
			return nil, res.err
		}
		if res.skipped > 0 {
			slog.Debug("libpcap skipped packets", "path", path, "skipped", res.skipped)
		}
		return res.recs, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: libpcap after %s", models.ErrTimeout, timeout)
		}
		return nil, ctx.Err()
	}
}

func read(ctx context.Context, open Opener, path string) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: fmt.Errorf("libpcap panic: %v", r)}
		}
	}()

	src, err := open(path)
	if err != nil {
		return result{err: fmt.Errorf("libpcap open: %w", err)}
	}
	defer src.Close()

	recs, skipped, err := capture.Drain(ctx, src, capture.IPOnly)
	if err != nil {
		if ctx.Err() != nil {
			return result{err: err}
		}
		slog.Warn("libpcap reader stopped early", "path", path, "rows", len(recs), "error", err)
	}
	return result{recs: recs, skipped: skipped}
}
