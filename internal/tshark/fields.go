package tshark

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"nidwatch/internal/models"
	"nidwatch/internal/normalize"
)

// DefaultTimeout bounds a single tshark run.
const DefaultTimeout = 5 * time.Minute

// Strategy extracts packets by running tshark in field mode.
type Strategy struct {
	// Binary is the executable name or path. Defaults to "tshark".
	Binary string
	// Timeout bounds the subprocess. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// New creates a tshark strategy.
func New(binary string, timeout time.Duration) *Strategy {
	return &Strategy{Binary: binary, Timeout: timeout}
}

// Name implements parser.Strategy.
func (s *Strategy) Name() string { return "tshark" }

// Extract runs tshark against path and normalizes its output. A missing
// binary, non-zero exit or empty output all yield no records.
func (s *Strategy) Extract(ctx context.Context, path string) ([]models.PacketRecord, error) {
	binary := s.Binary
	if binary == "" {
		binary = "tshark"
	}
	bin, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrToolUnavailable, binary, err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, fieldArgs(path)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: tshark after %s", models.ErrTimeout, timeout)
		}
		slog.Debug("tshark failed", "path", path, "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("tshark: %w", err)
	}
	if strings.TrimSpace(stdout.String()) == "" {
		return nil, nil
	}

	raw, err := ParseFields(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: tshark output: %v", models.ErrMalformedInput, err)
	}
	return normalize.Normalize(raw), nil
}

// ParseFields reads tab-separated tshark field output with a header row.
func ParseFields(r io.Reader) ([]normalize.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []normalize.RawRecord
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				// Skip malformed lines
				continue
			}
			return rows, fmt.Errorf("read row: %w", err)
		}
		row := make(normalize.RawRecord, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
