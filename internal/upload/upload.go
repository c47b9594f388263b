// Package upload accepts a user-supplied capture or CSV stream, stages it
// in a scratch file and resolves it into a table.
package upload

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"nidwatch/internal/metrics"
	"nidwatch/internal/models"
	"nidwatch/internal/parser"
)

// DefaultMaxBytes is the upload ceiling when none is configured.
const DefaultMaxBytes = 200 * 1024 * 1024

// Upload outcomes recorded in metrics.
const (
	StatusOK       = "ok"
	StatusEmpty    = "empty"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Resolver turns a file on disk into a table.
type Resolver interface {
	Resolve(ctx context.Context, path string) (*parser.Result, error)
}

// Session is the outcome of one upload.
type Session struct {
	ID       string
	Filename string
	Size     int64
	Digest   string // BLAKE3-256, hex
	MIME     string
	Result   *parser.Result
	Message  string
}

// Rows returns the number of rows the upload produced.
func (s *Session) Rows() int {
	if s == nil || s.Result == nil {
		return 0
	}
	return s.Result.Table.Len()
}

// Ingestor stages and resolves uploads.
type Ingestor struct {
	MaxBytes   int64
	ScratchDir string
	Resolver   Resolver
	Metrics    *metrics.Pipeline
}

// Ingest copies r into a scratch file named after name's extension,
// resolves it, and removes the scratch file. size is the declared length
// or -1 when unknown. A nil reader means nothing was uploaded and yields a
// nil session.
func (in *Ingestor) Ingest(ctx context.Context, name string, r io.Reader, size int64) (*Session, error) {
	if r == nil {
		return nil, nil
	}
	s, err := in.ingest(ctx, name, r, size)
	switch {
	case errors.Is(err, models.ErrResourceExhausted):
		in.Metrics.ObserveUpload(StatusRejected)
	case err != nil:
		in.Metrics.ObserveUpload(StatusError)
	case s.Rows() == 0:
		in.Metrics.ObserveUpload(StatusEmpty)
	default:
		in.Metrics.ObserveUpload(StatusOK)
	}
	return s, err
}

func (in *Ingestor) ingest(ctx context.Context, name string, r io.Reader, size int64) (*Session, error) {
	limit := in.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if size > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte upload limit", models.ErrResourceExhausted, size, limit)
	}

	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))
	tmp, err := os.CreateTemp(in.ScratchDir, "nidwatch-upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	path := tmp.Name()
	defer func() {
		tmp.Close()
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove scratch file", "path", path, "error", err)
		}
	}()

	hasher := blake3.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("write scratch file: %w", err)
	}
	if written > limit {
		return nil, fmt.Errorf("%w: upload exceeds the %d byte limit", models.ErrResourceExhausted, limit)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close scratch file: %w", err)
	}

	s := &Session{
		ID:       uuid.New().String(),
		Filename: base,
		Size:     written,
		Digest:   hex.EncodeToString(hasher.Sum(nil)),
	}
	if mt, err := mimetype.DetectFile(path); err == nil {
		s.MIME = mt.String()
	}
	slog.Info("upload staged", "id", s.ID, "file", base, "bytes", written, "mime", s.MIME, "blake3", s.Digest)

	res, err := in.Resolver.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	s.Result = res
	s.Message = message(base, res)
	return s, nil
}

func message(name string, res *parser.Result) string {
	rows := res.Table.Len()
	if rows == 0 {
		return fmt.Sprintf("%s produced no usable rows; enable demo mode or check that tshark is installed", name)
	}
	if res.Source == parser.SourceDemo {
		return fmt.Sprintf("%s could not be parsed; showing a demo row", name)
	}
	return fmt.Sprintf("processed %d rows from %s (source: %s)", rows, name, res.Source)
}
