// Package server exposes the upload pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"nidwatch/internal/analysis"
	"nidwatch/internal/metrics"
	"nidwatch/internal/models"
	"nidwatch/internal/upload"
)

// PreviewRows caps the rows echoed back in an upload response.
const PreviewRows = 100

// multipartOverhead is allowed on top of the upload ceiling for form
// boundaries and part headers.
const multipartOverhead = 1 << 20

// Server serves uploads, health and metrics.
type Server struct {
	ingestor *upload.Ingestor
	metrics  *metrics.Pipeline
	maxBytes int64
}

// New creates a Server around an ingestor.
func New(in *upload.Ingestor, m *metrics.Pipeline) *Server {
	maxBytes := in.MaxBytes
	if maxBytes <= 0 {
		maxBytes = upload.DefaultMaxBytes
	}
	return &Server{ingestor: in, metrics: m, maxBytes: maxBytes}
}

// Routes returns the HTTP routes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type uploadResponse struct {
	ID       string           `json:"id"`
	Filename string           `json:"filename"`
	Size     int64            `json:"size"`
	Digest   string           `json:"blake3"`
	MIME     string           `json:"mime,omitempty"`
	Source   string           `json:"source"`
	Note     string           `json:"note,omitempty"`
	Message  string           `json:"message"`
	Rows     int              `json:"rows"`
	Summary  analysis.Summary `json:"summary"`
	Alerts   []alertJSON      `json:"alerts"`
	Columns  []string         `json:"columns"`
	Preview  [][]any          `json:"preview"`
}

type alertJSON struct {
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Expected multipart/form-data"})
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.fail(w, err)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		sess, err := s.ingestor.Ingest(r.Context(), part.FileName(), part, -1)
		part.Close()
		if err != nil {
			s.fail(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, buildResponse(sess))
		return
	}

	jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Missing file field"})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, models.ErrResourceExhausted):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	}
	slog.Warn("upload failed", "status", status, "error", err)
	jsonResponse(w, status, map[string]string{"error": err.Error()})
}

func buildResponse(sess *upload.Session) uploadResponse {
	tbl := sess.Result.Table
	ad := analysis.DetectAnomalies(tbl, analysis.DefaultConfig())

	resp := uploadResponse{
		ID:       sess.ID,
		Filename: sess.Filename,
		Size:     sess.Size,
		Digest:   sess.Digest,
		MIME:     sess.MIME,
		Source:   sess.Result.Source,
		Note:     sess.Result.Note,
		Message:  sess.Message,
		Rows:     tbl.Len(),
		Summary:  analysis.Summarize(tbl, 10),
		Alerts:   make([]alertJSON, 0),
		Columns:  tbl.Columns,
		Preview:  preview(tbl, PreviewRows),
	}
	for _, a := range ad.GetRecentAlerts(0) {
		resp.Alerts = append(resp.Alerts, alertJSON{
			Type:      string(a.Type),
			Source:    a.Source,
			Message:   a.Message,
			Timestamp: a.Timestamp,
		})
	}
	return resp
}

// preview copies up to n rows, replacing values JSON cannot carry.
func preview(t *models.Table, n int) [][]any {
	if n > t.Len() {
		n = t.Len()
	}
	out := make([][]any, n)
	for i := 0; i < n; i++ {
		row := make([]any, len(t.Rows[i]))
		for j, v := range t.Rows[i] {
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				v = nil
			}
			row[j] = v
		}
		out[i] = row
	}
	return out
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		slog.Error("error encoding JSON response", "error", err)
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"failed to encode response"}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("error writing JSON response", "error", err)
	}
}
