package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nidwatch/internal/metrics"
	"nidwatch/internal/models"
	"nidwatch/internal/parser"
	"nidwatch/internal/upload"
)

func newTestServer(t *testing.T, max int64) *httptest.Server {
	t.Helper()
	m := metrics.New()
	none := parser.StrategyFunc{Label: "none", Fn: func(context.Context, string) ([]models.PacketRecord, error) {
		return nil, nil
	}}
	in := &upload.Ingestor{
		MaxBytes:   max,
		ScratchDir: t.TempDir(),
		Resolver:   parser.New(parser.Options{Metrics: m}, none),
		Metrics:    m,
	}
	srv := httptest.NewServer(New(in, m).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, field, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func postUpload(t *testing.T, srv *httptest.Server, field, filename, content string) *http.Response {
	t.Helper()
	body, ctype := multipartBody(t, field, filename, content)
	resp, err := http.Post(srv.URL+"/upload", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUploadCSV(t *testing.T) {
	srv := newTestServer(t, 0)

	var sb strings.Builder
	sb.WriteString("ts,src,dst,length\n")
	for i := 0; i < 150; i++ {
		sb.WriteString("1700000000,10.0.0.1,10.0.0.2,1500\n")
	}
	resp := postUpload(t, srv, "file", "flows.csv", sb.String())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got struct {
		Rows    int      `json:"rows"`
		Source  string   `json:"source"`
		Message string   `json:"message"`
		Digest  string   `json:"blake3"`
		Columns []string `json:"columns"`
		Preview [][]any  `json:"preview"`
		Summary struct {
			Packets    int `json:"packets"`
			TopTalkers []struct {
				IP string `json:"ip"`
			} `json:"top_talkers"`
		} `json:"summary"`
		Alerts []struct {
			Type string `json:"type"`
		} `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Rows != 150 || got.Source != parser.SourceCSV || got.Summary.Packets != 150 {
		t.Fatalf("response = %+v", got)
	}
	if len(got.Preview) != PreviewRows {
		t.Errorf("preview rows = %d, want %d", len(got.Preview), PreviewRows)
	}
	if len(got.Columns) != len(got.Preview[0]) {
		t.Errorf("columns %v do not match preview width %d", got.Columns, len(got.Preview[0]))
	}
	if len(got.Summary.TopTalkers) != 1 || got.Summary.TopTalkers[0].IP != "10.0.0.1" {
		t.Errorf("top talkers = %+v", got.Summary.TopTalkers)
	}
	if len(got.Alerts) == 0 {
		t.Error("expected oversize alerts")
	}
	if len(got.Digest) != 64 {
		t.Errorf("digest = %q", got.Digest)
	}
}

func TestUploadMillisecondTimeColumn(t *testing.T) {
	srv := newTestServer(t, 0)
	resp := postUpload(t, srv, "file", "export.csv", "time,src,dst,length\n1700000000123,10.0.0.1,10.0.0.2,60\n")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got struct {
		Rows    int `json:"rows"`
		Summary struct {
			Timeline []struct {
				Minute time.Time `json:"minute"`
			} `json:"timeline"`
		} `json:"summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Rows != 1 || len(got.Summary.Timeline) != 1 || got.Summary.Timeline[0].Minute.Year() != 2023 {
		t.Fatalf("response = %+v", got)
	}
}

func TestJSONResponseEncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonResponse(rec, http.StatusOK, map[string]any{"bad": math.Inf(1)})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || got["error"] == "" {
		t.Fatalf("body = %q (%v)", rec.Body.String(), err)
	}
}

func TestUploadTooLarge(t *testing.T) {
	srv := newTestServer(t, 32)
	resp := postUpload(t, srv, "file", "big.pcap", strings.Repeat("x", 64))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
}

func TestUploadUnsupportedFormat(t *testing.T) {
	srv := newTestServer(t, 0)
	resp := postUpload(t, srv, "file", "notes.docx", "hello")
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", resp.StatusCode)
	}
}

func TestUploadZeroRows(t *testing.T) {
	srv := newTestServer(t, 0)
	resp := postUpload(t, srv, "file", "broken.pcap", "garbage")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got struct {
		Rows    int    `json:"rows"`
		Message string `json:"message"`
		Note    string `json:"note"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Rows != 0 || !strings.Contains(got.Message, "demo mode") || got.Note == "" {
		t.Fatalf("response = %+v", got)
	}
}

func TestUploadMissingFile(t *testing.T) {
	srv := newTestServer(t, 0)
	resp := postUpload(t, srv, "other", "x.csv", "a,b\n1,2\n")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadNotMultipart(t *testing.T) {
	srv := newTestServer(t, 0)
	resp, err := http.Post(srv.URL+"/upload", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, 0)
	resp, err := http.Get(srv.URL + "/upload")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	srv := newTestServer(t, 0)
	postUpload(t, srv, "file", "a.csv", "x,y\n1,2\n")

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `nidwatch_uploads_total{status="ok"} 1`) {
		t.Fatalf("metrics missing upload counter:\n%s", body)
	}
	if !strings.Contains(string(body), `nidwatch_resolves_total{source="csv"} 1`) {
		t.Fatalf("metrics missing resolve counter:\n%s", body)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	m := metrics.New()
	s := New(&upload.Ingestor{}, m)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	if err := <-done; err != nil && err != http.ErrServerClosed {
		t.Fatalf("ListenAndServe error: %v", err)
	}
}
