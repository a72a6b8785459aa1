package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/randompersona1/ussplitter-server/internal/config"
	"github.com/randompersona1/ussplitter-server/internal/engine"
	"github.com/randompersona1/ussplitter-server/internal/logging"
	"github.com/randompersona1/ussplitter-server/internal/queue"
	"github.com/randompersona1/ussplitter-server/internal/server"
	"github.com/randompersona1/ussplitter-server/internal/splitter"
	"github.com/randompersona1/ussplitter-server/internal/testsupport"
)

// stemEngine writes both stems under the model subdirectory, like the real
// engine does.
type stemEngine struct{}

func (stemEngine) Separate(ctx context.Context, req engine.SeparationRequest) error {
	stemDir := filepath.Join(req.OutputDir, req.Model, "input")
	if err := os.MkdirAll(stemDir, 0o755); err != nil {
		return err
	}
	for stem, contents := range map[string]string{
		"vocals.mp3":    "vocal stem bytes",
		"no_vocals.mp3": "instrumental stem bytes",
	} {
		if err := os.WriteFile(filepath.Join(stemDir, stem), []byte(contents), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (stemEngine) Catalog() engine.Catalog {
	return engine.DefaultCatalog()
}

type fixture struct {
	cfg    *config.Config
	store  *queue.Store
	svc    *splitter.Service
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := splitter.NewService(cfg, store, logging.NewNop())
	router := server.NewRouter(cfg, svc, stemEngine{}, logging.NewNop())
	return &fixture{cfg: cfg, store: store, svc: svc, router: router}
}

func multipartAudio(t *testing.T, contents string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", "song.mp3")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(contents)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestSplitAdmitsJob(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartAudio(t, "audio payload")
	rec := f.do(t, http.MethodPost, "/split?model=mdx_extra", body, contentType)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	jobID := rec.Body.String()
	if jobID == "" {
		t.Fatal("expected a job id in the response body")
	}

	status, err := f.svc.Status(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status != queue.StatusPending {
		t.Fatalf("expected PENDING after split, got %s", status)
	}

	content, err := os.ReadFile(f.svc.InputPath(jobID))
	if err != nil {
		t.Fatalf("read stored input: %v", err)
	}
	if string(content) != "audio payload" {
		t.Fatalf("stored input mismatch: %q", content)
	}
}

func TestSplitWithoutAudioField(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/split", strings.NewReader("not multipart"), "text/plain")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec.Body.String() != "No audio file provided" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestStatusRequiresUUID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/status", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec.Body.String() != "No uuid provided" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestStatusUnknownIDIsNone(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/status?uuid=unknown-id", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "NONE" {
		t.Fatalf("expected NONE, got %q", rec.Body.String())
	}
}

func TestResultBeforeFinishedIsNotFound(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartAudio(t, "x")
	jobID := f.do(t, http.MethodPost, "/split", body, contentType).Body.String()

	for _, route := range []string{"/result/vocals", "/result/instrumental"} {
		rec := f.do(t, http.MethodGet, route+"?uuid="+jobID, nil, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", route, rec.Code)
		}
		if rec.Body.String() != "Not found" {
			t.Fatalf("%s: unexpected body %q", route, rec.Body.String())
		}
	}
}

func TestResultRequiresUUID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/result/vocals", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCleanupRequiresUUID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/cleanup", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCleanupPendingJobFails(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartAudio(t, "x")
	jobID := f.do(t, http.MethodPost, "/split", body, contentType).Body.String()

	rec := f.do(t, http.MethodPost, "/cleanup?uuid="+jobID, nil, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Body.String() != "Failed" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestCleanupAllWhileInFlightFails(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartAudio(t, "x")
	f.do(t, http.MethodPost, "/split", body, contentType)

	rec := f.do(t, http.MethodPost, "/cleanupall", nil, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Body.String() != "Failed" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestHealthReportsQueueHistogram(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartAudio(t, "x")
	f.do(t, http.MethodPost, "/split", body, contentType)

	rec := f.do(t, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Status string         `json:"status"`
		Queue  map[string]int `json:"queue"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode health payload: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("expected ok status, got %q", payload.Status)
	}
	if payload.Queue["PENDING"] != 1 {
		t.Fatalf("expected one pending job, got %v", payload.Queue)
	}
}

func TestModelsListsCatalogAndDefault(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/models", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Default string   `json:"default"`
		Models  []string `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode models payload: %v", err)
	}
	if payload.Default != "htdemucs" {
		t.Fatalf("expected htdemucs default, got %q", payload.Default)
	}
	found := false
	for _, name := range payload.Models {
		if name == "htdemucs_ft" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected htdemucs_ft in catalog, got %v", payload.Models)
	}
}

// TestJobLifecycleOverHTTP walks the full flow: split, poll, download,
// cleanup, and the final NONE probe.
func TestJobLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	worker := splitter.NewWorker(f.cfg, f.svc, f.store, stemEngine{}, logging.NewNop())
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	defer worker.Stop()

	body, contentType := multipartAudio(t, "full lifecycle audio")
	jobID := f.do(t, http.MethodPost, "/split", body, contentType).Body.String()

	deadline := time.Now().Add(10 * time.Second)
	for {
		status := f.do(t, http.MethodGet, "/status?uuid="+jobID, nil, "").Body.String()
		if status == "FINISHED" {
			break
		}
		if status == "ERROR" {
			t.Fatal("job failed unexpectedly")
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never finished, last status %s", status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := f.do(t, http.MethodGet, "/result/vocals?uuid="+jobID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for vocals, got %d", rec.Code)
	}
	if rec.Body.String() != "vocal stem bytes" {
		t.Fatalf("unexpected vocals bytes %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", ct)
	}

	rec = f.do(t, http.MethodPost, "/cleanup?uuid="+jobID, nil, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "Success" {
		t.Fatalf("cleanup failed: %d %q", rec.Code, rec.Body.String())
	}

	if status := f.do(t, http.MethodGet, "/status?uuid="+jobID, nil, "").Body.String(); status != "NONE" {
		t.Fatalf("expected NONE after cleanup, got %q", status)
	}
}
