package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/blockdiff/internal/fetch"
	"github.com/cwbudde/blockdiff/internal/store"
)

// writeTestImage writes a solid-color PNG to dir and returns its path.
func writeTestImage(t *testing.T, dir, name string, c color.NRGBA) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := fetch.Save(path, solidNRGBA(40, 40, c)); err != nil {
		t.Fatalf("Failed to write test image: %v", err)
	}
	return path
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	srv := NewServer("127.0.0.1:0", st)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func createJob(t *testing.T, ts *httptest.Server, config JobConfig) *Job {
	t.Helper()

	body, _ := json.Marshal(config)
	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode job: %v", err)
	}
	return &job
}

func waitForJob(t *testing.T, ts *httptest.Server, jobID string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/status", ts.URL, jobID))
		if err != nil {
			t.Fatalf("Failed to get status: %v", err)
		}

		var status map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			resp.Body.Close()
			t.Fatalf("Failed to decode status: %v", err)
		}
		resp.Body.Close()

		switch status["state"] {
		case string(StateCompleted), string(StateFailed):
			return status
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatal("Timed out waiting for job to finish")
	return nil
}

func TestServer_CompareJob_Identical(t *testing.T) {
	dir := t.TempDir()
	gray := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	pathA := writeTestImage(t, dir, "a.png", gray)
	pathB := writeTestImage(t, dir, "b.png", gray)

	_, ts := newTestServer(t)

	job := createJob(t, ts, JobConfig{SourceA: pathA, SourceB: pathB, XSegments: 4, YSegments: 4})
	status := waitForJob(t, ts, job.ID)

	if status["state"] != string(StateCompleted) {
		t.Fatalf("Expected completed job, got %v (error: %v)", status["state"], status["error"])
	}
	if score := status["score"].(float64); score != 0.0 {
		t.Errorf("Expected zero score for identical images, got %f", score)
	}
	if status["backend"] != "scalar" {
		t.Errorf("Expected scalar backend, got %v", status["backend"])
	}
}

func TestServer_CompareJob_Different(t *testing.T) {
	dir := t.TempDir()
	pathA := writeTestImage(t, dir, "a.png", color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	pathB := writeTestImage(t, dir, "b.png", color.NRGBA{R: 110, G: 100, B: 100, A: 255})

	_, ts := newTestServer(t)

	job := createJob(t, ts, JobConfig{SourceA: pathA, SourceB: pathB, XSegments: 4, YSegments: 4})
	status := waitForJob(t, ts, job.ID)

	if status["state"] != string(StateCompleted) {
		t.Fatalf("Expected completed job, got %v", status["state"])
	}

	// One channel off by 10 in every block: 100/3 per element
	score := status["score"].(float64)
	if score <= 33.0 || score >= 34.0 {
		t.Errorf("Expected score near 33.33, got %f", score)
	}
}

func TestServer_CompareJob_Vectorized(t *testing.T) {
	dir := t.TempDir()
	gray := color.NRGBA{R: 50, G: 60, B: 70, A: 255}
	pathA := writeTestImage(t, dir, "a.png", gray)
	pathB := writeTestImage(t, dir, "b.png", gray)

	_, ts := newTestServer(t)

	job := createJob(t, ts, JobConfig{SourceA: pathA, SourceB: pathB, XSegments: 4, YSegments: 4, Vectorized: true})
	status := waitForJob(t, ts, job.ID)

	if status["state"] != string(StateCompleted) {
		t.Fatalf("Expected completed job, got %v (error: %v)", status["state"], status["error"])
	}
	backend, _ := status["backend"].(string)
	if !strings.HasPrefix(backend, "lanes") {
		t.Errorf("Expected a lane backend, got %q", backend)
	}
}

func TestServer_AlignJob(t *testing.T) {
	dir := t.TempDir()
	gray := color.NRGBA{R: 90, G: 90, B: 90, A: 255}

	big := solidNRGBA(60, 60, gray)
	small := solidNRGBA(40, 40, gray)

	pathBig := filepath.Join(dir, "big.png")
	pathSmall := filepath.Join(dir, "small.png")
	if err := fetch.Save(pathBig, big); err != nil {
		t.Fatalf("Failed to write big image: %v", err)
	}
	if err := fetch.Save(pathSmall, small); err != nil {
		t.Fatalf("Failed to write small image: %v", err)
	}

	_, ts := newTestServer(t)

	job := createJob(t, ts, JobConfig{
		SourceA:   pathBig,
		SourceB:   pathSmall,
		XSegments: 4,
		YSegments: 4,
		Align:     true,
		Iters:     30,
		PopSize:   20,
		Seed:      42,
	})
	status := waitForJob(t, ts, job.ID)

	if status["state"] != string(StateCompleted) {
		t.Fatalf("Expected completed align job, got %v (error: %v)", status["state"], status["error"])
	}

	// Uniform images match perfectly at every offset; the search must
	// report the origin, never something worse.
	if score := status["score"].(float64); score != 0.0 {
		t.Errorf("Expected zero score for uniform images, got %f", score)
	}
	offsetX := status["offsetX"].(float64)
	offsetY := status["offsetY"].(float64)
	if offsetX != 0 || offsetY != 0 {
		t.Errorf("Expected origin offset, got (%v, %v)", offsetX, offsetY)
	}
}

func TestServer_CreateJob_Validation(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing_sources", `{"xSegments": 4}`},
		{"missing_source_b", `{"sourceA": "a.png"}`},
		{"invalid_json", `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestServer_FailedJob(t *testing.T) {
	_, ts := newTestServer(t)

	job := createJob(t, ts, JobConfig{SourceA: "/nonexistent/a.png", SourceB: "/nonexistent/b.png"})
	status := waitForJob(t, ts, job.ID)

	if status["state"] != string(StateFailed) {
		t.Fatalf("Expected failed job, got %v", status["state"])
	}
	if errMsg, _ := status["error"].(string); errMsg == "" {
		t.Error("Expected error message on failed job")
	}
}

func TestServer_ListJobs(t *testing.T) {
	dir := t.TempDir()
	gray := color.NRGBA{R: 1, G: 2, B: 3, A: 255}
	pathA := writeTestImage(t, dir, "a.png", gray)

	_, ts := newTestServer(t)

	createJob(t, ts, JobConfig{SourceA: pathA, SourceB: pathA})
	createJob(t, ts, JobConfig{SourceA: pathA, SourceB: pathA})

	resp, err := http.Get(ts.URL + "/api/v1/jobs")
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	defer resp.Body.Close()

	var jobs []Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		t.Fatalf("Failed to decode jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestServer_StatusNotFound(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/jobs/nonexistent/status")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestServer_PreviewImages(t *testing.T) {
	dir := t.TempDir()
	pathA := writeTestImage(t, dir, "a.png", color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	pathB := writeTestImage(t, dir, "b.png", color.NRGBA{R: 10, G: 10, B: 200, A: 255})

	_, ts := newTestServer(t)

	job := createJob(t, ts, JobConfig{SourceA: pathA, SourceB: pathB, XSegments: 4, YSegments: 4})
	waitForJob(t, ts, job.ID)

	for _, name := range []string{"gridA.png", "gridB.png", "diff.png"} {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/%s", ts.URL, job.ID, name))
		if err != nil {
			t.Fatalf("Failed to get %s: %v", name, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", name, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s: expected image/png content type, got %s", name, ct)
		}
		resp.Body.Close()
	}
}

func TestServer_PreviewBeforeResults(t *testing.T) {
	srv, _ := newTestServer(t)

	// A job created directly on the manager has no grids yet
	job := srv.jobManager.CreateJob(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/gridA.png", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 before results, got %d", w.Code)
	}
}

// readSSEEvent reads lines until the next data frame and decodes it.
func readSSEEvent(t *testing.T, r *bufio.Reader) ProgressEvent {
	t.Helper()

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("Failed to read stream: %v", err)
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("Failed to decode event %q: %v", line, err)
		}
		return event
	}
}

func TestServer_StreamInitialEvent(t *testing.T) {
	srv, ts := newTestServer(t)

	job := srv.jobManager.CreateJob(testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/jobs/"+job.ID+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream content type, got %s", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Expected no-cache, got %s", cc)
	}

	// The stream opens with the job's current state
	event := readSSEEvent(t, bufio.NewReader(resp.Body))
	if event.JobID != job.ID {
		t.Errorf("Expected job ID %s, got %s", job.ID, event.JobID)
	}
	if event.State != StatePending {
		t.Errorf("Expected pending state in initial event, got %s", event.State)
	}
}

func TestServer_StreamReceivesBroadcast(t *testing.T) {
	srv, ts := newTestServer(t)

	job := srv.jobManager.CreateJob(testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/jobs/"+job.ID+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)

	// Once the initial event arrives the handler is subscribed, so a
	// broadcast from this point must reach the stream.
	readSSEEvent(t, reader)

	srv.jobManager.broadcaster.Broadcast(ProgressEvent{
		JobID:     job.ID,
		State:     StateCompleted,
		Score:     3.5,
		Timestamp: time.Now(),
	})

	event := readSSEEvent(t, reader)
	if event.State != StateCompleted {
		t.Errorf("Expected completed state, got %s", event.State)
	}
	if event.Score != 3.5 {
		t.Errorf("Expected score 3.5, got %f", event.Score)
	}
}

func TestServer_StreamNotFound(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/jobs/nonexistent/stream")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestServer_IndexPage(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected html content type, got %s", ct)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	_, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/jobs", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for preflight, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS headers on preflight response")
	}
}

func TestServer_PersistsReport(t *testing.T) {
	dir := t.TempDir()
	gray := color.NRGBA{R: 77, G: 77, B: 77, A: 255}
	pathA := writeTestImage(t, dir, "a.png", gray)

	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	srv := NewServer("127.0.0.1:0", st)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	job := createJob(t, ts, JobConfig{SourceA: pathA, SourceB: pathA, XSegments: 4, YSegments: 4})
	waitForJob(t, ts, job.ID)

	report, err := st.LoadReport(job.ID)
	if err != nil {
		t.Fatalf("Expected persisted report: %v", err)
	}
	if report.Score != 0.0 {
		t.Errorf("Expected zero score in report, got %f", report.Score)
	}
}
