package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/stackfuse/pkg/jobs"
	"github.com/matzehuels/stackfuse/pkg/pipeline"
	"github.com/matzehuels/stackfuse/pkg/resolve"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	base := pipeline.Options{
		Solvers: []resolve.Solver{resolve.NewNaiveSolver()},
	}
	return New(pipeline.NewRunner(nil, nil, nil), base, nil)
}

func writeRepo(t *testing.T, requirements string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "requirements.txt"), []byte(requirements), 0644); err != nil {
		t.Fatal(err)
	}
	return root
}

func submitBody(t *testing.T, repos map[string]string) *bytes.Buffer {
	t.Helper()
	req := resolutionRequest{}
	for id, root := range repos {
		req.Repos = append(req.Repos, repoRef{ID: id, Root: root})
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewBuffer(data)
}

func TestSubmitAndPoll(t *testing.T) {
	srv := testServer(t)
	handler := srv.Routes()

	body := submitBody(t, map[string]string{
		"api": writeRepo(t, "requests>=2.28\n"),
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/resolutions", body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}

	var submitted struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatal(err)
	}
	if submitted.ID == "" {
		t.Fatal("submission must return a request id")
	}

	var job jobs.Job
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resolutions/"+submitted.ID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("poll status = %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatal(err)
		}
		if job.State == jobs.StateDone || job.State == jobs.StateFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in state %v", job.State)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if job.State != jobs.StateDone {
		t.Fatalf("job = %+v", job)
	}
	if job.Result == nil || !job.Result.Success || job.Result.SolverUsed != resolve.SolverNaive {
		t.Errorf("result = %+v", job.Result)
	}
}

func TestSubmitInvalidBody(t *testing.T) {
	handler := testServer(t).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/resolutions", bytes.NewBufferString("{nope")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/resolutions", bytes.NewBufferString("{}")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty repo list status = %d, want 400", rec.Code)
	}
}

func TestStatusUnknownID(t *testing.T) {
	handler := testServer(t).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resolutions/no-such-id", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["code"] != "REQUEST_NOT_FOUND" {
		t.Errorf("body = %v", body)
	}
}

func TestCompatEndpoint(t *testing.T) {
	handler := testServer(t).Routes()

	body := submitBody(t, map[string]string{
		"api":    writeRepo(t, "numpy>=2.0\n"),
		"worker": writeRepo(t, "numpy>=1.24,<1.26\n"),
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/compat", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var matrix struct {
		OverallCompatible bool `json:"OverallCompatible"`
		Pairs             []struct {
			Compatible bool
		}
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &matrix); err != nil {
		t.Fatal(err)
	}
	if matrix.OverallCompatible || len(matrix.Pairs) != 1 {
		t.Errorf("matrix = %+v", matrix)
	}
}

func TestList(t *testing.T) {
	srv := testServer(t)
	handler := srv.Routes()

	for i := 0; i < 3; i++ {
		body := submitBody(t, map[string]string{
			fmt.Sprintf("repo-%d", i): writeRepo(t, "flask>=3.0\n"),
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/resolutions", body))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("submit %d failed: %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resolutions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var listed []jobs.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 3 {
		t.Errorf("listed %d jobs, want 3", len(listed))
	}
}

func TestHealth(t *testing.T) {
	handler := testServer(t).Routes()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
