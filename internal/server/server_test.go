package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mannyrayner/C-LARA-2/internal/testutil"
)

func newRun(t *testing.T) string {
	t.Helper()
	runDir := testutil.CreateRunDirectory(t)
	testutil.CreateTestFile(t, filepath.Join(runDir, "stages", "translation.json"), []byte(`{"l2":"en","pages":[]}`))
	testutil.CreateTestFile(t, filepath.Join(runDir, "stages", "progress.jsonl"), []byte(
		`{"stage":"translation","status":"done","timestamp":"2026-01-02T10:00:05Z"}`+"\n"+
			`{"stage":"translation","status":"start","timestamp":"2026-01-02T10:00:00Z"}`+"\n"))
	testutil.CreateTestFile(t, filepath.Join(runDir, "html", "page_1.html"), []byte("<html>page one</html>"))
	return runDir
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := New(t.TempDir(), zerolog.Nop())

	rec := get(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"status":"ok"}` {
		t.Errorf("body = %q", got)
	}
}

func TestProgress(t *testing.T) {
	s := New(newRun(t), zerolog.Nop())

	rec := get(t, s, "/api/progress")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Entries []struct {
			Stage  string `json:"stage"`
			Status string `json:"status"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(body.Entries))
	}
	if body.Entries[0].Status != "start" || body.Entries[1].Status != "done" {
		t.Errorf("entries not sorted by timestamp: %+v", body.Entries)
	}
}

func TestProgressEmptyRun(t *testing.T) {
	s := New(t.TempDir(), zerolog.Nop())

	rec := get(t, s, "/api/progress")
	if got := strings.TrimSpace(rec.Body.String()); got != `{"entries":[]}` {
		t.Errorf("body = %q", got)
	}
}

func TestStages(t *testing.T) {
	s := New(newRun(t), zerolog.Nop())

	rec := get(t, s, "/api/stages")
	if got := strings.TrimSpace(rec.Body.String()); got != `{"stages":["translation"]}` {
		t.Errorf("body = %q", got)
	}

	rec = get(t, s, "/api/stages/translation")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"l2":"en","pages":[]}` {
		t.Errorf("stage body = %q", got)
	}
}

func TestStageErrors(t *testing.T) {
	s := New(newRun(t), zerolog.Nop())

	tests := []struct {
		path string
		code int
	}{
		{"/api/stages/gloss", http.StatusNotFound},
		{"/api/stages/bogus", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := get(t, s, tt.path)
		if rec.Code != tt.code {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: content type = %q", tt.path, ct)
		}
	}
}

func TestServesCompiledHTML(t *testing.T) {
	s := New(newRun(t), zerolog.Nop())

	rec := get(t, s, "/")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/html/page_1.html" {
		t.Errorf("root redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = get(t, s, "/html/page_1.html")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "<html>page one</html>" {
		t.Errorf("page body = %q", body)
	}

	if rec := get(t, s, "/html/page_9.html"); rec.Code != http.StatusNotFound {
		t.Errorf("missing page status = %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	s := New(t.TempDir(), zerolog.Nop())

	rec := get(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing go runtime metrics")
	}
}

func TestNoRunDirectory(t *testing.T) {
	s := New(filepath.Join(os.TempDir(), "clara-missing-run-dir"), zerolog.Nop())

	if rec := get(t, s, "/api/stages"); strings.TrimSpace(rec.Body.String()) != `{"stages":[]}` {
		t.Errorf("body = %q", rec.Body.String())
	}
}
