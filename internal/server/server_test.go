package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"isrr-engine/internal/compare"
	"isrr-engine/internal/engine"
	"isrr-engine/internal/rating"
)

func serverResult() *engine.Result {
	baseline := rating.High
	mismatchBaseline := rating.Low
	agg := compare.NewAggregates()
	agg.AddOutcome(compare.Compare(rating.High, &baseline), rating.Moderate)
	agg.AddOutcome(compare.Compare(rating.Moderate, &mismatchBaseline), rating.Moderate)

	return &engine.Result{
		RunID:      "run-1",
		StartedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Aggregates: agg,
		Records: []engine.Record{
			{EGID: "EG-1", Tier: "D3", Interim: rating.Moderate, Final: rating.High,
				Baseline: &baseline, Status: compare.StatusMatch},
			{EGID: "EG-2", Tier: "D2", Interim: rating.Moderate, Final: rating.Moderate,
				Baseline: &mismatchBaseline, Status: compare.StatusMismatch,
				Severity: "increased by 1 level"},
		},
	}
}

func doGET(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(w, req)

	var body map[string]any
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding %s response: %v", path, err)
		}
	}
	return w, body
}

func TestHealth(t *testing.T) {
	s := New(nil, nil, nil)
	w, _ := doGET(t, s, "/healthz")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func recordEGIDs(t *testing.T, body map[string]any) []string {
	t.Helper()
	records, ok := body["records"].([]any)
	if !ok {
		t.Fatalf("records missing from body: %v", body)
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.(map[string]any)["egid"].(string))
	}
	return ids
}

func TestRecordsFilterByStatus(t *testing.T) {
	s := New(serverResult(), nil, nil)
	w, body := doGET(t, s, "/api/records?status=mismatch")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	ids := recordEGIDs(t, body)
	if len(ids) != 1 || ids[0] != "EG-2" {
		t.Errorf("egids = %v", ids)
	}
}

func TestRecordsFilterByLevel(t *testing.T) {
	s := New(serverResult(), nil, nil)
	w, body := doGET(t, s, "/api/records?level=High")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	ids := recordEGIDs(t, body)
	if len(ids) != 1 || ids[0] != "EG-1" {
		t.Errorf("egids = %v", ids)
	}

	// Comma-separated multiselect, case-insensitive names.
	w, body = doGET(t, s, "/api/records?level=high,moderate")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ids := recordEGIDs(t, body); len(ids) != 2 {
		t.Errorf("egids = %v", ids)
	}
}

func TestRecordsFilterCombined(t *testing.T) {
	s := New(serverResult(), nil, nil)
	w, body := doGET(t, s, "/api/records?level=Moderate&status=match")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	// EG-1 is the only match but rates High; EG-2 rates Moderate but
	// mismatches. Both filters together keep nothing.
	if ids := recordEGIDs(t, body); len(ids) != 0 {
		t.Errorf("egids = %v", ids)
	}
}

func TestRecordsFilterRejectsUnknownValues(t *testing.T) {
	s := New(serverResult(), nil, nil)
	w, _ := doGET(t, s, "/api/records?level=Severe")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown level: status = %d, want 400", w.Code)
	}
	w, _ = doGET(t, s, "/api/records?status=partial")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown status: status = %d, want 400", w.Code)
	}
}

func TestSummary(t *testing.T) {
	s := New(serverResult(), nil, nil)
	w, body := doGET(t, s, "/api/summary")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["run_id"] != "run-1" {
		t.Errorf("run_id = %v", body["run_id"])
	}
	if body["match_rate"].(float64) != 50.0 {
		t.Errorf("match_rate = %v", body["match_rate"])
	}
	if body["total"].(float64) != 2 {
		t.Errorf("total = %v", body["total"])
	}
}

func TestSummaryWithoutRun(t *testing.T) {
	s := New(nil, nil, nil)
	w, _ := doGET(t, s, "/api/summary")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestMismatches(t *testing.T) {
	s := New(serverResult(), nil, nil)
	w, body := doGET(t, s, "/api/mismatches")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	mismatches := body["mismatches"].([]any)
	if len(mismatches) != 1 {
		t.Fatalf("mismatches = %v", mismatches)
	}
	first := mismatches[0].(map[string]any)
	if first["egid"] != "EG-2" || first["severity"] != "increased by 1 level" {
		t.Errorf("mismatch = %v", first)
	}
}

func TestDistribution(t *testing.T) {
	s := New(serverResult(), nil, nil)
	w, body := doGET(t, s, "/api/distribution")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	final := body["final"].(map[string]any)
	if final["High"].(float64) != 1 || final["Moderate"].(float64) != 1 {
		t.Errorf("final distribution = %v", final)
	}
	if final["Critical"].(float64) != 0 {
		t.Errorf("zero buckets should still be present: %v", final)
	}
}

func TestRunsWithoutStore(t *testing.T) {
	s := New(serverResult(), nil, nil)
	w, _ := doGET(t, s, "/api/runs")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(serverResult(), nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v after cancellation, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestSetResultSwapsRun(t *testing.T) {
	s := New(nil, nil, nil)
	s.SetResult(serverResult())
	w, body := doGET(t, s, "/api/summary")
	if w.Code != http.StatusOK || body["run_id"] != "run-1" {
		t.Errorf("status = %d, body = %v", w.Code, body)
	}
}
