// Package server exposes a finished run over a JSON dashboard API using
// the Gin framework.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"isrr-engine/internal/compare"
	"isrr-engine/internal/engine"
	"isrr-engine/internal/rating"
	"isrr-engine/internal/store"
)

// Server holds the most recent run result and, when persistence is
// configured, a handle to historical runs.
type Server struct {
	mu     sync.RWMutex
	result *engine.Result

	store  *store.Store
	logger *slog.Logger
}

// New builds a Server. The store may be nil; historical endpoints then
// answer 503.
func New(res *engine.Result, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{result: res, store: st, logger: logger}
}

// SetResult swaps in a newer run result.
func (s *Server) SetResult(res *engine.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
}

func (s *Server) currentResult() *engine.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Router builds the Gin engine with all dashboard routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/summary", s.handleSummary)
		api.GET("/records", s.handleRecords)
		api.GET("/mismatches", s.handleMismatches)
		api.GET("/distribution", s.handleDistribution)
		api.GET("/severity", s.handleSeverity)
		api.GET("/warnings", s.handleWarnings)

		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
		api.GET("/runs/:id/mismatches", s.handleRunMismatches)
	}
	return r
}

// Run starts the HTTP server on addr and blocks until it fails or ctx
// is cancelled. Cancellation drains in-flight requests via Shutdown.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting dashboard server", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down dashboard server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// withResult answers 404 when no run has completed yet.
func (s *Server) withResult(c *gin.Context) (*engine.Result, bool) {
	res := s.currentResult()
	if res == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run available yet"})
		return nil, false
	}
	return res, true
}

func (s *Server) handleSummary(c *gin.Context) {
	res, ok := s.withResult(c)
	if !ok {
		return
	}
	agg := res.Aggregates
	c.JSON(http.StatusOK, gin.H{
		"run_id":          res.RunID,
		"started_at":      res.StartedAt,
		"duration_ms":     res.Duration.Milliseconds(),
		"total":           agg.Total,
		"matched":         agg.Matched,
		"mismatched":      agg.Mismatched,
		"no_baseline":     agg.NoBaseline,
		"failed":          agg.Failed,
		"match_rate":      agg.MatchRate(),
		"interim_changed": agg.InterimChanged,
		"warnings":        len(res.Warnings),
	})
}

// recordView is the JSON shape of one report record.
type recordView struct {
	EGID          string `json:"egid"`
	Tier          string `json:"tier"`
	NatureOfData  string `json:"nature_of_data"`
	InterimISRR   string `json:"interim_isrr"`
	FinalISRR     string `json:"final_isrr"`
	BaselineISRR  string `json:"baseline_isrr"`
	Status        string `json:"status"`
	Severity      string `json:"severity"`
	Modifier      string `json:"modifier"`
	Specificity   int    `json:"specificity"`
	Ambiguous     bool   `json:"ambiguous"`
	Failed        bool   `json:"failed"`
	FailureKind   string `json:"failure_kind,omitempty"`
	FailureDetail string `json:"failure_detail,omitempty"`
}

func toView(r engine.Record) recordView {
	v := recordView{
		EGID:          r.EGID,
		Tier:          string(r.Tier),
		NatureOfData:  r.NatureOfData,
		Status:        string(r.Status),
		Severity:      r.Severity,
		Modifier:      r.Modifier,
		Specificity:   r.Specificity,
		Ambiguous:     r.Ambiguous,
		Failed:        r.Failed,
		FailureKind:   string(r.FailureKind),
		FailureDetail: r.FailureDetail,
	}
	if !r.Failed {
		v.InterimISRR = r.Interim.String()
		v.FinalISRR = r.Final.String()
	}
	if r.Baseline != nil {
		v.BaselineISRR = r.Baseline.String()
	}
	return v
}

// recordFilter narrows the records endpoint by final ISRR level and
// match status, mirroring the dashboard's level multiselect and status
// radio.
type recordFilter struct {
	levels   map[rating.Level]bool
	statuses map[compare.Status]bool
}

func parseRecordFilter(c *gin.Context) (recordFilter, error) {
	f := recordFilter{}
	if raw := c.QueryArray("level"); len(raw) > 0 {
		f.levels = make(map[rating.Level]bool)
		for _, group := range raw {
			for _, name := range strings.Split(group, ",") {
				level, err := rating.ParseLevel(name)
				if err != nil {
					return f, err
				}
				f.levels[level] = true
			}
		}
	}
	if raw := c.QueryArray("status"); len(raw) > 0 {
		f.statuses = make(map[compare.Status]bool)
		for _, group := range raw {
			for _, name := range strings.Split(group, ",") {
				switch status := compare.Status(strings.ToLower(strings.TrimSpace(name))); status {
				case compare.StatusMatch, compare.StatusMismatch, compare.StatusNoBaseline:
					f.statuses[status] = true
				default:
					return f, fmt.Errorf("unknown status %q (want match, mismatch, or no_baseline)", name)
				}
			}
		}
	}
	return f, nil
}

func (f recordFilter) keep(r engine.Record) bool {
	if f.levels != nil && (r.Failed || !f.levels[r.Final]) {
		return false
	}
	if f.statuses != nil && !f.statuses[r.Status] {
		return false
	}
	return true
}

func (s *Server) handleRecords(c *gin.Context) {
	res, ok := s.withResult(c)
	if !ok {
		return
	}
	filter, err := parseRecordFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	views := make([]recordView, 0, len(res.Records))
	for _, r := range res.Records {
		if filter.keep(r) {
			views = append(views, toView(r))
		}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": res.RunID, "records": views})
}

func (s *Server) handleMismatches(c *gin.Context) {
	res, ok := s.withResult(c)
	if !ok {
		return
	}
	views := make([]recordView, 0)
	for _, r := range res.Records {
		if r.Status == compare.StatusMismatch {
			views = append(views, toView(r))
		}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": res.RunID, "mismatches": views})
}

func (s *Server) handleDistribution(c *gin.Context) {
	res, ok := s.withResult(c)
	if !ok {
		return
	}
	final := make(map[string]int, len(rating.Levels()))
	interim := make(map[string]int, len(rating.Levels()))
	for _, level := range rating.Levels() {
		final[level.String()] = res.Aggregates.FinalLevels[level]
		interim[level.String()] = res.Aggregates.InterimLevels[level]
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":  res.RunID,
		"final":   final,
		"interim": interim,
	})
}

func (s *Server) handleSeverity(c *gin.Context) {
	res, ok := s.withResult(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":      res.RunID,
		"severity":    res.Aggregates.Severity,
		"transitions": res.Aggregates.TopTransitions(10),
	})
}

func (s *Server) handleWarnings(c *gin.Context) {
	res, ok := s.withResult(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": res.RunID, "warnings": res.Warnings})
}

// withStore answers 503 when persistence is not configured.
func (s *Server) withStore(c *gin.Context) (*store.Store, bool) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run persistence not configured"})
		return nil, false
	}
	return s.store, true
}

func (s *Server) handleListRuns(c *gin.Context) {
	st, ok := s.withStore(c)
	if !ok {
		return
	}
	runs, err := st.ListRuns(c.Request.Context(), 0)
	if err != nil {
		s.logger.Error("failed to list runs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	st, ok := s.withStore(c)
	if !ok {
		return
	}
	run, err := st.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		s.logger.Error("failed to get run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleRunMismatches(c *gin.Context) {
	st, ok := s.withStore(c)
	if !ok {
		return
	}
	records, err := st.GetMismatches(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.Error("failed to get mismatches", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get mismatches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": c.Param("id"), "mismatches": records})
}
