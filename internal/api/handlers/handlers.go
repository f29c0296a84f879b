package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/group-consolidator/internal/api/middleware"
	infraBQ "github.com/dvloznov/group-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/group-consolidator/internal/jobs"
	"github.com/rs/zerolog"
)

// RunReader is the read side of the run repository that the API needs.
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]*infraBQ.ReconciliationRunRow, error)
	ListMismatchesForRun(ctx context.Context, runID string) ([]*infraBQ.MismatchRow, error)
}

// RunsHandler handles reconciliation-run endpoints.
type RunsHandler struct {
	repo      RunReader
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo RunReader, publisher jobs.Publisher, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		repo:      repo,
		publisher: publisher,
		log:       log,
	}
}

// EnqueueRun handles POST /api/runs. It validates the source URIs and
// enqueues an asynchronous reconciliation job.
func (h *RunsHandler) EnqueueRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LedgerURI  string `json:"ledger_uri"`
		MembersURI string `json:"members_uri"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !strings.HasPrefix(req.LedgerURI, "gs://") || !strings.HasPrefix(req.MembersURI, "gs://") {
		middleware.WriteError(w, http.StatusBadRequest, "ledger_uri and members_uri must be gs:// URIs")
		return
	}

	job := &jobs.ReconcileLedgerJob{
		LedgerURI:  req.LedgerURI,
		MembersURI: req.MembersURI,
	}

	if err := h.publisher.PublishReconcileLedger(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("ledger_uri", req.LedgerURI).Msg("Failed to enqueue reconciliation job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue reconciliation job")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"ledger_uri":  job.LedgerURI,
		"members_uri": job.MembersURI,
	})
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.repo.ListRuns(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRunMismatches handles GET /api/runs/:runId/mismatches
func (h *RunsHandler) GetRunMismatches(w http.ResponseWriter, r *http.Request, runID string) {
	ctx := r.Context()

	rows, err := h.repo.ListMismatchesForRun(ctx, runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to list mismatches")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list mismatches")
		return
	}

	type mismatchOut struct {
		Pair    string `json:"pair"`
		Revenue string `json:"revenue"`
		Expense string `json:"expense"`
		Net     string `json:"net"`
	}

	out := make([]mismatchOut, 0, len(rows))
	for _, row := range rows {
		out = append(out, mismatchOut{
			Pair:    row.PairKey,
			Revenue: row.RevenueSum.FloatString(2),
			Expense: row.ExpenseSum.FloatString(2),
			Net:     row.Net.FloatString(2),
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     runID,
		"mismatches": out,
		"count":      len(out),
	})
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := jobs.JobFilter{
		LedgerURI: r.URL.Query().Get("ledger_uri"),
		Status:    jobs.JobStatus(r.URL.Query().Get("status")),
	}

	list, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/:jobId
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}
