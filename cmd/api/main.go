package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/group-consolidator/internal/api/handlers"
	"github.com/dvloznov/group-consolidator/internal/api/middleware"
	"github.com/dvloznov/group-consolidator/internal/consolidate"
	"github.com/dvloznov/group-consolidator/internal/gcstore"
	infraBQ "github.com/dvloznov/group-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/group-consolidator/internal/jobs"
	"github.com/dvloznov/group-consolidator/internal/jobs/inmemory"
	"github.com/dvloznov/group-consolidator/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		port = flag.String("port", "8080", "HTTP server port")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	// Initialize repositories
	ctx := logger.WithContext(context.Background(), log)

	runRepo, err := infraBQ.NewRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer runRepo.Close()

	storage := gcstore.NewService()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Create job handler for processing reconciliation jobs
	jobHandler := func(ctx context.Context, job jobs.Job) error {
		reconcileJob, ok := job.(*jobs.ReconcileLedgerJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", reconcileJob.JobID).
			Str("ledger_uri", reconcileJob.LedgerURI).
			Msg("Processing reconciliation job")

		// Execute the pipeline
		state, err := consolidate.ReconcileFromStorage(ctx, reconcileJob.LedgerURI, reconcileJob.MembersURI, runRepo, storage)
		if state != nil {
			reconcileJob.RunID = state.RunID
		}
		if err != nil {
			if errors.Is(err, consolidate.ErrUnbalanced) {
				reconcileJob.Mismatched = true
				log.Warn().
					Str("job_id", reconcileJob.JobID).
					Str("run_id", reconcileJob.RunID).
					Int("pairs", len(state.Mismatches)).
					Msg("Reconciliation aborted at the mismatch gate")
				return err
			}
			log.Error().
				Err(err).
				Str("job_id", reconcileJob.JobID).
				Str("ledger_uri", reconcileJob.LedgerURI).
				Msg("Pipeline execution failed")
			return err
		}

		log.Info().
			Str("job_id", reconcileJob.JobID).
			Str("run_id", reconcileJob.RunID).
			Msg("Pipeline execution completed successfully")

		return nil
	}

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	runsHandler := handlers.NewRunsHandler(runRepo, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Runs endpoints
	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			runsHandler.ListRuns(w, r)
		case http.MethodPost:
			runsHandler.EnqueueRun(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract run ID from /api/runs/{runID}/mismatches
			rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
			runID, found := strings.CutSuffix(rest, "/mismatches")
			if !found || runID == "" {
				middleware.WriteError(w, http.StatusNotFound, "Not found")
				return
			}
			runsHandler.GetRunMismatches(w, r, runID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(mux),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
