package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/group-consolidator/internal/consolidate"
	"github.com/dvloznov/group-consolidator/internal/gcstore"
	infraBQ "github.com/dvloznov/group-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/group-consolidator/internal/jobs"
	"github.com/dvloznov/group-consolidator/internal/jobs/inmemory"
	"github.com/dvloznov/group-consolidator/internal/logger"
)

// The worker drains a backlog file of ledger batches through the job queue.
// Each non-blank line is "gs://ledger.csv gs://members.txt"; lines starting
// with '#' are skipped.
func main() {
	var (
		backlogPath = flag.String("backlog", "", "Path to the backlog file of ledger batches")
		membersURI  = flag.String("members-uri", "", "Default membership URI for lines that omit one")
	)
	flag.Parse()

	log := logger.New()

	if *backlogPath == "" {
		log.Fatal().Msg("Error: --backlog is required")
	}

	batches, err := readBacklog(*backlogPath, *membersURI)
	if err != nil {
		log.Fatal().Err(err).Str("path", *backlogPath).Msg("Cannot read backlog")
	}
	if len(batches) == 0 {
		log.Info().Msg("Backlog is empty; nothing to do")
		return
	}

	ctx := logger.WithContext(context.Background(), log)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runRepo, err := infraBQ.NewRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer runRepo.Close()

	storage := gcstore.NewService()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(batches), jobStore)

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		reconcileJob, ok := job.(*jobs.ReconcileLedgerJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", reconcileJob.JobID).
			Str("ledger_uri", reconcileJob.LedgerURI).
			Msg("Processing reconciliation job")

		state, err := consolidate.ReconcileFromStorage(ctx, reconcileJob.LedgerURI, reconcileJob.MembersURI, runRepo, storage)
		if state != nil {
			reconcileJob.RunID = state.RunID
		}
		if err != nil {
			if errors.Is(err, consolidate.ErrUnbalanced) {
				reconcileJob.Mismatched = true
			}
			return err
		}
		return nil
	}

	if err := jobQueue.Start(ctx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job queue")
	}

	log.Info().Int("batches", len(batches)).Msg("Enqueuing backlog")

	for _, b := range batches {
		job := &jobs.ReconcileLedgerJob{
			LedgerURI:  b.ledgerURI,
			MembersURI: b.membersURI,
			MaxRetries: 1,
		}
		if err := jobQueue.PublishReconcileLedger(ctx, job); err != nil {
			log.Error().Err(err).Str("ledger_uri", b.ledgerURI).Msg("Failed to enqueue batch")
		}
	}

	waitForDrain(ctx, jobStore, len(batches))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	printOutcome(ctx, jobStore)
}

type batch struct {
	ledgerURI  string
	membersURI string
}

func readBacklog(path, defaultMembersURI string) ([]batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("readBacklog: %w", err)
	}
	defer f.Close()

	var batches []batch
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		b := batch{ledgerURI: fields[0], membersURI: defaultMembersURI}
		if len(fields) > 1 {
			b.membersURI = fields[1]
		}
		if !strings.HasPrefix(b.ledgerURI, "gs://") {
			return nil, fmt.Errorf("readBacklog: ledger URI %q is not a gs:// URI", b.ledgerURI)
		}
		if b.membersURI == "" {
			return nil, fmt.Errorf("readBacklog: no membership URI for %q and no --members-uri default", b.ledgerURI)
		}
		batches = append(batches, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("readBacklog: %w", err)
	}

	return batches, nil
}

// waitForDrain polls the job store until every enqueued job reaches a
// terminal status or the context is cancelled.
func waitForDrain(ctx context.Context, store jobs.JobStore, total int) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			list, err := store.ListJobs(ctx, jobs.JobFilter{})
			if err != nil {
				continue
			}
			done := 0
			for _, j := range list {
				if j.Status == jobs.JobStatusCompleted || j.Status == jobs.JobStatusFailed {
					done++
				}
			}
			if done >= total {
				return
			}
		}
	}
}

func printOutcome(ctx context.Context, store jobs.JobStore) {
	list, err := store.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		return
	}

	var completed, mismatched, failed int
	for _, j := range list {
		switch {
		case j.Status == jobs.JobStatusCompleted:
			completed++
		case j.Mismatched:
			mismatched++
		default:
			failed++
		}
	}

	fmt.Printf("\nBacklog processed: %d succeeded, %d mismatched, %d failed\n", completed, mismatched, failed)
	for _, j := range list {
		if j.Status == jobs.JobStatusCompleted {
			continue
		}
		fmt.Printf("  %s  run=%s  %s\n", j.LedgerURI, j.RunID, j.Error)
	}
}
