package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/group-consolidator/internal/jobs"
)

func storedJob(id, ledgerURI string, status jobs.JobStatus, createdAt time.Time) *jobs.ReconcileLedgerJob {
	return &jobs.ReconcileLedgerJob{
		JobID:      id,
		LedgerURI:  ledgerURI,
		MembersURI: "gs://bucket/members.txt",
		Status:     status,
		CreatedAt:  createdAt,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	job := storedJob("job-1", "gs://bucket/ledger.csv", jobs.JobStatusPending, time.Now())
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	got, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.LedgerURI != job.LedgerURI || got.Status != jobs.JobStatusPending {
		t.Errorf("got %+v, want saved job back", got)
	}

	// The returned value is a snapshot; mutating it must not leak into the store.
	got.Status = jobs.JobStatusFailed
	again, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if again.Status != jobs.JobStatusPending {
		t.Errorf("stored snapshot mutated through a returned copy: %v", again.Status)
	}
}

func TestStore_SaveJobRequiresID(t *testing.T) {
	store := NewStore()
	if err := store.SaveJob(context.Background(), &jobs.ReconcileLedgerJob{}); err == nil {
		t.Error("expected error for a job without an ID")
	}
}

func TestStore_GetJobNotFound(t *testing.T) {
	store := NewStore()
	if _, err := store.GetJob(context.Background(), "missing"); err == nil {
		t.Error("expected error for an unknown job ID")
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	saved := []*jobs.ReconcileLedgerJob{
		storedJob("job-1", "gs://bucket/q1.csv", jobs.JobStatusCompleted, base),
		storedJob("job-2", "gs://bucket/q2.csv", jobs.JobStatusFailed, base.Add(time.Minute)),
		storedJob("job-3", "gs://bucket/q2.csv", jobs.JobStatusCompleted, base.Add(2*time.Minute)),
	}
	for _, j := range saved {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		list, err := store.ListJobs(ctx, jobs.JobFilter{})
		if err != nil {
			t.Fatalf("ListJobs failed: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("len(list) = %d, want 3", len(list))
		}
		if list[0].JobID != "job-3" || list[2].JobID != "job-1" {
			t.Errorf("order = [%s %s %s], want newest first", list[0].JobID, list[1].JobID, list[2].JobID)
		}
	})

	t.Run("filter by ledger URI", func(t *testing.T) {
		list, err := store.ListJobs(ctx, jobs.JobFilter{LedgerURI: "gs://bucket/q2.csv"})
		if err != nil {
			t.Fatalf("ListJobs failed: %v", err)
		}
		if len(list) != 2 {
			t.Errorf("len(list) = %d, want 2", len(list))
		}
	})

	t.Run("filter by status", func(t *testing.T) {
		list, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
		if err != nil {
			t.Fatalf("ListJobs failed: %v", err)
		}
		if len(list) != 1 || list[0].JobID != "job-2" {
			t.Errorf("got %+v, want only job-2", list)
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		list, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("ListJobs failed: %v", err)
		}
		if len(list) != 1 || list[0].JobID != "job-2" {
			t.Errorf("got %+v, want the second-newest job", list)
		}
	})

	t.Run("offset past the end", func(t *testing.T) {
		list, err := store.ListJobs(ctx, jobs.JobFilter{Offset: 10})
		if err != nil {
			t.Fatalf("ListJobs failed: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("len(list) = %d, want 0", len(list))
		}
	})
}
