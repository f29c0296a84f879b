package consolidate_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/group-consolidator/internal/consolidate"
)

// MockRunRepository is a mock implementation of RunRepository for testing.
type MockRunRepository struct {
	StartRunFunc          func(ctx context.Context, ledgerURI, membersURI string) (string, error)
	MarkRunFailedFunc     func(ctx context.Context, runID string, runErr error)
	MarkRunMismatchedFunc func(ctx context.Context, runID string, mismatches []consolidate.Mismatch) error
	MarkRunSucceededFunc  func(ctx context.Context, runID string, summary consolidate.Summary, taggedURI string) error
}

func (m *MockRunRepository) StartRun(ctx context.Context, ledgerURI, membersURI string) (string, error) {
	if m.StartRunFunc != nil {
		return m.StartRunFunc(ctx, ledgerURI, membersURI)
	}
	return "test-run-id", nil
}

func (m *MockRunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	if m.MarkRunFailedFunc != nil {
		m.MarkRunFailedFunc(ctx, runID, runErr)
	}
}

func (m *MockRunRepository) MarkRunMismatched(ctx context.Context, runID string, mismatches []consolidate.Mismatch) error {
	if m.MarkRunMismatchedFunc != nil {
		return m.MarkRunMismatchedFunc(ctx, runID, mismatches)
	}
	return nil
}

func (m *MockRunRepository) MarkRunSucceeded(ctx context.Context, runID string, summary consolidate.Summary, taggedURI string) error {
	if m.MarkRunSucceededFunc != nil {
		return m.MarkRunSucceededFunc(ctx, runID, summary, taggedURI)
	}
	return nil
}

// MockStorageService is a mock implementation of StorageService for testing.
type MockStorageService struct {
	FetchFunc  func(ctx context.Context, uri string) ([]byte, error)
	UploadFunc func(ctx context.Context, uri string, data []byte) error
}

func (m *MockStorageService) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, uri)
	}
	return nil, nil
}

func (m *MockStorageService) Upload(ctx context.Context, uri string, data []byte) error {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, uri, data)
	}
	return nil
}

const (
	testLedgerURI  = "gs://test-bucket/ledger.csv"
	testMembersURI = "gs://test-bucket/members.txt"
)

const balancedLedgerCSV = `Company,Counterparty,AccountType,Amount
A,B,Revenue,100
B,A,Expense,-100
A,X,Revenue,50
A,X,Expense,-20
`

const unbalancedLedgerCSV = `Company,Counterparty,AccountType,Amount
A,B,Revenue,100
B,A,Expense,-90
`

const membersList = "A\nB\n"

func sourcesStorage(t *testing.T, ledgerCSV string) *MockStorageService {
	t.Helper()
	return &MockStorageService{
		FetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
			switch uri {
			case testLedgerURI:
				return []byte(ledgerCSV), nil
			case testMembersURI:
				return []byte(membersList), nil
			default:
				return nil, errors.New("unexpected URI: " + uri)
			}
		},
	}
}

func TestReconcileFromStorage_Success(t *testing.T) {
	var succeededRunID, succeededTaggedURI string
	var succeededSummary consolidate.Summary
	var uploadedURI string
	var uploadedData []byte

	repo := &MockRunRepository{
		MarkRunSucceededFunc: func(ctx context.Context, runID string, summary consolidate.Summary, taggedURI string) error {
			succeededRunID = runID
			succeededSummary = summary
			succeededTaggedURI = taggedURI
			return nil
		},
		MarkRunMismatchedFunc: func(ctx context.Context, runID string, mismatches []consolidate.Mismatch) error {
			t.Error("MarkRunMismatched must not be called on a balanced batch")
			return nil
		},
	}

	storage := sourcesStorage(t, balancedLedgerCSV)
	storage.UploadFunc = func(ctx context.Context, uri string, data []byte) error {
		uploadedURI = uri
		uploadedData = data
		return nil
	}

	state, err := consolidate.ReconcileFromStorage(context.Background(), testLedgerURI, testMembersURI, repo, storage)
	if err != nil {
		t.Fatalf("ReconcileFromStorage failed: %v", err)
	}

	if succeededRunID != "test-run-id" {
		t.Errorf("succeeded run ID = %q, want %q", succeededRunID, "test-run-id")
	}
	if succeededSummary.Revenue != 50 || succeededSummary.Expense != -20 || succeededSummary.Profit != 30 {
		t.Errorf("summary = %+v, want {50 -20 30}", succeededSummary)
	}

	wantTagged := "gs://test-bucket/ledger-tagged-test-run.csv"
	if succeededTaggedURI != wantTagged {
		t.Errorf("tagged URI = %q, want %q", succeededTaggedURI, wantTagged)
	}
	if uploadedURI != wantTagged {
		t.Errorf("uploaded URI = %q, want %q", uploadedURI, wantTagged)
	}
	if !strings.Contains(string(uploadedData), "Is_Internal") {
		t.Error("tagged artifact should carry the Is_Internal column")
	}

	if state.Summary == nil || state.Summary.Profit != 30 {
		t.Errorf("state summary = %+v, want profit 30", state.Summary)
	}
}

func TestReconcileFromStorage_MismatchGate(t *testing.T) {
	var recordedMismatches []consolidate.Mismatch

	repo := &MockRunRepository{
		MarkRunMismatchedFunc: func(ctx context.Context, runID string, mismatches []consolidate.Mismatch) error {
			recordedMismatches = mismatches
			return nil
		},
		MarkRunSucceededFunc: func(ctx context.Context, runID string, summary consolidate.Summary, taggedURI string) error {
			t.Error("MarkRunSucceeded must not be called on an unbalanced batch")
			return nil
		},
	}

	storage := sourcesStorage(t, unbalancedLedgerCSV)
	storage.UploadFunc = func(ctx context.Context, uri string, data []byte) error {
		t.Error("no artifact may be uploaded for an unbalanced batch")
		return nil
	}

	state, err := consolidate.ReconcileFromStorage(context.Background(), testLedgerURI, testMembersURI, repo, storage)
	if err == nil {
		t.Fatal("expected error for unbalanced batch")
	}
	if !errors.Is(err, consolidate.ErrUnbalanced) {
		t.Errorf("error should wrap ErrUnbalanced, got: %v", err)
	}

	if len(recordedMismatches) != 1 {
		t.Fatalf("expected one recorded mismatch, got %d", len(recordedMismatches))
	}
	if recordedMismatches[0].Pair != "A|B" || recordedMismatches[0].Net != 10 {
		t.Errorf("recorded mismatch = %+v, want pair A|B net 10", recordedMismatches[0])
	}

	if state.Summary != nil {
		t.Error("state must carry no summary after the gate fired")
	}
}

func TestReconcileFromStorage_FetchFailure(t *testing.T) {
	var failedRunID string
	fetchErr := errors.New("object not found")

	repo := &MockRunRepository{
		MarkRunFailedFunc: func(ctx context.Context, runID string, runErr error) {
			failedRunID = runID
		},
	}

	storage := &MockStorageService{
		FetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
			return nil, fetchErr
		},
	}

	_, err := consolidate.ReconcileFromStorage(context.Background(), testLedgerURI, testMembersURI, repo, storage)
	if err == nil {
		t.Fatal("expected error when the ledger cannot be fetched")
	}
	if !errors.Is(err, fetchErr) {
		t.Errorf("error should wrap the fetch error, got: %v", err)
	}
	if failedRunID != "test-run-id" {
		t.Errorf("run %q not marked failed", failedRunID)
	}
}

func TestReconcileFromStorage_SchemaFailure(t *testing.T) {
	var markedFailed bool

	repo := &MockRunRepository{
		MarkRunFailedFunc: func(ctx context.Context, runID string, runErr error) {
			markedFailed = true
		},
	}

	storage := sourcesStorage(t, "Company,Amount\nA,100\n")

	_, err := consolidate.ReconcileFromStorage(context.Background(), testLedgerURI, testMembersURI, repo, storage)
	if err == nil {
		t.Fatal("expected error for a ledger missing required columns")
	}
	if !markedFailed {
		t.Error("run must be marked failed on a schema error")
	}
}
