package consolidate

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/group-consolidator/internal/ledger"
	"github.com/dvloznov/group-consolidator/internal/logger"
)

// PipelineStep is a single step of the reconciliation pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState is the shared state threaded through the steps of one run.
type PipelineState struct {
	LedgerURI  string
	MembersURI string
	Tolerance  float64

	RunID string

	LedgerBytes  []byte
	MembersBytes []byte

	Transactions []ledger.Transaction
	Group        ledger.GroupSet

	Mismatches []Mismatch
	Summary    *Summary
	TaggedURI  string

	repo    RunRepository
	storage StorageService
}

// Step 1: StartRunStep inserts the run record (status=RUNNING).
type StartRunStep struct{}

func (s *StartRunStep) Execute(ctx context.Context, state *PipelineState) error {
	runID, err := state.repo.StartRun(ctx, state.LedgerURI, state.MembersURI)
	if err != nil {
		return err
	}
	state.RunID = runID
	return nil
}

// Step 2: FetchLedgerStep fetches the raw ledger bytes from storage.
type FetchLedgerStep struct{}

func (s *FetchLedgerStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := state.storage.Fetch(ctx, state.LedgerURI)
	if err != nil {
		state.repo.MarkRunFailed(ctx, state.RunID, err)
		return err
	}
	state.LedgerBytes = data
	return nil
}

// Step 3: FetchMembersStep fetches the group membership list.
type FetchMembersStep struct{}

func (s *FetchMembersStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := state.storage.Fetch(ctx, state.MembersURI)
	if err != nil {
		state.repo.MarkRunFailed(ctx, state.RunID, err)
		return err
	}
	state.MembersBytes = data
	return nil
}

// Step 4: ParseSourcesStep parses the ledger CSV and membership list.
// Schema violations are detected here, before any computation.
type ParseSourcesStep struct{}

func (s *ParseSourcesStep) Execute(ctx context.Context, state *PipelineState) error {
	txs, err := ledger.ParseLedgerCSV(bytes.NewReader(state.LedgerBytes))
	if err != nil {
		state.repo.MarkRunFailed(ctx, state.RunID, err)
		return err
	}

	group, err := ledger.ParseGroupMembers(bytes.NewReader(state.MembersBytes))
	if err != nil {
		state.repo.MarkRunFailed(ctx, state.RunID, err)
		return err
	}

	state.Transactions = txs
	state.Group = group
	return nil
}

// Step 5: TagStep classifies every transaction as internal or external.
type TagStep struct{}

func (s *TagStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Transactions = Tag(state.Transactions, state.Group)
	return nil
}

// Step 6: CheckMismatchesStep is the gate. When any entity pair fails to net
// to zero within tolerance, the run is marked MISMATCHED with every offending
// pair recorded, and the pipeline stops before consolidation.
type CheckMismatchesStep struct{}

func (s *CheckMismatchesStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Mismatches = DetectMismatches(state.Transactions, state.Tolerance)
	if len(state.Mismatches) == 0 {
		return nil
	}

	if err := state.repo.MarkRunMismatched(ctx, state.RunID, state.Mismatches); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("run_id", state.RunID).
			Msg("Failed to record mismatches")
	}

	return fmt.Errorf("%w: %d unbalanced entity pairs", ErrUnbalanced, len(state.Mismatches))
}

// Step 7: ConsolidateStep computes the consolidated summary over external
// activity. Only reachable when the gate passed.
type ConsolidateStep struct{}

func (s *ConsolidateStep) Execute(ctx context.Context, state *PipelineState) error {
	summary := Consolidate(state.Transactions)
	state.Summary = &summary
	return nil
}

// Step 8: UploadTaggedStep writes the tagged dataset back to storage next to
// the input, for audit trails.
type UploadTaggedStep struct{}

func (s *UploadTaggedStep) Execute(ctx context.Context, state *PipelineState) error {
	var buf bytes.Buffer
	if err := ledger.WriteTaggedCSV(&buf, state.Transactions); err != nil {
		state.repo.MarkRunFailed(ctx, state.RunID, err)
		return err
	}

	uri := taggedArtifactURI(state.LedgerURI, state.RunID)
	if err := state.storage.Upload(ctx, uri, buf.Bytes()); err != nil {
		state.repo.MarkRunFailed(ctx, state.RunID, err)
		return err
	}
	state.TaggedURI = uri
	return nil
}

// Step 9: MarkSuccessStep stores the summary and flips the run to SUCCEEDED.
type MarkSuccessStep struct{}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	return state.repo.MarkRunSucceeded(ctx, state.RunID, *state.Summary, state.TaggedURI)
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewReconciliationPipeline creates the standard 9-step pipeline for
// reconciling a group ledger batch from storage.
func NewReconciliationPipeline() *Pipeline {
	return NewPipeline(
		&StartRunStep{},
		&FetchLedgerStep{},
		&FetchMembersStep{},
		&ParseSourcesStep{},
		&TagStep{},
		&CheckMismatchesStep{},
		&ConsolidateStep{},
		&UploadTaggedStep{},
		&MarkSuccessStep{},
	)
}

// ReconcileFromStorage runs the full pipeline against the given ledger and
// membership URIs using the provided collaborators. The returned state
// carries the tagged transactions, any mismatches, and the summary when the
// run succeeded.
func ReconcileFromStorage(ctx context.Context, ledgerURI, membersURI string, repo RunRepository, storage StorageService) (*PipelineState, error) {
	state := &PipelineState{
		LedgerURI:  ledgerURI,
		MembersURI: membersURI,
		Tolerance:  DefaultTolerance,
		repo:       repo,
		storage:    storage,
	}

	err := NewReconciliationPipeline().Execute(ctx, state)
	return state, err
}

// taggedArtifactURI derives the audit artifact location from the ledger URI:
// "gs://b/ledger.csv" becomes "gs://b/ledger-tagged-<run>.csv".
func taggedArtifactURI(ledgerURI, runID string) string {
	base := strings.TrimSuffix(ledgerURI, ".csv")
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-tagged-%s.csv", base, short)
}
