package notionreport

import (
	"context"
	"fmt"

	"github.com/dvloznov/group-consolidator/internal/logger"
	"github.com/jomei/notionapi"
)

// RunOutcome is the terminal state of one reconciliation run, shaped for the
// reporting database. Summary figures are only present for succeeded runs.
type RunOutcome struct {
	RunID     string
	Status    string
	LedgerURI string

	MismatchCount int64

	Revenue *float64
	Expense *float64
	Profit  *float64
}

// PublishRunOutcome creates one page per run in the Notion reporting
// database. The page title is the run ID; status, source, and the
// consolidated figures (when present) become properties.
func PublishRunOutcome(ctx context.Context, svc NotionService, databaseID string, outcome RunOutcome) error {
	log := logger.FromContext(ctx)

	props := notionapi.Properties{
		"Run": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{Text: &notionapi.Text{Content: outcome.RunID}},
			},
		},
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{Name: outcome.Status},
		},
		"Ledger": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{Text: &notionapi.Text{Content: outcome.LedgerURI}},
			},
		},
		"Mismatches": notionapi.NumberProperty{
			Number: float64(outcome.MismatchCount),
		},
	}

	if outcome.Revenue != nil {
		props["Revenue"] = notionapi.NumberProperty{Number: *outcome.Revenue}
	}
	if outcome.Expense != nil {
		props["Expense"] = notionapi.NumberProperty{Number: *outcome.Expense}
	}
	if outcome.Profit != nil {
		props["Profit"] = notionapi.NumberProperty{Number: *outcome.Profit}
	}

	page, err := svc.CreatePage(ctx, databaseID, props)
	if err != nil {
		return fmt.Errorf("PublishRunOutcome: run %s: %w", outcome.RunID, err)
	}

	log.Info().
		Str("run_id", outcome.RunID).
		Str("status", outcome.Status).
		Str("page_id", string(page.ID)).
		Msg("Published run outcome to Notion")

	return nil
}
