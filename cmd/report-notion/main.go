package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	infraBQ "github.com/dvloznov/group-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/group-consolidator/internal/logger"
	"github.com/dvloznov/group-consolidator/internal/notionreport"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	notionToken := flag.String("notion-token", os.Getenv("NOTION_TOKEN"), "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", "", "Notion database ID (required)")
	limit := flag.Int("limit", 20, "Number of recent runs to publish")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview pages without publishing")
	flag.Parse()

	// Validate required flags
	if *notionToken == "" && !*dryRun {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" && !*dryRun {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Int("limit", *limit).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion run report")

	// Initialize BigQuery repository
	repo, err := infraBQ.NewRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BigQuery repository")
	}
	defer repo.Close()

	runs, err := repo.ListRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}
	if len(runs) == 0 {
		fmt.Println("No runs to report.")
		return
	}

	notionClient := notionreport.NewNotionClient(*notionToken)

	published := 0
	for _, run := range runs {
		outcome := notionreport.RunOutcome{
			RunID:     run.RunID,
			Status:    run.Status,
			LedgerURI: run.LedgerURI,
		}
		if run.MismatchCount.Valid {
			outcome.MismatchCount = run.MismatchCount.Int64
		}

		// Succeeded runs carry consolidated figures.
		if run.Status == infraBQ.RunStatusSucceeded {
			summary, err := repo.GetSummaryForRun(ctx, run.RunID)
			if err != nil {
				log.Fatal().Err(err).Str("run_id", run.RunID).Msg("Failed to fetch summary")
			}
			if summary != nil {
				revenue, _ := summary.Revenue.Float64()
				expense, _ := summary.Expense.Float64()
				profit, _ := summary.Profit.Float64()
				outcome.Revenue = &revenue
				outcome.Expense = &expense
				outcome.Profit = &profit
			}
		}

		if *dryRun {
			fmt.Printf("[DRY RUN] would publish run %s (%s, %d mismatches)\n",
				outcome.RunID, outcome.Status, outcome.MismatchCount)
			continue
		}

		if err := notionreport.PublishRunOutcome(ctx, notionClient, *notionDBID, outcome); err != nil {
			log.Fatal().Err(err).Str("run_id", run.RunID).Msg("Publish failed")
		}
		published++
	}

	if !*dryRun {
		fmt.Printf("Published %d run(s) to Notion.\n", published)
	}
}
