package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/group-consolidator/internal/advisor"
	"github.com/dvloznov/group-consolidator/internal/consolidate"
	"github.com/dvloznov/group-consolidator/internal/gcstore"
	infraBQ "github.com/dvloznov/group-consolidator/internal/infra/bigquery"
	"github.com/dvloznov/group-consolidator/internal/logger"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "reconcile":
		runReconcile(log)
	case "runs":
		runListRuns(log)
	case "mismatches":
		runMismatches(log)
	case "annotate":
		runAnnotate(log)
	case "upload":
		runUpload(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Group Consolidator CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  reconcile   Reconcile a group ledger stored in GCS")
	fmt.Println("  runs        List recent reconciliation runs")
	fmt.Println("  mismatches  Show the unbalanced pairs recorded for a run")
	fmt.Println("  annotate    Draft Gemini audit notes for a mismatched run")
	fmt.Println("  upload      Upload a local source file to GCS")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runReconcile(log zerolog.Logger) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	ledgerURI := fs.String("ledger-uri", "", "GCS URI of the ledger CSV")
	membersURI := fs.String("members-uri", "", "GCS URI of the group membership list")
	fs.Parse(os.Args[2:])

	if *ledgerURI == "" || *membersURI == "" {
		log.Fatal().Msg("Error: --ledger-uri and --members-uri are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer repo.Close()

	log.Info().Str("ledger_uri", *ledgerURI).Msg("Starting reconciliation")

	state, err := consolidate.ReconcileFromStorage(ctx, *ledgerURI, *membersURI, repo, gcstore.NewService())
	if err != nil {
		if errors.Is(err, consolidate.ErrUnbalanced) {
			fmt.Println("\nInternal transaction mismatches detected:")
			fmt.Printf("  %-20s %14s %14s %14s\n", "PAIR", "REVENUE", "EXPENSE", "NET")
			for _, m := range state.Mismatches {
				fmt.Printf("  %-20s %14.2f %14.2f %14.2f\n", m.Pair, m.Revenue, m.Expense, m.Net)
			}
			fmt.Printf("\nConsolidation not performed; run recorded as %s.\n", state.RunID)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	fmt.Println("\nAll internal transactions are matched.")
	fmt.Println("\nConsolidated financial summary:")
	fmt.Printf("  Revenue:    %14.2f\n", state.Summary.Revenue)
	fmt.Printf("  Expense:    %14.2f\n", state.Summary.Expense)
	fmt.Printf("  Net profit: %14.2f\n", state.Summary.Profit)
	fmt.Printf("\nTagged transactions saved to: %s\n", state.TaggedURI)
}

func runListRuns(log zerolog.Logger) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Maximum number of runs to list")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	repo, err := infraBQ.NewRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer repo.Close()

	runs, err := repo.ListRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}

	fmt.Printf("\n=== Reconciliation Runs (%d) ===\n", len(runs))
	for _, run := range runs {
		fmt.Printf("\n%s\n", run.RunID)
		fmt.Printf("   Status:   %s\n", run.Status)
		fmt.Printf("   Ledger:   %s\n", run.LedgerURI)
		fmt.Printf("   Started:  %s\n", run.StartedTS.Format(time.RFC3339))
		if run.MismatchCount.Valid {
			fmt.Printf("   Mismatches: %d\n", run.MismatchCount.Int64)
		}
		if run.TaggedURI.Valid {
			fmt.Printf("   Tagged:   %s\n", run.TaggedURI.StringVal)
		}
		if run.ErrorMessage != "" {
			fmt.Printf("   Error:    %s\n", run.ErrorMessage)
		}
	}
	fmt.Println()
}

func runMismatches(log zerolog.Logger) {
	fs := flag.NewFlagSet("mismatches", flag.ExitOnError)
	runID := fs.String("run-id", "", "Run ID to inspect")
	fs.Parse(os.Args[2:])

	if *runID == "" {
		log.Fatal().Msg("Error: --run-id is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo, err := infraBQ.NewRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer repo.Close()

	rows, err := repo.ListMismatchesForRun(ctx, *runID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list mismatches")
	}

	fmt.Printf("\n=== Mismatches for run %s (%d) ===\n", *runID, len(rows))
	fmt.Printf("  %-20s %14s %14s %14s\n", "PAIR", "REVENUE", "EXPENSE", "NET")
	for _, row := range rows {
		fmt.Printf("  %-20s %14s %14s %14s\n",
			row.PairKey,
			row.RevenueSum.FloatString(2),
			row.ExpenseSum.FloatString(2),
			row.Net.FloatString(2))
	}
	fmt.Println()
}

func runAnnotate(log zerolog.Logger) {
	fs := flag.NewFlagSet("annotate", flag.ExitOnError)
	runID := fs.String("run-id", "", "Mismatched run ID to annotate")
	fs.Parse(os.Args[2:])

	if *runID == "" {
		log.Fatal().Msg("Error: --run-id is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer repo.Close()

	rows, err := repo.ListMismatchesForRun(ctx, *runID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list mismatches")
	}
	if len(rows) == 0 {
		fmt.Println("Run has no recorded mismatches; nothing to annotate.")
		return
	}

	mismatches := make([]consolidate.Mismatch, 0, len(rows))
	for _, row := range rows {
		rev, _ := row.RevenueSum.Float64()
		exp, _ := row.ExpenseSum.Float64()
		net, _ := row.Net.Float64()
		mismatches = append(mismatches, consolidate.Mismatch{
			Pair:    row.PairKey,
			Revenue: rev,
			Expense: exp,
			Net:     net,
		})
	}

	notes, err := advisor.NewGeminiAnnotator().AnnotateMismatches(ctx, mismatches)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to annotate mismatches")
	}

	fmt.Printf("\n=== Audit notes for run %s ===\n", *runID)
	for _, m := range mismatches {
		note, ok := notes[m.Pair]
		if !ok {
			note = "(no note)"
		}
		fmt.Printf("\n%s (net %.2f)\n   %s\n", m.Pair, m.Net, note)
	}
	fmt.Println()
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local source file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Cannot read source file")
	}

	uri := fmt.Sprintf("gs://%s/%s", *bucketName, *objectName)

	log.Info().
		Str("uri", uri).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcstore.NewService().Upload(ctx, uri, data); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}
