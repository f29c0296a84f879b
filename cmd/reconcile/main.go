package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dvloznov/group-consolidator/internal/consolidate"
	"github.com/dvloznov/group-consolidator/internal/ledger"
	"github.com/dvloznov/group-consolidator/internal/logger"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	ledgerPath := flag.String("ledger", "", "Path to the group ledger CSV")
	membersPath := flag.String("members", "", "Path to the group membership list (one entity per line)")
	taggedPath := flag.String("tagged-out", "", "Optional path for the tagged audit CSV")
	tolerance := flag.Float64("tolerance", consolidate.DefaultTolerance, "Absolute tolerance for a pair's net internal balance")
	flag.Parse()

	if *ledgerPath == "" || *membersPath == "" {
		log.Fatal().Msg("Error: --ledger and --members are required")
	}

	ledgerFile, err := os.Open(*ledgerPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *ledgerPath).Msg("Cannot open ledger")
	}
	defer ledgerFile.Close()

	txs, err := ledger.ParseLedgerCSV(ledgerFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot parse ledger")
	}

	membersFile, err := os.Open(*membersPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *membersPath).Msg("Cannot open membership list")
	}
	defer membersFile.Close()

	group, err := ledger.ParseGroupMembers(membersFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot parse membership list")
	}

	log.Info().
		Int("transactions", len(txs)).
		Int("group_members", len(group)).
		Msg("Starting reconciliation")

	res, runErr := consolidate.Run(txs, group, *tolerance)

	if *taggedPath != "" {
		out, err := os.Create(*taggedPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *taggedPath).Msg("Cannot create tagged output")
		}
		if err := ledger.WriteTaggedCSV(out, res.Transactions); err != nil {
			out.Close()
			log.Fatal().Err(err).Msg("Cannot write tagged output")
		}
		if err := out.Close(); err != nil {
			log.Fatal().Err(err).Msg("Cannot close tagged output")
		}
		log.Info().Str("path", *taggedPath).Msg("Tagged transactions written")
	}

	if !res.Balanced() {
		fmt.Println("\nInternal transaction mismatches detected:")
		fmt.Printf("  %-20s %14s %14s %14s\n", "PAIR", "REVENUE", "EXPENSE", "NET")
		for _, m := range res.Mismatches {
			fmt.Printf("  %-20s %14.2f %14.2f %14.2f\n", m.Pair, m.Revenue, m.Expense, m.Net)
		}
		fmt.Println("\nConsolidation not performed; review and adjust the pairs above.")
		log.Error().Err(runErr).Int("pairs", len(res.Mismatches)).Msg("Reconciliation failed")
		os.Exit(1)
	}

	fmt.Println("\nAll internal transactions are matched.")
	fmt.Println("\nConsolidated financial summary:")
	fmt.Printf("  Revenue:    %14.2f\n", res.Summary.Revenue)
	fmt.Printf("  Expense:    %14.2f\n", res.Summary.Expense)
	fmt.Printf("  Net profit: %14.2f\n", res.Summary.Profit)
}
