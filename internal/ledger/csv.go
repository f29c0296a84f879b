package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Required column headers of the input ledger. Matching is case-insensitive
// and whitespace-tolerant; extra columns are allowed and ignored.
const (
	colCompany      = "Company"
	colCounterparty = "Counterparty"
	colAccountType  = "AccountType"
	colAmount       = "Amount"
	colIsInternal   = "Is_Internal"
)

// SchemaError reports required ledger columns that are absent from the CSV
// header. It is detected before any tagging or reconciliation runs.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("ledger schema: missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ParseLedgerCSV reads a columnar ledger into transactions, preserving row
// order. The header row is mandatory and fixes the record width; rows with a
// different field count are malformed and reported as errors. A missing
// required column yields a *SchemaError naming every absent column, not just
// the first.
func ParseLedgerCSV(r io.Reader) ([]Transaction, error) {
	cr := csv.NewReader(r)

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ParseLedgerCSV: reading header: %w", err)
	}

	idx := func(name string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}

	iCompany := idx(colCompany)
	iCounterparty := idx(colCounterparty)
	iType := idx(colAccountType)
	iAmount := idx(colAmount)

	var missing []string
	for _, c := range []struct {
		name string
		i    int
	}{
		{colCompany, iCompany},
		{colCounterparty, iCounterparty},
		{colAccountType, iType},
		{colAmount, iAmount},
	} {
		if c.i < 0 {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	var txs []Transaction
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ParseLedgerCSV: reading row: %w", err)
		}
		line++

		amount, err := strconv.ParseFloat(strings.TrimSpace(rec[iAmount]), 64)
		if err != nil {
			return nil, fmt.Errorf("ParseLedgerCSV: line %d: parsing amount %q: %w", line, rec[iAmount], err)
		}

		txs = append(txs, Transaction{
			Company:      strings.TrimSpace(rec[iCompany]),
			Counterparty: strings.TrimSpace(rec[iCounterparty]),
			AccountType:  strings.TrimSpace(rec[iType]),
			Amount:       amount,
		})
	}

	return txs, nil
}

// WriteTaggedCSV writes the transactions back in the input column order plus
// the derived Is_Internal column. This artifact is for audit trails; the core
// never reads it back.
func WriteTaggedCSV(w io.Writer, txs []Transaction) error {
	cw := csv.NewWriter(w)

	header := []string{colCompany, colCounterparty, colAccountType, colAmount, colIsInternal}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("WriteTaggedCSV: writing header: %w", err)
	}

	for _, t := range txs {
		rec := []string{
			t.Company,
			t.Counterparty,
			t.AccountType,
			strconv.FormatFloat(t.Amount, 'f', -1, 64),
			strconv.FormatBool(t.IsInternal),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("WriteTaggedCSV: writing row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteTaggedCSV: flushing: %w", err)
	}
	return nil
}
