// =============================================================================
// mpledger - Journal Writer Module
// =============================================================================
//
// This module writes derived journal entries as a CSV file that Dinero's
// journal import ("Kassekladde") accepts.
//
// FILE LAYOUT:
//   Bilag nr.;Dato;Tekst;Konto;Beløb;Modkonto
//   123;08-03-2021;MP fra 05-03;55000;295,00;
//   123;08-03-2021;Gavekort;63080;-100,00;
//   123;08-03-2021;Tilmeldingsgebyr;1000;-200,00;
//   123;08-03-2021;MP-gebyr;7220;5,00;
//
//   - One row per entry, in the order the entries are given
//   - Dates are dd-mm-yyyy
//   - Amounts use a decimal comma and no group separator
//   - The counter account column is left empty unless an entry sets it
//
// =============================================================================

package ledgerwriter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/fklub/mpledger/internal/ledger"
	"github.com/fklub/mpledger/internal/money"
)

// Header is the first row of every journal file.
var Header = []string{"Bilag nr.", "Dato", "Tekst", "Konto", "Beløb", "Modkonto"}

// ErrNoEntries is returned when there is nothing to write.
var ErrNoEntries = errors.New("no journal entries")

// =============================================================================
// GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for journal generation.
type GenerateOptions struct {
	// Delimiter separates the columns.
	// Default: ';'
	Delimiter rune

	// DateLayout is the Go layout of the Dato column.
	// Default: "02-01-2006"
	DateLayout string

	// AmountStyle renders the Beløb column.
	// Default: money.Plain
	AmountStyle money.Style

	// UseCRLF ends rows with \r\n.
	// Default: true
	UseCRLF bool
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Delimiter:   ';',
		DateLayout:  "02-01-2006",
		AmountStyle: money.Plain,
		UseCRLF:     true,
	}
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate renders entries with the default options.
func Generate(entries []ledger.Entry) ([]byte, error) {
	return GenerateWithOptions(entries, DefaultGenerateOptions())
}

// GenerateWithOptions renders entries as a journal CSV.
func GenerateWithOptions(entries []ledger.Entry, options GenerateOptions) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	if options.Delimiter == 0 {
		options.Delimiter = ';'
	}
	if !validDelimiter(options.Delimiter) {
		return nil, fmt.Errorf("invalid delimiter %q", options.Delimiter)
	}
	if options.DateLayout == "" {
		options.DateLayout = "02-01-2006"
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = options.Delimiter
	w.UseCRLF = options.UseCRLF

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range entries {
		if err := w.Write(record(e, options)); err != nil {
			return nil, fmt.Errorf("failed to write appendix %d: %w", e.Ordinal, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush journal: %w", err)
	}
	return buf.Bytes(), nil
}

func record(e ledger.Entry, options GenerateOptions) []string {
	return []string{
		strconv.Itoa(e.Ordinal),
		e.Date.Format(options.DateLayout),
		e.Description,
		e.Account,
		e.Amount.Format(options.AmountStyle),
		e.CounterAccount,
	}
}

func validDelimiter(r rune) bool {
	return r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}

// WriteFile renders entries and writes them to path.
func WriteFile(path string, entries []ledger.Entry, options GenerateOptions) error {
	data, err := GenerateWithOptions(entries, options)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write journal %s: %w", path, err)
	}
	return nil
}
