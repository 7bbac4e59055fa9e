// =============================================================================
// mpledger - Validation Engine
// =============================================================================
//
// This module audits the engine's output before anything is written to disk.
// It re-derives every batch aggregate from the batch's transactions and checks
// the journal rows derived from it:
//   - Batch level: committed, non-empty, aggregates match the transactions,
//     settlement date after the transfer date
//   - Journal level: 2-4 rows per appendix, shared date, rows balance
//
// ERROR HANDLING:
//   - Findings are collected, not returned one by one
//   - Each finding names the appendix number and the check that failed
//   - Findings are errors (nothing must be written) or warnings (written, but
//     a human should look at the appendix)
//
// =============================================================================

package validation

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fklub/mpledger/internal/batch"
	"github.com/fklub/mpledger/internal/ledger"
	"github.com/fklub/mpledger/internal/money"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// Severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is a single finding.
type ValidationError struct {
	Severity Severity

	// Appendix is the ordinal of the batch the finding is about.
	Appendix int

	// Check names the rule that was violated.
	Check string

	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] Appendix %d, %s: %s",
		strings.ToUpper(string(e.Severity)), e.Appendix, e.Check, e.Message)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains all findings, warnings included.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	BatchesValidated int
	EntriesValidated int
}

// Err returns the first fatal finding, or nil.
func (r *ValidationResult) Err() error {
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			return e
		}
	}
	return nil
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// StopOnFirstError stops validation after the first fatal error.
	StopOnFirstError bool

	// TreatWarningsAsErrors makes any warning invalidate the result.
	TreatWarningsAsErrors bool
}

// Validator audits batches and journal rows.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a Validator with default options.
func NewValidator() *Validator {
	return &Validator{}
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	return &Validator{options: options}
}

// ValidateAll audits batches numbered from firstOrdinal together with the
// journal rows derived from them.
func (v *Validator) ValidateAll(firstOrdinal int, batches []*batch.Batch, entries []ledger.Entry) *ValidationResult {
	result := &ValidationResult{
		IsValid:          true,
		BatchesValidated: len(batches),
		EntriesValidated: len(entries),
	}

	byOrdinal := make(map[int][]ledger.Entry)
	for _, e := range entries {
		byOrdinal[e.Ordinal] = append(byOrdinal[e.Ordinal], e)
	}

	for i, b := range batches {
		ordinal := firstOrdinal + i
		findings := v.ValidateBatch(ordinal, b)
		findings = append(findings, v.ValidateEntries(ordinal, b, byOrdinal[ordinal])...)
		delete(byOrdinal, ordinal)

		if v.collect(result, findings) {
			return result
		}
	}

	for ordinal := range byOrdinal {
		stray := &ValidationError{Severity: SeverityError, Appendix: ordinal, Check: "appendix",
			Message: "journal rows without a matching batch"}
		if v.collect(result, []*ValidationError{stray}) {
			return result
		}
	}

	return result
}

// collect adds findings to the result and reports whether validation should
// stop.
func (v *Validator) collect(result *ValidationResult, findings []*ValidationError) bool {
	for _, f := range findings {
		result.Errors = append(result.Errors, f)

		if f.Severity == SeverityError {
			result.ErrorCount++
			result.IsValid = false
			if v.options.StopOnFirstError {
				return true
			}
		} else {
			result.WarningCount++
			if v.options.TreatWarningsAsErrors {
				result.IsValid = false
			}
		}
	}
	return false
}

// ValidateBatch checks a committed batch against its own transactions.
func (v *Validator) ValidateBatch(ordinal int, b *batch.Batch) []*ValidationError {
	var errs []*ValidationError
	fail := func(sev Severity, check, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{Severity: sev, Appendix: ordinal, Check: check,
			Message: fmt.Sprintf(format, args...)})
	}

	s, err := b.Settlement()
	if err != nil {
		fail(SeverityError, "state", "batch is %s, not committed", b.State())
		return errs
	}
	if b.Len() == 0 {
		fail(SeverityError, "state", "committed batch has no transactions")
		return errs
	}

	var total, fees, vouchers money.Amount
	registrations := 0
	var last time.Time
	for i, tx := range b.Transactions() {
		total = total.Add(tx.Amount())
		fees = fees.Add(tx.GatewayFee())
		vouchers = vouchers.Add(tx.VoucherAmount())
		if tx.IsRegistration() {
			registrations++
		}
		if tx.GatewayFee().IsNegative() {
			fail(SeverityError, "gateway-fee", "line %d has a negative fee", tx.Line())
		}
		if i > 0 && tx.Time().Before(last) {
			fail(SeverityWarning, "order", "line %d is earlier than the transaction before it", tx.Line())
		}
		last = tx.Time()
	}

	check := func(name string, got, want money.Amount) {
		if got != want {
			fail(SeverityError, name, "batch says %s, transactions give %s", got, want)
		}
	}
	check("total", b.TotalAmount(), total)
	check("gateway-fees", b.GatewayFees(), fees)
	check("voucher-total", b.VoucherTotal(), vouchers)
	check("net-to-bank", s.NetToBank, b.TotalAmount().Sub(b.GatewayFees()))
	check("registration-fees", b.RegistrationFeeTotal(), b.RegistrationFee().Mul(registrations))
	check("split", b.VoucherTotal().Add(b.RegistrationFeeTotal()), b.TotalAmount())

	if b.RegistrationCount() != registrations {
		fail(SeverityError, "registrations", "batch counts %d, transactions give %d", b.RegistrationCount(), registrations)
	}

	if !s.BankTransferDate.After(s.TransferDate) {
		fail(SeverityError, "settlement-date", "bank transfer date %s is not after %s",
			s.BankTransferDate.Format("2006-01-02"), s.TransferDate.Format("2006-01-02"))
	}
	if wd := s.BankTransferDate.Weekday(); wd == time.Saturday || wd == time.Sunday {
		fail(SeverityError, "settlement-date", "bank transfer date %s is a %s",
			s.BankTransferDate.Format("2006-01-02"), wd)
	}

	if b.VoucherTotal().IsNegative() {
		fail(SeverityWarning, "voucher-total", "voucher total %s is negative", b.VoucherTotal())
	}
	if s.NetToBank.IsNegative() {
		fail(SeverityWarning, "net-to-bank", "net to bank %s is negative", s.NetToBank)
	}

	return errs
}

// ValidateEntries checks the journal rows of one appendix.
func (v *Validator) ValidateEntries(ordinal int, b *batch.Batch, entries []ledger.Entry) []*ValidationError {
	var errs []*ValidationError
	fail := func(sev Severity, check, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{Severity: sev, Appendix: ordinal, Check: check,
			Message: fmt.Sprintf(format, args...)})
	}

	if n := len(entries); n < 2 || n > 4 {
		fail(SeverityError, "rows", "expected 2 to 4 journal rows, got %d", n)
		return errs
	}

	s, err := b.Settlement()
	if err != nil {
		return errs
	}

	for _, e := range entries {
		if !e.Date.Equal(s.BankTransferDate) {
			fail(SeverityError, "row-date", "row %q is dated %s, expected %s",
				e.Description, e.Date.Format("2006-01-02"), s.BankTransferDate.Format("2006-01-02"))
		}
		if e.Account == "" {
			fail(SeverityError, "account", "row %q has no account", e.Description)
		}
	}

	if entries[0].Amount != s.NetToBank {
		fail(SeverityError, "bank-row", "bank row is %s, net to bank is %s", entries[0].Amount, s.NetToBank)
	}
	if sum := ledger.Sum(entries); !sum.IsZero() {
		fail(SeverityWarning, "balance", "rows sum to %s instead of zero", sum)
	}

	return errs
}

// =============================================================================
// REPORTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// WriteErrorLog writes validation errors to a log file.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.WriteString(FormatErrors(errors)); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return writer.Flush()
}
