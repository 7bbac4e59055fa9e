// =============================================================================
// mpledger - Settlement Batches
// =============================================================================
//
// A Batch groups the payments paid out in one bank transfer. It moves through
// three states:
//
//   Empty     -> no transactions yet
//   Open      -> at least one transaction; more may be added
//   Committed -> settlement dates and net amount computed; immutable
//
// Aggregates are updated as each transaction is added. Committing fills in the
// fields that need the whole batch: the transfer date (first transaction), the
// bank transfer date and the net amount paid to the bank.
//
// =============================================================================

package batch

import (
	"fmt"
	"time"

	"github.com/fklub/mpledger/internal/money"
)

// State is the lifecycle state of a batch.
type State int

const (
	StateEmpty State = iota
	StateOpen
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// BusinessCalendar computes settlement days.
type BusinessCalendar interface {
	NextBusinessDay(t time.Time) time.Time
}

// =============================================================================
// BATCH STRUCTURE
// =============================================================================

// Batch is one settlement batch.
type Batch struct {
	registrationFee money.Amount

	state        State
	transactions []Transaction

	total             money.Amount
	gatewayFees       money.Amount
	voucherTotal      money.Amount
	registrationFees  money.Amount
	registrationCount int
	sales             int
	refunds           int

	// Set on commit.
	transferDate     time.Time
	bankTransferDate time.Time
	netToBank        money.Amount
}

// New returns an empty batch. registrationFee is the fee counted once for
// every registration added to the batch.
func New(registrationFee money.Amount) *Batch {
	return &Batch{registrationFee: registrationFee}
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

// Add appends a transaction and updates the running aggregates.
func (b *Batch) Add(tx Transaction) error {
	if b.state == StateCommitted {
		return fmt.Errorf("%w: add to committed batch", ErrInvalidEventOrder)
	}

	b.transactions = append(b.transactions, tx)
	b.total = b.total.Add(tx.Amount())
	b.gatewayFees = b.gatewayFees.Add(tx.GatewayFee())
	b.voucherTotal = b.voucherTotal.Add(tx.VoucherAmount())
	if tx.IsRegistration() {
		b.registrationCount++
		b.registrationFees = b.registrationFees.Add(b.registrationFee)
	}
	if tx.IsRefund() {
		b.refunds++
	} else {
		b.sales++
	}

	b.state = StateOpen
	return nil
}

// Commit closes the batch. The transfer date is the date of the first
// transaction and the bank transfer date is the next business day after it.
func (b *Batch) Commit(cal BusinessCalendar) error {
	switch b.state {
	case StateEmpty:
		return ErrEmptyBatch
	case StateCommitted:
		return fmt.Errorf("%w: batch already committed", ErrInvalidEventOrder)
	}

	first := b.transactions[0].Time()
	y, m, d := first.Date()
	b.transferDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	b.bankTransferDate = cal.NextBusinessDay(b.transferDate)
	b.netToBank = b.total.Sub(b.gatewayFees)
	b.state = StateCommitted
	return nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

func (b *Batch) State() State { return b.state }

// Len returns the number of transactions in the batch.
func (b *Batch) Len() int { return len(b.transactions) }

// Transactions returns the transactions in the order they were added.
func (b *Batch) Transactions() []Transaction {
	out := make([]Transaction, len(b.transactions))
	copy(out, b.transactions)
	return out
}

func (b *Batch) TotalAmount() money.Amount          { return b.total }
func (b *Batch) GatewayFees() money.Amount          { return b.gatewayFees }
func (b *Batch) VoucherTotal() money.Amount         { return b.voucherTotal }
func (b *Batch) RegistrationFeeTotal() money.Amount { return b.registrationFees }
func (b *Batch) RegistrationCount() int             { return b.registrationCount }
func (b *Batch) RegistrationFee() money.Amount      { return b.registrationFee }
func (b *Batch) SaleCount() int                     { return b.sales }
func (b *Batch) RefundCount() int                   { return b.refunds }

// TransferDate is the date of the first transaction in the batch.
func (b *Batch) TransferDate() (time.Time, error) {
	if b.state != StateCommitted {
		return time.Time{}, ErrNotCommitted
	}
	return b.transferDate, nil
}

// BankTransferDate is the day the money is expected in the bank account.
func (b *Batch) BankTransferDate() (time.Time, error) {
	if b.state != StateCommitted {
		return time.Time{}, ErrNotCommitted
	}
	return b.bankTransferDate, nil
}

// NetToBank is the total amount minus gateway fees.
func (b *Batch) NetToBank() (money.Amount, error) {
	if b.state != StateCommitted {
		return 0, ErrNotCommitted
	}
	return b.netToBank, nil
}

// Settlement returns the commit-time fields of a committed batch in one call.
func (b *Batch) Settlement() (Settlement, error) {
	if b.state != StateCommitted {
		return Settlement{}, ErrNotCommitted
	}
	return Settlement{
		TransferDate:     b.transferDate,
		BankTransferDate: b.bankTransferDate,
		NetToBank:        b.netToBank,
	}, nil
}

// Settlement holds the fields computed when a batch is committed.
type Settlement struct {
	TransferDate     time.Time
	BankTransferDate time.Time
	NetToBank        money.Amount
}
