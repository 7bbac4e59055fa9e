// Package report renders settlement batches as human-readable appendices: one
// PDF per batch for the bookkeeping archive, and optionally one workbook with
// every batch of a run.
package report

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/fklub/mpledger/internal/batch"
	"github.com/fklub/mpledger/internal/ledger"
	"github.com/fklub/mpledger/internal/money"
)

// maxTextLen is the number of characters of a message or payer name that
// fits in the text column.
const maxTextLen = 49

// Options configures both renderers.
type Options struct {
	// Layout selects the membership or sales appendix.
	Layout ledger.Profile

	// Title is printed at the top of every appendix.
	Title string

	// Organisation lines are printed under the voucher date.
	Organisation []string

	// VATPercent is used for the VAT figures, which are informational only.
	VATPercent int

	// RunID is stored in document metadata.
	RunID string
}

func (o Options) layout() ledger.Profile {
	if o.Layout == "" {
		return ledger.ProfileMembership
	}
	return o.Layout
}

// Row is one transaction line of an appendix.
type Row struct {
	Time time.Time

	// Text is the payer's message, or the payer's name when the message is
	// empty. Italic marks the latter.
	Text   string
	Italic bool

	Payer string

	Amount          money.Amount
	GatewayFee      money.Amount
	Voucher         money.Amount
	RegistrationFee money.Amount
	VAT             money.Amount

	IsRegistration bool
	IsRefund       bool
}

// Appendix holds everything printed for one batch.
type Appendix struct {
	Ordinal int

	// VoucherDate is the bank transfer date.
	VoucherDate time.Time
	PaymentDate time.Time

	Payments      int
	Refunds       int
	Registrations int

	GatewayFees      money.Amount
	Paid             money.Amount
	ToBank           money.Amount
	Vouchers         money.Amount
	RegistrationFees money.Amount

	// VAT is computed on the registration fees for the membership layout
	// and on the paid amount for the sales layout.
	VAT money.Amount

	Rows []Row
}

// FromBatch collects the appendix figures of a committed batch.
func FromBatch(ordinal int, b *batch.Batch, opts Options) (*Appendix, error) {
	s, err := b.Settlement()
	if err != nil {
		return nil, fmt.Errorf("appendix %d: %w", ordinal, err)
	}

	a := &Appendix{
		Ordinal:          ordinal,
		VoucherDate:      s.BankTransferDate,
		PaymentDate:      s.TransferDate,
		Payments:         b.SaleCount(),
		Refunds:          b.RefundCount(),
		Registrations:    b.RegistrationCount(),
		GatewayFees:      b.GatewayFees(),
		Paid:             b.TotalAmount(),
		ToBank:           s.NetToBank,
		Vouchers:         b.VoucherTotal(),
		RegistrationFees: b.RegistrationFeeTotal(),
	}

	if opts.layout() == ledger.ProfileSales {
		a.VAT = a.Paid.Percent(opts.VATPercent)
	} else {
		a.VAT = a.RegistrationFees.Percent(opts.VATPercent)
	}

	for _, tx := range b.Transactions() {
		row := Row{
			Time:           tx.Time(),
			Text:           tx.Message(),
			Payer:          tx.Payer(),
			Amount:         tx.Amount(),
			GatewayFee:     tx.GatewayFee(),
			Voucher:        tx.VoucherAmount(),
			VAT:            tx.Amount().Percent(opts.VATPercent),
			IsRegistration: tx.IsRegistration(),
			IsRefund:       tx.IsRefund(),
		}
		if row.IsRegistration {
			row.RegistrationFee = b.RegistrationFee()
		}
		if row.Text == "" {
			row.Text = tx.Payer()
			row.Italic = true
		}
		row.Text = truncate(row.Text, maxTextLen)
		row.Payer = truncate(row.Payer, maxTextLen)
		a.Rows = append(a.Rows, row)
	}
	return a, nil
}

// FromBatches numbers batches from firstOrdinal.
func FromBatches(firstOrdinal int, batches []*batch.Batch, opts Options) ([]*Appendix, error) {
	out := make([]*Appendix, 0, len(batches))
	for i, b := range batches {
		a, err := FromBatch(firstOrdinal+i, b, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func danishDate(t time.Time) string {
	return t.Format("02-01-2006")
}
