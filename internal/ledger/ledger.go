// Package ledger turns committed settlement batches into journal entries for
// the bookkeeping system.
//
// Every batch gets one appendix number, shared by all of its rows. The rows of
// a batch sum to zero, except when the voucher total is negative and the
// voucher policy leaves the voucher row out.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/fklub/mpledger/internal/batch"
	"github.com/fklub/mpledger/internal/money"
)

// Entry is one journal row.
type Entry struct {
	Ordinal        int
	Date           time.Time
	Description    string
	Account        string
	Amount         money.Amount
	CounterAccount string
}

// Profile selects the row layout.
type Profile string

const (
	// ProfileMembership splits payments into stored-value vouchers and
	// registration fees.
	ProfileMembership Profile = "membership"

	// ProfileSales books the whole batch as ordinary sales.
	ProfileSales Profile = "sales"
)

// VoucherPolicy decides when the voucher row is written.
type VoucherPolicy string

const (
	// VoucherPositive writes the row only when the voucher total is above zero.
	VoucherPositive VoucherPolicy = "positive"

	// VoucherNonZero writes the row whenever the voucher total is not zero,
	// including batches dominated by refunds.
	VoucherNonZero VoucherPolicy = "nonzero"

	// VoucherAlways writes the row for every batch.
	VoucherAlways VoucherPolicy = "always"
)

// ErrUnknownProfile is returned for a profile the deriver does not know.
var ErrUnknownProfile = errors.New("unknown ledger profile")

// Accounts are the account codes used in the journal.
type Accounts struct {
	Bank         string
	Voucher      string
	Registration string
	Sales        string
	GatewayFees  string
}

// DefaultAccounts are the account codes of the default chart of accounts.
var DefaultAccounts = Accounts{
	Bank:         "55000",
	Voucher:      "63080",
	Registration: "1000",
	Sales:        "1000",
	GatewayFees:  "7220",
}

// Row descriptions.
const (
	textVoucher      = "Gavekort"
	textRegistration = "Tilmeldingsgebyr"
	textSales        = "Salg"
	textGatewayFees  = "MP-gebyr"
)

// Deriver derives journal entries from committed batches.
type Deriver struct {
	Profile     Profile
	Accounts    Accounts
	VoucherRows VoucherPolicy
}

// NewDeriver returns a deriver for the membership profile with the default
// accounts.
func NewDeriver() *Deriver {
	return &Deriver{
		Profile:     ProfileMembership,
		Accounts:    DefaultAccounts,
		VoucherRows: VoucherPositive,
	}
}

// Derive returns the rows for one committed batch, all carrying ordinal.
func (d *Deriver) Derive(ordinal int, b *batch.Batch) ([]Entry, error) {
	s, err := b.Settlement()
	if err != nil {
		return nil, fmt.Errorf("appendix %d: %w", ordinal, err)
	}

	row := func(text, account string, amount money.Amount) Entry {
		return Entry{
			Ordinal:     ordinal,
			Date:        s.BankTransferDate,
			Description: text,
			Account:     account,
			Amount:      amount,
		}
	}
	transferred := s.TransferDate.Format("02-01")

	switch d.profile() {
	case ProfileMembership:
		entries := []Entry{row("MP fra "+transferred, d.Accounts.Bank, s.NetToBank)}
		if d.voucherRow(b.VoucherTotal()) {
			entries = append(entries, row(textVoucher, d.Accounts.Voucher, b.VoucherTotal().Neg()))
		}
		if b.RegistrationCount() > 0 {
			entries = append(entries, row(textRegistration, d.Accounts.Registration, b.RegistrationFeeTotal().Neg()))
		}
		return append(entries, row(textGatewayFees, d.Accounts.GatewayFees, b.GatewayFees())), nil

	case ProfileSales:
		return []Entry{
			row("Salg via MP fra "+transferred, d.Accounts.Bank, s.NetToBank),
			row(textSales, d.Accounts.Sales, b.TotalAmount().Neg()),
			row(textGatewayFees, d.Accounts.GatewayFees, b.GatewayFees()),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, d.Profile)
	}
}

// DeriveAll derives rows for consecutive batches, numbering them from
// firstOrdinal.
func (d *Deriver) DeriveAll(firstOrdinal int, batches []*batch.Batch) ([]Entry, error) {
	var entries []Entry
	for i, b := range batches {
		rows, err := d.Derive(firstOrdinal+i, b)
		if err != nil {
			return nil, err
		}
		entries = append(entries, rows...)
	}
	return entries, nil
}

func (d *Deriver) profile() Profile {
	if d.Profile == "" {
		return ProfileMembership
	}
	return d.Profile
}

func (d *Deriver) voucherRow(total money.Amount) bool {
	switch d.VoucherRows {
	case VoucherAlways:
		return true
	case VoucherNonZero:
		return !total.IsZero()
	default:
		return total.IsPositive()
	}
}

// Sum returns the signed sum of the entries.
func Sum(entries []Entry) money.Amount {
	var total money.Amount
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
