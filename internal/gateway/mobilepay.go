// Package gateway decodes MobilePay MyShop exports into batch events.
//
// The export lists the newest event first. Decoding reverses it into
// chronological order and folds each Retainable row, the fee MobilePay keeps
// for a payment, into the payment that follows it.
package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fklub/mpledger/internal/batch"
	"github.com/fklub/mpledger/internal/csvparser"
	"github.com/fklub/mpledger/internal/money"
)

// Columns of the MyShop export.
const (
	ColumnEvent    = "Event"
	ColumnAmount   = "Amount"
	ColumnTime     = "Date and time"
	ColumnCustomer = "Customer name"
	ColumnComment  = "Comment"
	ColumnMerchant = "MyShop-Number"
)

var requiredColumns = []string{ColumnEvent, ColumnAmount, ColumnTime, ColumnMerchant}

// Event names used in the export.
const (
	eventPayment    = "Payment"
	eventRefund     = "Refund"
	eventRetainable = "Retainable"
	eventTransfer   = "Transfer"
	eventServiceFee = "ServiceFee"
)

var (
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing column")

	// ErrDanglingFee is returned for a Retainable row with no payment after it.
	ErrDanglingFee = errors.New("fee without a following payment")
)

// Options configures decoding.
type Options struct {
	// MerchantNumber selects the MyShop number to decode. Rows for other
	// numbers are skipped.
	MerchantNumber string

	// AmountStyle is the number format of the Amount column.
	AmountStyle money.Style

	// DateLayouts are tried in order for the "Date and time" column.
	DateLayouts []string

	// Location of the timestamps. Default: UTC.
	Location *time.Location
}

// Result is the decoded event stream.
type Result struct {
	// Events are in chronological order.
	Events []batch.Event

	// Handled counts payments, refunds and service fees for the merchant.
	Handled int

	// Skipped counts rows for other merchants.
	Skipped int
}

// Decode converts parsed export rows into events.
func Decode(data *csvparser.CSVData, opts Options) (*Result, error) {
	for _, col := range requiredColumns {
		if !data.HasHeader(col) {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}

	d := decoder{opts: opts}
	if d.opts.Location == nil {
		d.opts.Location = time.UTC
	}

	res := &Result{}
	for i := len(data.Rows) - 1; i >= 0; i-- {
		row := data.Rows[i]
		if row.Get(ColumnMerchant) != opts.MerchantNumber {
			res.Skipped++
			continue
		}

		ev, emit, err := d.row(row)
		if err != nil {
			return nil, err
		}
		if !emit {
			continue
		}
		if ev.Kind != batch.Transfer {
			res.Handled++
		}
		res.Events = append(res.Events, ev)
	}

	if d.pendingLine != 0 {
		return nil, &batch.EventError{Line: d.pendingLine, Err: ErrDanglingFee}
	}
	return res, nil
}

type decoder struct {
	opts Options

	// Fee from a Retainable row waiting for its payment.
	pendingFee  money.Amount
	pendingLine int
}

// row decodes a single row. emit is false for rows that only carry data for
// a later row.
func (d *decoder) row(row csvparser.Row) (batch.Event, bool, error) {
	name := row.Get(ColumnEvent)
	ev := batch.Event{
		Line:    row.Line,
		Message: row.Get(ColumnComment),
		Payer:   row.Get(ColumnCustomer),
	}

	switch name {
	case eventPayment:
		ev.Kind = batch.Sale
	case eventRefund:
		ev.Kind = batch.Refund
		ev.Message = ""
	case eventTransfer:
		ev.Kind = batch.Transfer
	case eventServiceFee:
		ev.Kind = batch.Fee
	case eventRetainable:
		if d.pendingLine != 0 {
			return ev, false, &batch.EventError{Line: d.pendingLine, Err: ErrDanglingFee}
		}
		fee, err := d.amount(row, true)
		if err != nil {
			return ev, false, err
		}
		d.pendingFee = fee.Abs()
		d.pendingLine = row.Line
		return ev, false, nil
	default:
		return ev, false, &batch.EventError{Line: row.Line,
			Err: fmt.Errorf("%w %q", batch.ErrUnknownKind, name)}
	}

	required := ev.Kind == batch.Sale || ev.Kind == batch.Refund
	amount, err := d.amount(row, required)
	if err != nil {
		return ev, false, err
	}
	ev.Amount = amount

	t, err := d.time(row, required)
	if err != nil {
		return ev, false, err
	}
	ev.Time = t

	if ev.Kind == batch.Sale {
		ev.GatewayFee = d.pendingFee
		d.pendingFee = 0
		d.pendingLine = 0
	}
	return ev, true, nil
}

func (d *decoder) amount(row csvparser.Row, required bool) (money.Amount, error) {
	raw := row.Get(ColumnAmount)
	if raw == "" && !required {
		return 0, nil
	}
	a, err := money.Parse(raw, d.opts.AmountStyle)
	if err != nil {
		return 0, &batch.EventError{Line: row.Line, Err: err}
	}
	return a, nil
}

func (d *decoder) time(row csvparser.Row, required bool) (time.Time, error) {
	raw := strings.TrimSpace(row.Get(ColumnTime))
	if raw == "" && !required {
		return time.Time{}, nil
	}
	for _, layout := range d.opts.DateLayouts {
		if t, err := time.ParseInLocation(layout, raw, d.opts.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &batch.EventError{Line: row.Line,
		Err: fmt.Errorf("unrecognised date and time %q", raw)}
}
