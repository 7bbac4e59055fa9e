package batch

import (
	"fmt"
	"time"

	"github.com/fklub/mpledger/internal/money"
)

// Transaction is a sale or refund belonging to one settlement batch.
//
// The registration decision and the voucher amount are fixed when the
// transaction is built and cannot change afterwards.
type Transaction struct {
	line       int
	kind       Kind
	amount     money.Amount
	time       time.Time
	message    string
	payer      string
	gatewayFee money.Amount

	isRegistration bool
	voucher        money.Amount
}

// NewTransaction builds a transaction from a sale or refund event.
//
// isRegistration is the classifier's decision for the event; it is ignored for
// refunds, which are never registrations. For a registration the voucher
// amount is the payment minus registrationFee.
func NewTransaction(ev Event, isRegistration bool, registrationFee money.Amount) (Transaction, error) {
	amount := ev.Amount
	switch ev.Kind {
	case Sale:
		if amount.IsNegative() {
			return Transaction{}, &EventError{Line: ev.Line, Kind: ev.Kind,
				Err: fmt.Errorf("%w: sale with negative amount %s", ErrInvalidEvent, amount)}
		}
	case Refund:
		amount = amount.Abs().Neg()
		isRegistration = false
	default:
		return Transaction{}, &EventError{Line: ev.Line, Kind: ev.Kind,
			Err: fmt.Errorf("%w: %s cannot become a transaction", ErrInvalidEvent, ev.Kind)}
	}

	voucher := amount
	if isRegistration {
		voucher = amount.Sub(registrationFee)
	}

	return Transaction{
		line:           ev.Line,
		kind:           ev.Kind,
		amount:         amount,
		time:           ev.Time,
		message:        ev.Message,
		payer:          ev.Payer,
		gatewayFee:     ev.GatewayFee.Abs(),
		isRegistration: isRegistration,
		voucher:        voucher,
	}, nil
}

func (t Transaction) Line() int                { return t.line }
func (t Transaction) Kind() Kind               { return t.kind }
func (t Transaction) Amount() money.Amount     { return t.amount }
func (t Transaction) Time() time.Time          { return t.time }
func (t Transaction) Message() string          { return t.message }
func (t Transaction) Payer() string            { return t.payer }
func (t Transaction) GatewayFee() money.Amount { return t.gatewayFee }
func (t Transaction) IsRegistration() bool     { return t.isRegistration }

// VoucherAmount is the part of the payment credited to the payer's
// stored-value balance.
func (t Transaction) VoucherAmount() money.Amount { return t.voucher }

// IsRefund reports whether the transaction is a refund.
func (t Transaction) IsRefund() bool { return t.kind == Refund }
