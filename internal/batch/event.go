package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/fklub/mpledger/internal/money"
)

// =============================================================================
// EVENT KINDS
// =============================================================================

// Kind is the type of a payment-gateway event.
type Kind int

const (
	// KindUnknown is the zero value and is never accepted by the accumulator.
	KindUnknown Kind = iota

	// Sale is a payment from a customer.
	Sale

	// Refund is money returned to a customer.
	Refund

	// Fee is a gateway-level fee not tied to a single payment.
	Fee

	// Transfer marks a settlement boundary: everything before it is paid out
	// in one bank transfer.
	Transfer
)

var kindNames = map[Kind]string{
	Sale:     "Sale",
	Refund:   "Refund",
	Fee:      "Fee",
	Transfer: "Transfer",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	name := strings.TrimSpace(s)
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// =============================================================================
// EVENT
// =============================================================================

// Event is one decoded record from the gateway feed, in chronological order.
type Event struct {
	// Line is the 1-based line of the record in the source file. It is only
	// used to point at the offending record in errors and warnings.
	Line int

	Kind Kind

	// Amount is positive for sales. Refunds may be given with either sign;
	// they are always stored as negative amounts.
	Amount money.Amount

	Time time.Time

	// Message is the free-text comment from the payer.
	Message string

	// Payer is the customer name as reported by the gateway.
	Payer string

	// GatewayFee is the fee the gateway retained for this payment.
	GatewayFee money.Amount
}
