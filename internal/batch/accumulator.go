package batch

import (
	"fmt"
	"time"

	"github.com/fklub/mpledger/internal/money"
)

// Classifier decides whether a payment is a membership registration.
type Classifier interface {
	Classify(message string, amount money.Amount) (bool, []string)
}

// Options configures an Accumulator.
type Options struct {
	// RegistrationFee is subtracted from the voucher amount of every
	// registration.
	RegistrationFee money.Amount
}

// Warning is a non-fatal finding about a single payment.
type Warning struct {
	Line    int
	Time    time.Time
	Amount  money.Amount
	Message string
	Text    string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d, %s, DKK %s, %q: %s",
		w.Line, w.Time.Format("2006-01-02 15:04"), w.Amount.Format(money.Grouped), w.Message, w.Text)
}

// Stats counts the events seen by an Accumulator.
type Stats struct {
	Events        int
	Sales         int
	Refunds       int
	Fees          int
	Transfers     int
	Registrations int
}

// Result is the output of one accumulation run.
type Result struct {
	// Batches are the committed batches in input order.
	Batches  []*Batch
	Warnings []Warning
	Stats    Stats
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// Accumulator folds a chronological event stream into committed batches.
// It is not safe for concurrent use.
type Accumulator struct {
	classifier Classifier
	calendar   BusinessCalendar
	opts       Options

	current  *Batch
	result   Result
	finished bool
}

// NewAccumulator returns an accumulator with an empty current batch.
func NewAccumulator(classifier Classifier, calendar BusinessCalendar, opts Options) *Accumulator {
	return &Accumulator{
		classifier: classifier,
		calendar:   calendar,
		opts:       opts,
		current:    New(opts.RegistrationFee),
	}
}

// Feed processes one event.
//
// Sales are classified and added to the current batch. Refunds are added
// without classification. A Transfer commits the current batch and starts a
// new one, unless the current batch is still empty. Fee events are counted and
// otherwise ignored. Any other kind is an error naming the event's line.
func (a *Accumulator) Feed(ev Event) error {
	if a.finished {
		return fmt.Errorf("%w: feed after finish", ErrInvalidEventOrder)
	}
	a.result.Stats.Events++

	switch ev.Kind {
	case Sale:
		isRegistration, warnings := a.classifier.Classify(ev.Message, ev.Amount)
		for _, text := range warnings {
			a.warn(ev, text)
		}
		if err := a.add(ev, isRegistration); err != nil {
			return err
		}
		a.result.Stats.Sales++
		if isRegistration {
			a.result.Stats.Registrations++
		}

	case Refund:
		if err := a.add(ev, false); err != nil {
			return err
		}
		a.result.Stats.Refunds++

	case Transfer:
		a.result.Stats.Transfers++
		if a.current.State() == StateEmpty {
			return nil
		}
		return a.emit()

	case Fee:
		a.result.Stats.Fees++

	default:
		return &EventError{Line: ev.Line, Kind: ev.Kind, Err: ErrUnknownKind}
	}
	return nil
}

// Finish commits the open batch, if any, and returns the result. The
// accumulator cannot be fed after Finish.
func (a *Accumulator) Finish() (*Result, error) {
	if a.finished {
		return nil, fmt.Errorf("%w: finish called twice", ErrInvalidEventOrder)
	}
	a.finished = true

	if a.current.State() == StateOpen {
		if err := a.emit(); err != nil {
			return nil, err
		}
	}
	res := a.result
	return &res, nil
}

func (a *Accumulator) add(ev Event, isRegistration bool) error {
	tx, err := NewTransaction(ev, isRegistration, a.opts.RegistrationFee)
	if err != nil {
		return err
	}
	return a.current.Add(tx)
}

func (a *Accumulator) emit() error {
	if err := a.current.Commit(a.calendar); err != nil {
		return err
	}
	a.result.Batches = append(a.result.Batches, a.current)
	a.current = New(a.opts.RegistrationFee)
	return nil
}

func (a *Accumulator) warn(ev Event, text string) {
	a.result.Warnings = append(a.result.Warnings, Warning{
		Line:    ev.Line,
		Time:    ev.Time,
		Amount:  ev.Amount,
		Message: ev.Message,
		Text:    text,
	})
}

// Accumulate runs a fresh accumulator over events. On the first error no
// result is returned.
func Accumulate(events []Event, classifier Classifier, calendar BusinessCalendar, opts Options) (*Result, error) {
	acc := NewAccumulator(classifier, calendar, opts)
	for _, ev := range events {
		if err := acc.Feed(ev); err != nil {
			return nil, err
		}
	}
	return acc.Finish()
}
