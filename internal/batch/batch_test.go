package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fklub/mpledger/internal/calendar"
	"github.com/fklub/mpledger/internal/money"
	"github.com/fklub/mpledger/internal/registration"
)

var regFee = money.FromMinor(20000)

func newClassifier() *registration.Classifier {
	return registration.NewClassifier(registration.DefaultKeywords, registration.DefaultMaxEditDistance, regFee)
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

// friday is an ordinary Friday; the next business day is Monday 2021-03-08.
var friday = at(2021, time.March, 5, 10, 30)

func sale(line int, amount int64, msg string, fee int64, t time.Time) Event {
	return Event{Line: line, Kind: Sale, Amount: money.FromMinor(amount), Message: msg,
		GatewayFee: money.FromMinor(fee), Time: t}
}

func refund(line int, amount int64, t time.Time) Event {
	return Event{Line: line, Kind: Refund, Amount: money.FromMinor(amount), Time: t}
}

func transfer(line int) Event {
	return Event{Line: line, Kind: Transfer}
}

func accumulate(t *testing.T, events ...Event) *Result {
	t.Helper()
	res, err := Accumulate(events, newClassifier(), calendar.NewDanishBank(), Options{RegistrationFee: regFee})
	require.NoError(t, err)
	return res
}

func TestAccumulate_EndToEnd(t *testing.T) {
	res := accumulate(t,
		sale(2, 10000, "", 200, friday),
		sale(3, 20000, "tilmeld abc", 300, friday.Add(time.Hour)),
		transfer(4),
	)

	require.Len(t, res.Batches, 1)
	b := res.Batches[0]

	assert.Equal(t, StateCommitted, b.State())
	assert.Equal(t, money.FromMinor(30000), b.TotalAmount())
	assert.Equal(t, money.FromMinor(500), b.GatewayFees())
	assert.Equal(t, 1, b.RegistrationCount())
	assert.Equal(t, money.FromMinor(20000), b.RegistrationFeeTotal())
	assert.Equal(t, money.FromMinor(10000), b.VoucherTotal())

	net, err := b.NetToBank()
	require.NoError(t, err)
	assert.Equal(t, money.FromMinor(29500), net)

	transferDate, err := b.TransferDate()
	require.NoError(t, err)
	assert.Equal(t, calendar.Date(2021, time.March, 5), transferDate)

	bankDate, err := b.BankTransferDate()
	require.NoError(t, err)
	assert.Equal(t, calendar.Date(2021, time.March, 8), bankDate)

	assert.Empty(t, res.Warnings)
	assert.Equal(t, Stats{Events: 3, Sales: 2, Transfers: 1, Registrations: 1}, res.Stats)
}

func TestAccumulate_Invariants(t *testing.T) {
	res := accumulate(t,
		sale(2, 5000, "kaffe", 100, friday),
		sale(3, 25000, "tilmelding jdoe", 350, friday),
		refund(4, 1500, friday),
		transfer(5),
		sale(6, 20000, "indmeld xyz", 300, friday.AddDate(0, 0, 3)),
		sale(7, 10000, "", 150, friday.AddDate(0, 0, 3)),
	)

	require.Len(t, res.Batches, 2)
	for _, b := range res.Batches {
		var total, fees, vouchers money.Amount
		for _, tx := range b.Transactions() {
			total = total.Add(tx.Amount())
			fees = fees.Add(tx.GatewayFee())
			vouchers = vouchers.Add(tx.VoucherAmount())
		}
		net, err := b.NetToBank()
		require.NoError(t, err)

		assert.Equal(t, total, b.TotalAmount())
		assert.Equal(t, fees, b.GatewayFees())
		assert.Equal(t, vouchers, b.VoucherTotal())
		assert.Equal(t, b.TotalAmount().Sub(b.GatewayFees()), net)
		assert.Equal(t, regFee.Mul(b.RegistrationCount()), b.RegistrationFeeTotal())
		assert.Equal(t, b.TotalAmount(), b.VoucherTotal().Add(b.RegistrationFeeTotal()))
	}

	first := res.Batches[0]
	assert.Equal(t, 3, first.Len())
	assert.Equal(t, 2, first.SaleCount())
	assert.Equal(t, 1, first.RefundCount())
	assert.Equal(t, money.FromMinor(-1500), first.Transactions()[2].Amount())
}

func TestAccumulate_Idempotent(t *testing.T) {
	events := []Event{
		sale(2, 10000, "", 200, friday),
		sale(3, 20000, "tilmeld abc", 300, friday),
		transfer(4),
		sale(5, 15000, "tilmld abc", 250, friday.AddDate(0, 0, 1)),
	}

	first := accumulate(t, events...)
	second := accumulate(t, events...)
	assert.Equal(t, first, second)
}

func TestAccumulate_NoTrailingTransfer(t *testing.T) {
	res := accumulate(t,
		sale(2, 10000, "", 200, friday),
		sale(3, 5000, "", 100, friday),
	)

	require.Len(t, res.Batches, 1)
	assert.Equal(t, StateCommitted, res.Batches[0].State())
	assert.Equal(t, 2, res.Batches[0].Len())
}

func TestAccumulate_EmptyStream(t *testing.T) {
	res := accumulate(t)
	assert.Empty(t, res.Batches)

	res = accumulate(t, transfer(2), transfer(3), Event{Line: 4, Kind: Fee, Amount: money.FromMinor(-500)})
	assert.Empty(t, res.Batches)
	assert.Equal(t, 2, res.Stats.Transfers)
	assert.Equal(t, 1, res.Stats.Fees)
}

func TestAccumulate_LeadingTransferDoesNotEmit(t *testing.T) {
	res := accumulate(t,
		transfer(2),
		sale(3, 10000, "", 200, friday),
		transfer(4),
	)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, 1, res.Batches[0].Len())
}

func TestAccumulate_FeeIgnored(t *testing.T) {
	withFee := accumulate(t,
		sale(2, 10000, "", 200, friday),
		Event{Line: 3, Kind: Fee, Amount: money.FromMinor(-9900), Time: friday},
		transfer(4),
	)
	without := accumulate(t,
		sale(2, 10000, "", 200, friday),
		transfer(4),
	)

	require.Len(t, withFee.Batches, 1)
	assert.Equal(t, without.Batches, withFee.Batches)
}

func TestAccumulate_UnknownKind(t *testing.T) {
	events := []Event{
		sale(2, 10000, "", 200, friday),
		{Line: 3, Kind: KindUnknown},
		transfer(4),
	}

	res, err := Accumulate(events, newClassifier(), calendar.NewDanishBank(), Options{RegistrationFee: regFee})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrUnknownKind)

	var evErr *EventError
	require.ErrorAs(t, err, &evErr)
	assert.Equal(t, 3, evErr.Line)
	assert.Contains(t, err.Error(), "line 3")
}

func TestAccumulate_NegativeSaleRejected(t *testing.T) {
	_, err := Accumulate([]Event{sale(7, -100, "", 0, friday)}, newClassifier(), calendar.NewDanishBank(), Options{})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestAccumulate_Warnings(t *testing.T) {
	res := accumulate(t,
		sale(2, 15000, "tilmeld jdoe", 200, friday),
		sale(3, 20000, "tilmeld mig jdoe", 300, friday),
	)

	require.Len(t, res.Warnings, 2)
	assert.Equal(t, 2, res.Warnings[0].Line)
	assert.Contains(t, res.Warnings[0].Text, "not enough money")
	assert.Equal(t, 3, res.Warnings[1].Line)
	assert.Contains(t, res.Warnings[1].String(), "line 3")

	// Underpaid registrations still count.
	assert.Equal(t, 2, res.Batches[0].RegistrationCount())
	assert.Equal(t, money.FromMinor(-5000), res.Batches[0].Transactions()[0].VoucherAmount())
}

func TestAccumulate_RefundNeverRegistration(t *testing.T) {
	ev := refund(2, 20000, friday)
	ev.Message = "tilmeld jdoe"

	res := accumulate(t, ev)
	require.Len(t, res.Batches, 1)
	tx := res.Batches[0].Transactions()[0]
	assert.False(t, tx.IsRegistration())
	assert.Equal(t, money.FromMinor(-20000), tx.VoucherAmount())
}

func TestAccumulator_FeedAfterFinish(t *testing.T) {
	acc := NewAccumulator(newClassifier(), calendar.NewDanishBank(), Options{RegistrationFee: regFee})
	require.NoError(t, acc.Feed(sale(2, 100, "", 0, friday)))

	res, err := acc.Finish()
	require.NoError(t, err)
	assert.Len(t, res.Batches, 1)

	assert.ErrorIs(t, acc.Feed(sale(3, 100, "", 0, friday)), ErrInvalidEventOrder)
	_, err = acc.Finish()
	assert.ErrorIs(t, err, ErrInvalidEventOrder)
}

// =============================================================================
// BATCH STATE MACHINE
// =============================================================================

func mustTx(t *testing.T, ev Event, isRegistration bool) Transaction {
	t.Helper()
	tx, err := NewTransaction(ev, isRegistration, regFee)
	require.NoError(t, err)
	return tx
}

func TestBatch_Lifecycle(t *testing.T) {
	b := New(regFee)
	assert.Equal(t, StateEmpty, b.State())

	_, err := b.NetToBank()
	assert.ErrorIs(t, err, ErrNotCommitted)
	assert.ErrorIs(t, b.Commit(calendar.NewDanishBank()), ErrEmptyBatch)

	require.NoError(t, b.Add(mustTx(t, sale(2, 10000, "", 100, friday), false)))
	assert.Equal(t, StateOpen, b.State())

	_, err = b.BankTransferDate()
	assert.ErrorIs(t, err, ErrNotCommitted)
	_, err = b.TransferDate()
	assert.ErrorIs(t, err, ErrNotCommitted)
	_, err = b.Settlement()
	assert.ErrorIs(t, err, ErrNotCommitted)

	require.NoError(t, b.Commit(calendar.NewDanishBank()))
	assert.Equal(t, StateCommitted, b.State())

	assert.ErrorIs(t, b.Add(mustTx(t, sale(3, 100, "", 0, friday), false)), ErrInvalidEventOrder)
	assert.ErrorIs(t, b.Commit(calendar.NewDanishBank()), ErrInvalidEventOrder)
	assert.Equal(t, 1, b.Len())

	s, err := b.Settlement()
	require.NoError(t, err)
	assert.Equal(t, money.FromMinor(9900), s.NetToBank)
	assert.Equal(t, calendar.Date(2021, time.March, 8), s.BankTransferDate)
}

func TestBatch_TransferDateFromFirstTransaction(t *testing.T) {
	b := New(regFee)
	require.NoError(t, b.Add(mustTx(t, sale(2, 100, "", 0, at(2024, time.December, 23, 22, 0)), false)))
	require.NoError(t, b.Add(mustTx(t, sale(3, 100, "", 0, at(2024, time.December, 27, 9, 0)), false)))
	require.NoError(t, b.Commit(calendar.NewDanishBank()))

	s, err := b.Settlement()
	require.NoError(t, err)
	assert.Equal(t, calendar.Date(2024, time.December, 23), s.TransferDate)
	assert.Equal(t, calendar.Date(2024, time.December, 27), s.BankTransferDate)
}

func TestBatch_TransactionsIsACopy(t *testing.T) {
	b := New(regFee)
	require.NoError(t, b.Add(mustTx(t, sale(2, 100, "", 0, friday), false)))

	txs := b.Transactions()
	txs[0] = Transaction{}
	assert.Equal(t, money.FromMinor(100), b.Transactions()[0].Amount())
}

func TestNewTransaction(t *testing.T) {
	tx := mustTx(t, sale(2, 25000, "tilmeld jdoe", -300, friday), true)
	assert.True(t, tx.IsRegistration())
	assert.Equal(t, money.FromMinor(5000), tx.VoucherAmount())
	assert.Equal(t, money.FromMinor(300), tx.GatewayFee())

	tx = mustTx(t, refund(3, -700, friday), true)
	assert.False(t, tx.IsRegistration())
	assert.Equal(t, money.FromMinor(-700), tx.Amount())

	_, err := NewTransaction(transfer(4), false, regFee)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"Sale", "refund", " FEE ", "Transfer"} {
		k, err := ParseKind(name)
		require.NoError(t, err, name)
		assert.True(t, k.Valid())
	}

	k, err := ParseKind("Chargeback")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, KindUnknown, k)
	assert.False(t, k.Valid())
	assert.Equal(t, "Kind(0)", k.String())
}
