package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fklub/mpledger/internal/batch"
	"github.com/fklub/mpledger/internal/calendar"
	"github.com/fklub/mpledger/internal/money"
	"github.com/fklub/mpledger/internal/registration"
)

var regFee = money.FromMinor(20000)

// friday settles on Monday 2021-03-08.
var friday = time.Date(2021, time.March, 5, 12, 0, 0, 0, time.UTC)

func committed(t *testing.T, events ...batch.Event) *batch.Batch {
	t.Helper()
	cls := registration.NewClassifier(registration.DefaultKeywords, 1, regFee)
	res, err := batch.Accumulate(events, cls, calendar.NewDanishBank(), batch.Options{RegistrationFee: regFee})
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)
	return res.Batches[0]
}

func sale(amount int64, msg string, fee int64) batch.Event {
	return batch.Event{Kind: batch.Sale, Amount: money.FromMinor(amount), Message: msg,
		GatewayFee: money.FromMinor(fee), Time: friday}
}

func refund(amount int64) batch.Event {
	return batch.Event{Kind: batch.Refund, Amount: money.FromMinor(amount), Time: friday}
}

func TestDerive_Membership(t *testing.T) {
	b := committed(t, sale(10000, "", 200), sale(20000, "tilmeld abc", 300))

	entries, err := NewDeriver().Derive(42, b)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	monday := calendar.Date(2021, time.March, 8)
	want := []Entry{
		{Ordinal: 42, Date: monday, Description: "MP fra 05-03", Account: "55000", Amount: money.FromMinor(29500)},
		{Ordinal: 42, Date: monday, Description: "Gavekort", Account: "63080", Amount: money.FromMinor(-10000)},
		{Ordinal: 42, Date: monday, Description: "Tilmeldingsgebyr", Account: "1000", Amount: money.FromMinor(-20000)},
		{Ordinal: 42, Date: monday, Description: "MP-gebyr", Account: "7220", Amount: money.FromMinor(500)},
	}
	assert.Equal(t, want, entries)
	assert.True(t, Sum(entries).IsZero())
}

func TestDerive_MinimalBatchHasTwoRows(t *testing.T) {
	// A single registration paying exactly the fee leaves nothing for the voucher.
	b := committed(t, sale(20000, "tilmeld abc", 300))

	entries, err := NewDeriver().Derive(1, b)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Tilmeldingsgebyr", entries[1].Description)

	b = committed(t, sale(10000, "", 100), refund(10000))
	entries, err = NewDeriver().Derive(1, b)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "MP fra 05-03", entries[0].Description)
	assert.Equal(t, "MP-gebyr", entries[1].Description)
	assert.True(t, Sum(entries).IsZero())
}

func TestDerive_VoucherPolicy(t *testing.T) {
	// Underpaid registration: voucher total is -5000.
	b := committed(t, sale(15000, "tilmeld abc", 100))

	tests := []struct {
		policy VoucherPolicy
		rows   int
	}{
		{VoucherPositive, 3},
		{VoucherNonZero, 4},
		{VoucherAlways, 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			d := NewDeriver()
			d.VoucherRows = tt.policy

			entries, err := d.Derive(1, b)
			require.NoError(t, err)
			assert.Len(t, entries, tt.rows)
		})
	}

	d := NewDeriver()
	d.VoucherRows = VoucherNonZero
	entries, err := d.Derive(1, b)
	require.NoError(t, err)
	assert.Equal(t, money.FromMinor(5000), entries[1].Amount)
	assert.True(t, Sum(entries).IsZero())
}

func TestDerive_AlwaysWritesZeroVoucherRow(t *testing.T) {
	b := committed(t, sale(20000, "tilmeld abc", 300))

	d := NewDeriver()
	d.VoucherRows = VoucherAlways
	entries, err := d.Derive(1, b)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.True(t, entries[1].Amount.IsZero())
}

func TestDerive_Sales(t *testing.T) {
	b := committed(t, sale(10000, "", 200), sale(20000, "tilmeld abc", 300))

	d := NewDeriver()
	d.Profile = ProfileSales
	d.Accounts.Sales = "1010"

	entries, err := d.Derive(7, b)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Salg via MP fra 05-03", entries[0].Description)
	assert.Equal(t, "1010", entries[1].Account)
	assert.Equal(t, money.FromMinor(-30000), entries[1].Amount)
	assert.True(t, Sum(entries).IsZero())
}

func TestDerive_UnknownProfile(t *testing.T) {
	b := committed(t, sale(100, "", 0))

	d := NewDeriver()
	d.Profile = "barter"
	_, err := d.Derive(1, b)
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestDerive_RequiresCommittedBatch(t *testing.T) {
	_, err := NewDeriver().Derive(1, batch.New(regFee))
	assert.ErrorIs(t, err, batch.ErrNotCommitted)
}

func TestDeriveAll_NumbersBatchesConsecutively(t *testing.T) {
	cls := registration.NewClassifier(registration.DefaultKeywords, 1, regFee)
	events := []batch.Event{
		sale(10000, "", 100),
		{Kind: batch.Transfer},
		sale(20000, "tilmeld abc", 200),
		{Kind: batch.Transfer},
	}
	res, err := batch.Accumulate(events, cls, calendar.NewDanishBank(), batch.Options{RegistrationFee: regFee})
	require.NoError(t, err)
	require.Len(t, res.Batches, 2)

	entries, err := NewDeriver().DeriveAll(100, res.Batches)
	require.NoError(t, err)
	require.Len(t, entries, 6)

	ordinals := make([]int, len(entries))
	for i, e := range entries {
		ordinals[i] = e.Ordinal
	}
	assert.Equal(t, []int{100, 100, 100, 101, 101, 101}, ordinals)
}
