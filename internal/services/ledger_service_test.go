package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timebank/internal/core"
)

func hours(t *testing.T, s string) core.Hours {
	t.Helper()
	h, err := core.ParseHours(s)
	require.NoError(t, err)
	return h
}

func TestCreditDebitRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.RecordCredit(ctx, env.walletID, hours(t, "10"), core.EntryInput{Title: "Purchase"})
	require.NoError(t, err)
	_, err = env.ledger.RecordDebit(ctx, env.walletID, hours(t, "3"), core.EntryInput{Title: "Work"})
	require.NoError(t, err)

	balance, err := env.ledger.WalletBalance(ctx, env.walletID)
	require.NoError(t, err)
	assert.Equal(t, "7.00", balance)
}

func TestSignNormalization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// credit forces positive even when handed a negative magnitude
	credit, err := env.ledger.RecordCredit(ctx, env.walletID, hours(t, "-2.5"), core.EntryInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(250), credit.Hours.Centi)

	// debit forces negative
	debit, err := env.ledger.RecordDebit(ctx, env.walletID, hours(t, "1.5"), core.EntryInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(-150), debit.Hours.Centi)

	// adjustment preserves the caller's sign verbatim
	adj, err := env.ledger.RecordAdjustment(ctx, env.walletID, hours(t, "-0.75"), core.EntryInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(-75), adj.Hours.Centi)
}

func TestZeroQuantityRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, record := range []func() error{
		func() error {
			_, err := env.ledger.RecordCredit(ctx, env.walletID, core.Hours{}, core.EntryInput{})
			return err
		},
		func() error {
			_, err := env.ledger.RecordDebit(ctx, env.walletID, core.Hours{}, core.EntryInput{})
			return err
		},
		func() error {
			_, err := env.ledger.RecordAdjustment(ctx, env.walletID, core.Hours{}, core.EntryInput{})
			return err
		},
	} {
		assert.ErrorIs(t, record(), core.ErrInvalidQuantity)
	}
	assert.Zero(t, env.entryCount(t))
}

func TestBalanceIsOrderIndependentSum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quantities := []string{"0.01", "2.50", "-1.33", "100", "-0.17", "3.99"}
	var want core.Hours
	for _, qty := range quantities {
		h := hours(t, qty)
		want = want.Add(h)
		_, err := env.ledger.RecordAdjustment(ctx, env.walletID, h, core.EntryInput{})
		require.NoError(t, err)
	}

	balance, err := env.ledger.WalletBalance(ctx, env.walletID)
	require.NoError(t, err)
	assert.Equal(t, want.String(), balance)
	assert.Equal(t, "105.00", balance)
}

func TestRecordUnknownWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.RecordCredit(ctx, env.walletID+99, hours(t, "1"), core.EntryInput{})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = env.ledger.WalletBalance(ctx, env.walletID+99)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEntryTagsCommitWithEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tag, err := env.tags.Create(ctx, "billable")
	require.NoError(t, err)

	entry, err := env.ledger.RecordCredit(ctx, env.walletID, hours(t, "4"), core.EntryInput{
		Title:  "Sprint",
		TagIDs: []int64{tag.ID},
	})
	require.NoError(t, err)
	require.Len(t, entry.Tags, 1)
	assert.Equal(t, "billable", entry.Tags[0].Name)
}

func TestWalletEntriesPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dates := []string{"2026-01-01", "2026-01-03", "2026-01-02", "2026-01-05", "2026-01-04"}
	for _, d := range dates {
		_, err := env.ledger.RecordCredit(ctx, env.walletID, hours(t, "1"), core.EntryInput{ReferenceDate: d})
		require.NoError(t, err)
	}

	page, err := env.ledger.WalletEntries(ctx, env.walletID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	require.Len(t, page.Entries, 3)
	assert.Equal(t, "2026-01-05", page.Entries[0].ReferenceDate)
	assert.Equal(t, "2026-01-04", page.Entries[1].ReferenceDate)
	assert.Equal(t, "2026-01-03", page.Entries[2].ReferenceDate)

	page2, err := env.ledger.WalletEntries(ctx, env.walletID, 2, 3)
	require.NoError(t, err)
	require.Len(t, page2.Entries, 2)
	assert.Equal(t, "2026-01-02", page2.Entries[0].ReferenceDate)
	assert.Equal(t, "2026-01-01", page2.Entries[1].ReferenceDate)
}
