package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"timebank/internal/storage"
)

// testEnv wires all services against a fresh SQLite database with one
// client and one wallet.
type testEnv struct {
	repo     *storage.SQLiteRepository
	ledger   *LedgerService
	timers   *TimerService
	imports  *ImportService
	reports  *ReportService
	tags     *TagService
	walletID int64
	clientID int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "timebank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	clientID, err := repo.Queries().CreateClient(ctx, "Acme")
	require.NoError(t, err)
	walletID, err := repo.Queries().CreateWallet(ctx, storage.CreateWalletParams{
		ClientID:     clientID,
		Name:         "Retainer",
		CurrencyCode: "EUR",
	})
	require.NoError(t, err)

	ledger := NewLedgerService(repo, nil)
	return &testEnv{
		repo:     repo,
		ledger:   ledger,
		timers:   NewTimerService(repo, ledger),
		imports:  NewImportService(repo, ledger),
		reports:  NewReportService(repo),
		tags:     NewTagService(repo),
		walletID: walletID,
		clientID: clientID,
	}
}

func (e *testEnv) entryCount(t *testing.T) int {
	t.Helper()
	n, err := e.repo.Queries().CountWalletEntries(context.Background(), e.walletID)
	require.NoError(t, err)
	return n
}
