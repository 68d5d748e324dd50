package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"timebank/internal/amqp"
	"timebank/internal/core"
	"timebank/internal/storage"
)

// AuditWorker consumes entry recorded messages and writes an audit trail of
// every booked entry together with the wallet balance it produced. The
// balance is always recomputed from the ledger, never taken from the
// message.
type AuditWorker struct {
	storage *storage.SQLiteRepository
}

func NewAuditWorker(storage *storage.SQLiteRepository) *AuditWorker {
	return &AuditWorker{storage: storage}
}

// HandleEntryRecorded processes a single entry recorded message from AMQP
func (w *AuditWorker) HandleEntryRecorded(ctx context.Context, msg *amqp.EntryRecordedMessage) error {
	entry, err := w.storage.Queries().GetLedgerEntry(ctx, msg.EntryID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// The entry was published but never committed, or the message
			// outlived the database. Drop it instead of requeueing forever.
			slog.WarnContext(ctx, "Audit message references unknown entry",
				"entry_id", msg.EntryID,
				"wallet_id", msg.WalletID)
			return nil
		}
		return fmt.Errorf("get ledger entry: %w", err)
	}

	centi, err := w.storage.Queries().SumWalletHours(ctx, entry.WalletID)
	if err != nil {
		return fmt.Errorf("sum wallet hours: %w", err)
	}
	balance := core.Hours{Centi: centi}

	slog.InfoContext(ctx, "Ledger entry audited",
		"entry_id", entry.ID,
		"wallet_id", entry.WalletID,
		"hours", entry.Hours.String(),
		"source", msg.Source,
		"reference_date", entry.ReferenceDate,
		"wallet_balance", balance.String())

	return nil
}

// AuditWallets logs the entry count and derived balance of every wallet.
// Runs at startup and on a periodic tick to catch missed messages.
func (w *AuditWorker) AuditWallets(ctx context.Context) error {
	wallets, err := w.storage.Queries().ListWallets(ctx)
	if err != nil {
		return fmt.Errorf("list wallets: %w", err)
	}

	for _, wallet := range wallets {
		centi, err := w.storage.Queries().SumWalletHours(ctx, wallet.ID)
		if err != nil {
			return fmt.Errorf("sum wallet hours (wallet=%d): %w", wallet.ID, err)
		}
		count, err := w.storage.Queries().CountWalletEntries(ctx, wallet.ID)
		if err != nil {
			return fmt.Errorf("count wallet entries (wallet=%d): %w", wallet.ID, err)
		}
		slog.InfoContext(ctx, "Wallet audit",
			"wallet_id", wallet.ID,
			"wallet_name", wallet.Name,
			"entries", count,
			"balance", core.Hours{Centi: centi}.String())
	}

	return nil
}
