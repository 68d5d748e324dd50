// Package services holds the business operations on top of storage: the
// ledger store, the timer engine and the import reconciliation engine.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"timebank/internal/core"
	"timebank/internal/storage"
)

// LedgerEventPublisher receives a best-effort notification after a ledger
// entry commits. Implementations must not influence the transaction outcome.
type LedgerEventPublisher interface {
	PublishEntryRecorded(ctx context.Context, entryID, walletID int64, hours, source string) error
}

// LedgerService is the single sink of financial truth: it appends immutable
// entries and answers balance queries by summation.
type LedgerService struct {
	repo   *storage.SQLiteRepository
	events LedgerEventPublisher
	now    func() time.Time
}

func NewLedgerService(repo *storage.SQLiteRepository, events LedgerEventPublisher) *LedgerService {
	return &LedgerService{
		repo:   repo,
		events: events,
		now:    time.Now,
	}
}

// EntriesPage is one page of a wallet's ledger.
type EntriesPage struct {
	Entries    []core.LedgerEntry
	TotalCount int
	Page       int
	PerPage    int
}

// RecordCredit appends a positive entry; the quantity is treated as an
// unsigned magnitude.
func (s *LedgerService) RecordCredit(ctx context.Context, walletID int64, quantity core.Hours, in core.EntryInput) (core.LedgerEntry, error) {
	return s.record(ctx, walletID, quantity.Abs(), in, "credit")
}

// RecordDebit appends a negative entry; the quantity is treated as an
// unsigned magnitude.
func (s *LedgerService) RecordDebit(ctx context.Context, walletID int64, quantity core.Hours, in core.EntryInput) (core.LedgerEntry, error) {
	return s.record(ctx, walletID, quantity.Abs().Neg(), in, "debit")
}

// RecordAdjustment appends the caller's signed quantity verbatim. Import
// reconciliation uses this path: the sign is data from the source row, not
// a directional intent.
func (s *LedgerService) RecordAdjustment(ctx context.Context, walletID int64, quantity core.Hours, in core.EntryInput) (core.LedgerEntry, error) {
	return s.record(ctx, walletID, quantity, in, "adjustment")
}

func (s *LedgerService) record(ctx context.Context, walletID int64, hours core.Hours, in core.EntryInput, source string) (core.LedgerEntry, error) {
	if hours.IsZero() {
		return core.LedgerEntry{}, core.ErrInvalidQuantity
	}
	if _, err := s.repo.Queries().GetWallet(ctx, walletID); err != nil {
		return core.LedgerEntry{}, err
	}

	var entryID int64
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		var err error
		entryID, err = s.CreateEntryTx(ctx, q, walletID, hours, in)
		return err
	})
	if err != nil {
		return core.LedgerEntry{}, err
	}

	entry, err := s.loadEntry(ctx, entryID)
	if err != nil {
		return core.LedgerEntry{}, err
	}

	s.publishEntryRecorded(ctx, entry, source)

	slog.InfoContext(ctx, "Ledger entry recorded",
		"entry_id", entry.ID,
		"wallet_id", walletID,
		"hours", entry.Hours.String(),
		"source", source)

	return entry, nil
}

// CreateEntryTx appends one entry and its tag links inside the caller's
// transaction. The timer and import engines route their ledger writes
// through here so the entry commits together with their own status flips.
func (s *LedgerService) CreateEntryTx(ctx context.Context, q *storage.Queries, walletID int64, hours core.Hours, in core.EntryInput) (int64, error) {
	if hours.IsZero() {
		return 0, core.ErrInvalidQuantity
	}
	entryID, err := q.CreateLedgerEntry(ctx, storage.CreateLedgerEntryParams{
		WalletID:      walletID,
		HoursCenti:    hours.Centi,
		Title:         in.Title,
		Description:   in.Description,
		ReferenceDate: in.ReferenceDate,
	})
	if err != nil {
		return 0, fmt.Errorf("create ledger entry: %w", err)
	}
	for _, tagID := range in.TagIDs {
		if err := q.LinkEntryTag(ctx, entryID, tagID); err != nil {
			return 0, err
		}
	}
	return entryID, nil
}

// WalletBalance returns the algebraic sum of every entry for the wallet as
// a fixed-point string with two decimals.
func (s *LedgerService) WalletBalance(ctx context.Context, walletID int64) (string, error) {
	q := s.repo.Queries()
	if _, err := q.GetWallet(ctx, walletID); err != nil {
		return "", err
	}
	centi, err := q.SumWalletHours(ctx, walletID)
	if err != nil {
		return "", err
	}
	return core.Hours{Centi: centi}.String(), nil
}

// WalletEntries returns one page of the wallet's ledger, newest reference
// date first; creation time and id break ties for stable pagination.
func (s *LedgerService) WalletEntries(ctx context.Context, walletID int64, page, perPage int) (EntriesPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 15
	}

	q := s.repo.Queries()
	if _, err := q.GetWallet(ctx, walletID); err != nil {
		return EntriesPage{}, err
	}

	total, err := q.CountWalletEntries(ctx, walletID)
	if err != nil {
		return EntriesPage{}, err
	}
	entries, err := q.ListWalletEntries(ctx, walletID, perPage, (page-1)*perPage)
	if err != nil {
		return EntriesPage{}, err
	}
	for i := range entries {
		tags, err := q.GetEntryTags(ctx, entries[i].ID)
		if err != nil {
			return EntriesPage{}, err
		}
		entries[i].Tags = tags
	}

	return EntriesPage{
		Entries:    entries,
		TotalCount: total,
		Page:       page,
		PerPage:    perPage,
	}, nil
}

func (s *LedgerService) loadEntry(ctx context.Context, entryID int64) (core.LedgerEntry, error) {
	q := s.repo.Queries()
	entry, err := q.GetLedgerEntry(ctx, entryID)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	tags, err := q.GetEntryTags(ctx, entryID)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	entry.Tags = tags
	return entry, nil
}

func (s *LedgerService) publishEntryRecorded(ctx context.Context, entry core.LedgerEntry, source string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEntryRecorded(ctx, entry.ID, entry.WalletID, entry.Hours.String(), source); err != nil {
		// Entry is committed; losing the event is acceptable.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"entry_id", entry.ID, "error", err)
	}
}
