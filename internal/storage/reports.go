package storage

import (
	"context"
	"fmt"

	"timebank/internal/core"
)

// EntryFilter narrows a report query. Zero values mean "no constraint";
// Direction is "credit", "debit" or empty.
type EntryFilter struct {
	WalletID  int64
	ClientID  int64
	DateFrom  string
	DateTo    string
	Direction string
	TagID     int64
}

// ReportEntry is a ledger entry joined with its wallet and client for
// report grouping.
type ReportEntry struct {
	Entry      core.LedgerEntry
	WalletName string
	ClientID   int64
	ClientName string
}

// ListEntriesFiltered returns the report read-path: filtered entries,
// newest reference date first.
func (q *Queries) ListEntriesFiltered(ctx context.Context, f EntryFilter) ([]ReportEntry, error) {
	query := `
		SELECT e.id, e.wallet_id, e.hours_centi, e.title, e.description, e.reference_date, e.created_at,
		       w.name, c.id, c.name
		FROM ledger_entries e
		JOIN wallets w ON w.id = e.wallet_id
		JOIN clients c ON c.id = w.client_id
		WHERE 1 = 1`
	var args []any

	if f.WalletID != 0 {
		query += ` AND e.wallet_id = ?`
		args = append(args, f.WalletID)
	}
	if f.ClientID != 0 {
		query += ` AND c.id = ?`
		args = append(args, f.ClientID)
	}
	if f.DateFrom != "" {
		query += ` AND e.reference_date >= ?`
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		query += ` AND e.reference_date <= ?`
		args = append(args, f.DateTo)
	}
	switch f.Direction {
	case "credit":
		query += ` AND e.hours_centi > 0`
	case "debit":
		query += ` AND e.hours_centi < 0`
	}
	if f.TagID != 0 {
		query += ` AND EXISTS (
			SELECT 1 FROM ledger_entry_tag lt
			WHERE lt.ledger_entry_id = e.id AND lt.tag_id = ?)`
		args = append(args, f.TagID)
	}
	query += ` ORDER BY e.reference_date DESC, e.created_at DESC, e.id DESC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select filtered entries: %w", err)
	}
	defer rows.Close()

	var result []ReportEntry
	for rows.Next() {
		var r ReportEntry
		if err := rows.Scan(&r.Entry.ID, &r.Entry.WalletID, &r.Entry.Hours.Centi, &r.Entry.Title,
			&r.Entry.Description, &r.Entry.ReferenceDate, &r.Entry.CreatedAt,
			&r.WalletName, &r.ClientID, &r.ClientName); err != nil {
			return nil, fmt.Errorf("scan report entry: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
