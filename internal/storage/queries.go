package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"timebank/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every query can run
// standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// --- clients and wallets ---

func (q *Queries) CreateClient(ctx context.Context, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO clients (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("insert client: %w", err)
	}
	return res.LastInsertId()
}

type CreateWalletParams struct {
	ClientID        int64
	Name            string
	Description     string
	HourlyRateCents int64
	CurrencyCode    string
}

func (q *Queries) CreateWallet(ctx context.Context, p CreateWalletParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO wallets (client_id, name, description, hourly_rate_cents, currency_code)
		VALUES (?, ?, ?, ?, ?)`,
		p.ClientID, p.Name, p.Description, p.HourlyRateCents, p.CurrencyCode)
	if err != nil {
		return 0, fmt.Errorf("insert wallet: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetWallet(ctx context.Context, id int64) (core.Wallet, error) {
	var w core.Wallet
	err := q.db.QueryRowContext(ctx, `
		SELECT id, client_id, name, description, hourly_rate_cents, currency_code, created_at
		FROM wallets WHERE id = ?`, id).
		Scan(&w.ID, &w.ClientID, &w.Name, &w.Description, &w.HourlyRateCents, &w.CurrencyCode, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return core.Wallet{}, core.ErrNotFound
	}
	if err != nil {
		return core.Wallet{}, fmt.Errorf("select wallet: %w", err)
	}
	return w, nil
}

func (q *Queries) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, client_id, name, description, hourly_rate_cents, currency_code, created_at
		FROM wallets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select wallets: %w", err)
	}
	defer rows.Close()

	var wallets []core.Wallet
	for rows.Next() {
		var w core.Wallet
		if err := rows.Scan(&w.ID, &w.ClientID, &w.Name, &w.Description, &w.HourlyRateCents, &w.CurrencyCode, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// --- tags ---

func (q *Queries) CreateTag(ctx context.Context, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("insert tag: %w", err)
	}
	return res.LastInsertId()
}

// GetOrCreateTag resolves a tag name to its identity, creating the tag when
// absent. The unique constraint on name makes creation idempotent: on
// conflict the insert is a no-op and the subsequent select wins.
func (q *Queries) GetOrCreateTag(ctx context.Context, name string) (int64, error) {
	if _, err := q.db.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("upsert tag: %w", err)
	}
	var id int64
	if err := q.db.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("select tag by name: %w", err)
	}
	return id, nil
}

func (q *Queries) ListTags(ctx context.Context) ([]core.Tag, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select tags: %w", err)
	}
	defer rows.Close()

	var tags []core.Tag
	for rows.Next() {
		var t core.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// DeleteTag removes a tag. The join-table cascades detach it from entries
// and timers without touching them.
func (q *Queries) DeleteTag(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q *Queries) LinkEntryTag(ctx context.Context, entryID, tagID int64) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO ledger_entry_tag (ledger_entry_id, tag_id) VALUES (?, ?)
		ON CONFLICT DO NOTHING`, entryID, tagID)
	if err != nil {
		return fmt.Errorf("link entry tag: %w", err)
	}
	return nil
}

func (q *Queries) ReplaceTimerTags(ctx context.Context, timerID int64, tagIDs []int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM timer_tag WHERE timer_id = ?`, timerID); err != nil {
		return fmt.Errorf("clear timer tags: %w", err)
	}
	for _, tagID := range tagIDs {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO timer_tag (timer_id, tag_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING`, timerID, tagID)
		if err != nil {
			return fmt.Errorf("link timer tag: %w", err)
		}
	}
	return nil
}

func (q *Queries) tagsFor(ctx context.Context, query string, id int64) ([]core.Tag, error) {
	rows, err := q.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("select tags: %w", err)
	}
	defer rows.Close()

	var tags []core.Tag
	for rows.Next() {
		var t core.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (q *Queries) GetEntryTags(ctx context.Context, entryID int64) ([]core.Tag, error) {
	return q.tagsFor(ctx, `
		SELECT t.id, t.name FROM tags t
		JOIN ledger_entry_tag lt ON lt.tag_id = t.id
		WHERE lt.ledger_entry_id = ? ORDER BY t.name`, entryID)
}

func (q *Queries) GetTimerTags(ctx context.Context, timerID int64) ([]core.Tag, error) {
	return q.tagsFor(ctx, `
		SELECT t.id, t.name FROM tags t
		JOIN timer_tag tt ON tt.tag_id = t.id
		WHERE tt.timer_id = ? ORDER BY t.name`, timerID)
}

// --- ledger entries ---

type CreateLedgerEntryParams struct {
	WalletID      int64
	HoursCenti    int64
	Title         string
	Description   string
	ReferenceDate string
}

func (q *Queries) CreateLedgerEntry(ctx context.Context, p CreateLedgerEntryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (wallet_id, hours_centi, title, description, reference_date)
		VALUES (?, ?, ?, ?, ?)`,
		p.WalletID, p.HoursCenti, p.Title, p.Description, p.ReferenceDate)
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetLedgerEntry(ctx context.Context, id int64) (core.LedgerEntry, error) {
	var e core.LedgerEntry
	err := q.db.QueryRowContext(ctx, `
		SELECT id, wallet_id, hours_centi, title, description, reference_date, created_at
		FROM ledger_entries WHERE id = ?`, id).
		Scan(&e.ID, &e.WalletID, &e.Hours.Centi, &e.Title, &e.Description, &e.ReferenceDate, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return core.LedgerEntry{}, core.ErrNotFound
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("select ledger entry: %w", err)
	}
	return e, nil
}

// SumWalletHours returns the algebraic sum of all entries for a wallet in
// centihours. The balance is always derived, never stored.
func (q *Queries) SumWalletHours(ctx context.Context, walletID int64) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(hours_centi), 0) FROM ledger_entries WHERE wallet_id = ?`, walletID).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum wallet hours: %w", err)
	}
	return total, nil
}

func (q *Queries) ListWalletEntries(ctx context.Context, walletID int64, limit, offset int) ([]core.LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, wallet_id, hours_centi, title, description, reference_date, created_at
		FROM ledger_entries
		WHERE wallet_id = ?
		ORDER BY reference_date DESC, created_at DESC, id DESC
		LIMIT ? OFFSET ?`, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select wallet entries: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		var e core.LedgerEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Hours.Centi, &e.Title, &e.Description, &e.ReferenceDate, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *Queries) CountWalletEntries(ctx context.Context, walletID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE wallet_id = ?`, walletID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count wallet entries: %w", err)
	}
	return n, nil
}

// --- timers ---

type CreateTimerParams struct {
	UserID      int64
	WalletID    int64
	Title       string
	Description string
}

func (q *Queries) CreateTimer(ctx context.Context, p CreateTimerParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO timers (user_id, wallet_id, title, description, status)
		VALUES (?, ?, ?, ?, 'running')`,
		p.UserID, p.WalletID, p.Title, p.Description)
	if err != nil {
		return 0, fmt.Errorf("insert timer: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) scanTimer(row *sql.Row) (core.Timer, error) {
	var t core.Timer
	var entryID sql.NullInt64
	var confirmedAt sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.WalletID, &t.Title, &t.Description, &t.Status, &entryID, &confirmedAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return core.Timer{}, core.ErrNotFound
	}
	if err != nil {
		return core.Timer{}, fmt.Errorf("scan timer: %w", err)
	}
	if entryID.Valid {
		t.LedgerEntryID = entryID.Int64
	}
	if confirmedAt.Valid {
		t.ConfirmedAt = &confirmedAt.Time
	}
	return t, nil
}

const timerColumns = `id, user_id, wallet_id, title, description, status, ledger_entry_id, confirmed_at, created_at`

func (q *Queries) GetTimer(ctx context.Context, id int64) (core.Timer, error) {
	return q.scanTimer(q.db.QueryRowContext(ctx,
		`SELECT `+timerColumns+` FROM timers WHERE id = ?`, id))
}

// GetActiveTimer returns the user's running or paused timer, or ErrNotFound.
func (q *Queries) GetActiveTimer(ctx context.Context, userID int64) (core.Timer, error) {
	return q.scanTimer(q.db.QueryRowContext(ctx,
		`SELECT `+timerColumns+` FROM timers
		 WHERE user_id = ? AND status IN ('running', 'paused')`, userID))
}

func (q *Queries) ListUserTimers(ctx context.Context, userID int64, status core.TimerStatus) ([]core.Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select user timers: %w", err)
	}
	defer rows.Close()

	var timers []core.Timer
	for rows.Next() {
		var t core.Timer
		var entryID sql.NullInt64
		var confirmedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.UserID, &t.WalletID, &t.Title, &t.Description, &t.Status, &entryID, &confirmedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		if entryID.Valid {
			t.LedgerEntryID = entryID.Int64
		}
		if confirmedAt.Valid {
			t.ConfirmedAt = &confirmedAt.Time
		}
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

func (q *Queries) UpdateTimerStatus(ctx context.Context, id int64, status core.TimerStatus) error {
	_, err := q.db.ExecContext(ctx, `UPDATE timers SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update timer status: %w", err)
	}
	return nil
}

// ConfirmTimer records the produced ledger entry and confirmation time
// together with the terminal status flip.
func (q *Queries) ConfirmTimer(ctx context.Context, id, entryID int64, confirmedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE timers SET status = 'confirmed', ledger_entry_id = ?, confirmed_at = ?
		WHERE id = ? AND ledger_entry_id IS NULL`, entryID, confirmedAt, id)
	if err != nil {
		return fmt.Errorf("confirm timer: %w", err)
	}
	return nil
}

func (q *Queries) UpdateTimerDetails(ctx context.Context, id int64, title, description string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE timers SET title = ?, description = ? WHERE id = ?`,
		title, description, id)
	if err != nil {
		return fmt.Errorf("update timer details: %w", err)
	}
	return nil
}

// --- timer cycles ---

func (q *Queries) CreateCycle(ctx context.Context, timerID int64, startedAt time.Time, endedAt *time.Time) (int64, error) {
	var ended any
	if endedAt != nil {
		ended = *endedAt
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO timer_cycles (timer_id, started_at, ended_at) VALUES (?, ?, ?)`,
		timerID, startedAt, ended)
	if err != nil {
		return 0, fmt.Errorf("insert cycle: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) ListCycles(ctx context.Context, timerID int64) ([]core.TimerCycle, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, timer_id, started_at, ended_at FROM timer_cycles
		WHERE timer_id = ? ORDER BY started_at, id`, timerID)
	if err != nil {
		return nil, fmt.Errorf("select cycles: %w", err)
	}
	defer rows.Close()

	var cycles []core.TimerCycle
	for rows.Next() {
		var c core.TimerCycle
		var ended sql.NullTime
		if err := rows.Scan(&c.ID, &c.TimerID, &c.StartedAt, &ended); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		if ended.Valid {
			c.EndedAt = &ended.Time
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// CloseOpenCycle stamps the timer's open cycle, if any.
func (q *Queries) CloseOpenCycle(ctx context.Context, timerID int64, endedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE timer_cycles SET ended_at = ? WHERE timer_id = ? AND ended_at IS NULL`,
		endedAt, timerID)
	if err != nil {
		return fmt.Errorf("close open cycle: %w", err)
	}
	return nil
}

func (q *Queries) UpdateCycle(ctx context.Context, id int64, startedAt time.Time, endedAt *time.Time) error {
	var ended any
	if endedAt != nil {
		ended = *endedAt
	}
	_, err := q.db.ExecContext(ctx, `
		UPDATE timer_cycles SET started_at = ?, ended_at = ? WHERE id = ?`,
		startedAt, ended, id)
	if err != nil {
		return fmt.Errorf("update cycle: %w", err)
	}
	return nil
}

func (q *Queries) DeleteCycle(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM timer_cycles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete cycle: %w", err)
	}
	return nil
}

// --- import plans ---

type CreateImportPlanParams struct {
	UserID           int64
	WalletID         int64
	OriginalFilename string
	FilePath         string
}

func (q *Queries) CreateImportPlan(ctx context.Context, p CreateImportPlanParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO import_plans (user_id, wallet_id, original_filename, file_path, status)
		VALUES (?, ?, ?, ?, 'pending')`,
		p.UserID, p.WalletID, p.OriginalFilename, p.FilePath)
	if err != nil {
		return 0, fmt.Errorf("insert import plan: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetImportPlan(ctx context.Context, id int64) (core.ImportPlan, error) {
	var p core.ImportPlan
	var confirmedAt sql.NullTime
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, wallet_id, original_filename, file_path, status,
		       total_rows, valid_rows, invalid_rows, total_hours_centi, confirmed_at, created_at
		FROM import_plans WHERE id = ?`, id).
		Scan(&p.ID, &p.UserID, &p.WalletID, &p.OriginalFilename, &p.FilePath, &p.Status,
			&p.Summary.TotalRows, &p.Summary.ValidRows, &p.Summary.InvalidRows,
			&p.Summary.TotalHours.Centi, &confirmedAt, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return core.ImportPlan{}, core.ErrNotFound
	}
	if err != nil {
		return core.ImportPlan{}, fmt.Errorf("select import plan: %w", err)
	}
	if confirmedAt.Valid {
		p.ConfirmedAt = &confirmedAt.Time
	}
	return p, nil
}

type UpdatePlanSummaryParams struct {
	PlanID          int64
	Status          core.PlanStatus
	TotalRows       int
	ValidRows       int
	InvalidRows     int
	TotalHoursCenti int64
}

func (q *Queries) UpdatePlanSummary(ctx context.Context, p UpdatePlanSummaryParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE import_plans
		SET status = ?, total_rows = ?, valid_rows = ?, invalid_rows = ?, total_hours_centi = ?
		WHERE id = ?`,
		p.Status, p.TotalRows, p.ValidRows, p.InvalidRows, p.TotalHoursCenti, p.PlanID)
	if err != nil {
		return fmt.Errorf("update plan summary: %w", err)
	}
	return nil
}

func (q *Queries) ConfirmPlan(ctx context.Context, id int64, confirmedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE import_plans SET status = 'confirmed', confirmed_at = ? WHERE id = ?`,
		confirmedAt, id)
	if err != nil {
		return fmt.Errorf("confirm plan: %w", err)
	}
	return nil
}

func (q *Queries) CancelPlan(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE import_plans SET status = 'cancelled' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("cancel plan: %w", err)
	}
	return nil
}

// --- import plan rows ---

type CreateImportRowParams struct {
	ImportPlanID  int64
	RowNumber     int
	ReferenceDate string
	Hours         string
	Title         string
	Description   string
	Tags          []string
}

func (q *Queries) CreateImportRow(ctx context.Context, p CreateImportRowParams) (int64, error) {
	tags, err := marshalStrings(p.Tags)
	if err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO import_plan_rows
			(import_plan_id, row_number, reference_date, hours, title, description, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ImportPlanID, p.RowNumber, p.ReferenceDate, p.Hours, p.Title, p.Description, tags)
	if err != nil {
		return 0, fmt.Errorf("insert import row: %w", err)
	}
	return res.LastInsertId()
}

const importRowColumns = `id, import_plan_id, row_number, reference_date, hours, title,
	description, tags, validation_errors, is_valid, ledger_entry_id, created_at`

func scanImportRow(scan func(dest ...any) error) (core.ImportPlanRow, error) {
	var r core.ImportPlanRow
	var tags, verrs string
	var entryID sql.NullInt64
	err := scan(&r.ID, &r.ImportPlanID, &r.RowNumber, &r.ReferenceDate, &r.Hours, &r.Title,
		&r.Description, &tags, &verrs, &r.IsValid, &entryID, &r.CreatedAt)
	if err != nil {
		return core.ImportPlanRow{}, err
	}
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return core.ImportPlanRow{}, fmt.Errorf("decode row tags: %w", err)
	}
	if err := json.Unmarshal([]byte(verrs), &r.ValidationErrors); err != nil {
		return core.ImportPlanRow{}, fmt.Errorf("decode row errors: %w", err)
	}
	if entryID.Valid {
		r.LedgerEntryID = entryID.Int64
	}
	return r, nil
}

func (q *Queries) GetImportRow(ctx context.Context, id int64) (core.ImportPlanRow, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+importRowColumns+` FROM import_plan_rows WHERE id = ?`, id)
	r, err := scanImportRow(row.Scan)
	if err == sql.ErrNoRows {
		return core.ImportPlanRow{}, core.ErrNotFound
	}
	if err != nil {
		return core.ImportPlanRow{}, fmt.Errorf("select import row: %w", err)
	}
	return r, nil
}

func (q *Queries) ListPlanRows(ctx context.Context, planID int64) ([]core.ImportPlanRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+importRowColumns+` FROM import_plan_rows
		 WHERE import_plan_id = ? ORDER BY row_number, id`, planID)
	if err != nil {
		return nil, fmt.Errorf("select plan rows: %w", err)
	}
	defer rows.Close()

	var result []core.ImportPlanRow
	for rows.Next() {
		r, err := scanImportRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan import row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (q *Queries) MaxRowNumber(ctx context.Context, planID int64) (int, error) {
	var max int
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(row_number), 0) FROM import_plan_rows WHERE import_plan_id = ?`, planID).
		Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max row number: %w", err)
	}
	return max, nil
}

type UpdateImportRowParams struct {
	RowID         int64
	ReferenceDate string
	Hours         string
	Title         string
	Description   string
	Tags          []string
}

func (q *Queries) UpdateImportRow(ctx context.Context, p UpdateImportRowParams) error {
	tags, err := marshalStrings(p.Tags)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		UPDATE import_plan_rows
		SET reference_date = ?, hours = ?, title = ?, description = ?, tags = ?
		WHERE id = ?`,
		p.ReferenceDate, p.Hours, p.Title, p.Description, tags, p.RowID)
	if err != nil {
		return fmt.Errorf("update import row: %w", err)
	}
	return nil
}

func (q *Queries) SetRowValidation(ctx context.Context, rowID int64, errs []string) error {
	verrs, err := marshalStrings(errs)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		UPDATE import_plan_rows SET validation_errors = ?, is_valid = ? WHERE id = ?`,
		verrs, len(errs) == 0, rowID)
	if err != nil {
		return fmt.Errorf("set row validation: %w", err)
	}
	return nil
}

// SetRowLedgerEntry links a row to the entry it produced. The ledger_entry_id
// IS NULL guard makes the link set-once.
func (q *Queries) SetRowLedgerEntry(ctx context.Context, rowID, entryID int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE import_plan_rows SET ledger_entry_id = ?
		WHERE id = ? AND ledger_entry_id IS NULL`, entryID, rowID)
	if err != nil {
		return fmt.Errorf("set row ledger entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("row %d already has a ledger entry", rowID)
	}
	return nil
}

func (q *Queries) DeleteImportRow(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM import_plan_rows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete import row: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func marshalStrings(s []string) (string, error) {
	if s == nil {
		s = []string{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal string list: %w", err)
	}
	return string(b), nil
}
