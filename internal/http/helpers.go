package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"timebank/internal/core"
	"timebank/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrIncompleteCycles),
		errors.Is(err, core.ErrHasInvalidRows),
		errors.Is(err, services.ErrEmptyTagName):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrActiveTimerExists),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrPlanConfirmed),
		errors.Is(err, core.ErrPlanCancelled):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// userID reads the pre-authenticated caller from the X-User-ID header.
func userID(r *http.Request) (int64, error) {
	v := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if v == "" {
		return 0, errors.New("missing X-User-ID header")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid X-User-ID header")
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// JSON views. Hours render as decimal strings so callers never see the
// fixed-point representation.

type tagView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type entryView struct {
	ID            int64     `json:"id"`
	WalletID      int64     `json:"wallet_id"`
	Hours         string    `json:"hours"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	ReferenceDate string    `json:"reference_date,omitempty"`
	Tags          []tagView `json:"tags,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type cycleView struct {
	ID              int64      `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
}

type timerView struct {
	ID            int64       `json:"id"`
	WalletID      int64       `json:"wallet_id"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	Status        string      `json:"status"`
	Cycles        []cycleView `json:"cycles"`
	Tags          []tagView   `json:"tags,omitempty"`
	TotalSeconds  int64       `json:"total_seconds"`
	TotalHours    string      `json:"total_hours"`
	Duration      string      `json:"duration"`
	LedgerEntryID int64       `json:"ledger_entry_id,omitempty"`
	ConfirmedAt   *time.Time  `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

type planRowView struct {
	ID               int64     `json:"id"`
	RowNumber        int       `json:"row_number"`
	ReferenceDate    string    `json:"reference_date"`
	Hours            string    `json:"hours"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	IsValid          bool      `json:"is_valid"`
	ValidationErrors []string  `json:"validation_errors,omitempty"`
	LedgerEntryID    int64     `json:"ledger_entry_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type planView struct {
	ID               int64         `json:"id"`
	WalletID         int64         `json:"wallet_id"`
	OriginalFilename string        `json:"original_filename,omitempty"`
	Status           string        `json:"status"`
	TotalRows        int           `json:"total_rows"`
	ValidRows        int           `json:"valid_rows"`
	InvalidRows      int           `json:"invalid_rows"`
	TotalHours       string        `json:"total_hours"`
	Rows             []planRowView `json:"rows"`
	ConfirmedAt      *time.Time    `json:"confirmed_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

func toTagViews(tags []core.Tag) []tagView {
	if len(tags) == 0 {
		return nil
	}
	out := make([]tagView, len(tags))
	for i, t := range tags {
		out[i] = tagView{ID: t.ID, Name: t.Name}
	}
	return out
}

func toEntryView(e core.LedgerEntry) entryView {
	return entryView{
		ID:            e.ID,
		WalletID:      e.WalletID,
		Hours:         e.Hours.String(),
		Title:         e.Title,
		Description:   e.Description,
		ReferenceDate: e.ReferenceDate,
		Tags:          toTagViews(e.Tags),
		CreatedAt:     e.CreatedAt,
	}
}

func toTimerView(t core.Timer) timerView {
	cycles := make([]cycleView, len(t.Cycles))
	for i, c := range t.Cycles {
		cycles[i] = cycleView{
			ID:              c.ID,
			StartedAt:       c.StartedAt,
			EndedAt:         c.EndedAt,
			DurationSeconds: c.DurationSeconds(),
		}
	}
	return timerView{
		ID:            t.ID,
		WalletID:      t.WalletID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		Cycles:        cycles,
		Tags:          toTagViews(t.Tags),
		TotalSeconds:  t.TotalSeconds(),
		TotalHours:    t.TotalHours().String(),
		Duration:      t.FormattedDuration(),
		LedgerEntryID: t.LedgerEntryID,
		ConfirmedAt:   t.ConfirmedAt,
		CreatedAt:     t.CreatedAt,
	}
}

func toPlanRowView(row core.ImportPlanRow) planRowView {
	return planRowView{
		ID:               row.ID,
		RowNumber:        row.RowNumber,
		ReferenceDate:    row.ReferenceDate,
		Hours:            row.Hours,
		Title:            row.Title,
		Description:      row.Description,
		Tags:             row.Tags,
		IsValid:          row.IsValid,
		ValidationErrors: row.ValidationErrors,
		LedgerEntryID:    row.LedgerEntryID,
		CreatedAt:        row.CreatedAt,
	}
}

func toPlanView(p core.ImportPlan) planView {
	rows := make([]planRowView, len(p.Rows))
	for i, row := range p.Rows {
		rows[i] = toPlanRowView(row)
	}
	return planView{
		ID:               p.ID,
		WalletID:         p.WalletID,
		OriginalFilename: p.OriginalFilename,
		Status:           string(p.Status),
		TotalRows:        p.Summary.TotalRows,
		ValidRows:        p.Summary.ValidRows,
		InvalidRows:      p.Summary.InvalidRows,
		TotalHours:       p.Summary.TotalHours.String(),
		Rows:             rows,
		ConfirmedAt:      p.ConfirmedAt,
		CreatedAt:        p.CreatedAt,
	}
}
