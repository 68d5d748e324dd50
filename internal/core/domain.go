package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TimerRunning   TimerStatus = "running"
	TimerPaused    TimerStatus = "paused"
	TimerStopped   TimerStatus = "stopped"
	TimerConfirmed TimerStatus = "confirmed"
	TimerCancelled TimerStatus = "cancelled"

	PlanPending   PlanStatus = "pending"
	PlanValidated PlanStatus = "validated"
	PlanConfirmed PlanStatus = "confirmed"
	PlanCancelled PlanStatus = "cancelled"
)

// DateLayout is the wire format for reference dates.
const DateLayout = "2006-01-02"

type (
	TimerStatus string
	PlanStatus  string

	// Wallet is a per-client bucket of hours. The hourly rate and currency
	// are display references only and never enter balance math.
	Wallet struct {
		ID              int64
		ClientID        int64
		Name            string
		Description     string
		HourlyRateCents int64
		CurrencyCode    string
		CreatedAt       time.Time
	}

	// Tag is a plain named label attached to ledger entries and timers.
	Tag struct {
		ID   int64
		Name string
	}

	// LedgerEntry is one immutable signed-hours fact against a wallet.
	// Positive hours credit the wallet, negative hours consume from it.
	LedgerEntry struct {
		ID            int64
		WalletID      int64
		Hours         Hours
		Title         string
		Description   string
		ReferenceDate string // DateLayout, empty when not supplied
		Tags          []Tag
		CreatedAt     time.Time
	}

	// EntryInput carries the caller-supplied metadata for a new entry.
	EntryInput struct {
		Title         string
		Description   string
		ReferenceDate string
		TagIDs        []int64
	}

	// Timer is one user's work session. It accumulates elapsed time across
	// pause/resume cycles and, once confirmed, references the ledger entry
	// it produced.
	Timer struct {
		ID            int64
		UserID        int64
		WalletID      int64
		Title         string
		Description   string
		Status        TimerStatus
		Cycles        []TimerCycle
		Tags          []Tag
		LedgerEntryID int64 // 0 until confirmed
		ConfirmedAt   *time.Time
		CreatedAt     time.Time
	}

	// TimerCycle is one contiguous running interval. A nil end means the
	// cycle is still open.
	TimerCycle struct {
		ID        int64
		TimerID   int64
		StartedAt time.Time
		EndedAt   *time.Time
	}

	// CycleInput is a caller-supplied cycle for reconciliation. A zero ID
	// marks a new cycle.
	CycleInput struct {
		ID        int64
		StartedAt time.Time
		EndedAt   *time.Time
	}

	// ImportPlan is a draft batch of candidate ledger rows awaiting
	// validation and confirmation.
	ImportPlan struct {
		ID               int64
		UserID           int64
		WalletID         int64
		OriginalFilename string
		FilePath         string
		Status           PlanStatus
		Summary          PlanSummary
		ConfirmedAt      *time.Time
		Rows             []ImportPlanRow
		CreatedAt        time.Time
	}

	PlanSummary struct {
		TotalRows   int
		ValidRows   int
		InvalidRows int
		TotalHours  Hours
	}

	// ImportPlanRow keeps the source values verbatim so that invalid input
	// (a malformed date, non-numeric hours) stays inspectable. Hours and
	// ReferenceDate are parsed only where a valid row is needed.
	ImportPlanRow struct {
		ID               int64
		ImportPlanID     int64
		RowNumber        int
		ReferenceDate    string
		Hours            string
		Title            string
		Description      string
		Tags             []string
		ValidationErrors []string
		IsValid          bool
		LedgerEntryID    int64 // 0 until the plan is confirmed
		CreatedAt        time.Time
	}

	// ImportRowInput is one pre-parsed spreadsheet row as handed over by
	// the upload collaborator, header row already stripped.
	ImportRowInput struct {
		ReferenceDate string
		Hours         string
		Title         string
		Description   string
		Tags          string // comma-separated names
	}
)

var (
	ErrInvalidQuantity   = errors.New("hours quantity must be a non-zero number")
	ErrActiveTimerExists = errors.New("user already has an active timer")
	ErrIncompleteCycles  = errors.New("all cycles must have an end time")
	ErrInvalidTransition = errors.New("invalid timer state transition")
	ErrPlanConfirmed     = errors.New("import plan is already confirmed")
	ErrPlanCancelled     = errors.New("import plan is cancelled")
	ErrHasInvalidRows    = errors.New("import plan has invalid rows")
	ErrNotFound          = errors.New("not found")
)

// Active reports whether the timer occupies the user's single active slot.
func (s TimerStatus) Active() bool {
	return s == TimerRunning || s == TimerPaused
}

// Terminal reports whether no further transitions are allowed.
func (s TimerStatus) Terminal() bool {
	return s == TimerConfirmed || s == TimerCancelled
}

// DurationSeconds returns the cycle length in whole seconds, or 0 while
// the cycle is still open.
func (c TimerCycle) DurationSeconds() int64 {
	if c.EndedAt == nil {
		return 0
	}
	return int64(c.EndedAt.Sub(c.StartedAt) / time.Second)
}

// TotalSeconds sums the durations of all cycles.
func (t *Timer) TotalSeconds() int64 {
	var total int64
	for _, c := range t.Cycles {
		total += c.DurationSeconds()
	}
	return total
}

// TotalHours converts the accumulated seconds to fixed-point hours.
func (t *Timer) TotalHours() Hours {
	return HoursFromSeconds(t.TotalSeconds())
}

// FormattedDuration renders the accumulated time as HH:MM:SS.
func (t *Timer) FormattedDuration() string {
	total := t.TotalSeconds()
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// OpenCycle returns the timer's currently open cycle, or nil.
func (t *Timer) OpenCycle() *TimerCycle {
	for i := range t.Cycles {
		if t.Cycles[i].EndedAt == nil {
			return &t.Cycles[i]
		}
	}
	return nil
}

// ParseTagNames splits a comma-separated tag string into trimmed names,
// dropping empties.
func ParseTagNames(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			names = append(names, p)
		}
	}
	return names
}

// Validate checks a single import row independently of its siblings and
// returns human-readable messages for everything wrong with it. now is the
// reference point for the future-date rule.
func (r *ImportPlanRow) Validate(now time.Time) []string {
	var errs []string

	if strings.TrimSpace(r.ReferenceDate) == "" {
		errs = append(errs, "Reference date is required.")
	} else if date, err := time.Parse(DateLayout, strings.TrimSpace(r.ReferenceDate)); err != nil {
		errs = append(errs, "Invalid date format.")
	} else if date.After(now) {
		errs = append(errs, "Reference date cannot be in the future.")
	}

	if strings.TrimSpace(r.Hours) == "" {
		errs = append(errs, "Hours is required.")
	} else if hours, err := ParseHours(r.Hours); err != nil {
		errs = append(errs, "Hours must be a number.")
	} else if hours.IsZero() {
		errs = append(errs, "Hours cannot be zero.")
	}

	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, "Title is required.")
	} else if len(r.Title) > 255 {
		errs = append(errs, "Title cannot exceed 255 characters.")
	}

	return errs
}

// HoursValue parses the row's raw hours field. Only meaningful for rows
// that validated cleanly.
func (r *ImportPlanRow) HoursValue() (Hours, error) {
	return ParseHours(r.Hours)
}
