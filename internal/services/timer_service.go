package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"timebank/internal/core"
	"timebank/internal/storage"
)

// TimerService drives the per-user work-session state machine. Every
// multi-row transition runs as one transaction so a status flip and its
// side effect commit together or not at all.
type TimerService struct {
	repo   *storage.SQLiteRepository
	ledger *LedgerService
	now    func() time.Time
}

func NewTimerService(repo *storage.SQLiteRepository, ledger *LedgerService) *TimerService {
	return &TimerService{
		repo:   repo,
		ledger: ledger,
		now:    time.Now,
	}
}

// StartTimerInput carries the caller-supplied session metadata.
type StartTimerInput struct {
	WalletID    int64
	Title       string
	Description string
	TagIDs      []int64
}

// Start creates a running timer with one open cycle. The check for an
// existing active timer and the insert run in one transaction; the partial
// unique index on timers backs the same invariant against races.
func (s *TimerService) Start(ctx context.Context, userID int64, in StartTimerInput) (core.Timer, error) {
	if _, err := s.repo.Queries().GetWallet(ctx, in.WalletID); err != nil {
		return core.Timer{}, err
	}

	var timerID int64
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetActiveTimer(ctx, userID); err == nil {
			return core.ErrActiveTimerExists
		} else if !errors.Is(err, core.ErrNotFound) {
			return err
		}

		var err error
		timerID, err = q.CreateTimer(ctx, storage.CreateTimerParams{
			UserID:      userID,
			WalletID:    in.WalletID,
			Title:       in.Title,
			Description: in.Description,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return core.ErrActiveTimerExists
			}
			return err
		}
		if _, err := q.CreateCycle(ctx, timerID, s.now(), nil); err != nil {
			return err
		}
		if len(in.TagIDs) > 0 {
			if err := q.ReplaceTimerTags(ctx, timerID, in.TagIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Timer{}, err
	}

	slog.InfoContext(ctx, "Timer started", "timer_id", timerID, "user_id", userID, "wallet_id", in.WalletID)
	return s.loadTimer(ctx, timerID)
}

// Pause closes the open cycle and moves the timer to paused.
func (s *TimerService) Pause(ctx context.Context, timerID int64) (core.Timer, error) {
	return s.transition(ctx, timerID, "pause", func(q *storage.Queries, t core.Timer) error {
		if t.Status != core.TimerRunning {
			return core.ErrInvalidTransition
		}
		if err := q.CloseOpenCycle(ctx, timerID, s.now()); err != nil {
			return err
		}
		return q.UpdateTimerStatus(ctx, timerID, core.TimerPaused)
	})
}

// Resume opens a new cycle and moves the timer back to running.
func (s *TimerService) Resume(ctx context.Context, timerID int64) (core.Timer, error) {
	return s.transition(ctx, timerID, "resume", func(q *storage.Queries, t core.Timer) error {
		if t.Status != core.TimerPaused {
			return core.ErrInvalidTransition
		}
		if _, err := q.CreateCycle(ctx, timerID, s.now(), nil); err != nil {
			return err
		}
		return q.UpdateTimerStatus(ctx, timerID, core.TimerRunning)
	})
}

// Stop closes the open cycle, if any, and moves the timer to stopped.
func (s *TimerService) Stop(ctx context.Context, timerID int64) (core.Timer, error) {
	return s.transition(ctx, timerID, "stop", func(q *storage.Queries, t core.Timer) error {
		if !t.Status.Active() {
			return core.ErrInvalidTransition
		}
		if err := q.CloseOpenCycle(ctx, timerID, s.now()); err != nil {
			return err
		}
		return q.UpdateTimerStatus(ctx, timerID, core.TimerStopped)
	})
}

// Cancel abandons the timer from any non-terminal state.
func (s *TimerService) Cancel(ctx context.Context, timerID int64) (core.Timer, error) {
	return s.transition(ctx, timerID, "cancel", func(q *storage.Queries, t core.Timer) error {
		if t.Status.Terminal() {
			return core.ErrInvalidTransition
		}
		if err := q.CloseOpenCycle(ctx, timerID, s.now()); err != nil {
			return err
		}
		return q.UpdateTimerStatus(ctx, timerID, core.TimerCancelled)
	})
}

// Confirm materializes a stopped timer into a ledger debit. adjustedCycles,
// when non-nil, is reconciled first inside the same transaction. The
// open-cycle check happens before any ledger write; the debit, the entry
// link and the status flip commit as one unit.
func (s *TimerService) Confirm(ctx context.Context, timerID int64, adjustedCycles []core.CycleInput) (core.Timer, error) {
	var entryID int64
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		t, err := s.loadTimerTx(ctx, q, timerID)
		if err != nil {
			return err
		}
		if t.Status != core.TimerStopped {
			return core.ErrInvalidTransition
		}

		if adjustedCycles != nil {
			if err := reconcileCycles(ctx, q, &t, adjustedCycles); err != nil {
				return err
			}
			t.Cycles, err = q.ListCycles(ctx, timerID)
			if err != nil {
				return err
			}
		}

		for _, c := range t.Cycles {
			if c.EndedAt == nil {
				return core.ErrIncompleteCycles
			}
		}

		tagIDs := make([]int64, len(t.Tags))
		for i, tag := range t.Tags {
			tagIDs[i] = tag.ID
		}

		entryID, err = s.ledger.CreateEntryTx(ctx, q, t.WalletID, t.TotalHours().Abs().Neg(), core.EntryInput{
			Title:         t.Title,
			Description:   t.Description,
			ReferenceDate: s.now().Format(core.DateLayout),
			TagIDs:        tagIDs,
		})
		if err != nil {
			return err
		}
		return q.ConfirmTimer(ctx, timerID, entryID, s.now())
	})
	if err != nil {
		return core.Timer{}, err
	}

	if entry, err := s.ledger.loadEntry(ctx, entryID); err == nil {
		s.ledger.publishEntryRecorded(ctx, entry, "timer")
	}

	slog.InfoContext(ctx, "Timer confirmed", "timer_id", timerID, "ledger_entry_id", entryID)
	return s.loadTimer(ctx, timerID)
}

// UpdateCycles reconciles a caller-supplied authoritative cycle list against
// the stored ones: matched cycles are updated, new ones inserted and stored
// cycles absent from the list deleted, all in one transaction. Only valid
// while the timer is stopped.
func (s *TimerService) UpdateCycles(ctx context.Context, timerID int64, cycles []core.CycleInput) (core.Timer, error) {
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		t, err := s.loadTimerTx(ctx, q, timerID)
		if err != nil {
			return err
		}
		if t.Status != core.TimerStopped {
			return core.ErrInvalidTransition
		}
		return reconcileCycles(ctx, q, &t, cycles)
	})
	if err != nil {
		return core.Timer{}, err
	}
	return s.loadTimer(ctx, timerID)
}

func reconcileCycles(ctx context.Context, q *storage.Queries, t *core.Timer, cycles []core.CycleInput) error {
	for _, c := range cycles {
		if c.StartedAt.IsZero() {
			return fmt.Errorf("cycle start time is required")
		}
		if c.EndedAt != nil && c.EndedAt.Before(c.StartedAt) {
			return fmt.Errorf("cycle end %s precedes start %s", c.EndedAt, c.StartedAt)
		}
	}

	existing := make(map[int64]core.TimerCycle, len(t.Cycles))
	for _, c := range t.Cycles {
		existing[c.ID] = c
	}

	kept := make(map[int64]bool, len(cycles))
	for _, c := range cycles {
		if _, ok := existing[c.ID]; c.ID != 0 && ok {
			if err := q.UpdateCycle(ctx, c.ID, c.StartedAt, c.EndedAt); err != nil {
				return err
			}
			kept[c.ID] = true
			continue
		}
		id, err := q.CreateCycle(ctx, t.ID, c.StartedAt, c.EndedAt)
		if err != nil {
			return err
		}
		kept[id] = true
	}

	for id := range existing {
		if !kept[id] {
			if err := q.DeleteCycle(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateDetails edits title, description and tags; only permitted while the
// timer is stopped.
func (s *TimerService) UpdateDetails(ctx context.Context, timerID int64, title, description string, tagIDs []int64) (core.Timer, error) {
	return s.transition(ctx, timerID, "update details", func(q *storage.Queries, t core.Timer) error {
		if t.Status != core.TimerStopped {
			return core.ErrInvalidTransition
		}
		if err := q.UpdateTimerDetails(ctx, timerID, title, description); err != nil {
			return err
		}
		return q.ReplaceTimerTags(ctx, timerID, tagIDs)
	})
}

// GetActiveTimer returns the user's running or paused timer. No active
// timer is a normal state, not a failure: the result is (nil, nil).
func (s *TimerService) GetActiveTimer(ctx context.Context, userID int64) (*core.Timer, error) {
	t, err := s.repo.Queries().GetActiveTimer(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	full, err := s.loadTimer(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return &full, nil
}

// ListTimers returns the user's timers, newest first, optionally filtered
// by status.
func (s *TimerService) ListTimers(ctx context.Context, userID int64, status core.TimerStatus) ([]core.Timer, error) {
	q := s.repo.Queries()
	timers, err := q.ListUserTimers(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	for i := range timers {
		if timers[i].Cycles, err = q.ListCycles(ctx, timers[i].ID); err != nil {
			return nil, err
		}
		if timers[i].Tags, err = q.GetTimerTags(ctx, timers[i].ID); err != nil {
			return nil, err
		}
	}
	return timers, nil
}

// transition loads the timer and applies fn inside one transaction.
func (s *TimerService) transition(ctx context.Context, timerID int64, name string, fn func(q *storage.Queries, t core.Timer) error) (core.Timer, error) {
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		t, err := s.loadTimerTx(ctx, q, timerID)
		if err != nil {
			return err
		}
		return fn(q, t)
	})
	if err != nil {
		return core.Timer{}, err
	}
	slog.DebugContext(ctx, "Timer transition applied", "timer_id", timerID, "transition", name)
	return s.loadTimer(ctx, timerID)
}

func (s *TimerService) loadTimer(ctx context.Context, timerID int64) (core.Timer, error) {
	return s.loadTimerTx(ctx, s.repo.Queries(), timerID)
}

func (s *TimerService) loadTimerTx(ctx context.Context, q *storage.Queries, timerID int64) (core.Timer, error) {
	t, err := q.GetTimer(ctx, timerID)
	if err != nil {
		return core.Timer{}, err
	}
	if t.Cycles, err = q.ListCycles(ctx, timerID); err != nil {
		return core.Timer{}, err
	}
	if t.Tags, err = q.GetTimerTags(ctx, timerID); err != nil {
		return core.Timer{}, err
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
