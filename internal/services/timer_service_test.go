package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timebank/internal/core"
)

func fixTime(env *testEnv, at time.Time) {
	env.timers.now = func() time.Time { return at }
	env.ledger.now = func() time.Time { return at }
}

func TestStartCreatesRunningTimerWithOpenCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	timer, err := env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID, Title: "Feature work"})
	require.NoError(t, err)
	assert.Equal(t, core.TimerRunning, timer.Status)
	require.Len(t, timer.Cycles, 1)
	assert.Nil(t, timer.Cycles[0].EndedAt)
}

func TestSecondStartFailsAndLeavesFirstUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID})
	require.NoError(t, err)

	_, err = env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID})
	assert.ErrorIs(t, err, core.ErrActiveTimerExists)

	// a paused timer still occupies the slot
	_, err = env.timers.Pause(ctx, first.ID)
	require.NoError(t, err)
	_, err = env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID})
	assert.ErrorIs(t, err, core.ErrActiveTimerExists)

	active, err := env.timers.GetActiveTimer(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)

	// another user is not affected
	_, err = env.timers.Start(ctx, 2, StartTimerInput{WalletID: env.walletID})
	assert.NoError(t, err)
}

func TestPauseResumeStopLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	timer, err := env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID})
	require.NoError(t, err)

	paused, err := env.timers.Pause(ctx, timer.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TimerPaused, paused.Status)
	require.Len(t, paused.Cycles, 1)
	assert.NotNil(t, paused.Cycles[0].EndedAt)

	resumed, err := env.timers.Resume(ctx, timer.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TimerRunning, resumed.Status)
	require.Len(t, resumed.Cycles, 2)
	assert.Nil(t, resumed.Cycles[1].EndedAt)

	stopped, err := env.timers.Stop(ctx, timer.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TimerStopped, stopped.Status)
	for _, c := range stopped.Cycles {
		assert.NotNil(t, c.EndedAt)
	}
}

func TestInvalidTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	timer, err := env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID})
	require.NoError(t, err)

	// running timer cannot resume or confirm
	_, err = env.timers.Resume(ctx, timer.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	_, err = env.timers.Confirm(ctx, timer.ID, nil)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	// paused timer cannot pause again
	_, err = env.timers.Pause(ctx, timer.ID)
	require.NoError(t, err)
	_, err = env.timers.Pause(ctx, timer.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	// cancelled is terminal
	_, err = env.timers.Cancel(ctx, timer.ID)
	require.NoError(t, err)
	_, err = env.timers.Cancel(ctx, timer.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	_, err = env.timers.Stop(ctx, timer.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestConfirmCreatesDebitEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fixTime(env, now)

	timer, err := env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID, Title: "Feature work"})
	require.NoError(t, err)
	_, err = env.timers.Stop(ctx, timer.ID)
	require.NoError(t, err)

	// cycles (-2h, -1h) and (-30m, now) relative to now: total 1.5h
	end1 := now.Add(-1 * time.Hour)
	end2 := now
	adjusted := []core.CycleInput{
		{StartedAt: now.Add(-2 * time.Hour), EndedAt: &end1},
		{StartedAt: now.Add(-30 * time.Minute), EndedAt: &end2},
	}

	confirmed, err := env.timers.Confirm(ctx, timer.ID, adjusted)
	require.NoError(t, err)
	assert.Equal(t, core.TimerConfirmed, confirmed.Status)
	require.NotZero(t, confirmed.LedgerEntryID)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, "1.50", confirmed.TotalHours().String())

	entry, err := env.repo.Queries().GetLedgerEntry(ctx, confirmed.LedgerEntryID)
	require.NoError(t, err)
	assert.Equal(t, int64(-150), entry.Hours.Centi)
	assert.Equal(t, "Feature work", entry.Title)
	assert.Equal(t, "2026-03-10", entry.ReferenceDate)

	// confirming twice is rejected
	_, err = env.timers.Confirm(ctx, timer.ID, nil)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	assert.Equal(t, 1, env.entryCount(t))
}

func TestConfirmWithOpenCycleFailsBeforeLedgerWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fixTime(env, now)

	timer, err := env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID})
	require.NoError(t, err)
	_, err = env.timers.Stop(ctx, timer.ID)
	require.NoError(t, err)

	// reintroduce an open cycle via reconciliation
	adjusted := []core.CycleInput{{StartedAt: now.Add(-time.Hour)}}
	_, err = env.timers.Confirm(ctx, timer.ID, adjusted)
	assert.ErrorIs(t, err, core.ErrIncompleteCycles)

	assert.Zero(t, env.entryCount(t))
	reloaded, err := env.timers.ListTimers(ctx, 1, core.TimerStopped)
	require.NoError(t, err)
	require.Len(t, reloaded, 1) // still stopped, rollback kept nothing from the attempt
}

func TestUpdateCyclesReconciliation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fixTime(env, now)

	timer, err := env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID})
	require.NoError(t, err)
	stopped, err := env.timers.Stop(ctx, timer.ID)
	require.NoError(t, err)
	require.Len(t, stopped.Cycles, 1)
	existingID := stopped.Cycles[0].ID

	// update the existing cycle, add a second one
	end1 := now.Add(-2 * time.Hour)
	end2 := now.Add(-30 * time.Minute)
	updated, err := env.timers.UpdateCycles(ctx, timer.ID, []core.CycleInput{
		{ID: existingID, StartedAt: now.Add(-3 * time.Hour), EndedAt: &end1},
		{StartedAt: now.Add(-time.Hour), EndedAt: &end2},
	})
	require.NoError(t, err)
	require.Len(t, updated.Cycles, 2)
	assert.Equal(t, int64(5400), updated.TotalSeconds())

	// omitting a cycle deletes it
	trimmed, err := env.timers.UpdateCycles(ctx, timer.ID, []core.CycleInput{
		{ID: existingID, StartedAt: now.Add(-3 * time.Hour), EndedAt: &end1},
	})
	require.NoError(t, err)
	require.Len(t, trimmed.Cycles, 1)
	assert.Equal(t, existingID, trimmed.Cycles[0].ID)
}

func TestUpdateCyclesOnlyWhileStopped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	timer, err := env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID})
	require.NoError(t, err)

	_, err = env.timers.UpdateCycles(ctx, timer.ID, nil)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = env.timers.UpdateDetails(ctx, timer.ID, "New title", "", nil)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestGetActiveTimerWithoutOneIsNotAnError(t *testing.T) {
	env := newTestEnv(t)

	active, err := env.timers.GetActiveTimer(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestCancelClosesOpenCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	timer, err := env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID})
	require.NoError(t, err)

	cancelled, err := env.timers.Cancel(ctx, timer.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TimerCancelled, cancelled.Status)
	require.Len(t, cancelled.Cycles, 1)
	assert.NotNil(t, cancelled.Cycles[0].EndedAt)
	assert.Zero(t, env.entryCount(t))
}

func TestConfirmZeroDurationRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fixTime(env, now)

	timer, err := env.timers.Start(ctx, 1, StartTimerInput{WalletID: env.walletID})
	require.NoError(t, err)
	_, err = env.timers.Stop(ctx, timer.ID)
	require.NoError(t, err)

	start := now.Add(-time.Hour)
	adjusted := []core.CycleInput{{StartedAt: start, EndedAt: &start}}
	_, err = env.timers.Confirm(ctx, timer.ID, adjusted)
	assert.ErrorIs(t, err, core.ErrInvalidQuantity)
	assert.Zero(t, env.entryCount(t))
}
