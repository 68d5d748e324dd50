package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"timebank/internal/core"
	"timebank/internal/services"
)

type transitionFunc func(ctx context.Context, timerID int64) (core.Timer, error)

type startTimerRequest struct {
	WalletID    int64   `json:"wallet_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	TagIDs      []int64 `json:"tag_ids"`
}

type cycleRequest struct {
	ID        int64      `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

func toCycleInputs(cycles []cycleRequest) []core.CycleInput {
	if len(cycles) == 0 {
		return nil
	}
	out := make([]core.CycleInput, len(cycles))
	for i, c := range cycles {
		out[i] = core.CycleInput{ID: c.ID, StartedAt: c.StartedAt, EndedAt: c.EndedAt}
	}
	return out
}

func (s *Server) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	var req startTimerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	timer, err := s.timers.Start(r.Context(), uid, services.StartTimerInput{
		WalletID:    req.WalletID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTimerView(timer))
}

func (s *Server) handlePauseTimer(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.timers.Pause)
}

func (s *Server) handleResumeTimer(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.timers.Resume)
}

func (s *Server) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.timers.Stop)
}

func (s *Server) handleCancelTimer(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.timers.Cancel)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	timerID, err := pathID(r, "timerID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	timer, err := fn(r.Context(), timerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTimerView(timer))
}

func (s *Server) handleConfirmTimer(w http.ResponseWriter, r *http.Request) {
	timerID, err := pathID(r, "timerID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// The body is optional; when present it may carry adjusted cycles that
	// replace the recorded ones before the hours are booked.
	var req struct {
		Cycles []cycleRequest `json:"cycles"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	timer, err := s.timers.Confirm(r.Context(), timerID, toCycleInputs(req.Cycles))
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.balanceCache.Delete(balanceKey(timer.WalletID))
	writeJSON(w, http.StatusOK, toTimerView(timer))
}

func (s *Server) handleUpdateTimerCycles(w http.ResponseWriter, r *http.Request) {
	timerID, err := pathID(r, "timerID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var req struct {
		Cycles []cycleRequest `json:"cycles"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	timer, err := s.timers.UpdateCycles(r.Context(), timerID, toCycleInputs(req.Cycles))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTimerView(timer))
}

func (s *Server) handleUpdateTimerDetails(w http.ResponseWriter, r *http.Request) {
	timerID, err := pathID(r, "timerID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		TagIDs      []int64 `json:"tag_ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	timer, err := s.timers.UpdateDetails(r.Context(), timerID, strings.TrimSpace(req.Title), strings.TrimSpace(req.Description), req.TagIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTimerView(timer))
}

func (s *Server) handleActiveTimer(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	timer, err := s.timers.GetActiveTimer(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if timer == nil {
		writeJSON(w, http.StatusOK, map[string]any{"timer": nil})
		return
	}

	view := toTimerView(*timer)
	writeJSON(w, http.StatusOK, map[string]any{"timer": view})
}

func (s *Server) handleListTimers(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	status := core.TimerStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	timers, err := s.timers.ListTimers(r.Context(), uid, status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]timerView, len(timers))
	for i, t := range timers {
		views[i] = toTimerView(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"timers": views})
}
