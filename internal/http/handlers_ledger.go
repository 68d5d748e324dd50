package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"timebank/internal/core"
)

type entryRequest struct {
	Hours         string  `json:"hours"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	ReferenceDate string  `json:"reference_date"`
	TagIDs        []int64 `json:"tag_ids"`
}

func (s *Server) handleRecordCredit(w http.ResponseWriter, r *http.Request) {
	s.handleRecordEntry(w, r, s.ledger.RecordCredit)
}

func (s *Server) handleRecordDebit(w http.ResponseWriter, r *http.Request) {
	s.handleRecordEntry(w, r, s.ledger.RecordDebit)
}

func (s *Server) handleRecordAdjustment(w http.ResponseWriter, r *http.Request) {
	s.handleRecordEntry(w, r, s.ledger.RecordAdjustment)
}

type recordFunc func(ctx context.Context, walletID int64, quantity core.Hours, in core.EntryInput) (core.LedgerEntry, error)

func (s *Server) handleRecordEntry(w http.ResponseWriter, r *http.Request, record recordFunc) {
	walletID, err := pathID(r, "walletID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var req entryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	quantity, err := core.ParseHours(strings.TrimSpace(req.Hours))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid hours value"})
		return
	}

	entry, err := record(r.Context(), walletID, quantity, core.EntryInput{
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		ReferenceDate: strings.TrimSpace(req.ReferenceDate),
		TagIDs:        req.TagIDs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.balanceCache.Delete(balanceKey(walletID))
	writeJSON(w, http.StatusCreated, toEntryView(entry))
}

func balanceKey(walletID int64) string {
	return "wallet:" + strconv.FormatInt(walletID, 10)
}

func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathID(r, "walletID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	key := balanceKey(walletID)
	balance, cached := s.balanceCache.Get(key)
	if !cached {
		balance, err = s.ledger.WalletBalance(r.Context(), walletID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.balanceCache.Set(key, balance)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wallet_id": walletID,
		"balance":   balance,
	})
}

func (s *Server) handleWalletEntries(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathID(r, "walletID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 0)

	result, err := s.ledger.WalletEntries(r.Context(), walletID, page, perPage)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries := make([]entryView, len(result.Entries))
	for i, e := range result.Entries {
		entries[i] = toEntryView(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":     entries,
		"total_count": result.TotalCount,
		"page":        result.Page,
		"per_page":    result.PerPage,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
