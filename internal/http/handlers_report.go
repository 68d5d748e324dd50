package http

import (
	"net/http"
	"strings"

	"timebank/internal/services"
	"timebank/internal/storage"
)

func entryFilterFromQuery(r *http.Request) storage.EntryFilter {
	q := r.URL.Query()
	return storage.EntryFilter{
		WalletID:  int64(queryInt(r, "wallet_id", 0)),
		ClientID:  int64(queryInt(r, "client_id", 0)),
		DateFrom:  strings.TrimSpace(q.Get("from")),
		DateTo:    strings.TrimSpace(q.Get("to")),
		Direction: strings.TrimSpace(q.Get("direction")),
		TagID:     int64(queryInt(r, "tag_id", 0)),
	}
}

type reportEntryView struct {
	Entry      entryView `json:"entry"`
	WalletName string    `json:"wallet_name"`
	ClientID   int64     `json:"client_id"`
	ClientName string    `json:"client_name"`
}

type summaryView struct {
	EntryCount   int    `json:"entry_count"`
	TotalCredits string `json:"total_credits"`
	TotalDebits  string `json:"total_debits"`
	Net          string `json:"net"`
}

func toSummaryView(s services.ReportSummary) summaryView {
	return summaryView{
		EntryCount:   s.EntryCount,
		TotalCredits: s.TotalCredits.String(),
		TotalDebits:  s.TotalDebits.String(),
		Net:          s.Net.String(),
	}
}

func (s *Server) handleReportEntries(w http.ResponseWriter, r *http.Request) {
	rows, err := s.reports.Entries(r.Context(), entryFilterFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]reportEntryView, len(rows))
	for i, row := range rows {
		views[i] = reportEntryView{
			Entry:      toEntryView(row.Entry),
			WalletName: row.WalletName,
			ClientID:   row.ClientID,
			ClientName: row.ClientName,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": views})
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reports.Summary(r.Context(), entryFilterFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryView(summary))
}

func (s *Server) handleReportByWallet(w http.ResponseWriter, r *http.Request) {
	groups, err := s.reports.GroupedByWallet(r.Context(), entryFilterFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	type walletReportView struct {
		WalletID   int64       `json:"wallet_id"`
		WalletName string      `json:"wallet_name"`
		ClientName string      `json:"client_name"`
		Summary    summaryView `json:"summary"`
	}
	views := make([]walletReportView, len(groups))
	for i, g := range groups {
		views[i] = walletReportView{
			WalletID:   g.WalletID,
			WalletName: g.WalletName,
			ClientName: g.ClientName,
			Summary:    toSummaryView(g.Summary),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallets": views})
}
