package services

import (
	"context"

	"timebank/internal/core"
	"timebank/internal/storage"
)

// ReportService aggregates the ledger read-path. It never writes; all the
// sums are exact integer folds over centihours.
type ReportService struct {
	repo *storage.SQLiteRepository
}

func NewReportService(repo *storage.SQLiteRepository) *ReportService {
	return &ReportService{repo: repo}
}

type ReportSummary struct {
	EntryCount   int
	TotalCredits core.Hours
	TotalDebits  core.Hours
	Net          core.Hours
}

type WalletReport struct {
	WalletID   int64
	WalletName string
	ClientName string
	Summary    ReportSummary
}

// Entries returns the filtered report rows.
func (s *ReportService) Entries(ctx context.Context, f storage.EntryFilter) ([]storage.ReportEntry, error) {
	return s.repo.Queries().ListEntriesFiltered(ctx, f)
}

// Summary totals the filtered entries: credits, debits and the net sum.
func (s *ReportService) Summary(ctx context.Context, f storage.EntryFilter) (ReportSummary, error) {
	entries, err := s.repo.Queries().ListEntriesFiltered(ctx, f)
	if err != nil {
		return ReportSummary{}, err
	}
	return summarize(entries), nil
}

// GroupedByWallet buckets the filtered entries per wallet with a summary
// each, ordered by wallet id.
func (s *ReportService) GroupedByWallet(ctx context.Context, f storage.EntryFilter) ([]WalletReport, error) {
	entries, err := s.repo.Queries().ListEntriesFiltered(ctx, f)
	if err != nil {
		return nil, err
	}

	byWallet := make(map[int64][]storage.ReportEntry)
	var order []int64
	for _, e := range entries {
		if _, seen := byWallet[e.Entry.WalletID]; !seen {
			order = append(order, e.Entry.WalletID)
		}
		byWallet[e.Entry.WalletID] = append(byWallet[e.Entry.WalletID], e)
	}

	reports := make([]WalletReport, 0, len(order))
	for _, walletID := range order {
		group := byWallet[walletID]
		reports = append(reports, WalletReport{
			WalletID:   walletID,
			WalletName: group[0].WalletName,
			ClientName: group[0].ClientName,
			Summary:    summarize(group),
		})
	}
	return reports, nil
}

func summarize(entries []storage.ReportEntry) ReportSummary {
	var s ReportSummary
	s.EntryCount = len(entries)
	for _, e := range entries {
		if e.Entry.Hours.Centi > 0 {
			s.TotalCredits = s.TotalCredits.Add(e.Entry.Hours)
		} else {
			s.TotalDebits = s.TotalDebits.Add(e.Entry.Hours)
		}
		s.Net = s.Net.Add(e.Entry.Hours)
	}
	return s
}
