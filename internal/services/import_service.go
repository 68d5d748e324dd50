package services

import (
	"context"
	"log/slog"
	"time"

	"timebank/internal/core"
	"timebank/internal/storage"
)

// ImportService ingests batches of pre-parsed spreadsheet rows into draft
// plans, validates each row independently and, on confirmation, atomically
// materializes one ledger adjustment per row.
type ImportService struct {
	repo   *storage.SQLiteRepository
	ledger *LedgerService
	now    func() time.Time
}

func NewImportService(repo *storage.SQLiteRepository, ledger *LedgerService) *ImportService {
	return &ImportService{
		repo:   repo,
		ledger: ledger,
		now:    time.Now,
	}
}

// PlanSource describes the uploaded file behind a plan. Parsing happened
// upstream; the path only matters for artifact cleanup on cancel.
type PlanSource struct {
	OriginalFilename string
	FilePath         string
}

// UpdateRowInput updates a row field-wise; nil fields keep the stored value.
type UpdateRowInput struct {
	ReferenceDate *string
	Hours         *string
	Title         *string
	Description   *string
	Tags          *string // comma-separated names
}

// CreatePlan creates a plan plus one row per input row, preserving source
// order (the header row is already stripped, so numbering starts at 2),
// validates every row and caches the summary.
func (s *ImportService) CreatePlan(ctx context.Context, userID, walletID int64, source PlanSource, rows []core.ImportRowInput) (core.ImportPlan, error) {
	if _, err := s.repo.Queries().GetWallet(ctx, walletID); err != nil {
		return core.ImportPlan{}, err
	}

	var planID int64
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		var err error
		planID, err = q.CreateImportPlan(ctx, storage.CreateImportPlanParams{
			UserID:           userID,
			WalletID:         walletID,
			OriginalFilename: source.OriginalFilename,
			FilePath:         source.FilePath,
		})
		if err != nil {
			return err
		}

		for i, in := range rows {
			rowID, err := q.CreateImportRow(ctx, storage.CreateImportRowParams{
				ImportPlanID:  planID,
				RowNumber:     i + 2,
				ReferenceDate: in.ReferenceDate,
				Hours:         in.Hours,
				Title:         in.Title,
				Description:   in.Description,
				Tags:          core.ParseTagNames(in.Tags),
			})
			if err != nil {
				return err
			}
			if err := s.validateRowTx(ctx, q, rowID); err != nil {
				return err
			}
		}

		return s.recomputeSummaryTx(ctx, q, planID)
	})
	if err != nil {
		return core.ImportPlan{}, err
	}

	slog.InfoContext(ctx, "Import plan created",
		"plan_id", planID, "wallet_id", walletID, "rows", len(rows))
	return s.loadPlan(ctx, planID)
}

// AddRow appends a row after the highest existing row number, validates it
// and recomputes the summary. Rejected once the plan is confirmed.
func (s *ImportService) AddRow(ctx context.Context, planID int64, in core.ImportRowInput) (core.ImportPlanRow, error) {
	var rowID int64
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		plan, err := q.GetImportPlan(ctx, planID)
		if err != nil {
			return err
		}
		if plan.Status == core.PlanConfirmed {
			return core.ErrPlanConfirmed
		}

		max, err := q.MaxRowNumber(ctx, planID)
		if err != nil {
			return err
		}
		rowID, err = q.CreateImportRow(ctx, storage.CreateImportRowParams{
			ImportPlanID:  planID,
			RowNumber:     max + 1,
			ReferenceDate: in.ReferenceDate,
			Hours:         in.Hours,
			Title:         in.Title,
			Description:   in.Description,
			Tags:          core.ParseTagNames(in.Tags),
		})
		if err != nil {
			return err
		}
		if err := s.validateRowTx(ctx, q, rowID); err != nil {
			return err
		}
		return s.recomputeSummaryTx(ctx, q, planID)
	})
	if err != nil {
		return core.ImportPlanRow{}, err
	}
	return s.repo.Queries().GetImportRow(ctx, rowID)
}

// UpdateRow merges the supplied fields into the row, re-validates it and
// recomputes the summary. Rejected once the plan is confirmed.
func (s *ImportService) UpdateRow(ctx context.Context, rowID int64, in UpdateRowInput) (core.ImportPlanRow, error) {
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		row, err := q.GetImportRow(ctx, rowID)
		if err != nil {
			return err
		}
		plan, err := q.GetImportPlan(ctx, row.ImportPlanID)
		if err != nil {
			return err
		}
		if plan.Status == core.PlanConfirmed {
			return core.ErrPlanConfirmed
		}

		params := storage.UpdateImportRowParams{
			RowID:         rowID,
			ReferenceDate: row.ReferenceDate,
			Hours:         row.Hours,
			Title:         row.Title,
			Description:   row.Description,
			Tags:          row.Tags,
		}
		if in.ReferenceDate != nil {
			params.ReferenceDate = *in.ReferenceDate
		}
		if in.Hours != nil {
			params.Hours = *in.Hours
		}
		if in.Title != nil {
			params.Title = *in.Title
		}
		if in.Description != nil {
			params.Description = *in.Description
		}
		if in.Tags != nil {
			params.Tags = core.ParseTagNames(*in.Tags)
		}
		if err := q.UpdateImportRow(ctx, params); err != nil {
			return err
		}
		if err := s.validateRowTx(ctx, q, rowID); err != nil {
			return err
		}
		return s.recomputeSummaryTx(ctx, q, row.ImportPlanID)
	})
	if err != nil {
		return core.ImportPlanRow{}, err
	}
	return s.repo.Queries().GetImportRow(ctx, rowID)
}

// DeleteRow removes a row and recomputes the summary. Rejected once the
// plan is confirmed.
func (s *ImportService) DeleteRow(ctx context.Context, rowID int64) error {
	return s.repo.InTx(ctx, func(q *storage.Queries) error {
		row, err := q.GetImportRow(ctx, rowID)
		if err != nil {
			return err
		}
		plan, err := q.GetImportPlan(ctx, row.ImportPlanID)
		if err != nil {
			return err
		}
		if plan.Status == core.PlanConfirmed {
			return core.ErrPlanConfirmed
		}
		if err := q.DeleteImportRow(ctx, rowID); err != nil {
			return err
		}
		return s.recomputeSummaryTx(ctx, q, row.ImportPlanID)
	})
}

// Confirm materializes every row into a ledger adjustment, resolving tag
// names to identities (creating missing tags) on the way, links each row to
// the entry it produced and flips the plan to confirmed. The whole loop
// plus the status change is one transaction: a failure partway leaves no
// row linked and the plan status untouched.
func (s *ImportService) Confirm(ctx context.Context, planID int64) (core.ImportPlan, error) {
	var entryIDs []int64
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		plan, err := q.GetImportPlan(ctx, planID)
		if err != nil {
			return err
		}
		switch plan.Status {
		case core.PlanConfirmed:
			return core.ErrPlanConfirmed
		case core.PlanCancelled:
			return core.ErrPlanCancelled
		}

		rows, err := q.ListPlanRows(ctx, planID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if !row.IsValid {
				return core.ErrHasInvalidRows
			}
		}

		for _, row := range rows {
			tagIDs := make([]int64, 0, len(row.Tags))
			for _, name := range row.Tags {
				tagID, err := q.GetOrCreateTag(ctx, name)
				if err != nil {
					return err
				}
				tagIDs = append(tagIDs, tagID)
			}

			hours, err := row.HoursValue()
			if err != nil {
				return err
			}
			// The sign is source data: imported rows always take the
			// adjustment path, never credit/debit normalization.
			entryID, err := s.ledger.CreateEntryTx(ctx, q, plan.WalletID, hours, core.EntryInput{
				Title:         row.Title,
				Description:   row.Description,
				ReferenceDate: row.ReferenceDate,
				TagIDs:        tagIDs,
			})
			if err != nil {
				return err
			}
			if err := q.SetRowLedgerEntry(ctx, row.ID, entryID); err != nil {
				return err
			}
			entryIDs = append(entryIDs, entryID)
		}

		return q.ConfirmPlan(ctx, planID, s.now())
	})
	if err != nil {
		return core.ImportPlan{}, err
	}

	for _, entryID := range entryIDs {
		if entry, err := s.ledger.loadEntry(ctx, entryID); err == nil {
			s.ledger.publishEntryRecorded(ctx, entry, "import")
		}
	}

	slog.InfoContext(ctx, "Import plan confirmed", "plan_id", planID, "entries", len(entryIDs))
	return s.loadPlan(ctx, planID)
}

// Cancel flips the plan to cancelled and releases its source artifact.
// Confirmed plans cannot be cancelled.
func (s *ImportService) Cancel(ctx context.Context, planID int64) (core.ImportPlan, error) {
	var filePath string
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		plan, err := q.GetImportPlan(ctx, planID)
		if err != nil {
			return err
		}
		if plan.Status == core.PlanConfirmed {
			return core.ErrPlanConfirmed
		}
		filePath = plan.FilePath
		return q.CancelPlan(ctx, planID)
	})
	if err != nil {
		return core.ImportPlan{}, err
	}

	if err := s.repo.RemoveArtifact(ctx, filePath); err != nil {
		// The plan is cancelled either way; cleanup is best effort.
		slog.ErrorContext(ctx, "Failed to remove import artifact", "plan_id", planID, "error", err)
	}

	return s.loadPlan(ctx, planID)
}

// GetPlan returns a plan with its rows.
func (s *ImportService) GetPlan(ctx context.Context, planID int64) (core.ImportPlan, error) {
	return s.loadPlan(ctx, planID)
}

func (s *ImportService) validateRowTx(ctx context.Context, q *storage.Queries, rowID int64) error {
	row, err := q.GetImportRow(ctx, rowID)
	if err != nil {
		return err
	}
	return q.SetRowValidation(ctx, rowID, row.Validate(s.now()))
}

// recomputeSummaryTx re-derives the plan's aggregate view from its rows,
// the draft-side analogue of the ledger's derived balance: valid/invalid
// counts, the hour sum of valid rows, and pending vs validated status.
func (s *ImportService) recomputeSummaryTx(ctx context.Context, q *storage.Queries, planID int64) error {
	rows, err := q.ListPlanRows(ctx, planID)
	if err != nil {
		return err
	}

	var valid, invalid int
	var total core.Hours
	for _, row := range rows {
		if !row.IsValid {
			invalid++
			continue
		}
		valid++
		if hours, err := row.HoursValue(); err == nil {
			total = total.Add(hours)
		}
	}

	status := core.PlanValidated
	if invalid > 0 {
		status = core.PlanPending
	}

	return q.UpdatePlanSummary(ctx, storage.UpdatePlanSummaryParams{
		PlanID:          planID,
		Status:          status,
		TotalRows:       len(rows),
		ValidRows:       valid,
		InvalidRows:     invalid,
		TotalHoursCenti: total.Centi,
	})
}

func (s *ImportService) loadPlan(ctx context.Context, planID int64) (core.ImportPlan, error) {
	q := s.repo.Queries()
	plan, err := q.GetImportPlan(ctx, planID)
	if err != nil {
		return core.ImportPlan{}, err
	}
	plan.Rows, err = q.ListPlanRows(ctx, planID)
	if err != nil {
		return core.ImportPlan{}, err
	}
	return plan, nil
}
