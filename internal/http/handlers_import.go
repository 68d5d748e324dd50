package http

import (
	"net/http"
	"strings"

	"timebank/internal/core"
	"timebank/internal/services"
)

type importRowRequest struct {
	ReferenceDate string `json:"reference_date"`
	Hours         string `json:"hours"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Tags          string `json:"tags"`
}

func (rr importRowRequest) toInput() core.ImportRowInput {
	return core.ImportRowInput{
		ReferenceDate: strings.TrimSpace(rr.ReferenceDate),
		Hours:         strings.TrimSpace(rr.Hours),
		Title:         strings.TrimSpace(rr.Title),
		Description:   strings.TrimSpace(rr.Description),
		Tags:          rr.Tags,
	}
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	var req struct {
		WalletID         int64              `json:"wallet_id"`
		OriginalFilename string             `json:"original_filename"`
		FilePath         string             `json:"file_path"`
		Rows             []importRowRequest `json:"rows"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	rows := make([]core.ImportRowInput, len(req.Rows))
	for i, rr := range req.Rows {
		rows[i] = rr.toInput()
	}

	plan, err := s.imports.CreatePlan(r.Context(), uid, req.WalletID, services.PlanSource{
		OriginalFilename: req.OriginalFilename,
		FilePath:         req.FilePath,
	}, rows)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPlanView(plan))
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r, "planID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	plan, err := s.imports.GetPlan(r.Context(), planID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanView(plan))
}

func (s *Server) handleConfirmPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r, "planID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	plan, err := s.imports.Confirm(r.Context(), planID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.balanceCache.Delete(balanceKey(plan.WalletID))
	writeJSON(w, http.StatusOK, toPlanView(plan))
}

func (s *Server) handleCancelPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r, "planID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	plan, err := s.imports.Cancel(r.Context(), planID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanView(plan))
}

func (s *Server) handleAddPlanRow(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r, "planID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var req importRowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	row, err := s.imports.AddRow(r.Context(), planID, req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPlanRowView(row))
}

func (s *Server) handleUpdatePlanRow(w http.ResponseWriter, r *http.Request) {
	rowID, err := pathID(r, "rowID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var req struct {
		ReferenceDate *string `json:"reference_date"`
		Hours         *string `json:"hours"`
		Title         *string `json:"title"`
		Description   *string `json:"description"`
		Tags          *string `json:"tags"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	row, err := s.imports.UpdateRow(r.Context(), rowID, services.UpdateRowInput{
		ReferenceDate: req.ReferenceDate,
		Hours:         req.Hours,
		Title:         req.Title,
		Description:   req.Description,
		Tags:          req.Tags,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanRowView(row))
}

func (s *Server) handleDeletePlanRow(w http.ResponseWriter, r *http.Request) {
	rowID, err := pathID(r, "rowID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.imports.DeleteRow(r.Context(), rowID); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
