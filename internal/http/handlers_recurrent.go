package http

import (
	"net/http"

	"budget/internal/log"
	"budget/internal/services"
)

// Fixed-expense templates. Per-month activation lives under
// /api/months/{month}/fixed-expenses.

func (s *Server) handleListFixed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.svc.FixedExpenses()))
}

func (s *Server) handleCreateFixed(w http.ResponseWriter, r *http.Request) {
	var in services.FixedExpenseInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	fixed, err := s.svc.CreateFixedExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, fixed)
}

func (s *Server) handleUpdateFixed(w http.ResponseWriter, r *http.Request) {
	var in services.FixedExpenseUpdate
	if err := DecodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	fixed, err := s.svc.UpdateFixedExpense(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, fixed)
}

func (s *Server) handleDeleteFixed(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteFixedExpense(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
