package http

import (
	"net/http"

	"budget/internal/log"
	"budget/internal/services"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	month, ok, err := MonthQuery(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if ok {
		writeJSON(w, http.StatusOK, nonNil(s.svc.VariableExpenses(month)))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.svc.Snapshot().VariableExpenses))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in services.EntryInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	expense, err := s.svc.CreateVariableExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var in services.EntryUpdate
	if err := DecodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	expense, err := s.svc.UpdateVariableExpense(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteVariableExpense(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
