package http

import (
	"net/http"

	"budget/internal/log"
	"budget/internal/services"
)

// handleListIncomes lists incomes, newest first when ?month= is given and
// in insertion order otherwise.
func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	month, ok, err := MonthQuery(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if ok {
		writeJSON(w, http.StatusOK, nonNil(s.svc.Incomes(month)))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.svc.Snapshot().Incomes))
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var in services.EntryInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	income, err := s.svc.CreateIncome(r.Context(), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, income)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	var in services.EntryUpdate
	if err := DecodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	income, err := s.svc.UpdateIncome(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, income)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteIncome(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
