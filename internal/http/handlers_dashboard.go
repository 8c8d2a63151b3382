package http

import (
	"fmt"
	"net/http"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
)

// monthView returns the cached view for month at the current revision.
func (s *Server) monthView(month core.Month) services.MonthView {
	rev := s.svc.Revision()
	key := fmt.Sprintf("%d:%d:%s", rev.Version, rev.UpdatedAt.UnixNano(), month)
	if view, ok := s.monthCache.Get(key); ok {
		return view
	}
	view := s.svc.Month(month)
	s.monthCache.Set(key, view)
	return view
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	month, err := MonthParam(r, s.svc)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, s.monthView(month))
}

func (s *Server) handleMonthTotals(w http.ResponseWriter, r *http.Request) {
	month, err := MonthParam(r, s.svc)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, s.monthView(month).Totals)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	month, err := MonthParam(r, s.svc)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.monthView(month).Breakdown))
}

func (s *Server) handleFixedStates(w http.ResponseWriter, r *http.Request) {
	month, err := MonthParam(r, s.svc)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.monthView(month).FixedExpenses))
}

type toggleRequest struct {
	Active *bool `json:"active"`
}

// handleToggleFixed activates or deactivates one template for one month
// and answers with the template's state in that month.
func (s *Server) handleToggleFixed(w http.ResponseWriter, r *http.Request) {
	month, err := MonthParam(r, s.svc)
	if err != nil {
		writeError(w, r, log.OpToggle, err)
		return
	}
	var req toggleRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpToggle, err)
		return
	}
	if req.Active == nil {
		writeError(w, r, log.OpToggle, &core.ValidationError{Field: "active", Err: fmt.Errorf("is required")})
		return
	}

	id := r.PathValue("id")
	if err := s.svc.SetFixedExpenseActive(r.Context(), id, month, *req.Active); err != nil {
		writeError(w, r, log.OpToggle, err)
		return
	}
	for _, st := range s.svc.FixedExpenseStates(month) {
		if st.ID == id {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}
	// Deleted between the toggle and the read.
	writeError(w, r, log.OpToggle, &core.NotFoundError{Resource: services.ResourceFixedExpense, ID: id})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	count, err := CountQuery(r, s.historyMonths)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.svc.History(count)))
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
