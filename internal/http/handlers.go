package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"budget/internal/log"
	"budget/internal/services"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	kind, err := KindQuery(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.svc.Categories(kind)))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in services.CategoryInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	cat, err := s.svc.CreateCategory(r.Context(), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in services.CategoryUpdate
	if err := DecodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	cat, err := s.svc.UpdateCategory(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport streams the export file as a download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.Export(&buf); err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	name := fmt.Sprintf("budget-%s.json", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write(buf.Bytes())
}

type importResponse struct {
	Categories       int `json:"categories"`
	Incomes          int `json:"incomes"`
	FixedExpenses    int `json:"fixedExpenses"`
	VariableExpenses int `json:"variableExpenses"`
}

// handleImport replaces the whole budget with the uploaded export file.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	payload, err := ReadImport(w, r)
	if err != nil {
		writeError(w, r, log.OpImport, err)
		return
	}
	snap, err := s.svc.Import(r.Context(), payload)
	if err != nil {
		writeError(w, r, log.OpImport, err)
		return
	}
	s.monthCache.Purge()
	writeJSON(w, http.StatusOK, importResponse{
		Categories:       len(snap.Categories),
		Incomes:          len(snap.Incomes),
		FixedExpenses:    len(snap.FixedExpenses),
		VariableExpenses: len(snap.VariableExpenses),
	})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.SyncStatus())
}

// handleSync forces a reconcile with the replica. A replica failure is a
// 502 carrying the status indicator.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Sync(r.Context())
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Forced sync failed",
			log.FieldOperation, log.OpSync, log.FieldError, err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "sync": report})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
