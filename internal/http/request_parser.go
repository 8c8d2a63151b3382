// Package http serves the budget as a JSON API.
//
// This file implements utilities for reading path, query and body values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"budget/internal/core"
	"budget/internal/services"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 16 << 20
	maxHistory     = 120
)

// MonthParam resolves the {month} path value. "current" and an empty value
// mean the service's current month.
func MonthParam(r *http.Request, svc *services.BudgetService) (core.Month, error) {
	raw := strings.TrimSpace(r.PathValue("month"))
	if raw == "" || raw == "current" {
		return svc.CurrentMonth(), nil
	}
	return services.ParseMonth(raw)
}

// MonthQuery resolves the optional ?month= filter. ok is false when absent.
func MonthQuery(r *http.Request) (m core.Month, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get("month"))
	if raw == "" {
		return core.Month{}, false, nil
	}
	m, err = services.ParseMonth(raw)
	return m, err == nil, err
}

// CountQuery reads ?count=, falling back to def. It must be in [1, 120].
func CountQuery(r *http.Request, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("count"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxHistory {
		return 0, &core.ValidationError{Field: "count", Err: fmt.Errorf("must be a number between 1 and %d", maxHistory)}
	}
	return n, nil
}

// KindQuery reads the optional ?kind= category filter.
func KindQuery(r *http.Request) (core.CategoryKind, error) {
	kind := core.CategoryKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind != "" && !kind.IsValid() {
		return "", &core.ValidationError{Field: "kind", Err: fmt.Errorf("unknown kind %q", kind)}
	}
	return kind, nil
}

// DecodeJSON reads a single JSON object from the body into dst. Unknown
// fields and trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return bodyError(errors.New("unexpected data after JSON object"))
	}
	return nil
}

// ReadImport returns the raw import payload.
func ReadImport(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		return nil, &core.ImportError{Err: err}
	}
	return payload, nil
}

func bodyError(err error) error {
	var (
		field  *core.ValidationError
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &field):
		return field
	case errors.As(err, &tooBig):
		err = fmt.Errorf("body larger than %d bytes", tooBig.Limit)
	case errors.Is(err, io.EOF):
		err = errors.New("empty body")
	}
	return &core.ValidationError{Field: "body", Err: err}
}
