package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/apphive/crm-handoff/internal/crm"
	"github.com/apphive/crm-handoff/internal/export"
	"github.com/apphive/crm-handoff/internal/state"
)

type handlers struct {
	exporter Exporter
	tokens   crm.TokenSource
}

func (*handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// exportCandidate triggers a full export. The query parameter linkToJob
// requests attachment to the configured assignment.
func (h *handlers) exportCandidate(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")
	opts := export.Options{
		LinkToJob: r.URL.Query().Get("linkToJob") == "true",
	}

	report, err := h.exporter.ExportCandidate(r.Context(), candidateID, opts)
	if err != nil {
		status := http.StatusBadGateway
		var parseErr *export.ParseError
		if errors.As(err, &parseErr) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) exportFiles(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")

	if err := h.exporter.ExportFiles(r.Context(), candidateID); err != nil {
		if errors.Is(err, state.ErrNotSynced) {
			writeError(w, http.StatusNotFound, err, nil)
			return
		}
		writeError(w, http.StatusBadGateway, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkConnect verifies that a bearer token can be produced, acquiring one
// if necessary.
func (h *handlers) checkConnect(w http.ResponseWriter, r *http.Request) {
	if _, err := h.tokens.Token(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"status":  false,
			"message": "connection failed: " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  true,
		"message": "connected",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error, report *export.Report) {
	body := map[string]any{"error": err.Error()}
	if report != nil {
		body["report"] = report
	}
	writeJSON(w, status, body)
}
