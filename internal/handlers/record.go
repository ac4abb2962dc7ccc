package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cidco-records/apiserver/internal/services"
	"github.com/cidco-records/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
)

// RecordHandler provides record detail and mutation endpoints.
type RecordHandler struct {
	registryService *services.RegistryService
	evidenceService *services.EvidenceService
}

// NewRecordHandler constructs a handler with the provided services.
func NewRecordHandler(registryService *services.RegistryService, evidenceService *services.EvidenceService) *RecordHandler {
	return &RecordHandler{
		registryService: registryService,
		evidenceService: evidenceService,
	}
}

// RecordRouter registers record routes on the given router.
func RecordRouter(r chi.Router, registryService *services.RegistryService, evidenceService *services.EvidenceService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewRecordHandler(registryService, evidenceService)

	r.Get("/record/{recordID}", handler.GetRecord)
	r.With(authMiddleware).Post("/record/update", handler.UpdateRecord)
}

// GetRecord returns the full registry row merged with its freshly resolved
// evidence bundle.
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "recordID"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	record, err := h.registryService.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Record not found")
			return
		}
		slog.Error("failed to fetch record", "record_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	// Stored raw URL columns are internal keys; only freshly minted signed
	// URLs leave the server.
	delete(record, "pdf_url")
	delete(record, "map_url")

	bundle := h.evidenceService.Resolve(r.Context(), id)
	record["images"] = bundle.Images
	record["has_pdf"] = bundle.HasPDF
	record["has_map"] = bundle.HasMap
	record["pdf_url"] = bundle.PDFURL
	record["map_url"] = bundle.MapURL

	writeJSON(w, http.StatusOK, record)
}

// UpdateRecord applies a partial field set to one row. A payload with no ID
// or no writable fields is a silent no-op.
func (h *RecordHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	id := recordIDFromPayload(payload["ID"])
	fields := services.CleanRecordFields(payload)
	if id == "" || len(fields) == 0 {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "No changes"})
		return
	}

	actor := ""
	if subject, ok := r.Context().Value(contextSubjectKey).(string); ok {
		actor = subject
	}

	if err := h.registryService.UpdateRecord(r.Context(), id, fields, actor); err != nil {
		slog.Error("failed to update record", "record_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Record updated successfully"})
}

// MessageResponse is a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// recordIDFromPayload accepts the ID as either a JSON string or number.
func recordIDFromPayload(value any) string {
	switch id := value.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		if id == float64(int64(id)) {
			return fmt.Sprintf("%d", int64(id))
		}
		return fmt.Sprintf("%v", id)
	default:
		return ""
	}
}
