// Package api exposes HTTP handlers for ingestion and summary queries.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"example.com/healthsync/internal/auth"
	"example.com/healthsync/internal/domain"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/health-data", h.ingest)
	mux.HandleFunc("/v1/summaries/", h.summariesByUser)
	mux.HandleFunc("/v1/process/", h.processByUser)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// IngestRequest is the payload for POST /v1/health-data.
type IngestRequest struct {
	UserID  string          `json:"userId"`
	Records []RecordPayload `json:"records"`
}

// RecordPayload is one observation inside an ingestion batch.
type RecordPayload struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Validate ensures request correctness before any side effect.
func (r IngestRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("userId is required")
	}
	if len(r.Records) == 0 {
		return errors.New("records must be a non-empty array")
	}
	for i, record := range r.Records {
		if record.Timestamp.IsZero() {
			return fmt.Errorf("records[%d].timestamp is required", i)
		}
		if len(record.Data) == 0 {
			return fmt.Errorf("records[%d].data is required", i)
		}
	}
	return nil
}

// IngestResponse reports how many records the call carried. Duplicates are
// absorbed silently, so the count can exceed the number of new rows.
type IngestResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeHealthWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope health:write required")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	inputs := make([]domain.RawEventInput, 0, len(req.Records))
	for _, record := range req.Records {
		inputs = append(inputs, domain.RawEventInput{
			Timestamp: record.Timestamp,
			Data:      record.Data,
		})
	}

	count, err := h.service.IngestBatch(r.Context(), req.UserID, inputs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "ingestion failed, batch rolled back")
		return
	}

	writeJSON(w, http.StatusCreated, IngestResponse{
		Message: fmt.Sprintf("Successfully ingested %d records.", count),
		Count:   count,
	})
}

// SummaryView is the external shape of one daily summary.
type SummaryView struct {
	UserID          string    `json:"userId"`
	SummaryDate     string    `json:"summaryDate"`
	TotalSteps      int       `json:"totalSteps"`
	TotalSleepHours float64   `json:"totalSleepHours"`
	AvgHeartRate    float64   `json:"avgHeartRate"`
	CalculationTime time.Time `json:"calculationTime"`
}

func (h *Handler) summariesByUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeHealthRead) && !claims.HasScope(auth.ScopeHealthWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope health:read required")
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/v1/summaries/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing user id")
		return
	}

	summaries, err := h.service.QuerySummaries(r.Context(), userID)
	if err != nil {
		switch {
		// 425 is a synchronization gate, not an error: the summaries are
		// mid-recomputation and a retry observes a stable result.
		case errors.Is(err, domain.ErrProcessingInProgress):
			writeJSON(w, http.StatusTooEarly, map[string]string{
				"message": "Data processing is currently running. Please wait and retry the request.",
				"status":  "processing_pending",
			})
		case errors.Is(err, domain.ErrNoSummaries):
			writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no summary data found for user ID: %s", userID))
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	views := make([]SummaryView, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, toSummaryView(summary))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) processByUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeHealthWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope health:write required")
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/v1/process/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing user id")
		return
	}

	if err := h.service.TriggerProcessing(r.Context(), userID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "could not publish processing notification")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Processing requested for user: %s", userID),
	})
}

func toSummaryView(summary domain.DailySummary) SummaryView {
	return SummaryView{
		UserID:          summary.UserID,
		SummaryDate:     summary.SummaryDate.Format("2006-01-02"),
		TotalSteps:      summary.TotalSteps,
		TotalSleepHours: summary.TotalSleepHours,
		AvgHeartRate:    summary.AvgHeartRate,
		CalculationTime: summary.CalculationTime,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
