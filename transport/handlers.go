// Package transport exposes the engine over HTTP: the sender-facing
// intake endpoint plus the operator surface for dead lettered
// deliveries.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/signature"
)

const (
	HeaderDeliveryID = "Delivery-Id"
	HeaderEventType  = "Event-Type"

	defaultMaxBodyBytes int64 = 1 << 20 // 1 MiB
)

// DeliveryEngine is the slice of the engine the HTTP surface needs.
type DeliveryEngine interface {
	Process(ctx context.Context, delivery core.InboundDelivery) (core.Result, error)
	Get(ctx context.Context, deliveryID string) (core.DeliveryRecord, error)
	ListDeadLetters(ctx context.Context, filter core.DeadLetterFilter) (core.DeliveryPage, error)
	Replay(ctx context.Context, deliveryID string) (core.DeliveryRecord, error)
	Purge(ctx context.Context, deliveryID string) error
}

type Handlers struct {
	engine       DeliveryEngine
	maxBodyBytes int64
}

func NewHandlers(engine DeliveryEngine) *Handlers {
	return &Handlers{
		engine:       engine,
		maxBodyBytes: defaultMaxBodyBytes,
	}
}

func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks", h.receiveDelivery).Methods(http.MethodPost)
	router.HandleFunc("/deliveries/dlq", h.listDeadLetters).Methods(http.MethodGet)
	router.HandleFunc("/deliveries/dlq/{deliveryId}/replay", h.replayDelivery).Methods(http.MethodPost)
	router.HandleFunc("/deliveries/dlq/{deliveryId}", h.purgeDelivery).Methods(http.MethodDelete)
	router.HandleFunc("/deliveries/{deliveryId}", h.getDelivery).Methods(http.MethodGet)
}

type deliveryResponse struct {
	DeliveryID string         `json:"delivery_id"`
	EventType  string         `json:"event_type"`
	Status     string         `json:"status"`
	Attempts   int            `json:"attempts"`
	LastError  string         `json:"last_error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type deliveryPageResponse struct {
	Items   []deliveryResponse `json:"items"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
	Total   int                `json:"total"`
	HasNext bool               `json:"has_next"`
}

func (h *Handlers) receiveDelivery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.bodyLimit()+1))
	if err != nil {
		writeError(w, badRequest("transport: read request body failed"))
		return
	}
	if int64(len(body)) > h.bodyLimit() {
		writeError(w, badRequest("transport: request body exceeds limit"))
		return
	}

	delivery := core.InboundDelivery{
		DeliveryID:      strings.TrimSpace(r.Header.Get(HeaderDeliveryID)),
		EventType:       strings.TrimSpace(r.Header.Get(HeaderEventType)),
		SignatureHeader: strings.TrimSpace(r.Header.Get(signature.HeaderName)),
		Body:            body,
		Headers:         flattenHeaders(r.Header),
	}

	result, err := h.engine.Process(r.Context(), delivery)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result.StatusCode, toDeliveryResponse(result.Record, result.Metadata))
}

func (h *Handlers) getDelivery(w http.ResponseWriter, r *http.Request) {
	deliveryID := strings.TrimSpace(mux.Vars(r)["deliveryId"])
	record, err := h.engine.Get(r.Context(), deliveryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryResponse(record, nil))
}

func (h *Handlers) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := core.DeadLetterFilter{
		EventType: strings.TrimSpace(query.Get("eventType")),
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, badRequest("transport: limit must be a non-negative integer"))
			return
		}
		filter.PerPage = limit
	}
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			writeError(w, badRequest("transport: page must be a positive integer"))
			return
		}
		filter.Page = page
	}

	page, err := h.engine.ListDeadLetters(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]deliveryResponse, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, toDeliveryResponse(item, nil))
	}
	writeJSON(w, http.StatusOK, deliveryPageResponse{
		Items:   items,
		Page:    page.Page,
		PerPage: page.PerPage,
		Total:   page.Total,
		HasNext: page.HasNext,
	})
}

func (h *Handlers) replayDelivery(w http.ResponseWriter, r *http.Request) {
	deliveryID := strings.TrimSpace(mux.Vars(r)["deliveryId"])
	record, err := h.engine.Replay(r.Context(), deliveryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryResponse(record, nil))
}

func (h *Handlers) purgeDelivery(w http.ResponseWriter, r *http.Request) {
	deliveryID := strings.TrimSpace(mux.Vars(r)["deliveryId"])
	if err := h.engine.Purge(r.Context(), deliveryID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) bodyLimit() int64 {
	if h == nil || h.maxBodyBytes <= 0 {
		return defaultMaxBodyBytes
	}
	return h.maxBodyBytes
}

func toDeliveryResponse(record core.DeliveryRecord, metadata map[string]any) deliveryResponse {
	return deliveryResponse{
		DeliveryID: record.DeliveryID,
		EventType:  record.EventType,
		Status:     record.Status,
		Attempts:   record.Attempts,
		LastError:  record.LastError,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
		Metadata:   metadata,
	}
}

func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		flat[key] = values[0]
	}
	return flat
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
