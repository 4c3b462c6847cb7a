// Package handlers provides HTTP handlers and middleware for the shoprec
// REST API.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse is the JSON error envelope returned by all handlers.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ProductRequest is the body of product upsert requests from the catalog
// collaborator.
type ProductRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	PriceCents  int64  `json:"price_cents"`
	Stock       int    `json:"stock"`
}

// EventRequest is the body of behavioral event ingest requests.
type EventRequest struct {
	Type      string     `json:"type"` // view or purchase
	SubjectID string     `json:"subject_id"`
	ProductID string     `json:"product_id"`
	Timestamp *time.Time `json:"timestamp,omitempty"` // defaults to ingest time
}

// OrderLineRequest is one line of a completed order.
type OrderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest is the body of completed-order ingest requests.
type OrderRequest struct {
	ID          string             `json:"id"`
	SubjectID   string             `json:"subject_id"`
	Lines       []OrderLineRequest `json:"lines"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// StatsResponse is returned by GET /api/stats.
type StatsResponse struct {
	Products         int    `json:"products"`
	Embeddings       int    `json:"embeddings"`
	EmbedQueueLength int    `json:"embed_queue_length"`
	ProviderDegraded bool   `json:"provider_degraded"`
	TrendingEntries  int    `json:"trending_entries"`
	Version          string `json:"version"`
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(dst)
}

// extractID extracts a path parameter from the request.
func extractID(r *http.Request, key string) string {
	return r.PathValue(key)
}

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing more we can do.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}
