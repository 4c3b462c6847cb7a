package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/shoprec/internal/engine"
	"github.com/scrypster/shoprec/internal/recommend"
	"github.com/scrypster/shoprec/internal/signals"
	"github.com/scrypster/shoprec/internal/storage"
	"github.com/scrypster/shoprec/pkg/types"
)

// Catalog is the read/write catalog surface the API needs: the shared read
// interface plus the upsert and delete operations the storefront's catalog
// sync calls.
type Catalog interface {
	storage.CatalogStore
	UpsertProduct(ctx context.Context, p *types.Product) error
	DeleteProduct(ctx context.Context, productID string) error
}

// DegradedChecker mirrors the orchestrator's view of provider health for the
// stats endpoint.
type DegradedChecker interface {
	Degraded() bool
}

// APIHandlers contains the HTTP handlers for the REST API.
type APIHandlers struct {
	catalog      Catalog
	engine       *engine.RecommendationEngine
	orchestrator *recommend.Orchestrator
	embeddings   storage.EmbeddingStore
	events       storage.EventStore
	coOccurrence *signals.CoOccurrence
	recent       *signals.RecentlyViewed
	trending     *signals.Trending
	degraded     DegradedChecker
}

// NewAPIHandlers creates the APIHandlers. degraded may be nil.
func NewAPIHandlers(
	catalog Catalog,
	eng *engine.RecommendationEngine,
	orchestrator *recommend.Orchestrator,
	embeddings storage.EmbeddingStore,
	events storage.EventStore,
	coOccurrence *signals.CoOccurrence,
	recent *signals.RecentlyViewed,
	trending *signals.Trending,
	degraded DegradedChecker,
) *APIHandlers {
	return &APIHandlers{
		catalog:      catalog,
		engine:       eng,
		orchestrator: orchestrator,
		embeddings:   embeddings,
		events:       events,
		coOccurrence: coOccurrence,
		recent:       recent,
		trending:     trending,
		degraded:     degraded,
	}
}

// UpsertProduct handles PUT /api/products/{id} - create or update a product
// and queue embedding regeneration when the descriptive text changed.
func (h *APIHandlers) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "product ID is required", nil)
		return
	}

	var req ProductRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "title is required", nil)
		return
	}

	product := &types.Product{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		UpdatedAt:   time.Now(),
	}

	if err := h.catalog.UpsertProduct(r.Context(), product); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store product", err)
		return
	}

	// Queue failure is reported but the product write stands; the backfill
	// CLI picks the product up later.
	if err := h.engine.NotifyProductChanged(r.Context(), product); err != nil {
		respondJSON(w, http.StatusAccepted, map[string]interface{}{
			"product":          product,
			"embedding_status": types.EmbeddingFailed,
			"warning":          err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"product":          product,
		"embedding_status": h.engine.EmbeddingStatus(r.Context(), id),
	})
}

// GetProduct handles GET /api/products/{id}.
func (h *APIHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "product ID is required", nil)
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "product not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get product", err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/products/{id} - removes the product and
// its embedding. Behavioral history is retained; dead references age out of
// the trending window and are filtered at read time.
func (h *APIHandlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "product ID is required", nil)
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "product not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete product", err)
		return
	}
	if err := h.engine.NotifyProductDeleted(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete embedding", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// GetEmbeddingStatus handles GET /api/products/{id}/embedding-status.
func (h *APIHandlers) GetEmbeddingStatus(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "product ID is required", nil)
		return
	}
	if _, err := h.catalog.GetProduct(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "product not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get product", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"product_id": id,
		"status":     h.engine.EmbeddingStatus(r.Context(), id),
	})
}

// PostEvent handles POST /api/events - ingest a view or purchase event.
// View events also update the subject's recently-viewed log.
func (h *APIHandlers) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	eventType := types.EventType(req.Type)
	if eventType != types.EventView && eventType != types.EventPurchase {
		respondError(w, http.StatusBadRequest, "type must be view or purchase", nil)
		return
	}
	if req.SubjectID == "" || req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "subject_id and product_id are required", nil)
		return
	}

	ts := time.Now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	event := &types.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		SubjectID: req.SubjectID,
		ProductID: req.ProductID,
		Timestamp: ts,
	}

	if err := h.events.Append(r.Context(), event); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record event", err)
		return
	}

	// The event is durably appended; a failed recently-viewed update is
	// rebuildable from the event log and never blocks the storefront action.
	if eventType == types.EventView {
		if err := h.recent.RecordView(r.Context(), req.SubjectID, req.ProductID); err != nil {
			log.Printf("ERROR: Failed to update recently viewed for %s: %v", req.SubjectID, err)
		}
	}
	respondJSON(w, http.StatusCreated, event)
}

// PostOrder handles POST /api/orders - ingest a completed order. Each line
// is appended as a purchase event and every distinct product pair increments
// the co-occurrence counts once.
func (h *APIHandlers) PostOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	if len(req.Lines) == 0 {
		respondError(w, http.StatusBadRequest, "order must have at least one line", nil)
		return
	}
	if req.SubjectID == "" {
		respondError(w, http.StatusBadRequest, "subject_id is required", nil)
		return
	}

	completedAt := time.Now()
	if req.CompletedAt != nil {
		completedAt = *req.CompletedAt
	}
	order := types.Order{
		ID:          req.ID,
		SubjectID:   req.SubjectID,
		CompletedAt: completedAt,
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for _, line := range req.Lines {
		order.Lines = append(order.Lines, types.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	for _, productID := range order.ProductIDs() {
		event := &types.Event{
			ID:        uuid.New().String(),
			Type:      types.EventPurchase,
			SubjectID: order.SubjectID,
			ProductID: productID,
			Timestamp: completedAt,
		}
		if err := h.events.Append(r.Context(), event); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to record purchase event", err)
			return
		}
	}

	// A failed pair increment never blocks order completion; the counts are
	// rebuildable from the purchase events appended above.
	if err := h.coOccurrence.RecordOrder(r.Context(), order); err != nil {
		log.Printf("ERROR: Failed to record co-occurrence for order %s: %v", order.ID, err)
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "recorded", "order_id": order.ID})
}

// GetRelated handles GET /api/recommendations/related/{id}.
func (h *APIHandlers) GetRelated(w http.ResponseWriter, r *http.Request) {
	h.serveRecommendation(w, r, func(ctx context.Context, id string, limit int) (*types.RecommendationSet, error) {
		return h.orchestrator.Related(ctx, id, limit)
	})
}

// GetBoughtWith handles GET /api/recommendations/bought-with/{id}.
func (h *APIHandlers) GetBoughtWith(w http.ResponseWriter, r *http.Request) {
	h.serveRecommendation(w, r, func(ctx context.Context, id string, limit int) (*types.RecommendationSet, error) {
		return h.orchestrator.FrequentlyBoughtWith(ctx, id, limit)
	})
}

// GetTrending handles GET /api/recommendations/trending.
func (h *APIHandlers) GetTrending(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 0)
	set, err := h.orchestrator.Trending(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get trending products", err)
		return
	}
	respondJSON(w, http.StatusOK, set)
}

// GetRecentlyViewed handles GET /api/recommendations/recently-viewed/{subject}.
func (h *APIHandlers) GetRecentlyViewed(w http.ResponseWriter, r *http.Request) {
	subjectID := extractID(r, "subject")
	if subjectID == "" {
		respondError(w, http.StatusBadRequest, "subject ID is required", nil)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 0)
	set, err := h.orchestrator.RecentlyViewed(r.Context(), subjectID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get recently viewed", err)
		return
	}
	respondJSON(w, http.StatusOK, set)
}

// serveRecommendation is the shared path for per-product recommendation
// queries: extract the ID and limit, run the query, map not-found to 404.
func (h *APIHandlers) serveRecommendation(w http.ResponseWriter, r *http.Request, query func(ctx context.Context, id string, limit int) (*types.RecommendationSet, error)) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "product ID is required", nil)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 0)

	set, err := query(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "product not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "recommendation query failed", err)
		return
	}
	respondJSON(w, http.StatusOK, set)
}

// GetStats handles GET /api/stats.
func (h *APIHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := StatsResponse{
		EmbedQueueLength: h.engine.QueueLength(),
		Version:          "1.0.0",
	}

	if products, err := h.catalog.AllProducts(r.Context()); err == nil {
		stats.Products = len(products)
	}
	if embeddings, err := h.embeddings.GetAll(r.Context()); err == nil {
		stats.Embeddings = len(embeddings)
	}
	if entries, err := h.trending.Get(r.Context(), 0); err == nil {
		stats.TrendingEntries = len(entries)
	}
	if h.degraded != nil {
		stats.ProviderDegraded = h.degraded.Degraded()
	}
	respondJSON(w, http.StatusOK, stats)
}
