// Package server provides HTTP server initialization and lifecycle
// management for the shoprec API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/shoprec/internal/config"
	"github.com/scrypster/shoprec/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with
// port 0) and the WebSocketHub for wiring pipeline event broadcasts.
// The server shuts down when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, api *handlers.APIHandlers) (string, *handlers.WebSocketHub) {
	mux := http.NewServeMux()

	wsHub := handlers.NewWebSocketHub()
	go wsHub.Run()

	rateLimiter := handlers.NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			api.GetProduct(w, r)
		case http.MethodPut, http.MethodPost:
			api.UpsertProduct(w, r)
		case http.MethodDelete:
			api.DeleteProduct(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/products/{id}/embedding-status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			api.GetEmbeddingStatus(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			api.PostEvent(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			api.PostOrder(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/recommendations/related/{id}", api.GetRelated)
	apiMux.HandleFunc("/api/recommendations/bought-with/{id}", api.GetBoughtWith)
	apiMux.HandleFunc("/api/recommendations/trending", api.GetTrending)
	apiMux.HandleFunc("/api/recommendations/recently-viewed/{subject}", api.GetRecentlyViewed)
	apiMux.HandleFunc("/api/stats", api.GetStats)

	// Health endpoint outside the auth wrapper, used by monitoring.
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
	})

	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required - origin validation handles security)
	mux.Handle("/ws", wsHub)

	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub
}
