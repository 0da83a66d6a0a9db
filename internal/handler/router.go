package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"doc-merge-server/internal/domain"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(mergeHandler *MergeHandler, logger domain.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware(logger))

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"doc-merge-server"}`))
	}).Methods("GET")

	// API prefix
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/merge", mergeHandler.Merge).Methods("POST")

	// Legacy route kept for clients predating the versioned prefix
	router.HandleFunc("/api/merge", mergeHandler.Merge).Methods("POST")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
		},
		MaxAge: 300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
