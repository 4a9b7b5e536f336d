package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Manual triggers
	api.HandleFunc("/sync/prices", handler.SyncPrices).Methods("POST")
	api.HandleFunc("/sync/news", handler.SyncNews).Methods("POST")
	api.HandleFunc("/sync/prices/{symbol}", handler.SyncSymbol).Methods("POST")

	// Read-back
	api.HandleFunc("/companies", handler.GetCompanies).Methods("GET")
	api.HandleFunc("/companies/{ticker}/prices", handler.GetPrices).Methods("GET")
	api.HandleFunc("/companies/{ticker}/news", handler.GetNews).Methods("GET")

	return r
}
