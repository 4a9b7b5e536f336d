package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/ternarybob/arbor"

	"github.com/trogers1052/market-sync/internal/database"
	"github.com/trogers1052/market-sync/internal/ingest"
	"github.com/trogers1052/market-sync/internal/models"
)

const (
	defaultLimit = 30
	maxLimit     = 1000
)

// Engine is the set of sync entry points exposed over HTTP
type Engine interface {
	SyncAll(ctx context.Context) (*ingest.RunSummary, error)
	SyncNewsAll(ctx context.Context) (*ingest.RunSummary, error)
	SyncEntity(ctx context.Context, ticker string) ingest.EntityResult
}

// Reader serves reconciled rows back to callers
type Reader interface {
	Ping(ctx context.Context) error
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	GetCompanyByTicker(ctx context.Context, ticker string) (*models.Company, error)
	GetPriceBars(ctx context.Context, companyID, limit int) ([]*models.PriceBar, error)
	GetNewsByCompany(ctx context.Context, companyID, limit int) ([]*models.NewsItem, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	engine Engine
	reader Reader
	logger arbor.ILogger
}

// NewHandler creates a new Handler
func NewHandler(engine Engine, reader Reader, logger arbor.ILogger) *Handler {
	return &Handler{
		engine: engine,
		reader: reader,
		logger: logger,
	}
}

// SyncPrices handles POST /sync/prices
func (h *Handler) SyncPrices(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, h.engine.SyncAll)
}

// SyncNews handles POST /sync/news
func (h *Handler) SyncNews(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, h.engine.SyncNewsAll)
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request, run func(context.Context) (*ingest.RunSummary, error)) {
	summary, err := run(r.Context())
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil && summary == nil:
		h.logger.Error().Err(err).Msg("Sync run failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case err != nil:
		// Aborted runs still report what they finished
		h.logger.Warn().Err(err).Str("run_id", summary.RunID).Msg("Sync run aborted")
		respondJSON(w, http.StatusServiceUnavailable, summary)
	default:
		respondJSON(w, http.StatusOK, summary)
	}
}

// SyncSymbol handles POST /sync/prices/{symbol}
func (h *Handler) SyncSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(mux.Vars(r)["symbol"])
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	res := h.engine.SyncEntity(r.Context(), symbol)
	if res.State == ingest.StateFailed {
		respondJSON(w, http.StatusBadGateway, res)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetCompanies handles GET /companies
func (h *Handler) GetCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.reader.ListCompanies(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if companies == nil {
		companies = []*models.Company{}
	}
	respondJSON(w, http.StatusOK, companies)
}

// GetPrices handles GET /companies/{ticker}/prices
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	company, limit, ok := h.lookup(w, r)
	if !ok {
		return
	}

	bars, err := h.reader.GetPriceBars(r.Context(), company.ID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if bars == nil {
		bars = []*models.PriceBar{}
	}
	respondJSON(w, http.StatusOK, bars)
}

// GetNews handles GET /companies/{ticker}/news
func (h *Handler) GetNews(w http.ResponseWriter, r *http.Request) {
	company, limit, ok := h.lookup(w, r)
	if !ok {
		return
	}

	items, err := h.reader.GetNewsByCompany(r.Context(), company.ID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*models.NewsItem{}
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*models.Company, int, bool) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return nil, 0, false
		}
		limit = min(n, maxLimit)
	}

	ticker := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["ticker"]))
	company, err := h.reader.GetCompanyByTicker(r.Context(), ticker)
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, 0, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, 0, false
	}
	return company, limit, true
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.reader.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
