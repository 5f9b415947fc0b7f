package handlers

import (
	"net/http"

	"opspulse/internal/logger"
	"opspulse/internal/services"
)

// CacheHandler представляет обработчик для кеша
type CacheHandler struct {
	cacheService *services.CacheService
	log          *logger.Logger
}

// NewCacheHandler создает новый обработчик кеша
func NewCacheHandler(cacheService *services.CacheService, log *logger.Logger) *CacheHandler {
	return &CacheHandler{
		cacheService: cacheService,
		log:          log,
	}
}

// Register регистрирует маршрут метрик кеша
func (h *CacheHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cache/metrics", h.GetMetrics)
}

// GetMetrics возвращает метрики кеширования маршрутов и геокодинга
func (h *CacheHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.cacheService.GetMetrics(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to get cache metrics")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to get cache metrics")
		return
	}

	writeJSONResponse(w, http.StatusOK, metrics)
}
