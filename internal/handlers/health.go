package handlers

import (
	"context"
	"net/http"
	"time"

	"opspulse/internal/realtime"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checker проверяет доступность зависимости
type Checker interface {
	Health(ctx context.Context) error
}

// HealthHandler представляет обработчик для проверки здоровья системы
type HealthHandler struct {
	checkers map[string]Checker
	realtime func() realtime.Status
	version  string
}

// NewHealthHandler создает новый обработчик здоровья.
// Отключенные зависимости (nil) не проверяются.
func NewHealthHandler(checkers map[string]Checker, status func() realtime.Status, version string) *HealthHandler {
	active := make(map[string]Checker, len(checkers))
	for name, c := range checkers {
		if c != nil {
			active[name] = c
		}
	}
	return &HealthHandler{
		checkers: active,
		realtime: status,
		version:  version,
	}
}

// Register регистрирует маршруты здоровья и метрик
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/readiness", h.Readiness)
	mux.HandleFunc("GET /health/liveness", h.Liveness)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// HealthResponse представляет ответ проверки здоровья
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Realtime realtime.Status   `json:"realtime"`
	Version  string            `json:"version"`
	Uptime   string            `json:"uptime"`
}

var startTime = time.Now()

// Health проверяет состояние всех компонентов системы
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	overallStatus := "healthy"

	for name, c := range h.checkers {
		if err := c.Health(ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
		} else {
			services[name] = "healthy"
		}
	}

	// Канал без переподключения: offline означает деградацию, а не отказ
	status := realtime.StatusOffline
	if h.realtime != nil {
		status = h.realtime()
	}
	if status == realtime.StatusOffline && overallStatus == "healthy" {
		overallStatus = "degraded"
	}

	response := HealthResponse{
		Status:   overallStatus,
		Services: services,
		Realtime: status,
		Version:  h.version,
		Uptime:   time.Since(startTime).String(),
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, response)
}

// Readiness проверяет готовность приложения к обработке запросов
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, c := range h.checkers {
		if err := c.Health(ctx); err != nil {
			writeErrorResponse(w, http.StatusServiceUnavailable, name+" not ready")
			return
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Liveness проверяет, что приложение живо
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(startTime).String(),
	})
}
