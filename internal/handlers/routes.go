package handlers

import (
	"context"
	"net/http"

	"opspulse/internal/logger"
	"opspulse/internal/models"

	"github.com/sirupsen/logrus"
)

// RouteResolver строит маршрут между двумя точками
type RouteResolver interface {
	Resolve(ctx context.Context, origin, destination models.Coordinate) models.Route
}

// RouteHandler представляет обработчик построения маршрутов по запросу
type RouteHandler struct {
	resolver RouteResolver
	log      *logrus.Entry
}

// NewRouteHandler создает обработчик маршрутов
func NewRouteHandler(resolver RouteResolver, log *logger.Logger) *RouteHandler {
	return &RouteHandler{
		resolver: resolver,
		log:      log.Component("route_handler"),
	}
}

// Register регистрирует маршрут
func (h *RouteHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/routes/resolve", h.Resolve)
}

// Resolve строит маршрут from=lat,lon to=lat,lon
func (h *RouteHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	from, err := models.ParseCoordinate(r.URL.Query().Get("from"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := models.ParseCoordinate(r.URL.Query().Get("to"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	route := h.resolver.Resolve(r.Context(), from, to)
	h.log.WithFields(logrus.Fields{
		"provider": route.Provider,
		"points":   len(route.Points),
	}).Debug("Route resolved on request")
	writeJSONResponse(w, http.StatusOK, route)
}
