package handlers

import (
	"net/http"

	"opspulse/internal/auth"
	"opspulse/internal/dashboard"
	"opspulse/internal/logger"
	"opspulse/internal/models"

	"github.com/sirupsen/logrus"
)

// DashboardHandler отдает представления дашборда и принимает команды роли
type DashboardHandler struct {
	dash *dashboard.Dashboard
	log  *logrus.Entry
}

// NewDashboardHandler создает обработчик дашборда
func NewDashboardHandler(dash *dashboard.Dashboard, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		dash: dash,
		log:  log.Component("dashboard_handler"),
	}
}

// Register регистрирует маршруты дашборда
func (h *DashboardHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/view", h.homeView(h.GetView))
	mux.HandleFunc("GET /api/kpis", h.homeView(h.GetKPIs))
	mux.HandleFunc("GET /api/orders", h.requireView(auth.ViewOrders, h.GetOrders))
	mux.HandleFunc("GET /api/orders/pending", h.requireView(auth.ViewOrders, h.GetPendingOrders))
	mux.HandleFunc("GET /api/orders/active", h.requireView(auth.ViewOrders, h.GetActiveOrders))
	mux.HandleFunc("GET /api/orders/delivered", h.requireView(auth.ViewOrders, h.GetDeliveredOrders))
	mux.HandleFunc("GET /api/orders/{id}/nearest-agent", h.requireView(auth.ViewAgents, h.GetNearestAgent))
	mux.HandleFunc("GET /api/map", h.requireView(auth.ViewFleet, h.GetMap))
	mux.HandleFunc("GET /api/routes", h.requireView(auth.ViewFleet, h.GetRoutes))
	mux.HandleFunc("GET /api/stops", h.requireView(auth.ViewAgentMobile, h.GetStops))
	mux.HandleFunc("GET /api/vehicles/choices", h.requireView(auth.ViewAgentMobile, h.GetVehicleChoices))

	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("POST /api/orders/{id}/approve", h.ApproveOrder)
	mux.HandleFunc("POST /api/orders/{id}/status", h.UpdateStatus)
	mux.HandleFunc("POST /api/orders/{id}/delay", h.DelayOrder)
	mux.HandleFunc("POST /api/users/{id}/role", h.ApproveUser)
	mux.HandleFunc("POST /api/vehicles", h.CreateVehicle)
	mux.HandleFunc("POST /api/vehicles/{id}/approve", h.ApproveVehicle)
	mux.HandleFunc("POST /api/vehicles/{id}/assign-agent", h.AssignVehicleAgent)
	mux.HandleFunc("POST /api/agent/position", h.PushPosition)
	mux.HandleFunc("POST /api/refresh", h.Refresh)
}

func (h *DashboardHandler) view() *dashboard.View {
	v := *h.dash.View()
	v.Realtime = h.dash.RealtimeStatus()
	return &v
}

// requireView пропускает запрос, только если роли сессии доступно представление
func (h *DashboardHandler) requireView(p auth.Permission, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := auth.Authorize(h.dash.Session().Role(), p); err != nil {
			writeCommandError(w, err)
			return
		}
		next(w, r)
	}
}

// homeView пропускает запрос к начальному представлению роли
func (h *DashboardHandler) homeView(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := h.dash.Session().Role()
		home, _ := auth.HomeView(role)
		if err := auth.Authorize(role, home); err != nil {
			writeCommandError(w, err)
			return
		}
		next(w, r)
	}
}

// GetView возвращает полное представление сессии
func (h *DashboardHandler) GetView(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.view())
}

// GetOrders возвращает все заказы сессии
func (h *DashboardHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.dash.View().Orders)
}

// GetPendingOrders возвращает заказы, ожидающие одобрения
func (h *DashboardHandler) GetPendingOrders(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.dash.View().PendingOrders())
}

// GetActiveOrders возвращает заказы в работе
func (h *DashboardHandler) GetActiveOrders(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.dash.View().ActiveOrders())
}

// GetDeliveredOrders возвращает доставленные заказы
func (h *DashboardHandler) GetDeliveredOrders(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.dash.View().DeliveredOrders())
}

// MapResponse представляет маркеры карты и область просмотра
type MapResponse struct {
	Markers models.MarkerSet   `json:"markers"`
	Bounds  models.BoundingBox `json:"bounds"`
}

// GetMap возвращает маркеры и границы карты
func (h *DashboardHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	v := h.dash.View()
	writeJSONResponse(w, http.StatusOK, MapResponse{Markers: v.Markers, Bounds: v.Bounds})
}

// GetRoutes возвращает маршруты активных заказов
func (h *DashboardHandler) GetRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.dash.View().Routes)
}

// GetKPIs возвращает показатели панели
func (h *DashboardHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.dash.View().KPIs())
}

// GetStops возвращает маршрутный лист агента
func (h *DashboardHandler) GetStops(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.dash.View().Stops(h.dash.Session().UserID()))
}

// GetVehicleChoices возвращает транспорт, доступный агенту для забора
func (h *DashboardHandler) GetVehicleChoices(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.dash.View().VehicleChoices(h.dash.Session().UserID()))
}

// GetNearestAgent возвращает ближайшего к точке доставки агента
func (h *DashboardHandler) GetNearestAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	near, err := h.dash.View().NearestAgent(id)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, near)
}

// CreateOrder создает заказ
func (h *DashboardHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	order, err := h.dash.CreateOrder(r.Context(), req)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, order)
}

// ApproveOrder одобряет заказ или переназначает агента
func (h *DashboardHandler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.ApproveOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	order, err := h.dash.ApproveOrder(r.Context(), id, req.AssignedAgentID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, order)
}

// UpdateStatus переводит заказ в следующий статус
func (h *DashboardHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.UpdateOrderStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Status.Valid() {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid status")
		return
	}
	order, err := h.dash.UpdateStatus(r.Context(), id, req.Status, req.VehicleID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, order)
}

// DelayOrder ставит отметку о задержке
func (h *DashboardHandler) DelayOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.dash.DelayOrder(r.Context(), id)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, order)
}

// DecisionRequest представляет решение администратора
type DecisionRequest struct {
	Approve bool `json:"approve"`
}

// ApproveUser одобряет или отклоняет пользователя
func (h *DashboardHandler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	var req DecisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.dash.ApproveUser(r.Context(), id, req.Approve)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// CreateVehicle регистрирует транспорт
func (h *DashboardHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVehicleRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	vehicle, err := h.dash.CreateVehicle(r.Context(), req)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, vehicle)
}

// ApproveVehicle фиксирует решение по транспорту
func (h *DashboardHandler) ApproveVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	var req DecisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	vehicle, err := h.dash.ApproveVehicle(r.Context(), id, req.Approve)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, vehicle)
}

// AssignVehicleAgent закрепляет агента за транспортом
func (h *DashboardHandler) AssignVehicleAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.AssignAgentRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	vehicle, err := h.dash.AssignVehicleAgent(r.Context(), id, req.AssignedAgentID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, vehicle)
}

// PushPosition принимает позицию из ленты наблюдения агента
func (h *DashboardHandler) PushPosition(w http.ResponseWriter, r *http.Request) {
	var c models.Coordinate
	if err := decodeBody(r, &c); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.dash.PushPosition(r.Context(), c); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Refresh заново загружает данные сессии
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.dash.Refresh(r.Context()); err != nil {
		h.log.WithError(err).Warn("Refresh failed")
		writeCommandError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.view())
}
