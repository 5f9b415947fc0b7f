package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"opspulse/internal/api"
	"opspulse/internal/auth"
	"opspulse/internal/config"
	"opspulse/internal/lifecycle"
	"opspulse/internal/logger"
	"opspulse/internal/models"
	"opspulse/internal/realtime"

	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func testSession(userID int64, role models.Role) *auth.Session {
	return &auth.Session{
		Profile: "test",
		Token:   "token",
		Claims:  auth.Claims{UserID: userID, Role: role},
	}
}

func mount(t *testing.T, opts Options) *Dashboard {
	t.Helper()
	if opts.Log == nil {
		opts.Log = logger.NewDiscard()
	}
	d := New(opts)
	require.NoError(t, d.Mount(context.Background()))
	t.Cleanup(d.Unmount)
	return d
}

func waitOnline(t *testing.T, d *Dashboard) {
	t.Helper()
	require.Eventually(t, func() bool {
		return d.RealtimeStatus() == realtime.StatusOnline
	}, waitFor, tick)
}

func orderIn(v *View, id int64) *models.Order {
	o, ok := v.Snapshot().Order(id)
	if !ok {
		return nil
	}
	return o
}

// hub рассылает кадры всем подписанным источникам, как fan-out бэкенда
type hub struct {
	mu   sync.Mutex
	subs []chan []byte
}

func (h *hub) broadcast(t *testing.T, ev *models.Event) {
	data, err := realtime.Encode(ev)
	require.NoError(t, err)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s <- data
	}
}

func (h *hub) source() *hubSource {
	return &hubSource{hub: h}
}

type hubSource struct {
	hub       *hub
	onConnect func()
}

func (s *hubSource) OnConnect(fn func()) { s.onConnect = fn }

func (s *hubSource) Run(ctx context.Context, emit func([]byte)) error {
	ch := make(chan []byte, 64)
	s.hub.mu.Lock()
	s.hub.subs = append(s.hub.subs, ch)
	s.hub.mu.Unlock()
	if s.onConnect != nil {
		s.onConnect()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-ch:
			emit(data)
		}
	}
}

// pipeSource отдает кадры из канала, пока он не закрыт
type pipeSource struct {
	frames    chan string
	onConnect func()
}

func newPipeSource() *pipeSource {
	return &pipeSource{frames: make(chan string, 16)}
}

func (s *pipeSource) OnConnect(fn func()) { s.onConnect = fn }

func (s *pipeSource) Run(ctx context.Context, emit func([]byte)) error {
	if s.onConnect != nil {
		s.onConnect()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-s.frames:
			if !ok {
				return nil
			}
			emit([]byte(f))
		}
	}
}

// opsServer изображает REST бэкенд с рассылкой событий
type opsServer struct {
	t   *testing.T
	hub *hub
	url string

	mu        sync.Mutex
	orders    map[int64]*models.Order
	vehicles  map[int64]*models.Vehicle
	users     []*models.User
	locations map[int64]models.AgentLocation
	pushes    int
	nextID    int64
}

func newOpsServer(t *testing.T) *opsServer {
	return &opsServer{
		t:         t,
		hub:       &hub{},
		orders:    make(map[int64]*models.Order),
		vehicles:  make(map[int64]*models.Vehicle),
		locations: make(map[int64]models.AgentLocation),
	}
}

func (s *opsServer) start() string {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders/", s.listOrders)
	mux.HandleFunc("POST /orders/", s.createOrder)
	mux.HandleFunc("PATCH /orders/{id}/approve", s.approveOrder)
	mux.HandleFunc("PATCH /orders/{id}/status", s.updateStatus)
	mux.HandleFunc("GET /vehicles/", s.listVehicles)
	mux.HandleFunc("PATCH /vehicles/{id}/assign-agent", s.assignAgent)
	mux.HandleFunc("GET /locations/", s.listLocations)
	mux.HandleFunc("POST /locations/", s.pushLocation)
	mux.HandleFunc("GET /admin/users/", s.listUsers)
	mux.HandleFunc("GET /agents/", s.listUsers)
	mux.HandleFunc("PATCH /admin/users/{id}/role", s.updateRole)

	srv := httptest.NewServer(mux)
	s.t.Cleanup(srv.Close)
	return srv.URL
}

func (s *opsServer) client(token string) *api.Client {
	if s.url == "" {
		s.url = s.start()
	}
	return api.New(&config.APIConfig{BaseURL: s.url, Timeout: 5 * time.Second}).WithToken(token)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

func (s *opsServer) listOrders(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *opsServer) listVehicles(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *opsServer) listLocations(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AgentLocation, 0, len(s.locations))
	for _, l := range s.locations {
		out = append(out, l)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *opsServer) listUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.users)
}

// createOrder сохраняет заказ под очередным ID без рассылки события
func (s *opsServer) createOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}

	s.mu.Lock()
	s.nextID++
	o := &models.Order{
		ID:                s.nextID,
		CustomerName:      req.CustomerName,
		DeliveryAddress:   req.DeliveryAddress,
		PickupAddress:     req.PickupAddress,
		DeliveryLatitude:  req.DeliveryLatitude,
		DeliveryLongitude: req.DeliveryLongitude,
		PickupLatitude:    req.PickupLatitude,
		PickupLongitude:   req.PickupLongitude,
		Status:            models.OrderStatusPending,
	}
	s.orders[o.ID] = o
	out := o.Clone()
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, out)
}

func (s *opsServer) approveOrder(w http.ResponseWriter, r *http.Request) {
	var req models.ApproveOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}

	s.mu.Lock()
	o, ok := s.orders[pathID(r)]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Order not found"})
		return
	}
	lifecycle.ApplyApprove(o, req.AssignedAgentID)
	out := o.Clone()
	s.mu.Unlock()

	s.hub.broadcast(s.t, &models.Event{Type: models.EventTypeOrderStatus, Data: models.OrderStatusEvent{
		OrderID:         out.ID,
		NewStatus:       out.Status,
		AssignedAgentID: out.AssignedAgentID,
		OwnerID:         out.OwnerID,
	}})
	writeJSON(w, http.StatusOK, out)
}

func (s *opsServer) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}

	s.mu.Lock()
	o, ok := s.orders[pathID(r)]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Order not found"})
		return
	}
	if err := lifecycle.CheckTransition(o, req.Status, req.VehicleID); err != nil {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid status transition"})
		return
	}
	lifecycle.ApplyTransition(o, req.Status, req.VehicleID)
	out := o.Clone()
	s.mu.Unlock()

	s.hub.broadcast(s.t, &models.Event{Type: models.EventTypeOrderStatus, Data: models.OrderStatusEvent{
		OrderID:         out.ID,
		NewStatus:       out.Status,
		AssignedAgentID: out.AssignedAgentID,
		VehicleID:       out.VehicleID,
		OwnerID:         out.OwnerID,
	}})
	writeJSON(w, http.StatusOK, out)
}

func (s *opsServer) assignAgent(w http.ResponseWriter, r *http.Request) {
	var req models.AssignAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[pathID(r)]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Vehicle not found"})
		return
	}
	v.AssignedAgentID = models.Int64(req.AssignedAgentID)
	writeJSON(w, http.StatusOK, v)
}

func (s *opsServer) pushLocation(w http.ResponseWriter, r *http.Request) {
	var req models.PushLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}
	s.mu.Lock()
	s.pushes++
	s.locations[req.AgentID] = models.NewAgentLocation(req.AgentID, models.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude})
	s.mu.Unlock()

	s.hub.broadcast(s.t, &models.Event{Type: models.EventTypeLocationUpdate, Data: models.LocationUpdateEvent{
		AgentID:   req.AgentID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *opsServer) updateRole(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == pathID(r) {
			u.Role = req.Role
			writeJSON(w, http.StatusOK, u)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
}

func (s *opsServer) addUser(u *models.User) {
	s.mu.Lock()
	s.users = append(s.users, u)
	s.mu.Unlock()
}

func (s *opsServer) deleteOrder(id int64) {
	s.mu.Lock()
	delete(s.orders, id)
	s.mu.Unlock()
}
