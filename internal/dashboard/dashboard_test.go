package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"opspulse/internal/api"
	"opspulse/internal/auth"
	"opspulse/internal/lifecycle"
	"opspulse/internal/models"
	"opspulse/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder5(srv *opsServer) {
	srv.orders[5] = &models.Order{
		ID:                5,
		CustomerName:      "Abebe Kebede",
		DeliveryAddress:   "Bole Road",
		DeliveryLatitude:  models.Float64(8.99),
		DeliveryLongitude: models.Float64(38.79),
		PickupLatitude:    models.Float64(9.03),
		PickupLongitude:   models.Float64(38.74),
		Status:            models.OrderStatusPending,
		OwnerID:           models.Int64(2),
	}
	srv.vehicles[3] = &models.Vehicle{
		ID:             3,
		LicensePlate:   "AA-3-12345",
		Status:         models.VehicleStatusAvailable,
		ApprovalStatus: models.ApprovalStatusApproved,
		OwnerID:        2,
	}
	srv.users = []*models.User{{ID: 9, Name: "Dawit", Role: models.RoleAgent}}
}

func TestLifecycle_Order5ThroughAgent9AndVehicle3(t *testing.T) {
	srv := newOpsServer(t)
	seedOrder5(srv)

	admin := mount(t, Options{Session: testSession(1, models.RoleAdmin), Backend: srv.client("admin"), Source: srv.hub.source()})
	agent := mount(t, Options{Session: testSession(9, models.RoleAgent), Backend: srv.client("agent"), Source: srv.hub.source()})
	waitOnline(t, admin)
	waitOnline(t, agent)

	require.Len(t, admin.View().PendingOrders(), 1)
	assert.Empty(t, agent.View().Orders)

	ctx := context.Background()

	_, err := agent.ApproveOrder(ctx, 5, 9)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	o, err := admin.ApproveOrder(ctx, 5, 9)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusApproved, o.Status)
	assert.Equal(t, int64(9), *o.AssignedAgentID)

	require.Eventually(t, func() bool { return orderIn(agent.View(), 5) != nil }, waitFor, tick)
	stops := agent.View().Stops(9)
	require.Len(t, stops, 1)
	assert.True(t, stops[0].Current)
	assert.Equal(t, models.OrderStatusPickedUp, stops[0].NextStatus)
	assert.True(t, stops[0].NeedsVehicle)

	_, err = agent.UpdateStatus(ctx, 5, models.OrderStatusPickedUp, nil)
	assert.ErrorIs(t, err, lifecycle.ErrVehicleRequired)

	_, err = agent.UpdateStatus(ctx, 5, models.OrderStatusDelivered, models.Int64(3))
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	o, err = agent.UpdateStatus(ctx, 5, models.OrderStatusPickedUp, models.Int64(3))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPickedUp, o.Status)
	assert.Equal(t, int64(3), *o.VehicleID)
	assert.Equal(t, "Abebe Kebede", o.CustomerName)

	_, err = agent.UpdateStatus(ctx, 5, models.OrderStatusInTransit, nil)
	require.NoError(t, err)
	o, err = agent.UpdateStatus(ctx, 5, models.OrderStatusDelivered, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, o.Status)

	_, err = agent.UpdateStatus(ctx, 5, models.OrderStatusInTransit, nil)
	assert.ErrorIs(t, err, lifecycle.ErrOrderTerminal)

	require.Eventually(t, func() bool {
		o := orderIn(admin.View(), 5)
		return o != nil && o.Status == models.OrderStatusDelivered
	}, waitFor, tick)
	assert.Equal(t, 1, admin.View().KPIs().Delivered)
	assert.Equal(t, 0, admin.View().KPIs().ActiveOrders)
	assert.Empty(t, agent.View().Stops(9))
}

func TestVehicleMarker_AppearsAfterAgentAssignment(t *testing.T) {
	srv := newOpsServer(t)
	seedOrder5(srv)
	srv.locations[9] = models.NewAgentLocation(9, models.Coordinate{Latitude: 9.01, Longitude: 38.76})

	owner := mount(t, Options{Session: testSession(2, models.RoleOwner), Backend: srv.client("owner"), Source: srv.hub.source()})
	agent := mount(t, Options{Session: testSession(9, models.RoleAgent), Backend: srv.client("agent"), Source: srv.hub.source()})
	waitOnline(t, owner)
	waitOnline(t, agent)

	assert.Empty(t, owner.View().Markers.Vehicles)
	require.Len(t, owner.View().Markers.Agents, 1)

	v, err := owner.AssignVehicleAgent(context.Background(), 3, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), *v.AssignedAgentID)

	markers := owner.View().Markers.Vehicles
	require.Len(t, markers, 1)
	assert.Equal(t, int64(3), markers[0].ID)
	assert.Equal(t, models.Coordinate{Latitude: 9.01, Longitude: 38.76}, markers[0].Position)

	// Агент сдвинулся: маркер транспорта следует за ним
	require.NoError(t, agent.PushPosition(context.Background(), models.Coordinate{Latitude: 9.02, Longitude: 38.77}))
	require.Eventually(t, func() bool {
		m := owner.View().Markers.Vehicles
		return len(m) == 1 && m[0].Position == models.Coordinate{Latitude: 9.02, Longitude: 38.77}
	}, waitFor, tick)
}

func TestOwnerScoping_DiscardsForeignEvents(t *testing.T) {
	srv := newOpsServer(t)
	src := newPipeSource()
	owner := mount(t, Options{Session: testSession(2, models.RoleOwner), Backend: srv.client("owner"), Source: src})

	src.frames <- `{"event":"order_created","order_id":10,"customer_name":"Foreign","owner_id":7}`
	src.frames <- `{"event":"order_created","order_id":11,"customer_name":"Mine","owner_id":2}`
	src.frames <- `{"event":"order_status","order_id":12,"new_status":"approved"}`
	src.frames <- `{"event":"order_status","order_id":10,"new_status":"approved","owner_id":7}`
	src.frames <- `{"event":"order_status","order_id":11,"new_status":"approved","assigned_agent_id":9}`

	require.Eventually(t, func() bool {
		o := orderIn(owner.View(), 11)
		return o != nil && o.Status == models.OrderStatusApproved
	}, waitFor, tick)

	v := owner.View()
	assert.Nil(t, orderIn(v, 10))
	assert.Nil(t, orderIn(v, 12))
	assert.Len(t, v.Orders, 1)
	assert.Equal(t, "Mine", v.Orders[0].CustomerName)
}

func TestChannelClose_GoesOfflineAndKeepsState(t *testing.T) {
	srv := newOpsServer(t)
	seedOrder5(srv)
	src := newPipeSource()
	admin := mount(t, Options{Session: testSession(1, models.RoleAdmin), Backend: srv.client("admin"), Source: src})
	waitOnline(t, admin)

	close(src.frames)

	require.Eventually(t, func() bool {
		return admin.View().Realtime == realtime.StatusOffline
	}, waitFor, tick)
	assert.False(t, admin.View().Online())
	assert.Len(t, admin.View().Orders, 1)

	// Команды продолжают работать без канала
	_, err := admin.ApproveOrder(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusApproved, orderIn(admin.View(), 5).Status)
}

func TestCommandFailure_LeavesStateUnchanged(t *testing.T) {
	srv := newOpsServer(t)
	seedOrder5(srv)
	admin := mount(t, Options{Session: testSession(1, models.RoleAdmin), Backend: srv.client("admin")})

	srv.deleteOrder(5)
	before := admin.View().Version

	_, err := admin.ApproveOrder(context.Background(), 5, 9)
	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Order not found", apiErr.Message)

	v := admin.View()
	assert.Equal(t, before, v.Version)
	assert.Equal(t, models.OrderStatusPending, orderIn(v, 5).Status)

	_, err = admin.ApproveOrder(context.Background(), 404, 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserSignup_RefetchesAndApproves(t *testing.T) {
	srv := newOpsServer(t)
	src := newPipeSource()
	admin := mount(t, Options{Session: testSession(1, models.RoleAdmin), Backend: srv.client("admin"), Source: src})

	srv.addUser(&models.User{ID: 12, Name: "Selam", Role: models.RoleAgentPending})
	src.frames <- `{"event":"user_signup","user_id":12,"role":"agent_pending"}`

	require.Eventually(t, func() bool {
		_, ok := admin.View().Snapshot().User(12)
		return ok
	}, waitFor, tick)

	u, err := admin.ApproveUser(context.Background(), 12, true)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAgent, u.Role)
	assert.Equal(t, 1, admin.View().KPIs().Agents)

	_, err = admin.ApproveUser(context.Background(), 12, true)
	assert.ErrorIs(t, err, ErrUserNotPending)
}

type recordingRouter struct {
	block bool
}

func (r recordingRouter) ResolveBatch(ctx context.Context, pairs []models.RoutePair) map[int64]models.Route {
	if r.block {
		<-ctx.Done()
	}
	out := make(map[int64]models.Route, len(pairs))
	for _, p := range pairs {
		out[p.OrderID] = models.Route{Points: []models.Coordinate{p.Origin, p.Destination}, Provider: "test"}
	}
	return out
}

func TestRoutes_ResolvedForActiveOrders(t *testing.T) {
	srv := newOpsServer(t)
	seedOrder5(srv)
	srv.orders[5].Status = models.OrderStatusApproved
	srv.orders[5].AssignedAgentID = models.Int64(9)

	admin := mount(t, Options{Session: testSession(1, models.RoleAdmin), Backend: srv.client("admin"), Router: recordingRouter{}})

	require.Eventually(t, func() bool {
		_, ok := admin.View().Routes[5]
		return ok
	}, waitFor, tick)
	assert.Equal(t, "test", admin.View().Routes[5].Provider)
}

func TestUnmount_DiscardsLateResults(t *testing.T) {
	srv := newOpsServer(t)
	seedOrder5(srv)
	srv.orders[5].Status = models.OrderStatusApproved
	srv.orders[5].AssignedAgentID = models.Int64(9)

	d := New(Options{Session: testSession(1, models.RoleAdmin), Backend: srv.client("admin"), Router: recordingRouter{block: true}})
	require.NoError(t, d.Mount(context.Background()))
	require.ErrorIs(t, d.Mount(context.Background()), ErrAlreadyMounted)

	d.Unmount()

	assert.False(t, d.Alive())
	assert.Empty(t, d.View().Routes)
	_, err := d.ApproveOrder(context.Background(), 5, 9)
	assert.ErrorIs(t, err, ErrNotMounted)
}

type memoryJournal struct {
	mu     sync.Mutex
	events []*models.Event
}

func (j *memoryJournal) Publish(ev *models.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
	return nil
}

func (j *memoryJournal) len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}

func TestJournal_RecordsAppliedEvents(t *testing.T) {
	srv := newOpsServer(t)
	src := newPipeSource()
	journal := &memoryJournal{}
	mount(t, Options{Session: testSession(1, models.RoleAdmin), Backend: srv.client("admin"), Source: src, Journal: journal})

	src.frames <- `{"event":"location_update","agent_id":9,"latitude":9.01,"longitude":38.76}`
	src.frames <- `{"event":"order_created","order_id":1,"customer_name":"A"}`

	require.Eventually(t, func() bool { return journal.len() == 2 }, waitFor, tick)
}

func TestMount_RejectsPendingRole(t *testing.T) {
	srv := newOpsServer(t)
	d := New(Options{Session: testSession(4, models.RoleOwnerPending), Backend: srv.client("x")})
	assert.ErrorIs(t, d.Mount(context.Background()), auth.ErrForbidden)
}

func TestCommands_RejectInvalidInputBeforeCallingBackend(t *testing.T) {
	srv := newOpsServer(t)
	owner := mount(t, Options{Session: testSession(2, models.RoleOwner), Backend: srv.client("owner")})

	_, err := owner.CreateOrder(context.Background(), models.CreateOrderRequest{CustomerName: "  ", DeliveryAddress: "Bole"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = owner.CreateOrder(context.Background(), models.CreateOrderRequest{
		CustomerName:     "Abebe",
		DeliveryAddress:  "Bole",
		DeliveryLatitude: models.Float64(123),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = owner.CreateVehicle(context.Background(), models.CreateVehicleRequest{LicensePlate: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	agent := mount(t, Options{Session: testSession(9, models.RoleAgent), Backend: srv.client("agent")})
	err = agent.PushPosition(context.Background(), models.Coordinate{Latitude: 91, Longitude: 38.7})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, srv.pushes)
}

func TestCreateOrder_MergesResponseAfterCreatedEvent(t *testing.T) {
	srv := newOpsServer(t)
	srv.nextID = 41
	src := newPipeSource()
	owner := mount(t, Options{Session: testSession(7, models.RoleOwner), Backend: srv.client("owner"), Source: src})
	waitOnline(t, owner)

	src.frames <- `{"event":"order_created","order_id":42,"customer_name":"Abebe","owner_id":7}`
	require.Eventually(t, func() bool { return orderIn(owner.View(), 42) != nil }, waitFor, tick)
	assert.Empty(t, owner.View().Markers.Orders)

	created, err := owner.CreateOrder(context.Background(), models.CreateOrderRequest{
		CustomerName:      "Abebe",
		DeliveryAddress:   "Bole Road",
		DeliveryLatitude:  models.Float64(9.0),
		DeliveryLongitude: models.Float64(38.7),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
	assert.Equal(t, "Bole Road", created.DeliveryAddress)
	require.NotNil(t, created.DeliveryLatitude)
	assert.Equal(t, 9.0, *created.DeliveryLatitude)

	v := owner.View()
	assert.Len(t, v.Orders, 1)
	require.Len(t, v.Markers.Orders, 1)
	assert.Equal(t, int64(42), v.Markers.Orders[0].ID)
}
