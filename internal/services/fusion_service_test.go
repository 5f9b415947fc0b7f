package services

import (
	"testing"

	"opspulse/internal/geo"
	"opspulse/internal/models"
	"opspulse/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearestAgent(t *testing.T) {
	locations := []models.AgentLocation{
		{AgentID: 1, Latitude: 0, Longitude: 0},
		{AgentID: 2, Latitude: 1, Longitude: 1},
	}

	best, dist, ok := NearestAgent(models.Coordinate{Latitude: 0.1, Longitude: 0.1}, locations)
	require.True(t, ok)
	assert.Equal(t, int64(1), best.AgentID)
	assert.InDelta(t, 15.7, dist, 0.1)
}

func TestNearestAgent_TieGoesToFirst(t *testing.T) {
	locations := []models.AgentLocation{
		{AgentID: 7, Latitude: 0, Longitude: 1},
		{AgentID: 3, Latitude: 0, Longitude: -1},
	}
	best, _, ok := NearestAgent(models.Coordinate{}, locations)
	require.True(t, ok)
	assert.Equal(t, int64(7), best.AgentID)

	_, _, ok = NearestAgent(models.Coordinate{}, nil)
	assert.False(t, ok)
}

func TestFuse_OrderMarkersNeedCoordinatesAndNonTerminal(t *testing.T) {
	st := state.New()
	st.Orders.Replace([]*models.Order{
		{ID: 1, Status: models.OrderStatusPending, DeliveryLatitude: models.Float64(9), DeliveryLongitude: models.Float64(38.7),
			PickupLatitude: models.Float64(9.02), PickupLongitude: models.Float64(38.75)},
		{ID: 2, Status: models.OrderStatusDelivered, DeliveryLatitude: models.Float64(9), DeliveryLongitude: models.Float64(38.7)},
		{ID: 3, Status: models.OrderStatusApproved, DeliveryLatitude: models.Float64(9)},
	})

	set := Fuse(st.Snapshot())

	require.Len(t, set.Orders, 1)
	assert.Equal(t, int64(1), set.Orders[0].ID)
	require.Len(t, set.Pickups, 1)
	assert.Equal(t, models.MarkerKindPickup, set.Pickups[0].Kind)
}

func TestFuse_VehicleFollowsAssignedAgent(t *testing.T) {
	st := state.New()
	st.Locations.Upsert(models.AgentLocation{AgentID: 9, Latitude: 9.01, Longitude: 38.76})
	st.Vehicles.Replace([]*models.Vehicle{
		{ID: 3, LicensePlate: "AA-3", ApprovalStatus: models.ApprovalStatusApproved},
		{ID: 4, LicensePlate: "AA-4", ApprovalStatus: models.ApprovalStatusPending,
			CurrentLatitude: models.Float64(9), CurrentLongitude: models.Float64(38)},
		{ID: 5, LicensePlate: "AA-5", ApprovalStatus: models.ApprovalStatusApproved,
			CurrentLatitude: models.Float64(9.05), CurrentLongitude: models.Float64(38.8)},
	})

	set := Fuse(st.Snapshot())
	require.Len(t, set.Vehicles, 1)
	assert.Equal(t, int64(5), set.Vehicles[0].ID)

	v, _ := st.Vehicles.Get(3)
	v.AssignedAgentID = models.Int64(9)

	set = Fuse(st.Snapshot())
	require.Len(t, set.Vehicles, 2)
	assert.Equal(t, int64(3), set.Vehicles[0].ID)
	assert.Equal(t, models.Coordinate{Latitude: 9.01, Longitude: 38.76}, set.Vehicles[0].Position)
}

func TestMapBounds(t *testing.T) {
	assert.Equal(t, geo.DefaultBounds(), MapBounds(models.MarkerSet{}))

	set := models.MarkerSet{Agents: []models.Marker{
		{Position: models.Coordinate{Latitude: 9.0, Longitude: 38.7}},
		{Position: models.Coordinate{Latitude: 9.2, Longitude: 38.9}},
	}}
	box := MapBounds(set)
	assert.InDelta(t, 8.98, box.South, 1e-9)
	assert.InDelta(t, 38.92, box.East, 1e-9)
}

func TestRoutePairs_ActiveOrdersOnly(t *testing.T) {
	st := state.New()
	withPoints := func(id int64, status models.OrderStatus) *models.Order {
		return &models.Order{ID: id, Status: status,
			PickupLatitude: models.Float64(9), PickupLongitude: models.Float64(38.7),
			DeliveryLatitude: models.Float64(9.1), DeliveryLongitude: models.Float64(38.8)}
	}
	st.Orders.Replace([]*models.Order{
		withPoints(1, models.OrderStatusPending),
		withPoints(2, models.OrderStatusInTransit),
		withPoints(3, models.OrderStatusDelivered),
		{ID: 4, Status: models.OrderStatusApproved, DeliveryLatitude: models.Float64(9), DeliveryLongitude: models.Float64(38)},
	})

	pairs := RoutePairs(st.Snapshot())
	require.Len(t, pairs, 1)
	assert.Equal(t, int64(2), pairs[0].OrderID)
	assert.Equal(t, models.Coordinate{Latitude: 9, Longitude: 38.7}, pairs[0].Origin)
}
