package services

import (
	"opspulse/internal/geo"
	"opspulse/internal/models"
	"opspulse/internal/state"
)

// Fuse строит четыре набора маркеров карты из снимка состояния
func Fuse(snap *state.Snapshot) models.MarkerSet {
	set := models.MarkerSet{
		Agents:   []models.Marker{},
		Vehicles: []models.Marker{},
		Orders:   []models.Marker{},
		Pickups:  []models.Marker{},
	}

	for _, loc := range snap.Locations {
		set.Agents = append(set.Agents, models.Marker{
			Kind:     models.MarkerKindAgent,
			ID:       loc.AgentID,
			Label:    snap.AgentName(loc.AgentID),
			Position: loc.Coordinate(),
		})
	}

	for _, v := range snap.Vehicles {
		if v.ApprovalStatus != models.ApprovalStatusApproved {
			continue
		}
		pos, ok := vehiclePosition(snap, v)
		if !ok {
			continue
		}
		set.Vehicles = append(set.Vehicles, models.Marker{
			Kind:     models.MarkerKindVehicle,
			ID:       v.ID,
			Label:    v.LicensePlate,
			Position: pos,
			AgentID:  v.AssignedAgentID,
		})
	}

	for _, o := range snap.Orders {
		if o.Status.IsTerminal() {
			continue
		}
		if c, ok := o.DeliveryCoordinate(); ok {
			set.Orders = append(set.Orders, models.Marker{
				Kind:     models.MarkerKindDelivery,
				ID:       o.ID,
				Label:    o.CustomerName,
				Position: c,
				Status:   o.DisplayStatus(),
				AgentID:  o.AssignedAgentID,
			})
		}
		if c, ok := o.PickupCoordinate(); ok {
			set.Pickups = append(set.Pickups, models.Marker{
				Kind:     models.MarkerKindPickup,
				ID:       o.ID,
				Label:    o.CustomerName,
				Position: c,
				Status:   o.DisplayStatus(),
				AgentID:  o.AssignedAgentID,
				OrderID:  models.Int64(o.ID),
			})
		}
	}

	return set
}

// vehiclePosition возвращает позицию агента транспорта, иначе собственную позицию транспорта
func vehiclePosition(snap *state.Snapshot, v *models.Vehicle) (models.Coordinate, bool) {
	if v.AssignedAgentID != nil {
		if loc, ok := snap.Location(*v.AssignedAgentID); ok {
			return loc.Coordinate(), true
		}
	}
	return v.Position()
}

// NearestAgent возвращает ближайшего по дуге большого круга агента.
// При равенстве расстояний побеждает первый в порядке перебора.
func NearestAgent(target models.Coordinate, locations []models.AgentLocation) (models.AgentLocation, float64, bool) {
	var (
		best     models.AgentLocation
		bestDist float64
		found    bool
	)
	for _, loc := range locations {
		d := geo.HaversineKm(target, loc.Coordinate())
		if !found || d < bestDist {
			best, bestDist, found = loc, d, true
		}
	}
	return best, bestDist, found
}

// MapBounds возвращает область карты, покрывающую все маркеры
func MapBounds(set models.MarkerSet) models.BoundingBox {
	all := set.All()
	points := make([]models.Coordinate, 0, len(all))
	for _, m := range all {
		points = append(points, m.Position)
	}
	return geo.Bounds(points)
}

// RoutePairs возвращает пары забор-доставка активных заказов с обеими точками
func RoutePairs(snap *state.Snapshot) []models.RoutePair {
	var pairs []models.RoutePair
	for _, o := range snap.Orders {
		if !o.Status.IsActive() {
			continue
		}
		origin, ok := o.PickupCoordinate()
		if !ok {
			continue
		}
		dest, ok := o.DeliveryCoordinate()
		if !ok {
			continue
		}
		pairs = append(pairs, models.RoutePair{OrderID: o.ID, Origin: origin, Destination: dest})
	}
	return pairs
}
