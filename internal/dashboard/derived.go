package dashboard

import (
	"fmt"
	"sort"

	"opspulse/internal/lifecycle"
	"opspulse/internal/models"
	"opspulse/internal/services"
)

// KPIs содержит показатели панели администратора
type KPIs struct {
	ActiveOrders int `json:"active_orders"`
	Agents       int `json:"agents"`
	Delivered    int `json:"delivered"`
	Pending      int `json:"pending"`
}

// KPIs считает показатели по представлению
func (v *View) KPIs() KPIs {
	var k KPIs
	for _, o := range v.Orders {
		switch {
		case o.Status.IsActive():
			k.ActiveOrders++
		case o.Status == models.OrderStatusDelivered:
			k.Delivered++
		case o.Status == models.OrderStatusPending:
			k.Pending++
		}
	}
	for _, u := range v.Users {
		if u.Role == models.RoleAgent {
			k.Agents++
		}
	}
	return k
}

// OrdersBy возвращает заказы, прошедшие фильтр
func (v *View) OrdersBy(keep func(*models.Order) bool) []*models.Order {
	out := make([]*models.Order, 0, len(v.Orders))
	for _, o := range v.Orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// PendingOrders возвращает заказы, ожидающие одобрения
func (v *View) PendingOrders() []*models.Order {
	return v.OrdersBy(func(o *models.Order) bool { return o.Status == models.OrderStatusPending })
}

// ActiveOrders возвращает заказы в работе
func (v *View) ActiveOrders() []*models.Order {
	return v.OrdersBy(func(o *models.Order) bool { return o.Status.IsActive() })
}

// DeliveredOrders возвращает доставленные заказы
func (v *View) DeliveredOrders() []*models.Order {
	return v.OrdersBy(func(o *models.Order) bool { return o.Status == models.OrderStatusDelivered })
}

// Stop представляет остановку в маршрутном листе агента
type Stop struct {
	Order        *models.Order      `json:"order"`
	Current      bool               `json:"current"`
	NextStatus   models.OrderStatus `json:"next_status,omitempty"`
	NeedsVehicle bool               `json:"needs_vehicle"`
}

func stopPriority(s models.OrderStatus) int {
	switch s {
	case models.OrderStatusApproved:
		return 1
	case models.OrderStatusPickedUp:
		return 2
	case models.OrderStatusInTransit:
		return 3
	}
	return 4
}

// Stops возвращает недоставленные заказы агента: approved, затем picked_up, затем in_transit.
// Текущей считается первая остановка в пути или с забранным грузом, иначе первая.
func (v *View) Stops(agentID int64) []Stop {
	orders := v.OrdersBy(func(o *models.Order) bool {
		return o.AssignedAgentID != nil && *o.AssignedAgentID == agentID &&
			o.Status != models.OrderStatusDelivered
	})
	sort.SliceStable(orders, func(i, j int) bool {
		return stopPriority(orders[i].Status) < stopPriority(orders[j].Status)
	})

	stops := make([]Stop, 0, len(orders))
	current := -1
	for i, o := range orders {
		next := lifecycle.Next(o.Status)
		stops = append(stops, Stop{
			Order:        o,
			NextStatus:   next,
			NeedsVehicle: next == models.OrderStatusPickedUp,
		})
		if current < 0 && (o.Status == models.OrderStatusInTransit || o.Status == models.OrderStatusPickedUp) {
			current = i
		}
	}
	if current < 0 && len(stops) > 0 {
		current = 0
	}
	if current >= 0 {
		stops[current].Current = true
	}
	return stops
}

// VehicleChoices возвращает транспорт, который агент может выбрать при заборе
func (v *View) VehicleChoices(agentID int64) []*models.Vehicle {
	out := make([]*models.Vehicle, 0)
	for _, veh := range v.Vehicles {
		if veh.ApprovalStatus != models.ApprovalStatusApproved {
			continue
		}
		mine := veh.AssignedAgentID != nil && *veh.AssignedAgentID == agentID
		if veh.Status == models.VehicleStatusAvailable || mine {
			out = append(out, veh)
		}
	}
	return out
}

// NearestAgent описывает ближайшего к точке доставки агента
type NearestAgent struct {
	AgentID    int64                `json:"agent_id"`
	Name       string               `json:"name"`
	DistanceKm float64              `json:"distance_km"`
	Location   models.AgentLocation `json:"location"`
}

// NearestAgent находит ближайшего к точке доставки заказа агента
func (v *View) NearestAgent(orderID int64) (*NearestAgent, error) {
	o, ok := v.snapshot.Order(orderID)
	if !ok {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	target, ok := o.DeliveryCoordinate()
	if !ok {
		return nil, fmt.Errorf("order %d has no delivery coordinates: %w", orderID, ErrNotFound)
	}
	loc, km, ok := services.NearestAgent(target, v.Locations)
	if !ok {
		return nil, fmt.Errorf("no agent locations: %w", ErrNotFound)
	}
	return &NearestAgent{
		AgentID:    loc.AgentID,
		Name:       v.snapshot.AgentName(loc.AgentID),
		DistanceKm: km,
		Location:   loc,
	}, nil
}
