// Package realtime принимает события бэкенда и передает их циклу дашборда.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"opspulse/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrMalformed возвращается для кадра, который не является событием
	ErrMalformed = errors.New("malformed realtime frame")
	// ErrUnknownKind возвращается для события неизвестного типа
	ErrUnknownKind = errors.New("unknown realtime event kind")
)

// frame представляет плоский JSON кадр канала
type frame struct {
	Event             models.EventType   `json:"event"`
	OrderID           *int64             `json:"order_id,omitempty"`
	NewStatus         models.OrderStatus `json:"new_status,omitempty"`
	CustomerName      string             `json:"customer_name,omitempty"`
	DeliveryAddress   string             `json:"delivery_address,omitempty"`
	DeliveryLatitude  *float64           `json:"delivery_latitude,omitempty"`
	DeliveryLongitude *float64           `json:"delivery_longitude,omitempty"`
	AssignedAgentID   *int64             `json:"assigned_agent_id,omitempty"`
	VehicleID         *int64             `json:"vehicle_id,omitempty"`
	OwnerID           *int64             `json:"owner_id,omitempty"`
	UserID            *int64             `json:"user_id,omitempty"`
	Role              *models.Role       `json:"role,omitempty"`
	AgentID           *int64             `json:"agent_id,omitempty"`
	Latitude          *float64           `json:"latitude,omitempty"`
	Longitude         *float64           `json:"longitude,omitempty"`
}

// Decode разбирает кадр в событие
func Decode(data []byte) (*models.Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("%w: missing event field", ErrMalformed)
	}
	if !f.Event.Known() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, f.Event)
	}

	ev := &models.Event{ID: uuid.New(), Type: f.Event, Timestamp: time.Now().UTC()}

	switch f.Event {
	case models.EventTypeOrderCreated:
		if f.OrderID == nil {
			return nil, fmt.Errorf("%w: %s without order_id", ErrMalformed, f.Event)
		}
		ev.Data = models.OrderCreatedEvent{
			OrderID:         *f.OrderID,
			CustomerName:    f.CustomerName,
			DeliveryAddress: f.DeliveryAddress,
			OwnerID:         f.OwnerID,
			Latitude:        f.DeliveryLatitude,
			Longitude:       f.DeliveryLongitude,
		}
	case models.EventTypeOrderStatus:
		if f.OrderID == nil || !f.NewStatus.Valid() {
			return nil, fmt.Errorf("%w: %s needs order_id and a known new_status", ErrMalformed, f.Event)
		}
		ev.Data = models.OrderStatusEvent{
			OrderID:         *f.OrderID,
			NewStatus:       f.NewStatus,
			AssignedAgentID: f.AssignedAgentID,
			VehicleID:       f.VehicleID,
			OwnerID:         f.OwnerID,
		}
	case models.EventTypeUserSignup, models.EventTypeUserRoleUpdated, models.EventTypeUserDeleted:
		ev.Data = models.UserEvent{UserID: f.UserID, Role: f.Role}
	case models.EventTypeLocationUpdate:
		if f.AgentID == nil || f.Latitude == nil || f.Longitude == nil {
			return nil, fmt.Errorf("%w: %s needs agent_id, latitude and longitude", ErrMalformed, f.Event)
		}
		ev.Data = models.LocationUpdateEvent{AgentID: *f.AgentID, Latitude: *f.Latitude, Longitude: *f.Longitude}
	case models.EventTypeVehicleRegistered, models.EventTypeVehicleApproved:
		ev.Data = models.VehicleEvent{VehicleID: f.VehicleID}
	}
	return ev, nil
}

// Encode сериализует событие в плоский кадр
func Encode(ev *models.Event) ([]byte, error) {
	f := frame{Event: ev.Type}
	switch d := ev.Data.(type) {
	case models.OrderCreatedEvent:
		f.OrderID = models.Int64(d.OrderID)
		f.CustomerName = d.CustomerName
		f.DeliveryAddress = d.DeliveryAddress
		f.OwnerID = d.OwnerID
		f.DeliveryLatitude = d.Latitude
		f.DeliveryLongitude = d.Longitude
	case models.OrderStatusEvent:
		f.OrderID = models.Int64(d.OrderID)
		f.NewStatus = d.NewStatus
		f.AssignedAgentID = d.AssignedAgentID
		f.VehicleID = d.VehicleID
		f.OwnerID = d.OwnerID
	case models.UserEvent:
		f.UserID = d.UserID
		f.Role = d.Role
	case models.LocationUpdateEvent:
		f.AgentID = models.Int64(d.AgentID)
		f.Latitude = models.Float64(d.Latitude)
		f.Longitude = models.Float64(d.Longitude)
	case models.VehicleEvent:
		f.VehicleID = d.VehicleID
	default:
		return nil, fmt.Errorf("cannot encode %T for %s", ev.Data, ev.Type)
	}
	return json.Marshal(f)
}
