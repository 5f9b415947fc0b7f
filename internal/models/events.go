package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType представляет тип события канала реального времени
type EventType string

const (
	EventTypeOrderCreated      EventType = "order_created"
	EventTypeOrderStatus       EventType = "order_status"
	EventTypeUserSignup        EventType = "user_signup"
	EventTypeUserRoleUpdated   EventType = "user_role_updated"
	EventTypeUserDeleted       EventType = "user_deleted"
	EventTypeLocationUpdate    EventType = "location_update"
	EventTypeVehicleRegistered EventType = "vehicle_registered"
	EventTypeVehicleApproved   EventType = "vehicle_approved"
)

// Known сообщает, умеет ли клиент обрабатывать событие этого типа
func (t EventType) Known() bool {
	switch t {
	case EventTypeOrderCreated, EventTypeOrderStatus,
		EventTypeUserSignup, EventTypeUserRoleUpdated, EventTypeUserDeleted,
		EventTypeLocationUpdate,
		EventTypeVehicleRegistered, EventTypeVehicleApproved:
		return true
	}
	return false
}

// Event представляет событие; Data содержит одну из структур ниже
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// OrderCreatedEvent представляет событие создания заказа
type OrderCreatedEvent struct {
	OrderID         int64    `json:"order_id"`
	CustomerName    string   `json:"customer_name"`
	DeliveryAddress string   `json:"delivery_address,omitempty"`
	OwnerID         *int64   `json:"owner_id,omitempty"`
	Latitude        *float64 `json:"delivery_latitude,omitempty"`
	Longitude       *float64 `json:"delivery_longitude,omitempty"`
}

// OrderStatusEvent представляет событие изменения статуса заказа
type OrderStatusEvent struct {
	OrderID         int64       `json:"order_id"`
	NewStatus       OrderStatus `json:"new_status"`
	AssignedAgentID *int64      `json:"assigned_agent_id,omitempty"`
	VehicleID       *int64      `json:"vehicle_id,omitempty"`
	OwnerID         *int64      `json:"owner_id,omitempty"`
}

// UserEvent представляет регистрацию, смену роли или удаление пользователя
type UserEvent struct {
	UserID *int64 `json:"user_id,omitempty"`
	Role   *Role  `json:"role,omitempty"`
}

// LocationUpdateEvent представляет событие обновления местоположения агента
type LocationUpdateEvent struct {
	AgentID   int64   `json:"agent_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// VehicleEvent представляет регистрацию или одобрение транспорта
type VehicleEvent struct {
	VehicleID *int64 `json:"vehicle_id,omitempty"`
}
