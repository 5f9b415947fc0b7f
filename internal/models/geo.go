package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Coordinate представляет точку на карте
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Validate проверяет, что точка лежит в допустимых пределах
func (c Coordinate) Validate() error {
	return validate.Struct(c)
}

// Route представляет маршрут между двумя точками
type Route struct {
	Points          []Coordinate `json:"points"`
	DistanceMeters  *float64     `json:"distance_meters"`
	DurationSeconds *float64     `json:"duration_seconds"`
	Provider        string       `json:"provider"`
}

// MarkerKind представляет тип маркера на карте
type MarkerKind string

const (
	MarkerKindAgent    MarkerKind = "agent"
	MarkerKindVehicle  MarkerKind = "vehicle"
	MarkerKindDelivery MarkerKind = "delivery"
	MarkerKindPickup   MarkerKind = "pickup"
)

// Marker представляет маркер на карте
type Marker struct {
	Kind     MarkerKind  `json:"kind"`
	ID       int64       `json:"id"`
	Label    string      `json:"label"`
	Position Coordinate  `json:"position"`
	Status   OrderStatus `json:"status,omitempty"`
	AgentID  *int64      `json:"agent_id,omitempty"`
	OrderID  *int64      `json:"order_id,omitempty"`
}

// MarkerSet представляет четыре набора маркеров карты
type MarkerSet struct {
	Agents   []Marker `json:"agents"`
	Vehicles []Marker `json:"vehicles"`
	Orders   []Marker `json:"orders"`
	Pickups  []Marker `json:"pickups"`
}

// All возвращает все маркеры одним списком
func (m *MarkerSet) All() []Marker {
	all := make([]Marker, 0, len(m.Agents)+len(m.Vehicles)+len(m.Orders)+len(m.Pickups))
	all = append(all, m.Agents...)
	all = append(all, m.Vehicles...)
	all = append(all, m.Orders...)
	all = append(all, m.Pickups...)
	return all
}

// BoundingBox представляет прямоугольную область карты
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// RoutePair представляет пару точек заказа, для которой строится маршрут
type RoutePair struct {
	OrderID     int64      `json:"order_id"`
	Origin      Coordinate `json:"origin"`
	Destination Coordinate `json:"destination"`
}

// ParseCoordinate разбирает точку в формате "lat,lon"
func ParseCoordinate(raw string) (Coordinate, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q, expected lat,lon", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid longitude %q", parts[1])
	}
	c := Coordinate{Latitude: lat, Longitude: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, fmt.Errorf("coordinate %q is out of range: %w", raw, err)
	}
	return c, nil
}
