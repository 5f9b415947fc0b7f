package models

import "time"

// AgentLocation представляет текущее местоположение агента
type AgentLocation struct {
	AgentID   int64     `json:"agent_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp Timestamp `json:"timestamp"`
}

// Coordinate возвращает координату местоположения
func (l *AgentLocation) Coordinate() Coordinate {
	return Coordinate{Latitude: l.Latitude, Longitude: l.Longitude}
}

// PushLocationRequest представляет отправку местоположения агентом
type PushLocationRequest struct {
	AgentID   int64   `json:"agent_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewAgentLocation создает местоположение с текущим временем
func NewAgentLocation(agentID int64, c Coordinate) AgentLocation {
	return AgentLocation{
		AgentID:   agentID,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Timestamp: Timestamp{Time: time.Now().UTC()},
	}
}
