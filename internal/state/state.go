// Package state хранит данные одной сессии дашборда.
// Хранилище не потокобезопасно: им владеет единственный цикл дашборда.
package state

import (
	"fmt"

	"opspulse/internal/models"
)

// UserState хранит пользователей, видимых сессии
type UserState struct {
	users []*models.User
	byID  map[int64]*models.User
}

// NewUserState создает пустое хранилище пользователей
func NewUserState() *UserState {
	return &UserState{byID: make(map[int64]*models.User)}
}

// Replace заменяет коллекцию пользователей
func (s *UserState) Replace(users []*models.User) {
	s.users = s.users[:0]
	s.byID = make(map[int64]*models.User, len(users))
	for _, u := range users {
		if u == nil {
			continue
		}
		c := *u
		s.users = append(s.users, &c)
		s.byID[c.ID] = &c
	}
}

// Upsert заменяет или добавляет пользователя
func (s *UserState) Upsert(u *models.User) {
	c := *u
	if _, ok := s.byID[c.ID]; ok {
		for i, existing := range s.users {
			if existing.ID == c.ID {
				s.users[i] = &c
				break
			}
		}
	} else {
		s.users = append(s.users, &c)
	}
	s.byID[c.ID] = &c
}

// Get возвращает пользователя по ID
func (s *UserState) Get(id int64) (*models.User, bool) {
	u, ok := s.byID[id]
	return u, ok
}

// All возвращает всех пользователей
func (s *UserState) All() []*models.User { return s.users }

// VehicleState хранит транспорт
type VehicleState struct {
	vehicles []*models.Vehicle
	byID     map[int64]*models.Vehicle
}

// NewVehicleState создает пустое хранилище транспорта
func NewVehicleState() *VehicleState {
	return &VehicleState{byID: make(map[int64]*models.Vehicle)}
}

// Replace заменяет коллекцию транспорта
func (s *VehicleState) Replace(vehicles []*models.Vehicle) {
	s.vehicles = s.vehicles[:0]
	s.byID = make(map[int64]*models.Vehicle, len(vehicles))
	for _, v := range vehicles {
		if v == nil {
			continue
		}
		c := v.Clone()
		s.vehicles = append(s.vehicles, c)
		s.byID[c.ID] = c
	}
}

// Upsert заменяет или добавляет транспорт
func (s *VehicleState) Upsert(v *models.Vehicle) {
	c := v.Clone()
	if _, ok := s.byID[c.ID]; ok {
		for i, existing := range s.vehicles {
			if existing.ID == c.ID {
				s.vehicles[i] = c
				break
			}
		}
	} else {
		s.vehicles = append(s.vehicles, c)
	}
	s.byID[c.ID] = c
}

// Get возвращает транспорт по ID
func (s *VehicleState) Get(id int64) (*models.Vehicle, bool) {
	v, ok := s.byID[id]
	return v, ok
}

// All возвращает весь транспорт
func (s *VehicleState) All() []*models.Vehicle { return s.vehicles }

// Approved возвращает только одобренный транспорт
func (s *VehicleState) Approved() []*models.Vehicle {
	var out []*models.Vehicle
	for _, v := range s.vehicles {
		if v.ApprovalStatus == models.ApprovalStatusApproved {
			out = append(out, v)
		}
	}
	return out
}

// AssignedTo возвращает транспорт, закрепленный за агентом
func (s *VehicleState) AssignedTo(agentID int64) []*models.Vehicle {
	var out []*models.Vehicle
	for _, v := range s.vehicles {
		if v.AssignedAgentID != nil && *v.AssignedAgentID == agentID {
			out = append(out, v)
		}
	}
	return out
}

// LocationState хранит последнее местоположение каждого агента
type LocationState struct {
	byAgent map[int64]*models.AgentLocation
	order   []int64
}

// NewLocationState создает пустое хранилище местоположений
func NewLocationState() *LocationState {
	return &LocationState{byAgent: make(map[int64]*models.AgentLocation)}
}

// Upsert заменяет местоположение агента; история не хранится
func (s *LocationState) Upsert(loc models.AgentLocation) {
	if _, ok := s.byAgent[loc.AgentID]; !ok {
		s.order = append(s.order, loc.AgentID)
	}
	c := loc
	s.byAgent[loc.AgentID] = &c
}

// Replace заменяет коллекцию; при нескольких записях агента побеждает самая поздняя
func (s *LocationState) Replace(locations []models.AgentLocation) {
	s.byAgent = make(map[int64]*models.AgentLocation, len(locations))
	s.order = s.order[:0]
	for _, loc := range locations {
		if existing, ok := s.byAgent[loc.AgentID]; ok && loc.Timestamp.Before(existing.Timestamp.Time) {
			continue
		}
		s.Upsert(loc)
	}
}

// Get возвращает местоположение агента
func (s *LocationState) Get(agentID int64) (*models.AgentLocation, bool) {
	l, ok := s.byAgent[agentID]
	return l, ok
}

// Len возвращает количество агентов с известным местоположением
func (s *LocationState) Len() int { return len(s.order) }

// All возвращает местоположения в порядке первого появления агента
func (s *LocationState) All() []models.AgentLocation {
	out := make([]models.AgentLocation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byAgent[id])
	}
	return out
}

// State объединяет коллекции одной сессии
type State struct {
	Orders    *OrderState
	Users     *UserState
	Vehicles  *VehicleState
	Locations *LocationState
}

// New создает пустое состояние сессии
func New() *State {
	return &State{
		Orders:    NewOrderState(),
		Users:     NewUserState(),
		Vehicles:  NewVehicleState(),
		Locations: NewLocationState(),
	}
}

// ApplyLocation записывает позицию агента и переносит ее на закрепленный за ним транспорт
func (s *State) ApplyLocation(loc models.AgentLocation) {
	s.Locations.Upsert(loc)
	for _, v := range s.Vehicles.AssignedTo(loc.AgentID) {
		v.CurrentLatitude = models.Float64(loc.Latitude)
		v.CurrentLongitude = models.Float64(loc.Longitude)
	}
}

// Snapshot представляет неизменяемую копию состояния для читателей
type Snapshot struct {
	Orders    []*models.Order        `json:"orders"`
	Users     []*models.User         `json:"users"`
	Vehicles  []*models.Vehicle      `json:"vehicles"`
	Locations []models.AgentLocation `json:"locations"`
}

// Snapshot возвращает глубокую копию состояния
func (s *State) Snapshot() *Snapshot {
	snap := &Snapshot{
		Orders:    make([]*models.Order, 0, s.Orders.Len()),
		Users:     make([]*models.User, 0, len(s.Users.users)),
		Vehicles:  make([]*models.Vehicle, 0, len(s.Vehicles.vehicles)),
		Locations: s.Locations.All(),
	}
	for _, o := range s.Orders.All() {
		snap.Orders = append(snap.Orders, o.Clone())
	}
	for _, u := range s.Users.users {
		c := *u
		snap.Users = append(snap.Users, &c)
	}
	for _, v := range s.Vehicles.vehicles {
		snap.Vehicles = append(snap.Vehicles, v.Clone())
	}
	return snap
}

// Order возвращает заказ из снимка
func (s *Snapshot) Order(id int64) (*models.Order, bool) {
	for _, o := range s.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// User возвращает пользователя из снимка
func (s *Snapshot) User(id int64) (*models.User, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return nil, false
}

// Location возвращает местоположение агента из снимка
func (s *Snapshot) Location(agentID int64) (models.AgentLocation, bool) {
	for _, l := range s.Locations {
		if l.AgentID == agentID {
			return l, true
		}
	}
	return models.AgentLocation{}, false
}

// AgentName возвращает имя агента или его ID, пока пользователи не загружены
func (s *Snapshot) AgentName(id int64) string {
	if u, ok := s.User(id); ok && u.Name != "" {
		return u.Name
	}
	return fmt.Sprintf("Agent #%d", id)
}
