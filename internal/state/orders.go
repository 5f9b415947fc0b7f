package state

import (
	"opspulse/internal/lifecycle"
	"opspulse/internal/models"
)

// MergeResult описывает, что произошло при слиянии статуса
type MergeResult int

const (
	MergeApplied MergeResult = iota
	MergeStubbed
	MergeStale
	MergeTerminal
	MergeInvalid
)

func (r MergeResult) String() string {
	switch r {
	case MergeApplied:
		return "applied"
	case MergeStubbed:
		return "stubbed"
	case MergeStale:
		return "stale"
	case MergeTerminal:
		return "terminal"
	}
	return "invalid"
}

// OrderState хранит заказы сессии; новые заказы идут первыми
type OrderState struct {
	byID  map[int64]*models.Order
	order []int64
}

// NewOrderState создает пустое хранилище заказов
func NewOrderState() *OrderState {
	return &OrderState{byID: make(map[int64]*models.Order)}
}

// Len возвращает количество заказов
func (s *OrderState) Len() int { return len(s.order) }

// Get возвращает заказ по ID
func (s *OrderState) Get(id int64) (*models.Order, bool) {
	o, ok := s.byID[id]
	return o, ok
}

// Replace заменяет коллекцию результатом полной загрузки.
// Загрузка, начатая до события, не откатывает уже известный статус.
func (s *OrderState) Replace(orders []*models.Order) {
	byID := make(map[int64]*models.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		if o == nil {
			continue
		}
		incoming := o.Clone()
		existing := s.byID[incoming.ID]
		normalizeDelayed(incoming, existing)
		if existing != nil && existing.Status.Rank() > incoming.Status.Rank() {
			incoming.Status = existing.Status
			incoming.Delayed = existing.Delayed
		}
		promoteAssigned(incoming)
		if _, dup := byID[incoming.ID]; !dup {
			ids = append(ids, incoming.ID)
		}
		byID[incoming.ID] = incoming
	}
	s.byID = byID
	s.order = ids
}

// Insert добавляет заказ, если его еще нет; возвращает false для дубликата
func (s *OrderState) Insert(o *models.Order) bool {
	if _, exists := s.byID[o.ID]; exists {
		return false
	}
	c := o.Clone()
	normalizeDelayed(c, nil)
	promoteAssigned(c)
	s.byID[c.ID] = c
	s.order = append([]int64{c.ID}, s.order...)
	return true
}

// Upsert сливает сущность, вернувшуюся от сервера, не откатывая статус назад
func (s *OrderState) Upsert(o *models.Order) {
	existing, ok := s.byID[o.ID]
	if !ok {
		s.Insert(o)
		return
	}
	incoming := o.Clone()
	normalizeDelayed(incoming, existing)
	if existing.Status.Rank() > incoming.Status.Rank() {
		incoming.Status = existing.Status
		incoming.Delayed = existing.Delayed
	}
	if incoming.VehicleID == nil {
		incoming.VehicleID = existing.VehicleID
	}
	if incoming.OwnerID == nil {
		incoming.OwnerID = existing.OwnerID
	}
	if incoming.AssignedAgentID == nil {
		incoming.AssignedAgentID = existing.AssignedAgentID
	}
	fillEmpty(incoming, existing)
	incoming.Stub = false
	promoteAssigned(incoming)
	s.byID[o.ID] = incoming
}

// Remove удаляет заказ из локального набора
func (s *OrderState) Remove(id int64) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// MergeStatus применяет событие изменения статуса к заказу.
// Неизвестный заказ синтезируется из события; статус не откатывается назад,
// доставленный заказ не меняется.
func (s *OrderState) MergeStatus(ev models.OrderStatusEvent) MergeResult {
	if !ev.NewStatus.Valid() {
		return MergeInvalid
	}
	o, ok := s.byID[ev.OrderID]
	if !ok {
		stub := &models.Order{ID: ev.OrderID, Status: ev.NewStatus, Stub: true}
		if ev.OwnerID != nil {
			stub.OwnerID = models.Int64(*ev.OwnerID)
		}
		applyAssignment(stub, ev)
		s.insertStub(stub)
		promoteAssigned(stub)
		return MergeStubbed
	}
	if o.Status.IsTerminal() {
		return MergeTerminal
	}
	if ev.NewStatus == models.OrderStatusDelayed {
		o.Delayed = true
		applyAssignment(o, ev)
		promoteAssigned(o)
		return MergeApplied
	}
	if ev.NewStatus.Rank() < o.Status.Rank() {
		return MergeStale
	}
	if ev.NewStatus.Rank() > o.Status.Rank() {
		o.Delayed = false
	}
	o.Status = ev.NewStatus
	applyAssignment(o, ev)
	promoteAssigned(o)
	return MergeApplied
}

// FillStub дополняет синтезированный из события заказ пустыми полями из src.
// Статус и назначения заглушки сохраняются; для обычного заказа возвращает false.
func (s *OrderState) FillStub(src *models.Order) bool {
	o, ok := s.byID[src.ID]
	if !ok || !o.Stub {
		return false
	}
	fillEmpty(o, src)
	if o.OwnerID == nil && src.OwnerID != nil {
		o.OwnerID = models.Int64(*src.OwnerID)
	}
	o.Stub = false
	return true
}

func (s *OrderState) insertStub(stub *models.Order) {
	normalizeDelayed(stub, nil)
	s.byID[stub.ID] = stub
	s.order = append([]int64{stub.ID}, s.order...)
}

// fillEmpty переносит в dst описательные поля src, которых у dst нет
func fillEmpty(dst, src *models.Order) {
	if dst.CustomerName == "" {
		dst.CustomerName = src.CustomerName
	}
	if dst.DeliveryAddress == "" {
		dst.DeliveryAddress = src.DeliveryAddress
	}
	if dst.PickupAddress == nil && src.PickupAddress != nil {
		dst.PickupAddress = models.String(*src.PickupAddress)
	}
	if _, ok := dst.DeliveryCoordinate(); !ok {
		if c, ok := src.DeliveryCoordinate(); ok {
			dst.DeliveryLatitude = models.Float64(c.Latitude)
			dst.DeliveryLongitude = models.Float64(c.Longitude)
		}
	}
	if _, ok := dst.PickupCoordinate(); !ok {
		if c, ok := src.PickupCoordinate(); ok {
			dst.PickupLatitude = models.Float64(c.Latitude)
			dst.PickupLongitude = models.Float64(c.Longitude)
		}
	}
	if dst.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
}

// promoteAssigned поднимает pending до approved, если агент уже назначен
func promoteAssigned(o *models.Order) {
	if !lifecycle.AssignmentConsistent(o) && o.Status == models.OrderStatusPending {
		o.Status = models.OrderStatusApproved
	}
}

func applyAssignment(o *models.Order, ev models.OrderStatusEvent) {
	if ev.AssignedAgentID != nil {
		o.AssignedAgentID = models.Int64(*ev.AssignedAgentID)
	}
	if ev.VehicleID != nil {
		o.VehicleID = models.Int64(*ev.VehicleID)
	}
}

// normalizeDelayed переводит пришедший с сервера статус delayed в отметку.
// Шаг берется из локальной копии, иначе выводится из назначений.
func normalizeDelayed(incoming, existing *models.Order) {
	if incoming.Status != models.OrderStatusDelayed {
		return
	}
	incoming.Delayed = true
	switch {
	case existing != nil && existing.Status.IsForward():
		incoming.Status = existing.Status
	case incoming.VehicleID != nil:
		incoming.Status = models.OrderStatusPickedUp
	case incoming.AssignedAgentID != nil:
		incoming.Status = models.OrderStatusApproved
	default:
		incoming.Status = models.OrderStatusPending
	}
}

// All возвращает заказы в порядке отображения
func (s *OrderState) All() []*models.Order {
	out := make([]*models.Order, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *OrderState) filter(keep func(*models.Order) bool) []*models.Order {
	var out []*models.Order
	for _, id := range s.order {
		if o := s.byID[id]; keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// Pending возвращает заказы, ожидающие одобрения
func (s *OrderState) Pending() []*models.Order {
	return s.filter(func(o *models.Order) bool { return o.Status == models.OrderStatusPending })
}

// Active возвращает заказы в работе
func (s *OrderState) Active() []*models.Order {
	return s.filter(func(o *models.Order) bool { return o.Status.IsActive() })
}

// Delivered возвращает доставленные заказы
func (s *OrderState) Delivered() []*models.Order {
	return s.filter(func(o *models.Order) bool { return o.Status.IsTerminal() })
}
