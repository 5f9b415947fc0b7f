package models

// OrderStatus представляет статус заказа
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusPickedUp  OrderStatus = "picked_up"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusDelayed не является шагом жизненного цикла, это отметка на текущем шаге
	OrderStatusDelayed OrderStatus = "delayed"
)

// ForwardStatuses перечисляет статусы в обязательном порядке прохождения
var ForwardStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusApproved,
	OrderStatusPickedUp,
	OrderStatusInTransit,
	OrderStatusDelivered,
}

// Rank возвращает позицию статуса в прямой последовательности или -1
func (s OrderStatus) Rank() int {
	for i, fs := range ForwardStatuses {
		if fs == s {
			return i
		}
	}
	return -1
}

// IsForward сообщает, является ли статус шагом прямой последовательности
func (s OrderStatus) IsForward() bool {
	return s.Rank() >= 0
}

// IsTerminal сообщает, является ли статус конечным
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered
}

// IsActive сообщает, находится ли заказ в работе у агента
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusApproved || s == OrderStatusPickedUp || s == OrderStatusInTransit
}

// Valid сообщает, известен ли статус
func (s OrderStatus) Valid() bool {
	return s.IsForward() || s == OrderStatusDelayed
}

// Order представляет заказ на доставку
type Order struct {
	ID                int64       `json:"id"`
	CustomerName      string      `json:"customer_name"`
	DeliveryAddress   string      `json:"delivery_address"`
	PickupAddress     *string     `json:"pickup_address,omitempty"`
	DeliveryLatitude  *float64    `json:"delivery_latitude,omitempty"`
	DeliveryLongitude *float64    `json:"delivery_longitude,omitempty"`
	PickupLatitude    *float64    `json:"pickup_latitude,omitempty"`
	PickupLongitude   *float64    `json:"pickup_longitude,omitempty"`
	Status            OrderStatus `json:"status"`
	Delayed           bool        `json:"delayed"`
	AssignedAgentID   *int64      `json:"assigned_agent_id,omitempty"`
	VehicleID         *int64      `json:"vehicle_id,omitempty"`
	OwnerID           *int64      `json:"owner_id,omitempty"`
	CreatedAt         Timestamp   `json:"created_at"`
	UpdatedAt         Timestamp   `json:"updated_at"`
	// Stub отмечает заказ, синтезированный из события до полной загрузки
	Stub bool `json:"stub,omitempty"`
}

// DisplayStatus возвращает статус для отображения с учетом задержки
func (o *Order) DisplayStatus() OrderStatus {
	if o.Delayed && !o.Status.IsTerminal() {
		return OrderStatusDelayed
	}
	return o.Status
}

// DeliveryCoordinate возвращает точку доставки, если обе координаты известны
func (o *Order) DeliveryCoordinate() (Coordinate, bool) {
	if o.DeliveryLatitude == nil || o.DeliveryLongitude == nil {
		return Coordinate{}, false
	}
	return Coordinate{Latitude: *o.DeliveryLatitude, Longitude: *o.DeliveryLongitude}, true
}

// PickupCoordinate возвращает точку забора, если обе координаты известны
func (o *Order) PickupCoordinate() (Coordinate, bool) {
	if o.PickupLatitude == nil || o.PickupLongitude == nil {
		return Coordinate{}, false
	}
	return Coordinate{Latitude: *o.PickupLatitude, Longitude: *o.PickupLongitude}, true
}

// Clone возвращает глубокую копию заказа
func (o *Order) Clone() *Order {
	c := *o
	c.PickupAddress = cloneString(o.PickupAddress)
	c.DeliveryLatitude = cloneFloat(o.DeliveryLatitude)
	c.DeliveryLongitude = cloneFloat(o.DeliveryLongitude)
	c.PickupLatitude = cloneFloat(o.PickupLatitude)
	c.PickupLongitude = cloneFloat(o.PickupLongitude)
	c.AssignedAgentID = cloneInt(o.AssignedAgentID)
	c.VehicleID = cloneInt(o.VehicleID)
	c.OwnerID = cloneInt(o.OwnerID)
	return &c
}

// CreateOrderRequest представляет запрос на создание заказа
type CreateOrderRequest struct {
	CustomerName      string   `json:"customer_name" validate:"required,max=200"`
	DeliveryAddress   string   `json:"delivery_address" validate:"required,max=500"`
	PickupAddress     *string  `json:"pickup_address,omitempty" validate:"omitempty,max=500"`
	DeliveryLatitude  *float64 `json:"delivery_latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	DeliveryLongitude *float64 `json:"delivery_longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	PickupLatitude    *float64 `json:"pickup_latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	PickupLongitude   *float64 `json:"pickup_longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
}

// Validate проверяет поля запроса
func (r *CreateOrderRequest) Validate() error {
	return validate.Struct(r)
}

// UpdateOrderStatusRequest представляет запрос на обновление статуса заказа
type UpdateOrderStatusRequest struct {
	Status    OrderStatus `json:"status"`
	VehicleID *int64      `json:"vehicle_id,omitempty"`
}

// ApproveOrderRequest представляет запрос на одобрение или переназначение заказа
type ApproveOrderRequest struct {
	AssignedAgentID int64 `json:"assigned_agent_id"`
}

// Int64 возвращает указатель на значение
func Int64(v int64) *int64 { return &v }

// Float64 возвращает указатель на значение
func Float64(v float64) *float64 { return &v }

// String возвращает указатель на значение
func String(v string) *string { return &v }

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
