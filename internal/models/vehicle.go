package models

// VehicleStatus представляет эксплуатационный статус транспорта
type VehicleStatus string

const (
	VehicleStatusAvailable   VehicleStatus = "available"
	VehicleStatusInUse       VehicleStatus = "in_use"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
)

// ApprovalStatus представляет статус проверки транспорта администратором
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// Vehicle представляет транспортное средство
type Vehicle struct {
	ID               int64          `json:"id"`
	LicensePlate     string         `json:"license_plate"`
	Model            string         `json:"model"`
	VehicleType      string         `json:"vehicle_type"`
	Status           VehicleStatus  `json:"status"`
	ApprovalStatus   ApprovalStatus `json:"approval_status"`
	AssignedAgentID  *int64         `json:"assigned_agent_id,omitempty"`
	OwnerID          int64          `json:"owner_id"`
	CurrentLatitude  *float64       `json:"current_latitude,omitempty"`
	CurrentLongitude *float64       `json:"current_longitude,omitempty"`
}

// Position возвращает последнюю известную позицию транспорта
func (v *Vehicle) Position() (Coordinate, bool) {
	if v.CurrentLatitude == nil || v.CurrentLongitude == nil {
		return Coordinate{}, false
	}
	return Coordinate{Latitude: *v.CurrentLatitude, Longitude: *v.CurrentLongitude}, true
}

// Clone возвращает глубокую копию транспорта
func (v *Vehicle) Clone() *Vehicle {
	c := *v
	c.AssignedAgentID = cloneInt(v.AssignedAgentID)
	c.CurrentLatitude = cloneFloat(v.CurrentLatitude)
	c.CurrentLongitude = cloneFloat(v.CurrentLongitude)
	return &c
}

// CreateVehicleRequest представляет запрос на регистрацию транспорта
type CreateVehicleRequest struct {
	LicensePlate string `json:"license_plate" validate:"required,max=32"`
	Model        string `json:"model" validate:"max=100"`
	VehicleType  string `json:"vehicle_type" validate:"max=50"`
}

// Validate проверяет поля запроса
func (r *CreateVehicleRequest) Validate() error {
	return validate.Struct(r)
}

// ApproveVehicleRequest представляет решение администратора по транспорту
type ApproveVehicleRequest struct {
	ApprovalStatus ApprovalStatus `json:"approval_status"`
}

// AssignAgentRequest представляет запрос на закрепление агента за транспортом
type AssignAgentRequest struct {
	AssignedAgentID int64 `json:"assigned_agent_id"`
}
