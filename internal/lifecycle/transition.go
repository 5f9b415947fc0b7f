// Package lifecycle описывает машину состояний заказа.
package lifecycle

import (
	"errors"
	"fmt"

	"opspulse/internal/models"
)

var (
	// ErrInvalidTransition возвращается при нарушении порядка статусов
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrOrderTerminal возвращается при попытке изменить доставленный заказ
	ErrOrderTerminal = errors.New("order is delivered and can no longer change")
	// ErrVehicleRequired возвращается при заборе заказа без выбранного транспорта
	ErrVehicleRequired = errors.New("vehicle selection is required before pickup")
	// ErrAgentRequired возвращается при одобрении без агента
	ErrAgentRequired = errors.New("an agent must be selected")
)

// ApprovalLabel различает первичное одобрение и переназначение
type ApprovalLabel string

const (
	LabelApprove  ApprovalLabel = "approve"
	LabelReassign ApprovalLabel = "reassign"
)

// Next возвращает следующий статус прямой последовательности или пустую строку
func Next(status models.OrderStatus) models.OrderStatus {
	rank := status.Rank()
	if rank < 0 || rank+1 >= len(models.ForwardStatuses) {
		return ""
	}
	return models.ForwardStatuses[rank+1]
}

// CheckTransition проверяет переход агента в статус to
func CheckTransition(order *models.Order, to models.OrderStatus, vehicleID *int64) error {
	if order.Status.IsTerminal() {
		return fmt.Errorf("order %d: %w: %w", order.ID, ErrOrderTerminal, ErrInvalidTransition)
	}
	if to == models.OrderStatusDelayed {
		return CheckDelay(order)
	}
	if next := Next(order.Status); next == "" || to != next {
		return fmt.Errorf("order %d: %s -> %s: %w", order.ID, order.Status, to, ErrInvalidTransition)
	}
	if to == models.OrderStatusPickedUp && vehicleID == nil {
		return fmt.Errorf("order %d: %w", order.ID, ErrVehicleRequired)
	}
	return nil
}

// CheckApprove проверяет одобрение или переназначение заказа и возвращает метку операции
func CheckApprove(order *models.Order, agentID int64) (ApprovalLabel, error) {
	if agentID <= 0 {
		return "", ErrAgentRequired
	}
	if order.Status.IsTerminal() {
		return "", fmt.Errorf("order %d: %w: %w", order.ID, ErrOrderTerminal, ErrInvalidTransition)
	}
	if !order.Status.IsForward() {
		return "", fmt.Errorf("order %d: unknown status %q: %w", order.ID, order.Status, ErrInvalidTransition)
	}
	return ApprovalLabelFor(order), nil
}

// ApprovalLabelFor возвращает метку, под которой интерфейс показывает одобрение
func ApprovalLabelFor(order *models.Order) ApprovalLabel {
	if order.Status == models.OrderStatusPending {
		return LabelApprove
	}
	return LabelReassign
}

// CheckDelay проверяет постановку отметки о задержке
func CheckDelay(order *models.Order) error {
	if order.Status.IsTerminal() {
		return fmt.Errorf("order %d: %w: %w", order.ID, ErrOrderTerminal, ErrInvalidTransition)
	}
	return nil
}

// ApplyApprove применяет одобрение к локальной копии заказа
func ApplyApprove(order *models.Order, agentID int64) {
	order.AssignedAgentID = models.Int64(agentID)
	if order.Status == models.OrderStatusPending {
		order.Status = models.OrderStatusApproved
	}
}

// ApplyTransition применяет проверенный переход к локальной копии заказа
func ApplyTransition(order *models.Order, to models.OrderStatus, vehicleID *int64) {
	if to == models.OrderStatusDelayed {
		order.Delayed = true
		return
	}
	order.Status = to
	order.Delayed = false
	if vehicleID != nil {
		order.VehicleID = models.Int64(*vehicleID)
	}
}

// AssignmentConsistent проверяет, что назначенный агент встречается только у одобренных заказов
func AssignmentConsistent(order *models.Order) bool {
	if order.AssignedAgentID == nil {
		return true
	}
	return order.Status.Rank() >= models.OrderStatusApproved.Rank()
}
