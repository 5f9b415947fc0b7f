package services

import (
	"opspulse/internal/logger"
	"opspulse/internal/metrics"
	"opspulse/internal/models"
	"opspulse/internal/state"

	"github.com/sirupsen/logrus"
)

// RefetchKind указывает коллекцию, которую нужно загрузить заново
type RefetchKind string

const (
	RefetchNone     RefetchKind = ""
	RefetchOrders   RefetchKind = "orders"
	RefetchUsers    RefetchKind = "users"
	RefetchVehicles RefetchKind = "vehicles"
)

// Outcome описывает результат применения события
type Outcome struct {
	Changed bool
	Refetch RefetchKind
	Reason  string
}

// Scope задает видимость событий для сессии
type Scope struct {
	Role   models.Role
	UserID int64
}

// Reconciler сливает события канала в состояние сессии.
// Он не обращается к сети: повторные загрузки выполняет владелец состояния.
type Reconciler struct {
	scope Scope
	log   *logrus.Entry
}

// NewReconciler создает сверку для сессии
func NewReconciler(scope Scope, log *logger.Logger) *Reconciler {
	return &Reconciler{scope: scope, log: log.Component("reconciler")}
}

// Apply применяет одно событие к состоянию
func (r *Reconciler) Apply(st *state.State, ev *models.Event) Outcome {
	out := r.apply(st, ev)
	metrics.EventsApplied.WithLabelValues(string(ev.Type), out.Reason).Inc()
	r.log.WithFields(logrus.Fields{
		"event_type": ev.Type,
		"event_id":   ev.ID,
		"outcome":    out.Reason,
	}).Debug("Event reconciled")
	return out
}

func (r *Reconciler) apply(st *state.State, ev *models.Event) Outcome {
	switch data := ev.Data.(type) {
	case models.OrderCreatedEvent:
		return r.orderCreated(st, data)
	case models.OrderStatusEvent:
		return r.orderStatus(st, data)
	case models.UserEvent:
		if r.scope.Role == models.RoleAgent {
			return Outcome{Reason: "ignored"}
		}
		return Outcome{Refetch: RefetchUsers, Reason: "refetch"}
	case models.LocationUpdateEvent:
		return r.locationUpdate(st, data)
	case models.VehicleEvent:
		return Outcome{Refetch: RefetchVehicles, Reason: "refetch"}
	}
	r.log.WithField("event_type", ev.Type).Warn("Ignoring event with unexpected payload")
	return Outcome{Reason: "ignored"}
}

// foreignOwner сообщает, принадлежит ли событие другому владельцу
func (r *Reconciler) foreignOwner(ownerID *int64) bool {
	return r.scope.Role == models.RoleOwner && ownerID != nil && *ownerID != r.scope.UserID
}

func (r *Reconciler) orderCreated(st *state.State, ev models.OrderCreatedEvent) Outcome {
	created := &models.Order{
		ID:                ev.OrderID,
		CustomerName:      ev.CustomerName,
		DeliveryAddress:   ev.DeliveryAddress,
		DeliveryLatitude:  ev.Latitude,
		DeliveryLongitude: ev.Longitude,
		Status:            models.OrderStatusPending,
		OwnerID:           ev.OwnerID,
	}

	if _, exists := st.Orders.Get(ev.OrderID); exists {
		if r.foreignOwner(ev.OwnerID) {
			return Outcome{Reason: "out_of_scope"}
		}
		// Заглушка из более раннего события статуса получает описание заказа
		if st.Orders.FillStub(created) {
			return Outcome{Changed: true, Reason: "filled"}
		}
		return Outcome{Reason: "duplicate"}
	}
	switch r.scope.Role {
	case models.RoleAgent:
		// Новый заказ еще не назначен агенту
		return Outcome{Reason: "out_of_scope"}
	case models.RoleOwner:
		if r.foreignOwner(ev.OwnerID) {
			return Outcome{Reason: "out_of_scope"}
		}
		if ev.OwnerID == nil {
			// Принадлежность неизвестна, сервер отдаст заказы владельца сам
			return Outcome{Refetch: RefetchOrders, Reason: "refetch"}
		}
	}

	st.Orders.Insert(created)
	return Outcome{Changed: true, Reason: "inserted"}
}

func (r *Reconciler) orderStatus(st *state.State, ev models.OrderStatusEvent) Outcome {
	_, exists := st.Orders.Get(ev.OrderID)

	switch r.scope.Role {
	case models.RoleOwner:
		if r.foreignOwner(ev.OwnerID) {
			return Outcome{Reason: "out_of_scope"}
		}
		if ev.OwnerID == nil && !exists {
			return Outcome{Reason: "out_of_scope"}
		}
	case models.RoleAgent:
		assignedToSelf := ev.AssignedAgentID != nil && *ev.AssignedAgentID == r.scope.UserID
		if !exists && !assignedToSelf {
			return Outcome{Reason: "out_of_scope"}
		}
	}

	res := st.Orders.MergeStatus(ev)
	switch res {
	case state.MergeApplied, state.MergeStubbed:
	default:
		return Outcome{Reason: res.String()}
	}

	// Заказ, переназначенный другому агенту, уходит из сессии агента
	if r.scope.Role == models.RoleAgent {
		o, _ := st.Orders.Get(ev.OrderID)
		if o.AssignedAgentID == nil || *o.AssignedAgentID != r.scope.UserID {
			st.Orders.Remove(ev.OrderID)
			return Outcome{Changed: exists, Reason: "reassigned_away"}
		}
	}
	return Outcome{Changed: true, Reason: res.String()}
}

func (r *Reconciler) locationUpdate(st *state.State, ev models.LocationUpdateEvent) Outcome {
	loc := models.NewAgentLocation(ev.AgentID, models.Coordinate{Latitude: ev.Latitude, Longitude: ev.Longitude})
	st.ApplyLocation(loc)
	return Outcome{Changed: true, Reason: "upserted"}
}
