package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"opspulse/internal/auth"
	"opspulse/internal/lifecycle"
	"opspulse/internal/metrics"
	"opspulse/internal/models"

	"github.com/sirupsen/logrus"
)

var (
	// ErrUserNotPending возвращается при одобрении пользователя, который не ждет решения
	ErrUserNotPending = errors.New("user is not awaiting approval")
	// ErrInvalidInput возвращается при неполных данных команды
	ErrInvalidInput = errors.New("invalid input")
)

// command выполняет команду: проверка права, вызов и учет результата
func (d *Dashboard) command(name string, perm auth.Permission, fn func() error) error {
	err := d.sess.Can(perm)
	if err == nil {
		if !d.alive.Load() {
			err = ErrNotMounted
		} else {
			err = fn()
		}
	}

	metrics.CommandResults.WithLabelValues(name, metrics.Result(err)).Inc()
	entry := d.log.WithField("command", name)
	if err != nil {
		entry.WithError(err).Warn("Command failed")
	} else {
		entry.Info("Command completed")
	}
	return err
}

func (d *Dashboard) currentOrder(id int64) (*models.Order, error) {
	o, ok := d.View().Snapshot().Order(id)
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return o.Clone(), nil
}

// mergeOrder сливает заказ от сервера; при пустом ответе применяется локальная копия
func (d *Dashboard) mergeOrder(ctx context.Context, returned, local *models.Order) error {
	merged := returned
	if merged == nil {
		merged = local
	}
	return d.apply(ctx, func() bool {
		d.st.Orders.Upsert(merged)
		return true
	})
}

// ApproveOrder одобряет заказ в статусе pending или переназначает агента активного заказа
func (d *Dashboard) ApproveOrder(ctx context.Context, orderID, agentID int64) (*models.Order, error) {
	var result *models.Order
	err := d.command("approve_order", auth.OpApproveOrder, func() error {
		order, err := d.currentOrder(orderID)
		if err != nil {
			return err
		}
		label, err := lifecycle.CheckApprove(order, agentID)
		if err != nil {
			return err
		}

		returned, err := d.opts.Backend.ApproveOrder(ctx, orderID, models.ApproveOrderRequest{AssignedAgentID: agentID})
		if err != nil {
			return err
		}
		lifecycle.ApplyApprove(order, agentID)
		if err := d.mergeOrder(ctx, returned, order); err != nil {
			return err
		}

		d.log.WithFields(logrus.Fields{
			"order_id": orderID,
			"agent_id": agentID,
			"label":    label,
		}).Info("Order assignment updated")
		result = d.orderOrFallback(orderID, order)
		return nil
	})
	return result, err
}

// UpdateStatus переводит заказ в следующий статус; для picked_up нужен транспорт
func (d *Dashboard) UpdateStatus(ctx context.Context, orderID int64, to models.OrderStatus, vehicleID *int64) (*models.Order, error) {
	var result *models.Order
	err := d.command("update_status", auth.OpUpdateStatus, func() error {
		order, err := d.currentOrder(orderID)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckTransition(order, to, vehicleID); err != nil {
			return err
		}

		returned, err := d.opts.Backend.UpdateOrderStatus(ctx, orderID, models.UpdateOrderStatusRequest{
			Status:    to,
			VehicleID: vehicleID,
		})
		if err != nil {
			return err
		}
		lifecycle.ApplyTransition(order, to, vehicleID)
		if err := d.mergeOrder(ctx, returned, order); err != nil {
			return err
		}
		result = d.orderOrFallback(orderID, order)
		return nil
	})
	return result, err
}

// DelayOrder ставит отметку о задержке, не меняя шаг жизненного цикла
func (d *Dashboard) DelayOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var result *models.Order
	err := d.command("delay_order", auth.OpDelayOrder, func() error {
		order, err := d.currentOrder(orderID)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckDelay(order); err != nil {
			return err
		}

		returned, err := d.opts.Backend.UpdateOrderStatus(ctx, orderID, models.UpdateOrderStatusRequest{
			Status: models.OrderStatusDelayed,
		})
		if err != nil {
			return err
		}
		lifecycle.ApplyTransition(order, models.OrderStatusDelayed, nil)
		if returned != nil {
			returned.Delayed = true
		}
		if err := d.mergeOrder(ctx, returned, order); err != nil {
			return err
		}
		result = d.orderOrFallback(orderID, order)
		return nil
	})
	return result, err
}

// CreateOrder создает заказ; недостающие координаты ищутся геокодером по адресу
func (d *Dashboard) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	var result *models.Order
	err := d.command("create_order", auth.OpCreateOrder, func() error {
		req.CustomerName = strings.TrimSpace(req.CustomerName)
		req.DeliveryAddress = strings.TrimSpace(req.DeliveryAddress)
		if err := req.Validate(); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidInput)
		}

		if req.DeliveryLatitude == nil || req.DeliveryLongitude == nil {
			if geo := d.geocode(ctx, req.DeliveryAddress); geo != nil {
				req.DeliveryLatitude = models.Float64(geo.Latitude)
				req.DeliveryLongitude = models.Float64(geo.Longitude)
			}
		}
		if req.PickupAddress != nil && (req.PickupLatitude == nil || req.PickupLongitude == nil) {
			if geo := d.geocode(ctx, *req.PickupAddress); geo != nil {
				req.PickupLatitude = models.Float64(geo.Latitude)
				req.PickupLongitude = models.Float64(geo.Longitude)
			}
		}

		created, err := d.opts.Backend.CreateOrder(ctx, req)
		if err != nil {
			return err
		}
		if created == nil {
			return fmt.Errorf("empty create order response: %w", ErrInvalidInput)
		}
		if created.OwnerID == nil {
			created.OwnerID = models.Int64(d.sess.UserID())
		}
		// Событие order_created могло прийти раньше ответа: сливаем, а не вставляем
		if err := d.apply(ctx, func() bool {
			d.st.Orders.Upsert(created)
			return true
		}); err != nil {
			return err
		}
		result = d.orderOrFallback(created.ID, created)
		return nil
	})
	return result, err
}

func (d *Dashboard) geocode(ctx context.Context, address string) *models.Coordinate {
	if d.opts.Geocoder == nil || strings.TrimSpace(address) == "" {
		return nil
	}
	res := d.opts.Geocoder.Geocode(ctx, address)
	if res == nil {
		return nil
	}
	c := res.Coordinate
	return &c
}

// ApproveUser одобряет или отклоняет пользователя, ожидающего решения
func (d *Dashboard) ApproveUser(ctx context.Context, userID int64, approve bool) (*models.User, error) {
	var result *models.User
	err := d.command("approve_user", auth.OpApproveUser, func() error {
		user, ok := d.View().Snapshot().User(userID)
		if !ok {
			return fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		role := models.RoleRejected
		if approve {
			approved, ok := user.Role.ApprovedRole()
			if !ok {
				return fmt.Errorf("user %d has role %q: %w", userID, user.Role, ErrUserNotPending)
			}
			role = approved
		} else if !user.Role.IsPending() {
			return fmt.Errorf("user %d has role %q: %w", userID, user.Role, ErrUserNotPending)
		}

		returned, err := d.opts.Backend.UpdateUserRole(ctx, userID, models.UpdateRoleRequest{Role: role})
		if err != nil {
			return err
		}
		if returned == nil {
			c := *user
			c.Role = role
			returned = &c
		}
		if err := d.apply(ctx, func() bool {
			d.st.Users.Upsert(returned)
			return true
		}); err != nil {
			return err
		}
		result = returned
		return nil
	})
	return result, err
}

// ApproveVehicle фиксирует решение администратора по транспорту
func (d *Dashboard) ApproveVehicle(ctx context.Context, vehicleID int64, approve bool) (*models.Vehicle, error) {
	status := models.ApprovalStatusRejected
	if approve {
		status = models.ApprovalStatusApproved
	}
	var result *models.Vehicle
	err := d.command("approve_vehicle", auth.OpApproveVehicle, func() error {
		v, err := d.opts.Backend.ApproveVehicle(ctx, vehicleID, models.ApproveVehicleRequest{ApprovalStatus: status})
		if err != nil {
			return err
		}
		result, err = d.mergeVehicle(ctx, vehicleID, v, func(local *models.Vehicle) {
			local.ApprovalStatus = status
		})
		return err
	})
	return result, err
}

// AssignVehicleAgent закрепляет агента за транспортом
func (d *Dashboard) AssignVehicleAgent(ctx context.Context, vehicleID, agentID int64) (*models.Vehicle, error) {
	var result *models.Vehicle
	err := d.command("assign_vehicle", auth.OpAssignVehicle, func() error {
		if agentID <= 0 {
			return lifecycle.ErrAgentRequired
		}
		v, err := d.opts.Backend.AssignVehicleAgent(ctx, vehicleID, models.AssignAgentRequest{AssignedAgentID: agentID})
		if err != nil {
			return err
		}
		result, err = d.mergeVehicle(ctx, vehicleID, v, func(local *models.Vehicle) {
			local.AssignedAgentID = models.Int64(agentID)
		})
		return err
	})
	return result, err
}

// CreateVehicle регистрирует транспорт владельца
func (d *Dashboard) CreateVehicle(ctx context.Context, req models.CreateVehicleRequest) (*models.Vehicle, error) {
	var result *models.Vehicle
	err := d.command("create_vehicle", auth.OpCreateVehicle, func() error {
		req.LicensePlate = strings.TrimSpace(req.LicensePlate)
		if err := req.Validate(); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidInput)
		}
		v, err := d.opts.Backend.CreateVehicle(ctx, req)
		if err != nil {
			return err
		}
		if v == nil {
			return fmt.Errorf("empty create vehicle response: %w", ErrInvalidInput)
		}
		result, err = d.mergeVehicle(ctx, v.ID, v, nil)
		return err
	})
	return result, err
}

// mergeVehicle сливает транспорт от сервера, при пустом ответе меняет локальную копию
func (d *Dashboard) mergeVehicle(ctx context.Context, id int64, returned *models.Vehicle, patch func(*models.Vehicle)) (*models.Vehicle, error) {
	var merged *models.Vehicle
	err := d.apply(ctx, func() bool {
		switch {
		case returned != nil:
			d.st.Vehicles.Upsert(returned)
		case patch != nil:
			local, ok := d.st.Vehicles.Get(id)
			if !ok {
				return false
			}
			patch(local)
		}
		if v, ok := d.st.Vehicles.Get(id); ok {
			merged = v.Clone()
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, fmt.Errorf("vehicle %d: %w", id, ErrNotFound)
	}
	return merged, nil
}

// Refresh заново загружает все коллекции роли
func (d *Dashboard) Refresh(ctx context.Context) error {
	if !d.alive.Load() {
		return ErrNotMounted
	}
	f := d.fetchAll(ctx)
	err := d.apply(ctx, func() bool {
		d.applySnapshot(f)
		return true
	})
	metrics.CommandResults.WithLabelValues("refresh", metrics.Result(err)).Inc()
	return err
}

// PushPosition передает позицию агента: через трекер, если он запущен, иначе сразу
func (d *Dashboard) PushPosition(ctx context.Context, c models.Coordinate) error {
	return d.command("push_location", auth.OpPushLocation, func() error {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidInput)
		}
		if d.tracker != nil {
			d.tracker.Watch(c)
			return nil
		}
		loc := models.NewAgentLocation(d.sess.UserID(), c)
		if err := d.opts.Backend.PushLocation(ctx, models.PushLocationRequest{
			AgentID:   loc.AgentID,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
		}); err != nil {
			return err
		}
		return d.apply(ctx, func() bool {
			d.st.ApplyLocation(loc)
			return true
		})
	})
}

// orderOrFallback возвращает копию заказа из последнего представления
func (d *Dashboard) orderOrFallback(id int64, fallback *models.Order) *models.Order {
	if o, ok := d.View().Snapshot().Order(id); ok {
		return o.Clone()
	}
	return fallback
}
