package dashboard

import (
	"context"

	"opspulse/internal/models"
	"opspulse/internal/services"

	"golang.org/x/sync/errgroup"
)

// fetched содержит результат загрузки; nil поле означает, что коллекция не загружалась
type fetched struct {
	orders    []*models.Order
	users     []*models.User
	vehicles  []*models.Vehicle
	locations []models.AgentLocation
}

// fetchAll выполняет начальную загрузку коллекций роли параллельно.
// Ошибки логируются, коллекция остается пустой.
func (d *Dashboard) fetchAll(ctx context.Context) fetched {
	var (
		out fetched
		g   errgroup.Group
	)

	g.Go(func() error {
		out.orders = d.fetchOrders(ctx)
		return nil
	})
	g.Go(func() error {
		out.vehicles = d.fetchVehicles(ctx)
		return nil
	})

	switch d.sess.Role() {
	case models.RoleAdmin, models.RoleOwner:
		g.Go(func() error {
			out.users = d.fetchUsers(ctx)
			return nil
		})
		g.Go(func() error {
			out.locations = d.fetchLocations(ctx)
			return nil
		})
	}

	_ = g.Wait()
	return out
}

func (d *Dashboard) applySnapshot(f fetched) {
	if f.orders != nil {
		d.st.Orders.Replace(f.orders)
	}
	if f.users != nil {
		d.st.Users.Replace(f.users)
	}
	if f.vehicles != nil {
		d.st.Vehicles.Replace(f.vehicles)
	}
	if f.locations != nil {
		d.st.Locations.Replace(f.locations)
	}
}

func (d *Dashboard) fetchOrders(ctx context.Context) []*models.Order {
	orders, err := d.opts.Backend.ListOrders(ctx)
	if err != nil {
		d.log.WithError(err).Warn("Failed to fetch orders")
		return nil
	}

	uid := d.sess.UserID()
	keep := make([]*models.Order, 0, len(orders))
	for _, o := range orders {
		switch d.sess.Role() {
		case models.RoleOwner:
			if o.OwnerID != nil && *o.OwnerID != uid {
				continue
			}
		case models.RoleAgent:
			if o.AssignedAgentID == nil || *o.AssignedAgentID != uid {
				continue
			}
		}
		keep = append(keep, o)
	}
	return keep
}

func (d *Dashboard) fetchUsers(ctx context.Context) []*models.User {
	var (
		users []*models.User
		err   error
	)
	if d.sess.Role() == models.RoleAdmin {
		users, err = d.opts.Backend.ListUsers(ctx)
	} else {
		users, err = d.opts.Backend.ListAgents(ctx)
	}
	if err != nil {
		d.log.WithError(err).Warn("Failed to fetch users")
		return nil
	}
	if users == nil {
		users = []*models.User{}
	}
	return users
}

func (d *Dashboard) fetchVehicles(ctx context.Context) []*models.Vehicle {
	vehicles, err := d.opts.Backend.ListVehicles(ctx)
	if err != nil {
		d.log.WithError(err).Warn("Failed to fetch vehicles")
		return nil
	}
	if vehicles == nil {
		vehicles = []*models.Vehicle{}
	}
	return vehicles
}

func (d *Dashboard) fetchLocations(ctx context.Context) []models.AgentLocation {
	locations, err := d.opts.Backend.ListLocations(ctx)
	if err != nil {
		d.log.WithError(err).Warn("Failed to fetch locations")
		return nil
	}
	if locations == nil {
		locations = []models.AgentLocation{}
	}
	return locations
}

// refetch загружает коллекцию в фоне; результат после Unmount отбрасывается
func (d *Dashboard) refetch(kind services.RefetchKind) {
	ctx := d.ctx
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		var f fetched
		switch kind {
		case services.RefetchOrders:
			f.orders = d.fetchOrders(ctx)
		case services.RefetchUsers:
			f.users = d.fetchUsers(ctx)
		case services.RefetchVehicles:
			f.vehicles = d.fetchVehicles(ctx)
		default:
			return
		}
		if !d.alive.Load() {
			d.log.WithField("kind", kind).Debug("Discarding refetch result after unmount")
			return
		}
		d.submit(func() bool {
			d.applySnapshot(f)
			return true
		})
	}()
}
