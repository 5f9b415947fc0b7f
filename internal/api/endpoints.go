package api

import (
	"context"
	"fmt"
	"net/http"

	"opspulse/internal/models"
)

// ListOrders возвращает заказы, видимые пользователю токена
func (c *Client) ListOrders(ctx context.Context) ([]*models.Order, error) {
	var orders []*models.Order
	if err := c.do(ctx, http.MethodGet, "/orders/", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder создает заказ
func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/orders/", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus меняет статус заказа
func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, req models.UpdateOrderStatusRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/orders/%d/status", id), req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ApproveOrder одобряет заказ или переназначает агента
func (c *Client) ApproveOrder(ctx context.Context, id int64, req models.ApproveOrderRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/orders/%d/approve", id), req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListLocations возвращает местоположения агентов
func (c *Client) ListLocations(ctx context.Context) ([]models.AgentLocation, error) {
	var locations []models.AgentLocation
	if err := c.do(ctx, http.MethodGet, "/locations/", nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// PushLocation отправляет местоположение агента
func (c *Client) PushLocation(ctx context.Context, req models.PushLocationRequest) error {
	return c.do(ctx, http.MethodPost, "/locations/", req, nil)
}

// ListVehicles возвращает транспорт
func (c *Client) ListVehicles(ctx context.Context) ([]*models.Vehicle, error) {
	var vehicles []*models.Vehicle
	if err := c.do(ctx, http.MethodGet, "/vehicles/", nil, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// CreateVehicle регистрирует транспорт
func (c *Client) CreateVehicle(ctx context.Context, req models.CreateVehicleRequest) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := c.do(ctx, http.MethodPost, "/vehicles/", req, &vehicle); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ApproveVehicle сохраняет решение администратора по транспорту
func (c *Client) ApproveVehicle(ctx context.Context, id int64, req models.ApproveVehicleRequest) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/vehicles/%d/approve", id), req, &vehicle); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// AssignVehicleAgent закрепляет агента за транспортом
func (c *Client) AssignVehicleAgent(ctx context.Context, id int64, req models.AssignAgentRequest) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/vehicles/%d/assign-agent", id), req, &vehicle); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ListUsers возвращает всех пользователей (только для администратора)
func (c *Client) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := c.do(ctx, http.MethodGet, "/admin/users/", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUserRole меняет роль пользователя
func (c *Client) UpdateUserRole(ctx context.Context, id int64, req models.UpdateRoleRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/admin/users/%d/role", id), req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListAgents возвращает агентов, видимых пользователю
func (c *Client) ListAgents(ctx context.Context) ([]*models.User, error) {
	var agents []*models.User
	if err := c.do(ctx, http.MethodGet, "/agents/", nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// Login выполняет вход и возвращает токен доступа
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup регистрирует пользователя с ожидающей ролью
func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/signup/", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
