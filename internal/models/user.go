package models

import "strings"

// Role представляет роль пользователя
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleOwner        Role = "owner"
	RoleAgent        Role = "agent"
	RoleOwnerPending Role = "owner_pending"
	RoleAgentPending Role = "agent_pending"
	RoleRejected     Role = "rejected"
)

// IsPending сообщает, ожидает ли пользователь одобрения
func (r Role) IsPending() bool {
	return strings.HasSuffix(string(r), "_pending")
}

// IsActive сообщает, может ли роль пользоваться дашбордами
func (r Role) IsActive() bool {
	return r == RoleAdmin || r == RoleOwner || r == RoleAgent
}

// ApprovedRole возвращает роль, в которую переходит ожидающий пользователь при одобрении
func (r Role) ApprovedRole() (Role, bool) {
	switch r {
	case RoleOwnerPending:
		return RoleOwner, true
	case RoleAgentPending:
		return RoleAgent, true
	}
	return "", false
}

// User представляет пользователя системы
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role"`
}

// UpdateRoleRequest представляет запрос на смену роли
type UpdateRoleRequest struct {
	Role Role `json:"role"`
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// SignupRequest представляет запрос на регистрацию
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}
