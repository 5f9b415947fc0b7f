// Package auth описывает сессию дашборда и таблицу прав ролей.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"opspulse/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken возвращается, если токен не удалось разобрать
	ErrInvalidToken = errors.New("invalid auth token")
	// ErrForbidden возвращается, если роль не имеет права на операцию
	ErrForbidden = errors.New("forbidden")
	// ErrNoSession возвращается, если сохраненной сессии нет
	ErrNoSession = errors.New("no stored session")
)

// Claims представляет утверждения токена, нужные для локальных решений
type Claims struct {
	UserID    int64       `json:"user_id"`
	Role      models.Role `json:"role"`
	Email     string      `json:"email,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type tokenClaims struct {
	UserID userID      `json:"user_id"`
	Role   models.Role `json:"role"`
	Email  string      `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// userID принимает идентификатор как числом, так и строкой
type userID int64

func (u *userID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n = json.Number(s)
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return err
	}
	*u = userID(v)
	return nil
}

// DecodeClaims локально декодирует полезную нагрузку токена.
// Подпись проверяет сервер, здесь она не проверяется.
func DecodeClaims(token string) (*Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tc.UserID <= 0 || tc.Role == "" {
		return nil, fmt.Errorf("%w: user_id and role are required", ErrInvalidToken)
	}
	c := &Claims{
		UserID: int64(tc.UserID),
		Role:   tc.Role,
		Email:  tc.Email,
	}
	if c.Email == "" {
		c.Email = tc.Subject
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}

// Expired сообщает, истек ли срок действия токена
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
