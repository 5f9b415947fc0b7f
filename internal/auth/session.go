package auth

import (
	"context"
	"fmt"
	"sync"

	"opspulse/internal/models"
)

// Session представляет единственный дескриптор входа пользователя.
// Создается при входе или загрузке из хранилища, удаляется при выходе.
type Session struct {
	Profile string
	Token   string
	Claims  Claims
}

// NewSession создает сессию из токена
func NewSession(profile, token string) (*Session, error) {
	claims, err := DecodeClaims(token)
	if err != nil {
		return nil, err
	}
	return &Session{Profile: profile, Token: token, Claims: *claims}, nil
}

// UserID возвращает ID пользователя сессии
func (s *Session) UserID() int64 { return s.Claims.UserID }

// Role возвращает роль пользователя сессии
func (s *Session) Role() models.Role { return s.Claims.Role }

// Can проверяет право роли сессии
func (s *Session) Can(p Permission) error {
	return Authorize(s.Claims.Role, p)
}

// SessionStore хранит токены сессий по имени профиля
type SessionStore interface {
	Save(ctx context.Context, profile, token string) error
	Load(ctx context.Context, profile string) (string, error)
	Delete(ctx context.Context, profile string) error
}

// Authenticator выполняет вход на сервере
type Authenticator interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
}

// Login выполняет вход, сохраняет токен и возвращает сессию
func Login(ctx context.Context, a Authenticator, store SessionStore, profile, email, password string) (*Session, error) {
	resp, err := a.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	sess, err := NewSession(profile, resp.AccessToken)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if err := store.Save(ctx, profile, resp.AccessToken); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
	}
	return sess, nil
}

// Restore загружает сессию профиля из хранилища
func Restore(ctx context.Context, store SessionStore, profile string) (*Session, error) {
	token, err := store.Load(ctx, profile)
	if err != nil {
		return nil, err
	}
	return NewSession(profile, token)
}

// Logout удаляет сессию профиля из хранилища
func Logout(ctx context.Context, store SessionStore, profile string) error {
	return store.Delete(ctx, profile)
}

// MemoryStore хранит сессии в памяти процесса, когда база данных отключена
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryStore создает хранилище сессий в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (m *MemoryStore) Save(_ context.Context, profile, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[profile] = token
	return nil
}

func (m *MemoryStore) Load(_ context.Context, profile string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[profile]
	if !ok {
		return "", ErrNoSession
	}
	return token, nil
}

func (m *MemoryStore) Delete(_ context.Context, profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, profile)
	return nil
}
