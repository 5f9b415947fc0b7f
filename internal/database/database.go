package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"opspulse/internal/auth"
	"opspulse/internal/config"
	"opspulse/internal/logger"

	_ "github.com/lib/pq"
)

// DB представляет подключение к базе данных сессий
type DB struct {
	*sql.DB
}

// DSN собирает строку подключения из конфигурации
func DSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// Connect создает подключение к базе данных и применяет схему
func Connect(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Дашборду хватает небольшого пула
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{DB: db}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("Successfully connected to database")

	return d, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS dashboard_sessions (
	profile    TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close закрывает подключение к базе данных
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health проверяет состояние базы данных
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// SessionStore хранит токены сессий дашборда в Postgres
type SessionStore struct {
	db *DB
}

var _ auth.SessionStore = (*SessionStore)(nil)

// NewSessionStore создает хранилище сессий
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save сохраняет токен профиля
func (s *SessionStore) Save(ctx context.Context, profile, token string) error {
	query := `
		INSERT INTO dashboard_sessions (profile, token, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (profile) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, profile, token); err != nil {
		return fmt.Errorf("failed to save session %s: %w", profile, err)
	}
	return nil
}

// Load возвращает токен профиля
func (s *SessionStore) Load(ctx context.Context, profile string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM dashboard_sessions WHERE profile = $1`, profile).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session %s: %w", profile, err)
	}
	return token, nil
}

// Delete удаляет сессию профиля
func (s *SessionStore) Delete(ctx context.Context, profile string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dashboard_sessions WHERE profile = $1`, profile); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", profile, err)
	}
	return nil
}
