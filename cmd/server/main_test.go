package main

import (
	"context"
	"testing"

	"opspulse/internal/api"
	"opspulse/internal/auth"
	"opspulse/internal/config"
	"opspulse/internal/logger"
	"opspulse/internal/realtime"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestOpenSession_PrefersConfiguredToken(t *testing.T) {
	cfg := &config.Config{Session: config.SessionConfig{
		Profile: "default",
		Token:   mintToken(t, jwt.MapClaims{"user_id": 9, "role": "agent"}),
	}}

	sess, err := openSession(context.Background(), cfg, api.New(&cfg.API), auth.NewMemoryStore())
	require.NoError(t, err)
	assert.Equal(t, int64(9), sess.UserID())
}

func TestOpenSession_RestoresStoredToken(t *testing.T) {
	store := auth.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "ops", mintToken(t, jwt.MapClaims{"user_id": 1, "role": "admin"})))

	cfg := &config.Config{Session: config.SessionConfig{Profile: "ops"}}
	sess, err := openSession(context.Background(), cfg, api.New(&cfg.API), store)
	require.NoError(t, err)
	assert.Equal(t, "admin", string(sess.Role()))
}

func TestOpenSession_RejectsExpiredToken(t *testing.T) {
	cfg := &config.Config{Session: config.SessionConfig{
		Profile: "default",
		Token:   mintToken(t, jwt.MapClaims{"user_id": 1, "role": "admin", "exp": 1000}),
	}}

	_, err := openSession(context.Background(), cfg, api.New(&cfg.API), auth.NewMemoryStore())
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestNewSource(t *testing.T) {
	cfg := &config.Config{
		API:      config.APIConfig{BaseURL: "http://localhost:8000/api"},
		Realtime: config.RealtimeConfig{Source: "websocket", Path: "/ws/orders"},
	}
	log := logger.NewDiscard()

	src, err := newSource(cfg, "tok", nil, log)
	require.NoError(t, err)
	ws, ok := src.(*realtime.WebSocketSource)
	require.True(t, ok)
	assert.Equal(t, "ws://localhost:8000/api/ws/orders", ws.URL)

	cfg.Realtime.Source = "redis"
	_, err = newSource(cfg, "tok", nil, log)
	assert.Error(t, err)

	cfg.Realtime.Source = "none"
	src, err = newSource(cfg, "tok", nil, log)
	require.NoError(t, err)
	assert.Nil(t, src)

	cfg.Realtime.Source = "carrier-pigeon"
	_, err = newSource(cfg, "tok", nil, log)
	assert.Error(t, err)
}
