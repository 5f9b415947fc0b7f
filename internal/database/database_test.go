package database

import (
	"testing"

	"opspulse/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host: "db", Port: "5432", User: "ops", Password: "secret", DBName: "dash", SSLMode: "disable",
	}

	assert.Equal(t, "host=db port=5432 user=ops password=secret dbname=dash sslmode=disable", DSN(cfg))
}
