package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_defaults(t *testing.T) {
	t.Setenv("SESSION_TTL", "")
	t.Setenv("BACKEND_MODE", "")
	cfg := Load()

	assert.Equal(t, BackendPostgres, cfg.BackendMode)
	assert.Equal(t, SessionStoreMemory, cfg.SessionStore)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.SMTP.Enabled())
}

func TestLoad_overrides(t *testing.T) {
	t.Setenv("BACKEND_MODE", "REST")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("RECEIPT_MAIL_TO", "a@travesia.test, ,b@travesia.test")
	t.Setenv("SMTP_HOST", "smtp.travesia.test")
	t.Setenv("SMTP_FROM", "noreply@travesia.test")
	cfg := Load()

	assert.Equal(t, BackendREST, cfg.BackendMode)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"a@travesia.test", "b@travesia.test"}, cfg.ReceiptMailTo)
	assert.True(t, cfg.SMTP.Enabled())
}

func TestGetduration_invalidFallsBack(t *testing.T) {
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, time.Second, getduration("X_DUR", time.Second))
	t.Setenv("X_DUR", "-1s")
	assert.Equal(t, time.Second, getduration("X_DUR", time.Second))
}

func TestGetint32(t *testing.T) {
	t.Setenv("PG_MAX_CONNS", "")
	assert.Equal(t, int32(10), getint32("PG_MAX_CONNS", 10))
	t.Setenv("PG_MAX_CONNS", "25")
	assert.Equal(t, int32(25), getint32("PG_MAX_CONNS", 10))
	t.Setenv("PG_MAX_CONNS", "many")
	assert.Equal(t, int32(10), getint32("PG_MAX_CONNS", 10))
	t.Setenv("PG_MAX_CONNS", "-3")
	assert.Equal(t, int32(10), getint32("PG_MAX_CONNS", 10))
}
