package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.StrictStudentIDs)
	assert.True(t, cfg.SeedDefaults)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("STRICT_STUDENT_IDS", "true")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("LOCK_BACKEND", "redis")

	cfg := Load()

	assert.Equal(t, "mongo", cfg.StoreBackend)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.StrictStudentIDs)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.True(t, cfg.UsesRedis())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("TOKEN_TTL", "forever")
	t.Setenv("SEED_DEFAULTS", "maybe")
	t.Setenv("BCRYPT_COST", "high")

	cfg := Load()

	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.SeedDefaults)
	assert.Equal(t, 12, cfg.BcryptCost)
}

func TestValidate(t *testing.T) {
	base := Load()

	prod := base
	prod.Env = "production"
	assert.Error(t, prod.Validate(), "dev signing key must be refused in production")

	prod.JWTSigningKey = "a-real-secret"
	assert.NoError(t, prod.Validate())

	bad := base
	bad.StoreBackend = "sqlite"
	assert.Error(t, bad.Validate())

	bad = base
	bad.LockBackend = "etcd"
	assert.Error(t, bad.Validate())

	bad = base
	bad.JWTSigningKey = ""
	assert.Error(t, bad.Validate())

	bad = base
	bad.Timezone = "Mars/Olympus"
	assert.Error(t, bad.Validate())
}
