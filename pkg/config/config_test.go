package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp keeps a developer's .env out of the test.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "Asia/Jakarta", cfg.Meal.Location.String())
	assert.Equal(t, CacheBackendMemory, cfg.Meal.CacheBackend)
	assert.Equal(t, time.Minute, cfg.Meal.CacheTTL)
	assert.Equal(t, ResetPolicyPerMeal, cfg.Reset.Policy)
	assert.Equal(t, 30*time.Minute, cfg.Reset.Lead)
	assert.Equal(t, "0 2 * * *", cfg.Roster.CronSpec)
	assert.False(t, cfg.Roster.Tolerant)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MEAL_TIMEZONE", "UTC")
	t.Setenv("MEAL_CACHE_BACKEND", "REDIS")
	t.Setenv("RESET_POLICY", "fixed")
	t.Setenv("RESET_FIXED_TIMES", "05:30, 11:30")
	t.Setenv("RESET_LEAD", "not-a-duration")
	t.Setenv("ROSTER_SYNC_TOLERANT", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("JWT_ISSUER", "identity")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.UTC, cfg.Meal.Location)
	assert.Equal(t, CacheBackendRedis, cfg.Meal.CacheBackend)
	assert.Equal(t, ResetPolicyFixed, cfg.Reset.Policy)
	assert.Equal(t, []string{"05:30", "11:30"}, cfg.Reset.FixedTimes)
	assert.Equal(t, 30*time.Minute, cfg.Reset.Lead)
	assert.True(t, cfg.Roster.Tolerant)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "identity", cfg.JWT.Issuer)
}

func TestLoadRejectsBadValues(t *testing.T) {
	chdirTemp(t)
	t.Setenv("RESET_POLICY", "hourly")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("RESET_POLICY", ResetPolicyPerMeal)
	t.Setenv("MEAL_TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadRejectsResetLeadOutsideRange(t *testing.T) {
	chdirTemp(t)
	for _, lead := range []string{"-30m", "0s", "30s", "24h", "36h"} {
		t.Run(lead, func(t *testing.T) {
			t.Setenv("RESET_LEAD", lead)
			_, err := Load()
			assert.Error(t, err)
		})
	}

	t.Setenv("RESET_LEAD", "23h59m")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour+59*time.Minute, cfg.Reset.Lead)
}
