package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 1, cfg.Enrollment.ConflictRetries)
	assert.Equal(t, 24, cfg.Enrollment.DefaultCreditCeiling)
	assert.Equal(t, 5*time.Second, cfg.Enrollment.TxTimeout)
	assert.Equal(t, time.Minute, cfg.Catalog.CacheTTL)
	assert.True(t, cfg.Reconciliation.Enabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ENROLLMENT_CONFLICT_RETRIES", -3)
	v.Set("ENROLLMENT_TX_TIMEOUT", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	v.Set("ENROLLMENT_TIMEZONE", "Asia/Jakarta")

	cfg := fromViper(v)
	assert.Equal(t, 0, cfg.Enrollment.ConflictRetries)
	assert.Equal(t, 5*time.Second, cfg.Enrollment.TxTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)

	loc := cfg.Enrollment.Location()
	require.NotNil(t, loc)
	assert.Equal(t, "Asia/Jakarta", loc.String())
}

func TestEnrollmentLocationFallback(t *testing.T) {
	assert.Equal(t, time.UTC, EnrollmentConfig{}.Location())
	assert.Equal(t, time.UTC, EnrollmentConfig{Timezone: "Nowhere/Invalid"}.Location())
}
