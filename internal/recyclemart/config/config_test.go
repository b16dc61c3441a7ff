package config

import (
	"testing"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.RunAddress)
	assert.Empty(t, cfg.DatabaseURI)
	assert.Equal(t, DevJWTSecret, cfg.JWTSecret)
	assert.Equal(t, "@every 30s", cfg.StatsRefresh)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.PendingEstimate)
	assert.Equal(t, 100, cfg.MinPayoutCredits)
	assert.Empty(t, cfg.CreditRates)
}

func TestEnvOverridesFlags(t *testing.T) {
	cfg, err := Load([]string{"-a", ":9000", "-d", "postgres://flag"}, env(map[string]string{
		"DATABASE_URI":            "postgres://env",
		"ADMIN_LOGINS":            "root, ops ,",
		"CACHE_TTL":               "1m",
		"MIN_PAYOUT_CREDITS":      "250",
		"PENDING_CREDIT_ESTIMATE": "0",
		"CREDIT_RATES":            "pet=5, other=0.5",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.RunAddress)
	assert.Equal(t, "postgres://env", cfg.DatabaseURI)
	assert.Equal(t, []string{"root", "ops"}, cfg.AdminLogins)
	assert.True(t, cfg.AdminSet()["ops"])
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 250, cfg.MinPayoutCredits)
	assert.Zero(t, cfg.PendingEstimate)
	assert.Equal(t, map[models.WasteCategory]float64{models.CategoryPET: 5, models.CategoryOther: 0.5}, cfg.CreditRates)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(nil, env(map[string]string{"CACHE_TTL": "soon"}))
	assert.Error(t, err)

	_, err = Load(nil, env(map[string]string{"MIN_PAYOUT_CREDITS": "-1"}))
	assert.Error(t, err)

	_, err = Load(nil, env(map[string]string{"CREDIT_RATES": "GLASS=2"}))
	assert.Error(t, err)

	_, err = Load(nil, env(map[string]string{"CREDIT_RATES": "PET"}))
	assert.Error(t, err)
}

func TestParseCreditRatesRejectsNonFinite(t *testing.T) {
	for _, raw := range []string{"PET=NaN", "PP=Inf", "HDPE=-Inf", "PS=-1"} {
		_, err := ParseCreditRates(raw)
		assert.Error(t, err, raw)
	}

	rates, err := ParseCreditRates("PET=4.5")
	require.NoError(t, err)
	assert.Equal(t, 4.5, rates[models.CategoryPET])
}
