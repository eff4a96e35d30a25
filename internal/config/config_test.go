package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Ledger.DefaultCommissionRate.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, int64(50000), cfg.Ledger.MinPayout)
	assert.Equal(t, 7, cfg.Ledger.CommissionHoldDays)
	assert.Equal(t, "affiliate_ref", cfg.Checkout.ReferralCookieName)
	assert.Equal(t, []time.Duration{time.Hour, 6 * time.Hour, 20 * time.Hour}, cfg.Scheduler.ReminderAfter)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LEDGER_MIN_PAYOUT", "100000")
	t.Setenv("LEDGER_COMMISSION_DEFAULT_RATE", "12.5")
	t.Setenv("LEDGER_REMINDER_AFTER", "2h, 30m")
	t.Setenv("LEDGER_APP_URL", "https://app.eksporyuk.com/")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(100000), cfg.Ledger.MinPayout)
	assert.Equal(t, "12.5", cfg.Ledger.DefaultCommissionRate.String())
	assert.Equal(t, []time.Duration{2 * time.Hour, 30 * time.Minute}, cfg.Scheduler.ReminderAfter)
	assert.Equal(t, "https://app.eksporyuk.com", cfg.Checkout.AppURL)
}

func TestLoadConfigRejectsRateAboveCeiling(t *testing.T) {
	t.Setenv("LEDGER_COMMISSION_DEFAULT_RATE", "45")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRequiresJWTSecretInProduction(t *testing.T) {
	t.Setenv("LEDGER_ENV", "production")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "LEDGER_AUTH_JWT_SECRET")
}

func TestLoadConfigItemCommissions(t *testing.T) {
	t.Setenv("LEDGER_ITEM_COMMISSIONS", "PRODUCT:ebook-1=FLAT:50000, MEMBERSHIP:gold=PERCENTAGE:25,COURSE:x=BOGUS:1,broken")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Len(t, cfg.Ledger.ItemCommissions, 2)
	assert.Equal(t, "FLAT", cfg.Ledger.ItemCommissions["PRODUCT:ebook-1"].Type)
	assert.Equal(t, "50000", cfg.Ledger.ItemCommissions["PRODUCT:ebook-1"].Value.String())
	assert.Equal(t, "25", cfg.Ledger.ItemCommissions["MEMBERSHIP:gold"].Value.String())
}
