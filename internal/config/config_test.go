package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ALERT_STORE", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Alerts.Store)
	assert.Equal(t, 1.0, cfg.Alerts.RadiusMiles)
	assert.Equal(t, 3, cfg.Notifications.MaxRetries)
	assert.False(t, cfg.Sweeper.Enabled)
	assert.False(t, cfg.Twilio.Enabled())
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("ALERT_STORE", "postgres")
	t.Setenv("ALERT_RADIUS_MILES", "2.5")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("SWEEPER_ENABLED", "true")
	t.Setenv("SWEEPER_MAX_AGE", "30m")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_PHONE_NUMBER", "+15550001111")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Alerts.Store)
	assert.Equal(t, 2.5, cfg.Alerts.RadiusMiles)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Minute, cfg.Sweeper.MaxAge)
	assert.True(t, cfg.Twilio.Enabled())
}

func TestLoad_RejectsZeroDirectoryTTL(t *testing.T) {
	t.Setenv("ALERT_STORE", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("DIRECTORY_CACHE_TTL", "0s")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Http:          HttpConfig{Port: ":8080"},
			APIKey:        "k",
			Alerts:        AlertsConfig{Store: StoreMemory, RadiusMiles: 1, DirectoryTTL: time.Second},
			Notifications: NotificationsConfig{Workers: 1, MaxRetries: 3},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"port without colon", func(c *Config) { c.Http.Port = "8080" }, false},
		{"unknown store", func(c *Config) { c.Alerts.Store = "mongo" }, false},
		{"postgres without host", func(c *Config) { c.Alerts.Store = StorePostgres }, false},
		{"empty api key", func(c *Config) { c.APIKey = "" }, false},
		{"zero radius", func(c *Config) { c.Alerts.RadiusMiles = 0 }, false},
		{"zero directory ttl", func(c *Config) { c.Alerts.DirectoryTTL = 0 }, false},
		{"negative directory ttl", func(c *Config) { c.Alerts.DirectoryTTL = -time.Second }, false},
		{"sweeper without age", func(c *Config) { c.Sweeper.Enabled = true }, false},
		{"kafka without topic", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
