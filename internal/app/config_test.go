package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CSRF_SECRET", "secret")
	t.Setenv("DATASTORE", "memory")
	t.Setenv("EMAIL_TRANSPORT", "none")
	t.Setenv("APPROVAL_CC", "a@example.com,b@example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 30*time.Minute, cfg.StoreIdleTTL)
	assert.Equal(t, ":9091", cfg.WorkerMetricsAddr)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.ApprovalCC)
	assert.Equal(t, "id-ID", cfg.CurrencyLocale)
	assert.False(t, cfg.IsProduction())
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing csrf", func(c *Config) { c.CSRFSecret = "" }, "csrf secret"},
		{"unknown datastore", func(c *Config) { c.Datastore = "mongo" }, "DATASTORE"},
		{"emailjs without keys", func(c *Config) { c.EmailTransport = TransportEmailJS }, "EMAILJS_SERVICE_ID"},
		{"smtp without approver", func(c *Config) { c.EmailTransport = TransportSMTP; c.ApproverEmail = "" }, "APPROVER_EMAIL"},
		{"unknown transport", func(c *Config) { c.EmailTransport = "pigeon" }, "EMAIL_TRANSPORT"},
		{"production without link secret", func(c *Config) { c.AppEnv = "production"; c.DecisionLinkSecret = "" }, "decision link secret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestDirectSender(t *testing.T) {
	cfg := testConfig()
	cfg.EmailTransport = TransportSMTP
	sender, err := DirectSender(cfg)
	require.NoError(t, err)
	assert.NotNil(t, sender)

	cfg.EmailTransport = TransportEmailJS
	_, err = DirectSender(cfg)
	assert.Error(t, err)

	cfg.EmailJSServiceID, cfg.EmailJSPublicKey = "svc", "pub"
	sender, err = DirectSender(cfg)
	require.NoError(t, err)
	assert.NotNil(t, sender)

	cfg.EmailTransport = TransportNone
	_, err = DirectSender(cfg)
	assert.Error(t, err)
}

func TestInTestMode(t *testing.T) {
	t.Setenv(TestModeEnv, "1")
	assert.True(t, InTestMode())
	t.Setenv(TestModeEnv, "false")
	assert.False(t, InTestMode())
}
