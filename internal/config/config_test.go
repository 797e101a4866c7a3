package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestDefaultsNeedSecret(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())

	cfg.Auth.Secret = testSecret
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"SIGEPA_AUTH_SECRET":       testSecret,
		"SIGEPA_AUTH_TTL":          "45m",
		"SIGEPA_CORS_ORIGINS":      "https://app.sigepa.cl, https://admin.sigepa.cl",
		"SIGEPA_RATE_BURST":        "5",
		"SIGEPA_PAYMENT_MODE":      PaymentModeTransbank,
		"SIGEPA_TBK_COMMERCE_CODE": "597000000001",
		"SIGEPA_TRUSTED_PROXIES":   "10.0.0.0/8, 192.168.1.10",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 45*time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, []string{"https://app.sigepa.cl", "https://admin.sigepa.cl"}, cfg.Server.CORSAllowedOrigins)
	require.Equal(t, 5, cfg.Server.RateBurst)
	require.Equal(t, PaymentModeTransbank, cfg.Payment.Mode)
	require.Equal(t, "597000000001", cfg.Payment.Transbank.CommerceCode)
	require.Equal(t, []string{"10.0.0.0/8", "192.168.1.10"}, cfg.Server.TrustedProxies)
}

func TestTrustedProxiesMustParse(t *testing.T) {
	cfg := Default()
	cfg.Auth.Secret = testSecret
	cfg.Server.TrustedProxies = []string{"10.0.0.0/8", "loadbalancer"}
	require.ErrorContains(t, cfg.Validate(), `trusted proxy "loadbalancer"`)
}

func TestEnvRejectsMalformedValues(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "SIGEPA_AUTH_TTL" {
			return "forever", true
		}
		return "", false
	})
	require.ErrorContains(t, err, "SIGEPA_AUTH_TTL")
}

func TestUnknownPaymentMode(t *testing.T) {
	cfg := Default()
	cfg.Auth.Secret = testSecret
	cfg.Payment.Mode = "development"
	require.ErrorContains(t, cfg.Validate(), "unknown payment mode")
}

func TestMergeYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sigepa.yaml")
	body := []byte(`
server:
  addr: ":9000"
auth:
  issuer: sigepa-test
  access_ttl: 2h
payment:
  simulated:
    reject_above: 500000
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg := Default()
	require.NoError(t, cfg.mergeFile(path))
	require.Equal(t, ":9000", cfg.Server.Addr)
	require.Equal(t, "sigepa-test", cfg.Auth.Issuer)
	require.Equal(t, 2*time.Hour, cfg.Auth.AccessTTL)
	require.Equal(t, int64(500000), cfg.Payment.Simulated.RejectAbove)
	// untouched keys keep their defaults
	require.Equal(t, ":9090", cfg.Server.GRPCAddr)
}
