// Package config loads process-wide settings once at start-up.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML file
// named by SIGEPA_CONFIG, an optional .env file, and SIGEPA_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	PaymentModeSimulated = "simulated"
	PaymentModeTransbank = "transbank"

	minSecretLength = 32
)

// Config holds every setting the binaries read. It is treated as immutable
// once Load returns.
type Config struct {
	App struct {
		Env     string `yaml:"env"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr               string        `yaml:"addr"`
		GRPCAddr           string        `yaml:"grpc_addr"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
		TrustedProxies     []string      `yaml:"trusted_proxies"`
		MaxBodyBytes       int64         `yaml:"max_body_bytes"`
		RateBurst          int           `yaml:"rate_burst"`
		RatePerSecond      int           `yaml:"rate_per_second"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Database struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"database"`

	Auth struct {
		Secret    string        `yaml:"secret"`
		Issuer    string        `yaml:"issuer"`
		AccessTTL time.Duration `yaml:"access_ttl"`
		Leeway    time.Duration `yaml:"leeway"`
	} `yaml:"auth"`

	Log struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	Payment struct {
		Mode      string `yaml:"mode"`
		ReturnURL string `yaml:"return_url"`
		Transbank struct {
			BaseURL      string        `yaml:"base_url"`
			CommerceCode string        `yaml:"commerce_code"`
			APIKey       string        `yaml:"api_key"`
			Timeout      time.Duration `yaml:"timeout"`
		} `yaml:"transbank"`
		Simulated struct {
			RejectAbove int64 `yaml:"reject_above"`
		} `yaml:"simulated"`
	} `yaml:"payment"`

	Cache struct {
		SummaryTTL time.Duration `yaml:"summary_ttl"`
	} `yaml:"cache"`
}

// Default returns a configuration suitable for local development.
func Default() Config {
	var c Config
	c.App.Env = "dev"
	c.App.Version = "dev"
	c.Server.Addr = ":8080"
	c.Server.GRPCAddr = ":9090"
	c.Server.CORSAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	c.Server.MaxBodyBytes = 1 << 20
	c.Server.RateBurst = 40
	c.Server.RatePerSecond = 20
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Database.MaxOpenConns = 20
	c.Database.MaxIdleConns = 10
	c.Database.ConnMaxLifetime = 30 * time.Minute
	c.Auth.Issuer = "sigepa"
	c.Auth.AccessTTL = 8 * time.Hour
	c.Auth.Leeway = 30 * time.Second
	c.Log.Env = "dev"
	c.Log.Level = "info"
	c.Payment.Mode = PaymentModeSimulated
	c.Payment.ReturnURL = "http://localhost:5173/pagos/retorno"
	// Public Webpay Plus integration credentials published by Transbank.
	c.Payment.Transbank.BaseURL = "https://webpay3gint.transbank.cl"
	c.Payment.Transbank.CommerceCode = "597055555532"
	c.Payment.Transbank.APIKey = "579B532A7440BB0C9079DED94D31EA1615BACEB56610332264630D42D0A36B1C"
	c.Payment.Transbank.Timeout = 15 * time.Second
	c.Payment.Simulated.RejectAbove = 0
	c.Cache.SummaryTTL = 30 * time.Second
	return c
}

// Load builds the configuration from defaults, the optional YAML file, an
// optional .env file, and environment overrides, then validates it.
func Load() (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("SIGEPA_CONFIG")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	int64v := func(key string, dst *int64) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SIGEPA_ENV", &c.App.Env)
	str("SIGEPA_VERSION", &c.App.Version)
	str("SIGEPA_ADDR", &c.Server.Addr)
	str("SIGEPA_GRPC_ADDR", &c.Server.GRPCAddr)
	if v, ok := lookup("SIGEPA_CORS_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		c.Server.CORSAllowedOrigins = splitList(v)
	}
	if v, ok := lookup("SIGEPA_TRUSTED_PROXIES"); ok && strings.TrimSpace(v) != "" {
		c.Server.TrustedProxies = splitList(v)
	}
	int64v("SIGEPA_MAX_BODY_BYTES", &c.Server.MaxBodyBytes)
	integer("SIGEPA_RATE_BURST", &c.Server.RateBurst)
	integer("SIGEPA_RATE_PER_SECOND", &c.Server.RatePerSecond)
	duration("SIGEPA_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	str("SIGEPA_PG_DSN", &c.Database.DSN)
	integer("SIGEPA_PG_MAX_OPEN", &c.Database.MaxOpenConns)
	integer("SIGEPA_PG_MAX_IDLE", &c.Database.MaxIdleConns)
	duration("SIGEPA_PG_CONN_LIFETIME", &c.Database.ConnMaxLifetime)

	str("SIGEPA_AUTH_SECRET", &c.Auth.Secret)
	str("SIGEPA_AUTH_ISSUER", &c.Auth.Issuer)
	duration("SIGEPA_AUTH_TTL", &c.Auth.AccessTTL)
	duration("SIGEPA_AUTH_LEEWAY", &c.Auth.Leeway)

	str("SIGEPA_LOG_ENV", &c.Log.Env)
	str("SIGEPA_LOG_LEVEL", &c.Log.Level)

	str("SIGEPA_PAYMENT_MODE", &c.Payment.Mode)
	str("SIGEPA_PAYMENT_RETURN_URL", &c.Payment.ReturnURL)
	str("SIGEPA_TBK_BASE_URL", &c.Payment.Transbank.BaseURL)
	str("SIGEPA_TBK_COMMERCE_CODE", &c.Payment.Transbank.CommerceCode)
	str("SIGEPA_TBK_API_KEY", &c.Payment.Transbank.APIKey)
	duration("SIGEPA_TBK_TIMEOUT", &c.Payment.Transbank.Timeout)
	int64v("SIGEPA_SIMULATED_REJECT_ABOVE", &c.Payment.Simulated.RejectAbove)

	duration("SIGEPA_SUMMARY_CACHE_TTL", &c.Cache.SummaryTTL)

	return errors.Join(errs...)
}

// Validate rejects configurations the services cannot run with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Auth.Secret) < minSecretLength {
		errs = append(errs, fmt.Errorf("config: auth secret must be at least %d bytes", minSecretLength))
	}
	if c.Auth.AccessTTL <= 0 {
		errs = append(errs, errors.New("config: auth access ttl must be positive"))
	}
	if c.Auth.Leeway < 0 {
		errs = append(errs, errors.New("config: auth leeway must not be negative"))
	}
	switch c.Payment.Mode {
	case PaymentModeSimulated:
	case PaymentModeTransbank:
		tb := c.Payment.Transbank
		if tb.BaseURL == "" || tb.CommerceCode == "" || tb.APIKey == "" {
			errs = append(errs, errors.New("config: transbank mode requires base url, commerce code and api key"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown payment mode %q", c.Payment.Mode))
	}
	if c.Server.RateBurst <= 0 || c.Server.RatePerSecond <= 0 {
		errs = append(errs, errors.New("config: rate limits must be positive"))
	}
	for _, p := range c.Server.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			errs = append(errs, fmt.Errorf("config: trusted proxy %q is neither an address nor a CIDR", p))
		}
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
