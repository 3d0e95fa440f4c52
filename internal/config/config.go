package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string        `mapstructure:"PORT"`
	Env                   string        `mapstructure:"ENV"`
	DatabaseURL           string        `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32         `mapstructure:"DB_MIN_CONNS"`
	TokenSecret           string        `mapstructure:"TOKEN_SECRET"`
	TokenTTL              time.Duration `mapstructure:"TOKEN_TTL"`
	CORSOrigins           []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS          float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int           `mapstructure:"RATE_LIMIT_BURST"`
	AuthRateLimitPer10m   int           `mapstructure:"AUTH_RATE_LIMIT_PER_10M"`
	RequestTimeout        time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	FinishSweepInterval   time.Duration `mapstructure:"FINISH_SWEEP_INTERVAL"`
	TaxonomySweepInterval time.Duration `mapstructure:"TAXONOMY_SWEEP_INTERVAL"`
	GeocoderURL           string        `mapstructure:"GEOCODER_URL"`
	GeocoderUserAgent     string        `mapstructure:"GEOCODER_USER_AGENT"`
}

// devTokenSecret signs tokens in development when TOKEN_SECRET is unset.
const devTokenSecret = "clinic-development-secret-do-not-use"

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"TOKEN_SECRET", "TOKEN_TTL", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "AUTH_RATE_LIMIT_PER_10M",
	"REQUEST_TIMEOUT", "FINISH_SWEEP_INTERVAL", "TAXONOMY_SWEEP_INTERVAL",
	"GEOCODER_URL", "GEOCODER_USER_AGENT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("AUTH_RATE_LIMIT_PER_10M", 20)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("FINISH_SWEEP_INTERVAL", "30m")
	v.SetDefault("TAXONOMY_SWEEP_INTERVAL", "24h")
	v.SetDefault("GEOCODER_USER_AGENT", "clinic-server")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TokenSecret == "" && cfg.IsDev() {
		cfg.TokenSecret = devTokenSecret
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: X-Dev-Role/X-Dev-Profile headers are trusted and tokens use a built-in secret.")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// TOKEN_SECRET must be set and at least 32 bytes long.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.TokenSecret == "" {
			return fmt.Errorf("TOKEN_SECRET is required when ENV=%q", c.Env)
		}
		if c.TokenSecret == devTokenSecret {
			return fmt.Errorf("TOKEN_SECRET must not be the development secret when ENV=%q", c.Env)
		}
		if len(c.TokenSecret) < 32 {
			return fmt.Errorf("TOKEN_SECRET must be at least 32 bytes, got %d", len(c.TokenSecret))
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	for name, d := range map[string]time.Duration{
		"REQUEST_TIMEOUT":         c.RequestTimeout,
		"FINISH_SWEEP_INTERVAL":   c.FinishSweepInterval,
		"TAXONOMY_SWEEP_INTERVAL": c.TaxonomySweepInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.FinishSweepInterval < time.Minute {
		return fmt.Errorf("FINISH_SWEEP_INTERVAL must be at least 1m, got %s", c.FinishSweepInterval)
	}

	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 || c.AuthRateLimitPer10m < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	return nil
}
