package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "REMARKS"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabaseDriver     = "sqlite"
	defaultDatabaseDSN        = "remarks.db"
	defaultLogLevel           = "info"
	defaultServiceTokenIssuer = "remarks-internal"
	defaultRatePerMinute      = 30
	defaultRateBurst          = 10
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabaseDriver     string
	DatabaseDSN        string
	LogLevel           string
	AutoVisible        bool
	AdminKey           string
	ServiceKey         string
	ServiceTokenSecret string
	ServiceTokenIssuer string
	AllowedOrigins     []string
	TrustedProxies     []string
	RatePerMinute      int
	RateBurst          int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("moderation.auto_visible", false)
	configViper.SetDefault("auth.admin_key", "")
	configViper.SetDefault("auth.service_key", "")
	configViper.SetDefault("auth.service_token_secret", "")
	configViper.SetDefault("auth.service_token_issuer", defaultServiceTokenIssuer)
	configViper.SetDefault("cors.allowed_origins", []string{})
	configViper.SetDefault("http.trusted_proxies", []string{})
	configViper.SetDefault("ratelimit.per_minute", defaultRatePerMinute)
	configViper.SetDefault("ratelimit.burst", defaultRateBurst)
}

// Load parses runtime configuration from viper.
// Operator credentials are optional: leaving one empty makes the matching operations
// report that they are not configured.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:        configViper.GetString("database.dsn"),
		LogLevel:           configViper.GetString("log.level"),
		AutoVisible:        configViper.GetBool("moderation.auto_visible"),
		AdminKey:           strings.TrimSpace(configViper.GetString("auth.admin_key")),
		ServiceKey:         strings.TrimSpace(configViper.GetString("auth.service_key")),
		ServiceTokenSecret: strings.TrimSpace(configViper.GetString("auth.service_token_secret")),
		ServiceTokenIssuer: strings.TrimSpace(configViper.GetString("auth.service_token_issuer")),
		AllowedOrigins:     splitList(configViper.GetStringSlice("cors.allowed_origins")),
		TrustedProxies:     splitList(configViper.GetStringSlice("http.trusted_proxies")),
		RatePerMinute:      configViper.GetInt("ratelimit.per_minute"),
		RateBurst:          configViper.GetInt("ratelimit.burst"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.AdminKey != "" && c.AdminKey == c.ServiceKey {
		return fmt.Errorf("auth.admin_key and auth.service_key must differ")
	}
	if c.RatePerMinute < 0 {
		return fmt.Errorf("ratelimit.per_minute must not be negative")
	}
	if c.RatePerMinute > 0 && c.RateBurst <= 0 {
		return fmt.Errorf("ratelimit.burst must be positive when rate limiting is enabled")
	}
	return nil
}

// splitList accepts both list values and a single comma-separated env value.
func splitList(raw []string) []string {
	origins := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, origin := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
