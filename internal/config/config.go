package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	devGovAPISigningKey = "qi-intake-simulator-development-key"
)

type Config struct {
	Port                   string   `mapstructure:"PORT"`
	Env                    string   `mapstructure:"ENV"`
	Store                  string   `mapstructure:"STORE"`
	DatabaseURL            string   `mapstructure:"DATABASE_URL"`
	DBMaxConns             int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns             int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer             string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience           string   `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL            string   `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey         string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins            []string `mapstructure:"CORS_ORIGINS"`
	GovAPIClientID         string   `mapstructure:"GOVAPI_CLIENT_ID"`
	GovAPISigningKey       string   `mapstructure:"GOVAPI_SIGNING_KEY"`
	GovAPIOrganizationID   string   `mapstructure:"GOVAPI_ORGANIZATION_ID"`
	GovAPIOrganizationName string   `mapstructure:"GOVAPI_ORGANIZATION_NAME"`
	GovAPIServiceIDs       []string `mapstructure:"GOVAPI_SERVICE_IDS"`
	QuestionnaireID        string   `mapstructure:"QI_QUESTIONNAIRE_ID"`
}

var keys = []string{
	"PORT", "ENV", "STORE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY", "CORS_ORIGINS",
	"GOVAPI_CLIENT_ID", "GOVAPI_SIGNING_KEY", "GOVAPI_ORGANIZATION_ID", "GOVAPI_ORGANIZATION_NAME",
	"GOVAPI_SERVICE_IDS", "QI_QUESTIONNAIRE_ID",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE", StoreMemory)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("GOVAPI_CLIENT_ID", "qi-submit")
	v.SetDefault("GOVAPI_ORGANIZATION_ID", "ORG-0001")
	v.SetDefault("GOVAPI_ORGANIZATION_NAME", "Sample Aged Care Provider")
	v.SetDefault("GOVAPI_SERVICE_IDS", "RACS-0001")
	v.SetDefault("QI_QUESTIONNAIRE_ID", "qi-program-2025")

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

	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	}
	if cfg.GovAPIServiceIDs == nil {
		cfg.GovAPIServiceIDs = splitList(v.GetString("GOVAPI_SERVICE_IDS"))
	}
	if cfg.GovAPISigningKey == "" && cfg.IsDev() {
		cfg.GovAPISigningKey = devGovAPISigningKey
	}

	if cfg.Store == StorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE is %q", StorePostgres)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
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
// the service must be able to verify JWTs and the simulator needs its own
// signing key.
func (c *Config) Validate() error {
	if c.Store != StoreMemory && c.Store != StorePostgres {
		return fmt.Errorf("STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store)
	}
	if c.Store == StorePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORE is %q", StorePostgres)
	}
	if !c.IsDev() {
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER must be set outside development (current ENV=%q)", c.Env)
		}
		if c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("one of AUTH_SIGNING_KEY or AUTH_JWKS_URL is required outside development")
		}
	}
	if c.GovAPISigningKey == "" {
		return fmt.Errorf("GOVAPI_SIGNING_KEY is required")
	}
	if c.GovAPIOrganizationID == "" {
		return fmt.Errorf("GOVAPI_ORGANIZATION_ID is required")
	}
	if c.QuestionnaireID == "" {
		return fmt.Errorf("QI_QUESTIONNAIRE_ID is required")
	}
	return nil
}
