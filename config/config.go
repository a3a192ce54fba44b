// Package config loads the portal auth settings from the environment,
// optionally seeded from a .env file.
package config

import (
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

const envPrefix = "PORTAL_AUTH_"

// DefaultDSN opens the sqlite file with foreign keys enforced. SQLite
// leaves them off per connection unless the pragma is set.
const DefaultDSN = "file:portal-auth.db?cache=shared&_pragma=foreign_keys(1)"

// Config implements auth.Config plus the process settings cmd needs
type Config struct {
	SigningKey          string
	Issuer              string
	TokenTTL            time.Duration
	CookieName          string
	TokenLookup         string
	AuthScheme          string
	SignInPath          string
	RejectedRouteKey    string
	VerificationTTL     time.Duration
	InactivityThreshold time.Duration
	JanitorSchedule     string
	MaintenanceSecret   string

	Persistence Persistence
	HTTPAddr    string
	MetricsAddr string
}

// Persistence implements persistence.Config for go-persistence-bun
type Persistence struct {
	Debug          bool
	Driver         string
	DSN            string
	Database       string
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (p Persistence) GetDebug() bool                { return p.Debug }
func (p Persistence) GetDriver() string             { return p.Driver }
func (p Persistence) GetServer() string             { return p.DSN }
func (p Persistence) GetDSN() string                { return p.DSN }
func (p Persistence) GetDatabase() string           { return p.Database }
func (p Persistence) GetPingTimeout() time.Duration { return p.PingTimeout }
func (p Persistence) GetOtelIdentifier() string     { return p.OtelIdentifier }

// Load reads the environment. Each file in envFiles is loaded if present,
// values already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	loadEnvFiles(envFiles)

	cfg := &Config{
		SigningKey:          getEnv("SIGNING_KEY", ""),
		Issuer:              getEnv("ISSUER", "portal-auth"),
		CookieName:          getEnv("COOKIE_NAME", "portal_session"),
		AuthScheme:          getEnv("AUTH_SCHEME", "Bearer"),
		SignInPath:          getEnv("SIGNIN_PATH", "/signin"),
		RejectedRouteKey:    getEnv("REJECTED_ROUTE_KEY", "portal_rejected_route"),
		JanitorSchedule:     getEnv("JANITOR_SCHEDULE", "@every 15m"),
		MaintenanceSecret:   getEnv("MAINTENANCE_SECRET", ""),
		Persistence: Persistence{
			Debug:          getEnv("DB_DEBUG", "") == "true",
			Driver:         getEnv("DB_DRIVER", "sqlite"),
			DSN:            getEnv("DATABASE_DSN", DefaultDSN),
			Database:       getEnv("DB_NAME", "portal-auth"),
			PingTimeout:    5 * time.Second,
			OtelIdentifier: getEnv("DB_OTEL_IDENTIFIER", ""),
		},
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:         getEnv("METRICS_ADDR", ":9090"),
		TokenTTL:            24 * time.Hour,
		VerificationTTL:     24 * time.Hour,
		InactivityThreshold: 7 * 24 * time.Hour,
	}
	cfg.TokenLookup = getEnv("TOKEN_LOOKUP", "cookie:"+cfg.CookieName+",header:Authorization")

	var err error
	if cfg.TokenTTL, err = getEnvAsDuration("TOKEN_TTL", cfg.TokenTTL); err != nil {
		return nil, err
	}
	if cfg.VerificationTTL, err = getEnvAsDuration("VERIFICATION_TTL", cfg.VerificationTTL); err != nil {
		return nil, err
	}
	if cfg.InactivityThreshold, err = getEnvAsDuration("INACTIVITY_THRESHOLD", cfg.InactivityThreshold); err != nil {
		return nil, err
	}
	if cfg.Persistence.PingTimeout, err = getEnvAsDuration("DB_PING_TIMEOUT", cfg.Persistence.PingTimeout); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate will run validation rules
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.SignInPath, validation.Required, validation.By(absolutePath)),
		validation.Field(&c.RejectedRouteKey, validation.Required),
		validation.Field(&c.TokenTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.VerificationTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.InactivityThreshold, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.JanitorSchedule, validation.Required),
		validation.Field(&c.MaintenanceSecret, validation.When(c.MaintenanceSecret != "", validation.Length(16, 0))),
		validation.Field(&c.Persistence),
		validation.Field(&c.HTTPAddr, validation.Required),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid portal auth configuration")
	}
	return nil
}

// Validate checks the datastore settings
func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Driver, validation.Required, validation.In("sqlite")),
		validation.Field(&p.DSN, validation.Required),
		validation.Field(&p.PingTimeout, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

func (c *Config) GetPersistence() Persistence { return c.Persistence }

func (c *Config) GetSigningKey() string                 { return c.SigningKey }
func (c *Config) GetIssuer() string                     { return c.Issuer }
func (c *Config) GetTokenTTL() time.Duration            { return c.TokenTTL }
func (c *Config) GetCookieName() string                 { return c.CookieName }
func (c *Config) GetTokenLookup() string                { return c.TokenLookup }
func (c *Config) GetAuthScheme() string                 { return c.AuthScheme }
func (c *Config) GetSignInPath() string                 { return c.SignInPath }
func (c *Config) GetRejectedRouteKey() string           { return c.RejectedRouteKey }
func (c *Config) GetVerificationTTL() time.Duration     { return c.VerificationTTL }
func (c *Config) GetInactivityThreshold() time.Duration { return c.InactivityThreshold }
func (c *Config) GetJanitorSchedule() string            { return c.JanitorSchedule }
func (c *Config) GetMaintenanceSecret() string          { return c.MaintenanceSecret }

func loadEnvFiles(files []string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func absolutePath(value any) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, "/") {
		return validation.NewError("validation_absolute_path", "must start with /")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(envPrefix + key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid duration").
			WithMetadata(map[string]any{"key": envPrefix + key, "value": raw})
	}
	return d, nil
}
