// Package config loads every service's settings from ZEROHUNGER_* variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Claims       ClaimsConfig
	RateLimit    RateLimitConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

// Load reads the environment, assembles a DSN from discrete DB variables when
// no DSN is given, and rejects inconsistent tuning values.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	if err := errors.Join(cfg.Claims.validate(), cfg.RateLimit.validate()); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ZEROHUNGER_APP_ENV" required:"true"`
	Port         string `envconfig:"ZEROHUNGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ZEROHUNGER_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ZEROHUNGER_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ZEROHUNGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

// ServiceConfig is set by each binary before logging starts.
type ServiceConfig struct {
	Kind string `envconfig:"ZEROHUNGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ZEROHUNGER_DB_DSN"`
	Driver string `envconfig:"ZEROHUNGER_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ZEROHUNGER_DB_HOST"`
	Port     int    `envconfig:"ZEROHUNGER_DB_PORT" default:"5432"`
	User     string `envconfig:"ZEROHUNGER_DB_USER"`
	Password string `envconfig:"ZEROHUNGER_DB_PASSWORD"`
	Name     string `envconfig:"ZEROHUNGER_DB_NAME"`
	SSLMode  string `envconfig:"ZEROHUNGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ZEROHUNGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ZEROHUNGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ZEROHUNGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ZEROHUNGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" {
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s is unset and so are %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.User)
	if db.Password != "" {
		user = url.UserPassword(db.User, db.Password)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"ZEROHUNGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ZEROHUNGER_REDIS_ADDR"`
	Password     string        `envconfig:"ZEROHUNGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"ZEROHUNGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ZEROHUNGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ZEROHUNGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ZEROHUNGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ZEROHUNGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ZEROHUNGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret used to verify access tokens minted by
// the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"ZEROHUNGER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ZEROHUNGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ZEROHUNGER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ZEROHUNGER_AUTO_MIGRATE" default:"false"`
}

// ClaimsConfig tunes the reservation engine and the proximity search.
type ClaimsConfig struct {
	LockTimeout           time.Duration `envconfig:"ZEROHUNGER_CLAIM_LOCK_TIMEOUT" default:"5s"`
	DefaultRadiusKm       float64       `envconfig:"ZEROHUNGER_PROXIMITY_DEFAULT_RADIUS_KM" default:"10"`
	MaxRadiusKm           float64       `envconfig:"ZEROHUNGER_PROXIMITY_MAX_RADIUS_KM" default:"500"`
	NearestDefaultLimit   int           `envconfig:"ZEROHUNGER_PROXIMITY_NEAREST_LIMIT" default:"10"`
	IdempotencyKeyTTL     time.Duration `envconfig:"ZEROHUNGER_CLAIM_IDEMPOTENCY_TTL" default:"24h"`
	ExpirySweepBatchLimit int           `envconfig:"ZEROHUNGER_EXPIRY_SWEEP_BATCH_LIMIT" default:"200"`
}

func (c ClaimsConfig) validate() error {
	switch {
	case c.DefaultRadiusKm <= 0:
		return fmt.Errorf("%s must be positive", EnvProximityDefaultRadius)
	case c.MaxRadiusKm < c.DefaultRadiusKm:
		return fmt.Errorf("%s must be >= %s", EnvProximityMaxRadius, EnvProximityDefaultRadius)
	case c.LockTimeout < 0:
		return fmt.Errorf("%s must not be negative", EnvClaimLockTimeout)
	}
	return nil
}

// RateLimitConfig throttles claim attempts per client IP and per courier.
// A zero limit disables that dimension.
type RateLimitConfig struct {
	ClaimWindow    time.Duration `envconfig:"ZEROHUNGER_CLAIM_RATE_LIMIT_WINDOW" default:"1m"`
	ClaimIPLimit   int           `envconfig:"ZEROHUNGER_CLAIM_RATE_LIMIT_IP" default:"60"`
	ClaimUserLimit int           `envconfig:"ZEROHUNGER_CLAIM_RATE_LIMIT_USER" default:"20"`
}

func (r RateLimitConfig) validate() error {
	if r.ClaimIPLimit < 0 || r.ClaimUserLimit < 0 {
		return errors.New("claim rate limits must not be negative")
	}
	if (r.ClaimIPLimit > 0 || r.ClaimUserLimit > 0) && r.ClaimWindow <= 0 {
		return fmt.Errorf("%s must be positive when a claim limit is set", EnvClaimRateWindow)
	}
	return nil
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"ZEROHUNGER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ZEROHUNGER_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ZEROHUNGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ZEROHUNGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig names the donation lifecycle topic and one subscription per
// consumer so every consumer receives every event.
type PubSubConfig struct {
	DonationTopic            string `envconfig:"ZEROHUNGER_PUBSUB_DONATION_TOPIC" default:"zh-donation-events"`
	NotificationSubscription string `envconfig:"ZEROHUNGER_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	ImpactSubscription       string `envconfig:"ZEROHUNGER_PUBSUB_IMPACT_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription    string `envconfig:"ZEROHUNGER_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset             string `envconfig:"ZEROHUNGER_BIGQUERY_DATASET" default:"zerohunger"`
	DonationEventsTable string `envconfig:"ZEROHUNGER_BIGQUERY_DONATION_EVENTS_TABLE" default:"donation_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ZEROHUNGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ZEROHUNGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ZEROHUNGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ZEROHUNGER_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"ZEROHUNGER_CRON_LOCK_TTL" default:"4m"`
}
