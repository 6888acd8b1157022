package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "OVRPAY_DB_DSN"
	EnvDBHost = "OVRPAY_DB_HOST"
	EnvDBUser = "OVRPAY_DB_USER"
	EnvDBName = "OVRPAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Gateway      GatewayConfig
	PubSub       PubSubConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"OVRPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"OVRPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"OVRPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"OVRPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"OVRPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"OVRPAY_DB_DSN"`
	Driver string `envconfig:"OVRPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"OVRPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"OVRPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"OVRPAY_DB_USER"`
	LegacyPassword string `envconfig:"OVRPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"OVRPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"OVRPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"OVRPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"OVRPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"OVRPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"OVRPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"OVRPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"OVRPAY_REDIS_ADDR"`
	Password     string        `envconfig:"OVRPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"OVRPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"OVRPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"OVRPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"OVRPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"OVRPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"OVRPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the city identity provider.
type JWTConfig struct {
	Secret string `envconfig:"OVRPAY_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"OVRPAY_JWT_ISSUER" required:"true"`
}

// GatewayConfig wires the Square-backed payment gateway adapter.
type GatewayConfig struct {
	Provider      string        `envconfig:"OVRPAY_GATEWAY_PROVIDER" default:"square"`
	AccessToken   string        `envconfig:"OVRPAY_GATEWAY_ACCESS_TOKEN"`
	Env           string        `envconfig:"OVRPAY_GATEWAY_ENV" default:"sandbox"`
	LocationID    string        `envconfig:"OVRPAY_GATEWAY_LOCATION_ID"`
	Currency      string        `envconfig:"OVRPAY_GATEWAY_CURRENCY" default:"PHP"`
	ChargeTimeout time.Duration `envconfig:"OVRPAY_GATEWAY_CHARGE_TIMEOUT" default:"30s"`
	RefundTimeout time.Duration `envconfig:"OVRPAY_GATEWAY_REFUND_TIMEOUT" default:"30s"`
}

// Environment returns the normalized gateway environment (sandbox/production).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type PubSubConfig struct {
	ProjectID         string `envconfig:"OVRPAY_PUBSUB_PROJECT_ID"`
	NotificationTopic string `envconfig:"OVRPAY_PUBSUB_NOTIFICATION_TOPIC" default:"ovr-notification-events"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"OVRPAY_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"OVRPAY_CRON_LOCK_TTL" default:"55m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"OVRPAY_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
