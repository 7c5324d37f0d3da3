package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "soundcrate"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Purchases     PurchasesConfig
	Notifications NotificationsConfig
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
	Env          string `envconfig:"SOUNDCRATE_APP_ENV" required:"true"`
	Port         string `envconfig:"SOUNDCRATE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOUNDCRATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOUNDCRATE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SOUNDCRATE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SOUNDCRATE_DB_DSN"`
	Driver string `envconfig:"SOUNDCRATE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SOUNDCRATE_DB_HOST"`
	Port     int    `envconfig:"SOUNDCRATE_DB_PORT" default:"5432"`
	User     string `envconfig:"SOUNDCRATE_DB_USER"`
	Password string `envconfig:"SOUNDCRATE_DB_PASSWORD"`
	Name     string `envconfig:"SOUNDCRATE_DB_NAME"`
	SSLMode  string `envconfig:"SOUNDCRATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOUNDCRATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOUNDCRATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOUNDCRATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOUNDCRATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("database DSN or host/user/name settings are required")
	}
	userInfo := url.User(d.User)
	if d.Password != "" {
		userInfo = url.UserPassword(d.User, d.Password)
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	d.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SOUNDCRATE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SOUNDCRATE_REDIS_ADDR"`
	Password     string        `envconfig:"SOUNDCRATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOUNDCRATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOUNDCRATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOUNDCRATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOUNDCRATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOUNDCRATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOUNDCRATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SOUNDCRATE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SOUNDCRATE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SOUNDCRATE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SOUNDCRATE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SOUNDCRATE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SOUNDCRATE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SOUNDCRATE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"SOUNDCRATE_GCS_BUCKET_NAME" required:"true"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"SOUNDCRATE_PUBSUB_DOMAIN_TOPIC" default:"sc-domain-events"`
	DomainSubscription string `envconfig:"SOUNDCRATE_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SOUNDCRATE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SOUNDCRATE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SOUNDCRATE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PurchasesConfig struct {
	PendingTTL time.Duration `envconfig:"SOUNDCRATE_PURCHASE_PENDING_TTL" default:"24h"`
}

type NotificationsConfig struct {
	RetentionCap int `envconfig:"SOUNDCRATE_NOTIFICATION_RETENTION_CAP" default:"100"`
}
