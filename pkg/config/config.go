package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cart          CartConfig
	Checkout      CheckoutConfig
	Notifications NotificationsConfig
	Printing      PrintingConfig
	RateLimit     RateLimitConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERDESK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ORDERDESK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ORDERDESK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ORDERDESK_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"ORDERDESK_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERDESK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERDESK_DB_DSN"`
	Driver string `envconfig:"ORDERDESK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERDESK_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERDESK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERDESK_DB_USER"`
	LegacyPassword string `envconfig:"ORDERDESK_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERDESK_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQueryThreshold logs statements slower than this; zero disables it.
	SlowQueryThreshold time.Duration `envconfig:"ORDERDESK_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// IsSQLite reports whether the sqlite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERDESK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDERDESK_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies operator access tokens issued by the account service.
type JWTConfig struct {
	Secret            string `envconfig:"ORDERDESK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDERDESK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ORDERDESK_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ORDERDESK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ORDERDESK_AUTO_MIGRATE" default:"false"`
	Metrics     bool `envconfig:"ORDERDESK_METRICS_ENABLED" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"ORDERDESK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ORDERDESK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"ORDERDESK_PUBSUB_ORDERS_TOPIC" default:"od-order-events"`
	OrdersSubscription string `envconfig:"ORDERDESK_PUBSUB_ORDERS_SUBSCRIPTION" default:"od-order-events-inbox"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERDESK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDERDESK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDERDESK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CartConfig struct {
	SnapshotTTL time.Duration `envconfig:"ORDERDESK_CART_SNAPSHOT_TTL" default:"720h"`
}

type CheckoutConfig struct {
	ClosedMessage  string        `envconfig:"ORDERDESK_CHECKOUT_CLOSED_MESSAGE" default:"A loja está fechada no momento."`
	IdempotencyTTL time.Duration `envconfig:"ORDERDESK_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

// NotificationsConfig tunes the live operator alert sessions.
type NotificationsConfig struct {
	AlertDuration      time.Duration `envconfig:"ORDERDESK_NOTIFICATIONS_ALERT_DURATION" default:"8s"`
	PrintDelay         time.Duration `envconfig:"ORDERDESK_NOTIFICATIONS_PRINT_DELAY" default:"1500ms"`
	PlaybackAckTimeout time.Duration `envconfig:"ORDERDESK_NOTIFICATIONS_PLAYBACK_ACK_TIMEOUT" default:"5s"`
	StreamHeartbeat    time.Duration `envconfig:"ORDERDESK_NOTIFICATIONS_STREAM_HEARTBEAT" default:"25s"`
}

type PrintingConfig struct {
	Mode       string        `envconfig:"ORDERDESK_PRINT_MODE" default:"browser"`
	SpoolDir   string        `envconfig:"ORDERDESK_PRINT_SPOOL_DIR" default:"var/receipts"`
	ChromePath string        `envconfig:"ORDERDESK_PRINT_CHROME_PATH"`
	Timeout    time.Duration `envconfig:"ORDERDESK_PRINT_TIMEOUT" default:"30s"`
}

// RateLimitConfig throttles public checkout submissions per client IP and per phone.
type RateLimitConfig struct {
	CheckoutWindow     time.Duration `envconfig:"ORDERDESK_RATE_LIMIT_CHECKOUT_WINDOW" default:"10m"`
	CheckoutIPLimit    int           `envconfig:"ORDERDESK_RATE_LIMIT_CHECKOUT_IP" default:"30"`
	CheckoutPhoneLimit int           `envconfig:"ORDERDESK_RATE_LIMIT_CHECKOUT_PHONE" default:"10"`
}

// CronConfig drives the housekeeping worker.
type CronConfig struct {
	Interval                  time.Duration `envconfig:"ORDERDESK_CRON_INTERVAL" default:"24h"`
	NotificationRetentionDays int           `envconfig:"ORDERDESK_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
	OutboxRetentionDays       int           `envconfig:"ORDERDESK_CRON_OUTBOX_RETENTION_DAYS" default:"14"`
	JobTimeout                time.Duration `envconfig:"ORDERDESK_CRON_JOB_TIMEOUT" default:"10m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
	}
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
