package config

const (
	EnvPrefix = "ORDERDESK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:orderdesk.db?cache=shared&_foreign_keys=on"
)

const (
	EnvAppEnv      = "ORDERDESK_APP_ENV"
	EnvPort        = "ORDERDESK_APP_PORT"
	EnvDBDSN       = "ORDERDESK_DB_DSN"
	EnvDBHost      = "ORDERDESK_DB_HOST"
	EnvDBUser      = "ORDERDESK_DB_USER"
	EnvDBName      = "ORDERDESK_DB_NAME"
	EnvRedisURL    = "ORDERDESK_REDIS_URL"
	EnvJWTSecret   = "ORDERDESK_JWT_SECRET"
	EnvJWTIssuer   = "ORDERDESK_JWT_ISSUER"
	EnvUseSQLite   = "ORDERDESK_USE_SQLITE"
	EnvPrintMode   = "ORDERDESK_PRINT_MODE"
	EnvPrintDelay  = "ORDERDESK_NOTIFICATIONS_PRINT_DELAY"
	EnvOrdersTopic = "ORDERDESK_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
