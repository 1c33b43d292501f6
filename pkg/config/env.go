package config

const (
	EnvPrefix = "CRM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:crm.db?_foreign_keys=on"

	EnvAppEnv       = "CRM_APP_ENV"
	EnvPort         = "CRM_APP_PORT"
	EnvLogFormat    = "CRM_LOG_FORMAT"
	EnvDBDSN        = "CRM_DB_DSN"
	EnvDBHost       = "CRM_DB_HOST"
	EnvDBPort       = "CRM_DB_PORT"
	EnvDBUser       = "CRM_DB_USER"
	EnvDBPassword   = "CRM_DB_PASSWORD"
	EnvDBName       = "CRM_DB_NAME"
	EnvRedisURL     = "CRM_REDIS_URL"
	EnvUseSQLite    = "CRM_USE_SQLITE"
	EnvLockTTL      = "CRM_LOCK_TTL"
	EnvGCPProjectID = "CRM_GCP_PROJECT_ID"
	EnvDomainTopic  = "CRM_PUBSUB_DOMAIN_TOPIC"
)

var splitDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
