package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Locks        LocksConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = DefaultSQLiteDSN
		}
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CRM_APP_ENV" required:"true"`
	Port         string `envconfig:"CRM_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CRM_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CRM_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CRM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CRM_DB_DSN"`
	Driver string `envconfig:"CRM_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CRM_DB_HOST"`
	Port     int    `envconfig:"CRM_DB_PORT" default:"5432"`
	User     string `envconfig:"CRM_DB_USER"`
	Password string `envconfig:"CRM_DB_PASSWORD"`
	Name     string `envconfig:"CRM_DB_NAME"`
	SSLMode  string `envconfig:"CRM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DriverSQLite)
}

// RedisConfig is optional: an empty URL and address means no Redis, and
// keyed locks fall back to in-process locking.
type RedisConfig struct {
	URL          string        `envconfig:"CRM_REDIS_URL"`
	Address      string        `envconfig:"CRM_REDIS_ADDR"`
	Password     string        `envconfig:"CRM_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type LocksConfig struct {
	TTL          time.Duration `envconfig:"CRM_LOCK_TTL" default:"10s"`
	WaitTimeout  time.Duration `envconfig:"CRM_LOCK_WAIT_TIMEOUT" default:"2s"`
	PollInterval time.Duration `envconfig:"CRM_LOCK_POLL_INTERVAL" default:"25ms"`
}

type FeatureFlagsConfig struct {
	UseSQLite      bool `envconfig:"CRM_USE_SQLITE" default:"false"`
	AutoMigrate    bool `envconfig:"CRM_AUTO_MIGRATE" default:"false"`
	Idempotency    bool `envconfig:"CRM_IDEMPOTENCY_ENABLED" default:"true"`
	DistributedLck bool `envconfig:"CRM_DISTRIBUTED_LOCKS" default:"true"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CRM_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CRM_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"CRM_PUBSUB_DOMAIN_TOPIC" default:"crm-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CRM_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CRM_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CRM_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"CRM_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range splitDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
