package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/iris/pkg/syncer"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"iris"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`

	Sync    SyncConfig
	Okta    OktaConfig
	Storage StorageConfig

	// Redis backs the run lock. When disabled the lock is in-process only.
	RedisEnabled  bool   `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka receives a copy of every sync audit event
	KafkaEnabled    bool   `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers    string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaAuditTopic string `env:"KAFKA_AUDIT_TOPIC" env-default:"iris.audit"`

	// Tracing settings
	OTLPEnabled  bool   `env:"OTLP_ENABLED" env-default:"false"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure bool   `env:"OTLP_INSECURE" env-default:"true"`

	// Auth protects the HTTP API. When disabled every caller may trigger a sync.
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`
	AuthSyncRole  string `env:"AUTH_SYNC_ROLE" env-default:"iris-admin"`
}

type SyncConfig struct {
	MaxRunDuration  time.Duration `env:"SYNC_MAX_RUN_DURATION" env-default:"30m"`
	RecentRunsLimit int           `env:"SYNC_RECENT_RUNS_LIMIT" env-default:"10"`
}

type OktaConfig struct {
	Domain              string `env:"OKTA_DOMAIN" env-default:""`
	APIToken            string `env:"OKTA_API_TOKEN" env-default:""`
	RateLimit           int    `env:"OKTA_RATE_LIMIT" env-default:"10"`
	UsersPageSize       int    `env:"OKTA_USERS_PAGE_SIZE" env-default:"200"`
	AppsPageSize        int    `env:"OKTA_APPS_PAGE_SIZE" env-default:"200"`
	AssignmentsPageSize int    `env:"OKTA_ASSIGNMENTS_PAGE_SIZE" env-default:"500"`

	// JMESPath expressions over the raw provider records
	UserNameExpression       string `env:"OKTA_USER_NAME_EXPRESSION" env-default:"join(' ', [profile.firstName || '', profile.lastName || ''])"`
	UserDepartmentExpression string `env:"OKTA_USER_DEPARTMENT_EXPRESSION" env-default:"profile.department"`
	UserTitleExpression      string `env:"OKTA_USER_TITLE_EXPRESSION" env-default:"profile.title"`
	AppWebsiteExpression     string `env:"OKTA_APP_WEBSITE_EXPRESSION" env-default:"settings.app.url"`
}

type StorageConfig struct {
	Enabled     bool   `env:"DB_ENABLED" env-default:"false"`
	DatabaseURL string `env:"DATABASE_URL" env-default:""`
	// Reconnect Retry Count
	ReconnectRetryCount int           `env:"DB_RECONNECT_RETRY_COUNT" env-default:"3"`
	MaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path, empty to skip migrations
	MigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Auto Rollback
	MigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
}

// Load reads the given .env files, when present, and then the environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// SyncSettings projects the values the sync guard checks.
func (c *Config) SyncSettings() syncer.Settings {
	return syncer.Settings{
		ProviderDomain: c.Okta.Domain,
		ProviderToken:  c.Okta.APIToken,
		StorageEnabled: c.Storage.Enabled,
		DatabaseURL:    c.Storage.DatabaseURL,
	}
}

type guardEnv struct {
	Domain         string `env:"OKTA_DOMAIN"`
	Token          string `env:"OKTA_API_TOKEN"`
	StorageEnabled bool   `env:"DB_ENABLED" env-default:"false"`
	DatabaseURL    string `env:"DATABASE_URL"`
}

// EnvSettings reads the guard settings from the environment on every call,
// so credentials and toggles can change without a restart. Fallback supplies
// the settings when the environment cannot be parsed.
type EnvSettings struct {
	Fallback syncer.Settings
}

func (e EnvSettings) SyncSettings() syncer.Settings {
	var env guardEnv
	if err := cleanenv.ReadEnv(&env); err != nil {
		return e.Fallback
	}
	return syncer.Settings{
		ProviderDomain: env.Domain,
		ProviderToken:  env.Token,
		StorageEnabled: env.StorageEnabled,
		DatabaseURL:    env.DatabaseURL,
	}
}
