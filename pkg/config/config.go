package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable this service reads.
const EnvPrefix = "YAUBERU"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error
// messages).
const (
	EnvAppEnv   = "YAUBERU_APP_ENV"
	EnvPort     = "YAUBERU_APP_PORT"
	EnvDBDSN    = "YAUBERU_DB_DSN"
	EnvDBHost   = "YAUBERU_DB_HOST"
	EnvDBUser   = "YAUBERU_DB_USER"
	EnvDBName   = "YAUBERU_DB_NAME"
	EnvRedisURL = "YAUBERU_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Scheduler    SchedulerConfig
	Telegram     TelegramConfig
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
	Env          string `envconfig:"YAUBERU_APP_ENV" required:"true"`
	Port         string `envconfig:"YAUBERU_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"YAUBERU_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"YAUBERU_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"YAUBERU_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"YAUBERU_DB_DSN"`
	Driver string `envconfig:"YAUBERU_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"YAUBERU_DB_HOST"`
	LegacyPort     int    `envconfig:"YAUBERU_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"YAUBERU_DB_USER"`
	LegacyPassword string `envconfig:"YAUBERU_DB_PASSWORD"`
	LegacyName     string `envconfig:"YAUBERU_DB_NAME"`
	LegacySSLMode  string `envconfig:"YAUBERU_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"YAUBERU_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"YAUBERU_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"YAUBERU_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"YAUBERU_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"YAUBERU_REDIS_URL" required:"true"`
	Address      string        `envconfig:"YAUBERU_REDIS_ADDR"`
	Password     string        `envconfig:"YAUBERU_REDIS_PASSWORD"`
	DB           int           `envconfig:"YAUBERU_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"YAUBERU_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"YAUBERU_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"YAUBERU_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"YAUBERU_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"YAUBERU_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SchedulerConfig tunes the daily order-generation worker.
type SchedulerConfig struct {
	Interval   time.Duration `envconfig:"YAUBERU_SCHEDULER_INTERVAL" default:"24h"`
	LockTTL    time.Duration `envconfig:"YAUBERU_SCHEDULER_LOCK_TTL" default:"25h"`
	RunOnStart bool          `envconfig:"YAUBERU_SCHEDULER_RUN_ON_START" default:"true"`
}

// TelegramConfig carries the bot credentials for best-effort notifications.
// An empty token disables the sink.
type TelegramConfig struct {
	BotToken     string        `envconfig:"YAUBERU_TELEGRAM_BOT_TOKEN"`
	APIBaseURL   string        `envconfig:"YAUBERU_TELEGRAM_API_BASE_URL" default:"https://api.telegram.org"`
	AdminChatIDs []int64       `envconfig:"YAUBERU_TELEGRAM_ADMIN_CHAT_IDS"`
	Timeout      time.Duration `envconfig:"YAUBERU_TELEGRAM_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"YAUBERU_AUTO_MIGRATE" default:"false"`
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
