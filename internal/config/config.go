package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RapidAPI  RapidAPIConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port               string   `envconfig:"PORT" default:"8000"`
	Env                string   `envconfig:"APP_ENV" default:"development"`
	Domain             string   `envconfig:"DOMAIN" default:"localhost"`
	InProcessScheduler bool     `envconfig:"SCHEDULER_IN_PROCESS" default:"false"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

type DatabaseConfig struct {
	URL         string `envconfig:"DATABASE_URL" required:"true"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type RedisConfig struct {
	URL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
}

type JWTConfig struct {
	SecretKey       string        `envconfig:"JWT_SECRET_KEY" required:"true"`
	Algorithm       string        `envconfig:"JWT_ALGORITHM" default:"HS256"`
	AccessTokenTTL  time.Duration `envconfig:"JWT_ACCESS_TOKEN_TTL" default:"48h"`
	RefreshTokenTTL time.Duration `envconfig:"JWT_REFRESH_TOKEN_TTL" default:"168h"`
}

// RapidAPIConfig points at the mutual fund NAV provider.
type RapidAPIConfig struct {
	URL     string        `envconfig:"RAPID_API_URL" required:"true"`
	Key     string        `envconfig:"RAPID_API_KEY"`
	Host    string        `envconfig:"RAPID_API_HOST"`
	Timeout time.Duration `envconfig:"RAPID_API_TIMEOUT" default:"15s"`
}

// SchedulerConfig drives the hourly NAV refresh trigger.
type SchedulerConfig struct {
	RefreshURL string        `envconfig:"NAV_REFRESH_URL" default:"http://localhost:8000/mfb/investment/update-all-navs"`
	Cron       string        `envconfig:"NAV_REFRESH_CRON" default:"0 * * * *"`
	Timeout    time.Duration `envconfig:"NAV_REFRESH_TIMEOUT" default:"15s"`
	MaxRetry   int           `envconfig:"NAV_REFRESH_MAX_RETRY" default:"3"`
	RetryDelay time.Duration `envconfig:"NAV_REFRESH_RETRY_DELAY" default:"60s"`
	LockTTL    time.Duration `envconfig:"NAV_REFRESH_LOCK_TTL" default:"10m"`
	Interval   time.Duration `envconfig:"NAV_REFRESH_INTERVAL" default:"1h"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load reads a .env file when present and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; the environment is authoritative.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	return fromEnv(allSections...)
}

// LoadScheduler reads only the sections the scheduler process uses, so it
// starts without database or provider settings.
func LoadScheduler() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv(SectionRedis, SectionJWT, SectionScheduler, SectionLog)
}

// Section names a configuration block
type Section string

const (
	SectionServer    Section = "server"
	SectionDatabase  Section = "database"
	SectionRedis     Section = "redis"
	SectionJWT       Section = "jwt"
	SectionRapidAPI  Section = "rapidapi"
	SectionScheduler Section = "scheduler"
	SectionLog       Section = "log"
)

var allSections = []Section{
	SectionServer, SectionDatabase, SectionRedis, SectionJWT,
	SectionRapidAPI, SectionScheduler, SectionLog,
}

func fromEnv(sections ...Section) (*Config, error) {
	var cfg Config
	targets := map[Section]any{
		SectionServer:    &cfg.Server,
		SectionDatabase:  &cfg.Database,
		SectionRedis:     &cfg.Redis,
		SectionJWT:       &cfg.JWT,
		SectionRapidAPI:  &cfg.RapidAPI,
		SectionScheduler: &cfg.Scheduler,
		SectionLog:       &cfg.Log,
	}
	for _, s := range sections {
		target, ok := targets[s]
		if !ok {
			return nil, fmt.Errorf("config: unknown section %q", s)
		}
		if err := envconfig.Process("", target); err != nil {
			return nil, fmt.Errorf("config %s: %w", s, err)
		}
	}
	return &cfg, nil
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c != nil && c.Server.Env == "production"
}

// SecretKeyBytes returns the token signing secret.
func (c JWTConfig) SecretKeyBytes() []byte {
	return []byte(c.SecretKey)
}
