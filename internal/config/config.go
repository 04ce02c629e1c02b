package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	BaseURL  string         `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080"`
	Server   HTTPServer     `yaml:"server" env-prefix:"SERVER_"`
	Storage  StorageConfig  `yaml:"storage" env-prefix:"STORAGE_"`
	Postgres PostgresConfig `yaml:"postgres" env-prefix:"PG_"`
	SQLite   SQLiteConfig   `yaml:"sqlite" env-prefix:"SQLITE_"`
	Auth     AuthConfig     `yaml:"auth" env-prefix:"AUTH_"`
	Mail     MailConfig     `yaml:"mail" env-prefix:"MAIL_"`
}

type HTTPServer struct {
	Port        string        `yaml:"port" env:"PORT" env-default:"8080"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT" env-default:"60s"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" env:"DRIVER" env-default:"postgres"`
}

type PostgresConfig struct {
	Host     string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"PORT" env-default:"5432"`
	User     string `yaml:"user" env:"USER" env-default:"postgres"`
	Password string `yaml:"password" env:"PASSWORD" env-default:"postgres"`
	DbName   string `yaml:"dbname" env:"DBNAME" env-default:"devpulse"`
	SslMode  string `yaml:"sslmode" env:"SSLMODE" env-default:"disable"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH" env-default:"devpulse.db"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"720h"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"12"`
}

type MailConfig struct {
	ResendAPIKey  string        `yaml:"resend_api_key" env:"RESEND_API_KEY"`
	From          string        `yaml:"from" env:"FROM" env-default:"DevPulse <noreply@devpulse.app>"`
	SendTimeout   time.Duration `yaml:"send_timeout" env:"SEND_TIMEOUT" env-default:"10s"`
	QueueSize     int           `yaml:"queue_size" env:"QUEUE_SIZE" env-default:"100"`
	Workers       int           `yaml:"workers" env:"WORKERS" env-default:"2"`
	MaxAttempts   uint          `yaml:"max_attempts" env:"MAX_ATTEMPTS" env-default:"3"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"RETRY_INTERVAL" env-default:"2s"`
}

// MustLoad reads the config file named by CONFIG_PATH when set, and the
// environment otherwise. Environment variables override file values.
func MustLoad() *Config {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			panic("failed to read config file " + path + ": " + err.Error())
		}
		return &cfg
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("failed to read config from environment: " + err.Error())
	}

	return &cfg
}
