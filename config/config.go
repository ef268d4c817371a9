package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Env      string // APP_ENV: development | production
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	AWS      AWSConfig
	Log      LogConfig
	Tenancy  TenancyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/invoica?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig holds session cookie signing settings.
type SessionConfig struct {
	Secret      string
	MaxAgeHours int
}

// AWSConfig holds AWS credentials and the S3 buckets backing the documents and photos stores.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	DocumentsBucket string
	PhotosBucket    string
	PublicBaseURL   string // optional CDN/base URL for public objects
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level      string
	FilePath   string // empty = stdout only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// TenancyConfig holds credential policies for tenant logins.
type TenancyConfig struct {
	// EmployeeLegacyPassword is accepted for staff rows without a stored credential.
	// Empty disables the shared password entirely.
	EmployeeLegacyPassword string
	// DefaultAdminPassword is the initial password of the admin user created with a new organization.
	DefaultAdminPassword string
}

// Production reports whether the service runs in production mode (secure cookies etc.).
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "invoica"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			Secret:      getEnv("SESSION_SECRET", "change-me-in-production"),
			MaxAgeHours: getEnvInt("SESSION_MAX_AGE_HOURS", 24*7),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			DocumentsBucket: getEnv("AWS_S3_DOCUMENTS_BUCKET", "invoica-documents"),
			PhotosBucket:    getEnv("AWS_S3_PHOTOS_BUCKET", "invoica-photos"),
			PublicBaseURL:   getEnv("AWS_S3_PUBLIC_BASE_URL", ""),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
		Tenancy: TenancyConfig{
			EmployeeLegacyPassword: os.Getenv("EMPLOYEE_LEGACY_PASSWORD"),
			DefaultAdminPassword:   getEnv("DEFAULT_ADMIN_PASSWORD", "123456"),
		},
	}
	if _, ok := os.LookupEnv("EMPLOYEE_LEGACY_PASSWORD"); !ok {
		cfg.Tenancy.EmployeeLegacyPassword = "123456"
	}
	if cfg.Production() && cfg.Session.Secret == "change-me-in-production" {
		return nil, fmt.Errorf("SESSION_SECRET must be set in production")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// AllowedOrigins returns the parsed CORS origin list.
func (c ServerConfig) AllowedOrigins() []string {
	return splitTrim(c.CORSAllowedOrigins, ",")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
