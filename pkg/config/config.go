package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	PublicURL string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Cache    CacheConfig
	School   SchoolConfig
	Receipts ReceiptsConfig
	Mail     MailConfig
	Import   ImportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig tunes the optional read-through cache.
type CacheConfig struct {
	Enabled      bool
	DashboardTTL time.Duration
	ListTTL      time.Duration
}

// SchoolConfig holds school-wide defaults used when requests omit them.
type SchoolConfig struct {
	Name                string
	DefaultAcademicYear string
	DefaultTerm         string
	DefaultFeeTotal     float64
	SeedAdminEmail      string
	SeedAdminPassword   string
}

// ReceiptsConfig configures receipt rendering and signed downloads.
type ReceiptsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	Workers         int
	Retries         int
	CleanupSchedule string
	Retention       time.Duration
}

// MailConfig configures outbound email delivery.
type MailConfig struct {
	SendGridAPIKey string
	FromName       string
	FromEmail      string
	LoginURL       string
}

// ImportConfig bounds CSV uploads.
type ImportConfig struct {
	MaxUploadBytes int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicURL = strings.TrimRight(v.GetString("PUBLIC_URL"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:      v.GetBool("ENABLE_CACHE"),
		DashboardTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 2*time.Minute),
		ListTTL:      parseDuration(v.GetString("LIST_CACHE_TTL"), 5*time.Minute),
	}

	defaultFee := v.GetFloat64("SCHOOL_DEFAULT_FEE_TOTAL")
	if defaultFee <= 0 {
		defaultFee = 50000
	}
	cfg.School = SchoolConfig{
		Name:                v.GetString("SCHOOL_NAME"),
		DefaultAcademicYear: v.GetString("SCHOOL_ACADEMIC_YEAR"),
		DefaultTerm:         v.GetString("SCHOOL_DEFAULT_TERM"),
		DefaultFeeTotal:     defaultFee,
		SeedAdminEmail:      v.GetString("SEED_ADMIN_EMAIL"),
		SeedAdminPassword:   v.GetString("SEED_ADMIN_PASSWORD"),
	}

	cfg.Receipts = ReceiptsConfig{
		StorageDir:      v.GetString("RECEIPTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("RECEIPTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("RECEIPTS_SIGNED_URL_TTL"), time.Hour),
		Workers:         v.GetInt("RECEIPTS_WORKERS"),
		Retries:         v.GetInt("RECEIPTS_RETRIES"),
		CleanupSchedule: v.GetString("RECEIPTS_CLEANUP_SCHEDULE"),
		Retention:       parseDuration(v.GetString("RECEIPTS_RETENTION"), 90*24*time.Hour),
	}

	cfg.Mail = MailConfig{
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromEmail:      v.GetString("MAIL_FROM_EMAIL"),
		LoginURL:       v.GetString("MAIL_LOGIN_URL"),
	}

	cfg.Import = ImportConfig{MaxUploadBytes: v.GetInt64("IMPORT_MAX_UPLOAD_BYTES")}
	if cfg.Import.MaxUploadBytes <= 0 {
		cfg.Import.MaxUploadBytes = 5 * 1024 * 1024
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "qirllo_school")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "qirllo-school-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("DASHBOARD_CACHE_TTL", "2m")
	v.SetDefault("LIST_CACHE_TTL", "5m")

	v.SetDefault("SCHOOL_NAME", "QIRLLO School")
	v.SetDefault("SCHOOL_ACADEMIC_YEAR", "2025/2026")
	v.SetDefault("SCHOOL_DEFAULT_TERM", "first")
	v.SetDefault("SCHOOL_DEFAULT_FEE_TOTAL", 50000)
	v.SetDefault("SEED_ADMIN_EMAIL", "admin@qirllo.com")
	v.SetDefault("SEED_ADMIN_PASSWORD", "admin123")

	v.SetDefault("RECEIPTS_STORAGE_DIR", "./receipts")
	v.SetDefault("RECEIPTS_SIGNED_URL_SECRET", "dev_receipts_secret")
	v.SetDefault("RECEIPTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("RECEIPTS_WORKERS", 2)
	v.SetDefault("RECEIPTS_RETRIES", 3)
	v.SetDefault("RECEIPTS_CLEANUP_SCHEDULE", "@daily")
	v.SetDefault("RECEIPTS_RETENTION", "2160h")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "QIRLLO School")
	v.SetDefault("MAIL_FROM_EMAIL", "no-reply@qirllo.com")
	v.SetDefault("MAIL_LOGIN_URL", "http://localhost:3000/login")

	v.SetDefault("IMPORT_MAX_UPLOAD_BYTES", 5*1024*1024)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
