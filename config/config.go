package config

import (
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string   `env:"APP_PORT" envDefault:"8080"`
	TLSCertFile        string   `env:"TLS_CERT_FILE"`
	TLSKeyFile         string   `env:"TLS_KEY_FILE"`
	PublicBaseURL      string   `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	AllowedOrigins     []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	// Gin framework configuration
	GinMode string `env:"GIN_MODE" envDefault:"release"`
	GinPath string `env:"GIN_PATH" envDefault:"logs/go_gin.log"`

	// Tokens
	JWTSecret  string        `env:"JWT_SECRET"`
	AccessTTL  time.Duration `env:"JWT_ACCESS_TTL" envDefault:"30m"`
	RefreshTTL time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
	EmailTTL   time.Duration `env:"JWT_EMAIL_TTL" envDefault:"24h"`

	// Database
	DBDriver    string `env:"DB_DRIVER" envDefault:"mysql"` // mysql or sqlite
	DatabaseURI string `env:"DATABASE_URI"`
	DBHost      string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort      string `env:"DB_PORT" envDefault:"3306"`
	DBUser      string `env:"DB_USER" envDefault:"root"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"photoshare"`

	// Redis for revocation and caching; empty host keeps everything in memory
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// SMTP for email confirmation
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"465"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Photoshare"`

	// MinIO image host; empty endpoint selects the in-memory host
	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET" envDefault:"images"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinIOPublicURL string `env:"MINIO_PUBLIC_URL"`

	// Uploads
	MaxUploadMB int `env:"MAX_UPLOAD_MB" envDefault:"10"`

	// Orphan asset reaper
	ReaperSchedule string `env:"REAPER_SCHEDULE" envDefault:"@every 5m"`
	ReaperBatch    int    `env:"REAPER_BATCH" envDefault:"100"`

	// Logging configuration
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath       string `env:"LOG_PATH"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"7"`
	LogCompress   bool   `env:"LOG_COMPRESS" envDefault:"false"`
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration from an optional .env file and the environment.
// It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	c, err := Parse()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	cfg = c
	loaded = true
	return cfg
}

// Parse reads configuration without caching it. Variables already present in the
// environment win over values from .env.
func Parse() (AppConfig, error) {
	_ = godotenv.Load()

	var c AppConfig
	if err := env.Parse(&c); err != nil {
		return c, err
	}
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.AllowedOrigins = splitAndTrim(c.AllowedOrigins)
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	return c, nil
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

func splitAndTrim(raw []string) []string {
	items := []string{}
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
