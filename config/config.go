package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env             string
	ServerPort      int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	Database        DatabaseConfig
	Auth            AuthConfig
	Log             LogConfig
	RateLimit       RateLimitConfig
	MQ              MQConfig
	Archive         ArchiveConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	UseSSL       bool
	Path         string
	MaxOpenConns int
	QueryTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	BcryptRounds int
}

type LogConfig struct {
	Level  string
	Format string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

type MQConfig struct {
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	PrefetchCount   int
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type ArchiveConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

func LoadConfig() Config {
	env := getEnv("ENV", "")
	if env == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Driver:       strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnvInt("DB_PORT", 5432),
		User:         getEnv("DB_USER", "taskflow"),
		Password:     getEnv("DB_PASSWORD", "password"),
		DBName:       getEnv("DB_NAME", "taskflow"),
		UseSSL:       getEnvBool("DB_USE_SSL", false),
		Path:         getEnv("DB_PATH", "taskflow.db"),
		MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		QueryTimeout: time.Duration(getEnvInt("DB_QUERY_TIMEOUT_MS", 5000)) * time.Millisecond,
	}

	authConfig := AuthConfig{
		JWTSecret:    strings.TrimSpace(getEnv("JWT_SECRET", "")),
		TokenTTL:     getEnvDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
		BcryptRounds: getEnvInt("BCRYPT_ROUNDS", 10),
	}

	mqConfig := MQConfig{
		Backend: strings.ToLower(getEnv("MQ_BACKEND", "none")),
		Channel: getEnv("MQ_CHANNEL", "taskflow.events"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	archiveConfig := ArchiveConfig{
		Backend: strings.ToLower(getEnv("ARCHIVE_BACKEND", "none")),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	return Config{
		Env:             env,
		ServerPort:      getEnvInt("SERVER_PORT", 3000),
		ShutdownTimeout: time.Duration(getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		CORSOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		Database:        dbConfig,
		Auth:            authConfig,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Requests:   getEnvInt("RATELIMIT_AUTH_REQUESTS", 20),
			Window:     time.Duration(getEnvInt("RATELIMIT_AUTH_WINDOW_SEC", 60)) * time.Second,
			TrustProxy: getEnvBool("RATELIMIT_TRUST_PROXY", false),
		},
		MQ:      mqConfig,
		Archive: archiveConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil || value <= 0 {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("36h") and a day suffix ("7d").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := ParseDuration(valueStr)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// ParseDuration extends time.ParseDuration with a whole-day unit.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
