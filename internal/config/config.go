package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	AuthJWTSecret string
	AuthJWTIssuer string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig

	ProofMaxBytes int64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis endpoint was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type StorageConfig struct {
	Driver        string
	LocalDir      string
	PublicBaseURL string

	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

type RateLimitConfig struct {
	Enabled            bool
	ReadingIngestRate  float64
	ReadingIngestBurst int
}

type SchedulerConfig struct {
	RunInterval           time.Duration
	JobTimeout            time.Duration
	EnabledJobs           []string
	BillingConcurrency    int
	IncludePreviousPeriod bool
	GenerationLockTTL     time.Duration
}

const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "roomwatt"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthJWTIssuer: strings.TrimSpace(getenv("AUTH_JWT_ISSUER", "roomwatt")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "roomwatt"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Driver:         strings.ToLower(getenv("STORAGE_DRIVER", StorageDriverLocal)),
			LocalDir:       getenv("STORAGE_LOCAL_DIR", "./data/uploads"),
			PublicBaseURL:  strings.TrimRight(getenv("STORAGE_PUBLIC_BASE_URL", "/files"), "/"),
			S3Endpoint:     strings.TrimSpace(getenv("STORAGE_S3_ENDPOINT", "")),
			S3Region:       getenv("STORAGE_S3_REGION", "us-east-1"),
			S3Bucket:       strings.TrimSpace(getenv("STORAGE_S3_BUCKET", "")),
			S3AccessKey:    strings.TrimSpace(getenv("STORAGE_S3_ACCESS_KEY", "")),
			S3SecretKey:    strings.TrimSpace(getenv("STORAGE_S3_SECRET_KEY", "")),
			S3UsePathStyle: getenvBool("STORAGE_S3_USE_PATH_STYLE", true),
		},
		RateLimit: RateLimitConfig{
			Enabled:            getenvBool("RATE_LIMIT_ENABLED", false),
			ReadingIngestRate:  getenvFloat("RATE_LIMIT_READING_INGEST_RATE", 2),
			ReadingIngestBurst: getenvInt("RATE_LIMIT_READING_INGEST_BURST", 10),
		},
		Scheduler: SchedulerConfig{
			RunInterval:           getenvDuration("SCHEDULER_RUN_INTERVAL", time.Hour),
			JobTimeout:            getenvDuration("SCHEDULER_JOB_TIMEOUT", 5*time.Minute),
			EnabledJobs:           parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
			BillingConcurrency:    getenvInt("SCHEDULER_BILLING_CONCURRENCY", 4),
			IncludePreviousPeriod: getenvBool("SCHEDULER_INCLUDE_PREVIOUS_PERIOD", true),
			GenerationLockTTL:     getenvDuration("SCHEDULER_GENERATION_LOCK_TTL", 10*time.Minute),
		},
		ProofMaxBytes: getenvInt64("PROOF_MAX_BYTES", 5<<20),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
