// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for admin middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// ServiceTokenConfig provides the shared secret used between this backend and
// the face recognition service, in both directions.
type ServiceTokenConfig interface {
	GetServiceTokenSecret() string
	GetServiceTokenSubject() string
	GetServiceTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq job host.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketAttendance() string
	GetMinioBucketCamperAvatars() string
	IsMinIOEnabled() bool
}

// FaceRecognitionConfig provides settings for the face recognition gateway.
type FaceRecognitionConfig interface {
	ServiceTokenConfig
	GetFaceRecognitionURL() string
	GetFaceRecognitionTimeout() time.Duration
	GetFacePreloadBuffer() time.Duration
}

// IdempotencyConfig provides settings for webhook dedup.
type IdempotencyConfig interface {
	GetIdempotencyBackend() string
	GetIdempotencyTTL() time.Duration
}

// EmailConfig provides SMTP settings for operations emails.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromAddress() string
	GetEmailFromName() string
}

// NotificationConfig provides the recipient of operations emails.
type NotificationConfig interface {
	GetOpsNotifyEmail() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	JWTAccessSecret         string
	ServiceTokenSecret      string
	ServiceTokenSubject     string
	ServiceTokenTTL         time.Duration
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	ScheduleSweepCron       string
	SchedulerMetricsAddr    string
	MinIOEndpoint           string
	MinIOAccessKey          string
	MinIOSecretKey          string
	MinIOUseSSL             bool
	MinioBucketAttendance   string
	MinioBucketCamperAvatar string
	FaceRecognitionURL      string
	FaceRecognitionTimeout  time.Duration
	FacePreloadBuffer       time.Duration
	IdempotencyBackend      string
	IdempotencyTTL          time.Duration
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromAddress        string
	EmailFromName           string
	OpsNotifyEmail          string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// ServiceTokenConfig implementation
func (c *Config) GetServiceTokenSecret() string     { return c.ServiceTokenSecret }
func (c *Config) GetServiceTokenSubject() string    { return c.ServiceTokenSubject }
func (c *Config) GetServiceTokenTTL() time.Duration { return c.ServiceTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string          { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool    { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string    { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int     { return c.AsynqConcurrency }
func (c *Config) GetScheduleSweepCron() string { return c.ScheduleSweepCron }
func (c *Config) GetSchedulerMetricsAddr() string {
	return c.SchedulerMetricsAddr
}

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketAttendance() string {
	return c.MinioBucketAttendance
}
func (c *Config) GetMinioBucketCamperAvatars() string {
	return c.MinioBucketCamperAvatar
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// FaceRecognitionConfig implementation
func (c *Config) GetFaceRecognitionURL() string            { return c.FaceRecognitionURL }
func (c *Config) GetFaceRecognitionTimeout() time.Duration { return c.FaceRecognitionTimeout }
func (c *Config) GetFacePreloadBuffer() time.Duration      { return c.FacePreloadBuffer }

// IdempotencyConfig implementation
func (c *Config) GetIdempotencyBackend() string    { return c.IdempotencyBackend }
func (c *Config) GetIdempotencyTTL() time.Duration { return c.IdempotencyTTL }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.SMTPHost != "" && c.EmailFromAddress != "" }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }

// NotificationConfig implementation
func (c *Config) GetOpsNotifyEmail() string { return c.OpsNotifyEmail }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", ""),
		ServiceTokenSecret:      getEnv("SERVICE_TOKEN_SECRET", ""),
		ServiceTokenSubject:     getEnv("SERVICE_TOKEN_SUBJECT", "dotnet-backend"),
		ServiceTokenTTL:         mustDuration(getEnv("SERVICE_TOKEN_TTL", "5m")),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "camps"),
		AsynqConcurrency:        mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		ScheduleSweepCron:       getEnv("SCHEDULE_SWEEP_CRON", "@every 1h"),
		SchedulerMetricsAddr:    getEnv("SCHEDULER_METRICS_ADDR", ":9091"),
		MinIOEndpoint:           getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:          getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:          getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:             strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketAttendance:   getEnv("MINIO_BUCKET_ATTENDANCE", "attendance-sessions"),
		MinioBucketCamperAvatar: getEnv("MINIO_BUCKET_CAMPER_AVATARS", "camper-avatars"),
		FaceRecognitionURL:      strings.TrimRight(getEnv("FACE_RECOGNITION_URL", ""), "/"),
		FaceRecognitionTimeout:  mustDuration(getEnv("FACE_RECOGNITION_TIMEOUT", "30s")),
		FacePreloadBuffer:       time.Duration(mustInt(getEnv("FACE_PRELOAD_BUFFER_MINUTES", "10"))) * time.Minute,
		IdempotencyBackend:      strings.ToLower(getEnv("IDEMPOTENCY_BACKEND", "redis")),
		IdempotencyTTL:          mustDuration(getEnv("IDEMPOTENCY_TTL", "24h")),
		SMTPHost:                getEnv("SMTP_HOST", ""),
		SMTPPort:                mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "Camp Scheduler"),
		OpsNotifyEmail:          getEnv("OPS_NOTIFY_EMAIL", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.ServiceTokenSecret == "" {
		return nil, fmt.Errorf("SERVICE_TOKEN_SECRET is required")
	}
	if cfg.IdempotencyBackend == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when IDEMPOTENCY_BACKEND is redis")
	}
	if cfg.IdempotencyBackend != "redis" && cfg.IdempotencyBackend != "memory" {
		return nil, fmt.Errorf("IDEMPOTENCY_BACKEND must be redis or memory")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.FacePreloadBuffer < 0 {
		cfg.FacePreloadBuffer = 10 * time.Minute
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
