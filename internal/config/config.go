package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the QuietCut services.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Queue      QueueConfig
	Storage    StorageConfig
	Processing ProcessingConfig
	Whisper    WhisperConfig
}

type ServerConfig struct {
	Port              int
	Env               string
	MaxUploadBytes    int64
	RequestsPerMinute int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type QueueConfig struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

type ProcessingConfig struct {
	Workers           int
	FFmpegPath        string
	FFprobePath       string
	SilenceThreshold  string
	MinSilenceSecs    float64
	ProcessingTimeout time.Duration
	PendingTimeout    time.Duration
	SweepInterval     time.Duration
}

type WhisperConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:              envInt("QUIETCUT_PORT", 8080),
			Env:               envString("QUIETCUT_ENV", "development"),
			MaxUploadBytes:    envInt64("MAX_UPLOAD_BYTES", 500<<20),
			RequestsPerMinute: envInt("REQUESTS_PER_MINUTE", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Queue: QueueConfig{
			URL:        os.Getenv("AMQP_URL"),
			Exchange:   envString("AMQP_EXCHANGE", "quietcut.jobs"),
			Queue:      envString("AMQP_QUEUE", "quietcut.process"),
			RoutingKey: envString("AMQP_ROUTING_KEY", "job.created"),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    envString("S3_BUCKET", "quietcut"),
			UseSSL:    envBool("S3_USE_SSL", false),
			URLExpiry: envDuration("S3_URL_EXPIRY", 24*time.Hour),
		},
		Processing: ProcessingConfig{
			Workers:           envInt("WORKER_COUNT", 2),
			FFmpegPath:        envString("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:       envString("FFPROBE_PATH", "ffprobe"),
			SilenceThreshold:  envString("SILENCE_THRESHOLD", "-50dB"),
			MinSilenceSecs:    envFloat("MIN_SILENCE_SECS", 1.0),
			ProcessingTimeout: envDuration("PROCESSING_TIMEOUT", 30*time.Minute),
			PendingTimeout:    envDuration("PENDING_TIMEOUT", 10*time.Minute),
			SweepInterval:     envDuration("SWEEP_INTERVAL", time.Minute),
		},
		Whisper: WhisperConfig{
			BaseURL: envString("WHISPER_BASE_URL", "http://localhost:9000"),
			Model:   envString("WHISPER_MODEL", "base"),
			Timeout: envDuration("WHISPER_TIMEOUT", 10*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Queue.URL == "" {
		return fmt.Errorf("AMQP_URL is required")
	}
	if !strings.HasPrefix(c.Queue.URL, "amqp://") && !strings.HasPrefix(c.Queue.URL, "amqps://") {
		return fmt.Errorf("AMQP_URL must start with amqp:// or amqps://, got %q", c.Queue.URL)
	}

	if c.Storage.Endpoint == "" {
		return fmt.Errorf("S3_ENDPOINT is required")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required")
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Processing.Workers <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
