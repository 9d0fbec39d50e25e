package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
)

type R2 struct {
	AccountID  string        `env:"ACCOUNT_ID"`
	AccessKey  string        `env:"ACCESS_KEY"`
	SecretKey  string        `env:"SECRET_KEY"`
	BucketName string        `env:"BUCKET_NAME"`
	URLExpiry  time.Duration `env:"URL_EXPIRY,default=6h"`
}

type Platforms struct {
	InstagramBaseURL string `env:"INSTAGRAM_BASE_URL,default=https://graph.instagram.com/v21.0"`
	TiktokBaseURL    string `env:"TIKTOK_BASE_URL,default=https://open.tiktokapis.com"`
	FacebookBaseURL  string `env:"FACEBOOK_BASE_URL,default=https://graph.facebook.com/v21.0"`
	RateLimit        float64 `env:"PLATFORM_RATE_LIMIT,default=5"` // requests per second per gateway
	TuningFile       string  `env:"PLATFORM_TUNING_FILE,default=configs/platforms.yaml"`
}

type LiveUpdates struct {
	Transport    string        `env:"LIVE_TRANSPORT,default=redis"` // redis or kafka
	KafkaBrokers []string      `env:"KAFKA_BROKERS"`
	KafkaTopic   string        `env:"KAFKA_TOPIC,default=post-updates"`
	Timeout      time.Duration `env:"LIVE_TIMEOUT,default=2s"`
}

type Config struct {
	Env                string        `env:"ENV,default=dev"`
	Port               string        `env:"PORT,default=3000"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	PostgresURI        string        `env:"POSTGRES_URI"`
	RedisURI           string        `env:"REDIS_URI,default=localhost:6379"`
	SecretKey          string        `env:"SECRET_KEY"`
	CookieName         string        `env:"COOKIE_NAME,default=postflow_session"`
	WorkerConcurrency  int           `env:"WORKER_CONCURRENCY,default=10"`
	ProgressTTL        time.Duration `env:"PROGRESS_TTL,default=24h"`
	ReconcileInterval  string        `env:"RECONCILE_INTERVAL,default=@every 00h15m00s"`
	ReconcileAfter     time.Duration `env:"RECONCILE_AFTER,default=30m"`
	R2                 R2            `env:",prefix=R2_"`
	Platforms          Platforms
	Live               LiveUpdates
	Tuning             Tuning
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}

	tuning, err := LoadTuning(cfg.Platforms.TuningFile)
	if err != nil {
		return nil, err
	}
	cfg.Tuning = tuning

	return cfg, nil
}
