package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	RedisURL                string
	StoreBackend            string // "redis" or "memory"
	MLServiceURL            string
	ClassifierTimeoutMS     int64
	EscalationExpirySeconds int64 // 0 disables the expiry sweeper
	SweepIntervalMS         int64
	LeaderElectionTTL       int
	InstanceID              string
	Port                    string
	LogLevel                string
}

func Load() *Config {
	return &Config{
		RedisURL:                getEnv("REDIS_URL", "redis://localhost:6379"),
		StoreBackend:            getEnv("STORE_BACKEND", "redis"),
		MLServiceURL:            getEnv("ML_SERVICE_URL", "http://127.0.0.1:8000"),
		ClassifierTimeoutMS:     getEnvInt64("CLASSIFIER_TIMEOUT_MS", 5000),
		EscalationExpirySeconds: getEnvInt64("ESCALATION_EXPIRY_SECONDS", 1800),
		SweepIntervalMS:         getEnvInt64("SWEEP_INTERVAL_MS", 5000),
		LeaderElectionTTL:       getEnvInt("LEADER_ELECTION_TTL", 10),
		InstanceID:              getEnv("INSTANCE_ID", generateInstanceID()),
		Port:                    getEnv("PORT", "8080"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
	}
}

func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.ClassifierTimeoutMS) * time.Millisecond
}

func (c *Config) EscalationExpiry() time.Duration {
	return time.Duration(c.EscalationExpirySeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}

func (c *Config) LeaderElectionTTLDuration() time.Duration {
	return time.Duration(c.LeaderElectionTTL) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func generateInstanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return uuid.New().String()
	}
	return hostname + "-" + uuid.New().String()[:8]
}
