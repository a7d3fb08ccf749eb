// Package config loads configuration for the assignment engine from the
// environment. An optional YAML file named by
// ENGINE_CONFIG_FILE overlays the environment-derived defaults, so deploys
// can ship one config file instead of a dozen env vars.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string         `yaml:"port"`
	PostgresCfg   PostgresConfig `yaml:"postgres"`
	RedisCfg      RedisConfig    `yaml:"redis"`
	RabbitMQCfg   RabbitMQConfig `yaml:"rabbitmq"`
	PoolBatchSize int            `yaml:"pool_batch_size"`
	RunnerBudget  time.Duration  `yaml:"runner_budget"`
	TickBudget    time.Duration  `yaml:"tick_budget"`
}

type PostgresConfig struct {
	DBname   string `yaml:"dbname"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func New() *Config {
	cfg := &Config{
		Port: getEnvOrDefault("PORT", "8090"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "interpreter_engine"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvIntOrDefault("REDIS_DB", 0),
		},
		RabbitMQCfg: RabbitMQConfig{
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
		},
		PoolBatchSize: getEnvIntOrDefault("POOL_BATCH_SIZE", 50),
		RunnerBudget:  getEnvDurationOrDefault("RUNNER_BUDGET_MS", 10*time.Second),
		TickBudget:    getEnvDurationOrDefault("POOL_TICK_BUDGET_MS", 60*time.Second),
	}
	if path := os.Getenv("ENGINE_CONFIG_FILE"); path != "" {
		if err := overlayYAML(cfg, path); err != nil {
			slog.Warn("could not apply config file, keeping env-derived config", "path", path, "error", err)
		}
	}
	return cfg
}

// overlayYAML unmarshals the file over cfg in place; fields absent from the
// file keep their env-derived values.
func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return defaultValue
}
