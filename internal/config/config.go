package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"exam-arena-service/internal/assist"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	TigerBeetle struct {
		ClusterID uint64   `yaml:"clusterId"`
		Addresses []string `yaml:"addresses"`
	} `yaml:"tigerbeetle"`
	AMQP struct {
		URI      string `yaml:"uri"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`
	Quiz struct {
		// TTL bounds how long the question catalog stays cached.
		TTL           string  `yaml:"ttl"`
		Linger        string  `yaml:"linger"`
		Multiplier    float64 `yaml:"multiplier"`
		MaxMultiplier float64 `yaml:"maxMultiplier"`
	} `yaml:"quiz"`
	Assist struct {
		AttemptTimeout string                  `yaml:"attemptTimeout"`
		Backoff        string                  `yaml:"backoff"`
		Providers      []assist.ProviderConfig `yaml:"providers"`
	} `yaml:"assist"`
}

// Load reads YAML config from path. A .env file in the working directory is loaded first
// and ${VAR} references in the YAML are expanded from the environment.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets deployment secrets override the file.
func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Postgres.URL, "POSTGRES_URL")
	override(&cfg.Mongo.URI, "MONGO_URI")
	override(&cfg.AMQP.URI, "AMQP_URI")
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
