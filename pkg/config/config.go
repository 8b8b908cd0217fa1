package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Reset policies. Exactly one is active per process.
const (
	ResetPolicyPerMeal = "per_meal"
	ResetPolicyFixed   = "fixed"
)

// Meal window cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Meal     MealConfig
	Reset    ResetConfig
	Roster   RosterConfig
	Kafka    KafkaConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MealConfig governs how wall-clock meal windows are interpreted and cached.
type MealConfig struct {
	Timezone     string
	Location     *time.Location
	CacheBackend string
	CacheTTL     time.Duration
}

// ResetConfig selects the ledger reset policy.
type ResetConfig struct {
	Policy     string
	Lead       time.Duration
	FixedTimes []string
	Timeout    time.Duration
}

// RosterConfig configures the nightly reconciliation against the external roster.
type RosterConfig struct {
	SourceURL   string
	SourceToken string
	CronSpec    string
	Tolerant    bool
	Timeout     time.Duration
	HTTPTimeout time.Duration
}

// KafkaConfig toggles the admission event stream.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET"), Issuer: v.GetString("JWT_ISSUER")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	loc, err := time.LoadLocation(v.GetString("MEAL_TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("load meal timezone: %w", err)
	}
	cfg.Meal = MealConfig{
		Timezone:     v.GetString("MEAL_TIMEZONE"),
		Location:     loc,
		CacheBackend: strings.ToLower(v.GetString("MEAL_CACHE_BACKEND")),
		CacheTTL:     parseDuration(v.GetString("MEAL_CACHE_TTL"), time.Minute),
	}

	cfg.Reset = ResetConfig{
		Policy:     strings.ToLower(v.GetString("RESET_POLICY")),
		Lead:       parseDuration(v.GetString("RESET_LEAD"), 30*time.Minute),
		FixedTimes: splitAndTrim(v.GetString("RESET_FIXED_TIMES")),
		Timeout:    parseDuration(v.GetString("RESET_TIMEOUT"), 30*time.Second),
	}
	if cfg.Reset.Policy != ResetPolicyPerMeal && cfg.Reset.Policy != ResetPolicyFixed {
		return nil, fmt.Errorf("unsupported RESET_POLICY %q", cfg.Reset.Policy)
	}
	// A lead outside this range lands the reset inside the meal window it clears.
	if cfg.Reset.Lead < time.Minute || cfg.Reset.Lead >= 24*time.Hour {
		return nil, fmt.Errorf("RESET_LEAD %s must be between 1m and 24h", cfg.Reset.Lead)
	}

	cfg.Roster = RosterConfig{
		SourceURL:   v.GetString("ROSTER_SOURCE_URL"),
		SourceToken: v.GetString("ROSTER_SOURCE_TOKEN"),
		CronSpec:    v.GetString("ROSTER_SYNC_CRON"),
		Tolerant:    v.GetBool("ROSTER_SYNC_TOLERANT"),
		Timeout:     parseDuration(v.GetString("ROSTER_SYNC_TIMEOUT"), 5*time.Minute),
		HTTPTimeout: parseDuration(v.GetString("ROSTER_HTTP_TIMEOUT"), 30*time.Second),
	}

	cfg.Kafka = KafkaConfig{
		Enabled: v.GetBool("KAFKA_ENABLED"),
		Brokers: splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:   v.GetString("KAFKA_TOPIC"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "meal_gate")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MEAL_TIMEZONE", "Asia/Jakarta")
	v.SetDefault("MEAL_CACHE_BACKEND", CacheBackendMemory)
	v.SetDefault("MEAL_CACHE_TTL", "1m")

	v.SetDefault("RESET_POLICY", ResetPolicyPerMeal)
	v.SetDefault("RESET_LEAD", "30m")
	v.SetDefault("RESET_FIXED_TIMES", "05:30,11:30,16:30")
	v.SetDefault("RESET_TIMEOUT", "30s")

	v.SetDefault("ROSTER_SOURCE_URL", "")
	v.SetDefault("ROSTER_SOURCE_TOKEN", "")
	v.SetDefault("ROSTER_SYNC_CRON", "0 2 * * *")
	v.SetDefault("ROSTER_SYNC_TOLERANT", false)
	v.SetDefault("ROSTER_SYNC_TIMEOUT", "5m")
	v.SetDefault("ROSTER_HTTP_TIMEOUT", "30s")

	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "meal-gate.events")
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
