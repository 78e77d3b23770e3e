package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	RedisChannel     string
	SessionNamespace string
	SessionTTL       time.Duration
	AIBaseURL        string
	AIAPIKey         string
	AIModel          string
	AIMaxTokens      int
	AITemperature    float32
	AITimeout        time.Duration
	AIReferer        string
	AITitle          string
	MockDelay        time.Duration
	UploadMaxBytes   int64
	NATSURL          string
	NATSSubject      string
	CORSOrigins      string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RUBIAI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "RubiAI API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.url", "file:rubiai.db?cache=shared")
	v.SetDefault("redis.channel", "rubiai:evaluations")
	v.SetDefault("session.namespace", "default")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("ai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("ai.model", "anthropic/claude-3.5-sonnet")
	v.SetDefault("ai.max_tokens", 4000)
	v.SetDefault("ai.temperature", 0.3)
	v.SetDefault("ai.timeout", "120s")
	v.SetDefault("ai.title", "RubiAI Evaluator")
	v.SetDefault("mock.delay", "6s")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("nats.subject", "rubiai.evaluations")
	v.SetDefault("cors.origins", "*")

	sessionTTL, err := parseDuration(v, "session.ttl")
	if err != nil {
		return Config{}, err
	}
	aiTimeout, err := parseDuration(v, "ai.timeout")
	if err != nil {
		return Config{}, err
	}
	mockDelay, err := parseDuration(v, "mock.delay")
	if err != nil {
		return Config{}, err
	}

	maxMB := v.GetInt64("upload.max_mb")
	if maxMB <= 0 {
		maxMB = 10
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		RedisChannel:     v.GetString("redis.channel"),
		SessionNamespace: v.GetString("session.namespace"),
		SessionTTL:       sessionTTL,
		AIBaseURL:        v.GetString("ai.base_url"),
		AIAPIKey:         strings.TrimSpace(v.GetString("ai.api_key")),
		AIModel:          strings.TrimSpace(v.GetString("ai.model")),
		AIMaxTokens:      v.GetInt("ai.max_tokens"),
		AITemperature:    float32(v.GetFloat64("ai.temperature")),
		AITimeout:        aiTimeout,
		AIReferer:        v.GetString("ai.referer"),
		AITitle:          v.GetString("ai.title"),
		MockDelay:        mockDelay,
		UploadMaxBytes:   maxMB << 20,
		NATSURL:          v.GetString("nats.url"),
		NATSSubject:      v.GetString("nats.subject"),
		CORSOrigins:      strings.TrimSpace(v.GetString("cors.origins")),
	}

	if cfg.AITimeout <= 0 {
		return Config{}, fmt.Errorf("ai timeout must be positive")
	}

	if cfg.AIMaxTokens <= 0 {
		cfg.AIMaxTokens = 4000
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
