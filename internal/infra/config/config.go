package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP HTTPConfig `yaml:"http"`
	LLM  LLMConfig  `yaml:"llm"`
	QA   QAConfig   `yaml:"qa"`
	Chat ChatConfig `yaml:"chat"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// LLMConfig contains ChatGPT/OpenAI settings.
type LLMConfig struct {
	APIKey          string  `yaml:"apiKey"`
	BaseURL         string  `yaml:"baseUrl"`
	Model           string  `yaml:"model"`
	EmbeddingModel  string  `yaml:"embeddingModel"`
	Temperature     float32 `yaml:"temperature"`
	MaxAnswerTokens int     `yaml:"maxAnswerTokens"`
}

// QAConfig controls the answer resolution and versioning behavior.
type QAConfig struct {
	Prompt              string         `yaml:"prompt"`
	CacheTTL            time.Duration  `yaml:"cacheTtl"`
	SimilarityThreshold float64        `yaml:"similarityThreshold"`
	ChatGPTConfidence   float64        `yaml:"chatgptConfidence"`
	Valkey              ValkeyConfig   `yaml:"valkey"`
	Postgres            PostgresConfig `yaml:"postgres"`
}

// ChatConfig controls session and websocket behavior.
type ChatConfig struct {
	ResolveTimeout time.Duration `yaml:"resolveTimeout"`
	PingInterval   time.Duration `yaml:"pingInterval"`
	MaxMessageSize int64         `yaml:"maxMessageSize"`
}

// ValkeyConfig contains connection information for the answer cache.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("LLM_MAX_ANSWER_TOKENS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxAnswerTokens = parsed
		}
	}
	if v := os.Getenv("QA_PROMPT"); v != "" {
		cfg.QA.Prompt = v
	}
	if v := os.Getenv("QA_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.QA.CacheTTL = parsed
		}
	}
	if v := os.Getenv("QA_SIMILARITY_THRESHOLD"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.QA.SimilarityThreshold = parsed
		}
	}
	if v := os.Getenv("QA_CHATGPT_CONFIDENCE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.QA.ChatGPTConfidence = parsed
		}
	}
	if v := os.Getenv("QA_VALKEY_ENABLED"); v != "" {
		cfg.QA.Valkey.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("QA_VALKEY_ADDR"); v != "" {
		cfg.QA.Valkey.Addr = v
	}
	if v := os.Getenv("QA_POSTGRES_DSN"); v != "" {
		cfg.QA.Postgres.DSN = v
	}
	if v := os.Getenv("QA_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.QA.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("QA_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.QA.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("CHAT_RESOLVE_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Chat.ResolveTimeout = parsed
		}
	}
	if v := os.Getenv("CHAT_PING_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Chat.PingInterval = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.2,
		},
		QA: QAConfig{
			Prompt:              "You are a helpful personal assistant. Answer accurately and kindly.",
			CacheTTL:            time.Hour,
			SimilarityThreshold: 0.8,
			ChatGPTConfidence:   0.8,
			Valkey: ValkeyConfig{
				Enabled: false,
				Addr:    "",
			},
			Postgres: PostgresConfig{
				DSN:      "",
				MaxConns: 4,
				MinConns: 0,
			},
		},
		Chat: ChatConfig{
			ResolveTimeout: 90 * time.Second,
			PingInterval:   30 * time.Second,
			MaxMessageSize: 64 << 10,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.QA.Prompt == "" {
		return errors.New("qa.prompt cannot be empty")
	}
	if c.QA.CacheTTL < 0 {
		return errors.New("qa.cacheTtl cannot be negative")
	}
	if c.QA.SimilarityThreshold < 0 || c.QA.SimilarityThreshold > 1 {
		return errors.New("qa.similarityThreshold must be within [0, 1]")
	}
	if c.QA.ChatGPTConfidence <= 0 || c.QA.ChatGPTConfidence > 1 {
		return errors.New("qa.chatgptConfidence must be within (0, 1]")
	}
	if c.QA.Valkey.Enabled && strings.TrimSpace(c.QA.Valkey.Addr) == "" {
		return errors.New("qa.valkey.addr cannot be empty when the valkey cache is enabled")
	}
	if c.Chat.ResolveTimeout <= 0 {
		return errors.New("chat.resolveTimeout must be positive")
	}
	if c.Chat.MaxMessageSize <= 0 {
		return errors.New("chat.maxMessageSize must be positive")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	return nil
}
