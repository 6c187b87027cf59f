package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	DashScope DashScopeConfig `yaml:"dashscope"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chat      ChatConfig      `yaml:"chat"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port int    `yaml:"port"`
	Name string `yaml:"name"`
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

// DashScopeConfig LLM provider settings; synthesis is optional and
// disabled entirely when Enabled is false.
type DashScopeConfig struct {
	Enabled        bool   `yaml:"enabled"`
	APIKey         string `yaml:"apiKey"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embeddingModel"`
}

// RetrievalConfig knowledge retrieval settings
type RetrievalConfig struct {
	TopK     int     `yaml:"topK"`
	MinScore float64 `yaml:"minScore"`
}

// ChatConfig orchestration limits and TTLs (seconds)
type ChatConfig struct {
	MaxMessageLen  int `yaml:"maxMessageLen"`
	HistoryTTL     int `yaml:"historyTtl"`
	UserHistoryTTL int `yaml:"userHistoryTtl"`
	AnswerCacheTTL int `yaml:"answerCacheTtl"`
	AgentLogTTL    int `yaml:"agentLogTtl"`
}

// LogConfig logging settings
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// LoadConfig loads the YAML config file, then applies overrides from the
// environment (a .env file is honored when present) so secrets never need
// to live in the YAML.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.MinScore == 0 {
		c.Retrieval.MinScore = 0.6
	}
	if c.Chat.MaxMessageLen == 0 {
		c.Chat.MaxMessageLen = 4000
	}
	if c.Chat.HistoryTTL == 0 {
		c.Chat.HistoryTTL = 86400 * 7
	}
	if c.Chat.UserHistoryTTL == 0 {
		c.Chat.UserHistoryTTL = 86400 * 30
	}
	if c.Chat.AnswerCacheTTL == 0 {
		c.Chat.AnswerCacheTTL = 30
	}
	if c.Chat.AgentLogTTL == 0 {
		c.Chat.AgentLogTTL = 86400 * 7
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DASHSCOPE_API_KEY"); v != "" {
		c.DashScope.APIKey = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = p
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}
