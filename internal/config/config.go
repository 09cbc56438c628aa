// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"safe-room-chat/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Addr             string        `yaml:"addr" validate:"required"`
	MaxMessageLength int           `yaml:"max_message_length" validate:"gt=0"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

type RoomsConfig struct {
	MaxMessages int    `yaml:"max_messages" validate:"gt=0"`
	DefaultRoom string `yaml:"default_room" validate:"required"`
	DefaultName string `yaml:"default_name" validate:"required"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver" validate:"oneof=file postgres"` // file | postgres
	Path        string `yaml:"path" validate:"required_if=Driver file"`
	PostgresURL string `yaml:"postgres_url" validate:"required_if=Driver postgres"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.URL) != "" }

type ReputationConfig struct {
	Provider        string        `yaml:"provider" validate:"oneof=virustotal none"`
	APIKey          string        `yaml:"api_key" validate:"required_if=Provider virustotal"`
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	CacheTTL        time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	CacheBackend    string        `yaml:"cache_backend" validate:"oneof=memory redis"`
	BlockThreshold  string        `yaml:"block_threshold" validate:"oneof=CLEAN SUSPICIOUS LOW MEDIUM HIGH"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
	MaxConcurrent   int           `yaml:"max_concurrent" validate:"gt=0"`
}

// Threshold is only valid after Validate succeeded.
func (r ReputationConfig) Threshold() model.ThreatLevel {
	lvl, _ := model.ParseThreatLevel(r.BlockThreshold)
	return lvl
}

type FilterConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Include         []string      `yaml:"include"`
	Exclude         []string      `yaml:"exclude"`
	IncludeRequired *bool         `yaml:"include_required"` // default: len(include) > 0
	Mode            string        `yaml:"mode" validate:"oneof=auto local remote gemini"`
	RemoteTimeout   time.Duration `yaml:"remote_timeout" validate:"gt=0"`
	FailPolicy      string        `yaml:"fail_policy" validate:"oneof=open closed"`
}

type AIConfig struct {
	Provider        string `yaml:"provider" validate:"oneof=gemini openai none"`
	GeminiKey       string `yaml:"gemini_key" validate:"required_if=Provider gemini"`
	GeminiURL       string `yaml:"gemini_url"`
	OpenAIKey       string `yaml:"openai_key" validate:"required_if=Provider openai"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	Model           string `yaml:"model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent validator calls
}

type RateLimitConfig struct {
	Messages int           `yaml:"messages"`
	Window   time.Duration `yaml:"window"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Rooms      RoomsConfig      `yaml:"rooms"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Redis      RedisConfig      `yaml:"redis"`
	Reputation ReputationConfig `yaml:"reputation"`
	Filter     FilterConfig     `yaml:"filter"`
	AI         AIConfig         `yaml:"ai"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Admin      AdminConfig      `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, expanding ${VAR} references from the
// environment, then applies defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes, defaults and validates a YAML document.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.MaxMessageLength <= 0 {
		c.Server.MaxMessageLength = 2048
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}

	if c.Rooms.MaxMessages <= 0 {
		c.Rooms.MaxMessages = 1000
	}
	if c.Rooms.DefaultRoom == "" {
		c.Rooms.DefaultRoom = "general"
	}
	if c.Rooms.DefaultName == "" {
		c.Rooms.DefaultName = "guest"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Driver == "file" && c.Storage.Path == "" {
		c.Storage.Path = "data/state.json"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)

	r := &c.Reputation
	if r.Provider == "" {
		if r.APIKey != "" {
			r.Provider = "virustotal"
		} else {
			r.Provider = "none"
		}
	}
	if r.BaseURL == "" {
		r.BaseURL = "https://www.virustotal.com/api/v3"
	}
	if r.Timeout <= 0 {
		r.Timeout = 10 * time.Second
	}
	r.CacheTTL = normalizeTTL(r.CacheTTL)
	if r.CacheBackend == "" {
		r.CacheBackend = "memory"
	}
	if r.BlockThreshold == "" {
		r.BlockThreshold = "LOW"
	}
	r.BlockThreshold = strings.ToUpper(strings.TrimSpace(r.BlockThreshold))
	if r.JanitorInterval <= 0 {
		r.JanitorInterval = 10 * time.Minute
	}
	if r.MaxConcurrent <= 0 {
		r.MaxConcurrent = 4
	}

	f := &c.Filter
	if f.Mode == "" {
		f.Mode = "auto"
	}
	if f.RemoteTimeout <= 0 {
		f.RemoteTimeout = 10 * time.Second
	}
	if f.FailPolicy == "" {
		f.FailPolicy = "open"
	}
	if f.IncludeRequired == nil {
		req := len(f.Include) > 0
		f.IncludeRequired = &req
	}

	a := &c.AI
	if a.Provider == "" {
		switch {
		case a.GeminiKey != "":
			a.Provider = "gemini"
		case a.OpenAIKey != "":
			a.Provider = "openai"
		default:
			a.Provider = "none"
		}
	}
	if a.Model == "" {
		if a.Provider == "openai" {
			a.Model = "gpt-4o-mini"
		} else {
			a.Model = "gemini-1.5-flash"
		}
	}
	if a.ConcurrentLimit <= 0 {
		a.ConcurrentLimit = 16
	}

	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = 10 * time.Second
	}
}

// Validate checks struct tags plus the cross-section rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Reputation.CacheBackend == "redis" && !c.Redis.Enabled() {
		return fmt.Errorf("invalid config: reputation.cache_backend=redis requires redis.url")
	}
	if c.RateLimit.Messages > 0 && !c.Redis.Enabled() {
		return fmt.Errorf("invalid config: ratelimit.messages requires redis.url")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
