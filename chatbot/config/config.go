package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	internal "github.com/sagarreddypatil/nlp-discord-chatbot/chatbot"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Model      ModelConfig      `mapstructure:"model"`
	Generation GenerationConfig `mapstructure:"generation"`
	Sessions   SessionsConfig   `mapstructure:"sessions"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Discord    DiscordConfig    `mapstructure:"discord"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// BotConfig is the persona the bot introduces itself with.
type BotConfig struct {
	Name   string `mapstructure:"name"`
	Gender string `mapstructure:"gender"`
}

// ModelConfig selects the model, its tokenizer and the inference backend.
type ModelConfig struct {
	Name           string        `mapstructure:"name"`            // HF model id, selects the preset
	Family         string        `mapstructure:"family"`          // "seq2seq" | "causal", empty = from preset
	TokenizerPath  string        `mapstructure:"tokenizer_path"`  // tokenizer.json or the directory holding it
	ContextLimit   int           `mapstructure:"context_limit"`   // 0 = tokenizer/preset value
	Backend        string        `mapstructure:"backend"`         // "gguf" | "remote"
	HealthInterval time.Duration `mapstructure:"health_interval"` // 0 disables health checks
	GGUF           GGUFConfig    `mapstructure:"gguf"`
	Remote         RemoteConfig  `mapstructure:"remote"`
}

// GGUFConfig configures the in-process llama.cpp backend.
type GGUFConfig struct {
	ModelPath        string        `mapstructure:"model_path"`
	ContextSize      int           `mapstructure:"context_size"`
	GPULayers        int           `mapstructure:"gpu_layers"`
	Threads          int           `mapstructure:"threads"`
	PoolSize         int           `mapstructure:"pool_size"`
	BorrowTimeout    time.Duration `mapstructure:"borrow_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// RemoteConfig points at a text-generation-inference server.
type RemoteConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// GenerationConfig overrides the model preset's decoding options. Zero
// values keep the preset.
type GenerationConfig struct {
	NumBeams          int      `mapstructure:"num_beams"`
	Temperature       float32  `mapstructure:"temperature"`
	TopP              float32  `mapstructure:"top_p"`
	TopK              int      `mapstructure:"top_k"`
	MinLength         int      `mapstructure:"min_length"`
	MaxLength         int      `mapstructure:"max_length"`
	MaxNewTokens      int      `mapstructure:"max_new_tokens"`
	DoSample          *bool    `mapstructure:"do_sample"`
	RepetitionPenalty float32  `mapstructure:"repetition_penalty"`
	Seed              int      `mapstructure:"seed"`
	Stop              []string `mapstructure:"stop"`
	TimeoutMs         int      `mapstructure:"timeout_ms"`
}

// SessionsConfig controls the conversation map and generation workers.
type SessionsConfig struct {
	Workers         int  `mapstructure:"workers"` // concurrent generations
	Persist         bool `mapstructure:"persist"`
	FlushOnResponse bool `mapstructure:"flush_on_response"`
}

// DatabaseConfig stores the embedded libsql database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type DiscordConfig struct {
	Token string `mapstructure:"token"`
}

// RateLimitConfig limits messages per conversation identity.
type RateLimitConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Capacity   int           `mapstructure:"capacity"`
	RefillRate time.Duration `mapstructure:"refill_rate"`
}

// CacheConfig sizes the tokenizer encoding cache.
type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Capacity   int  `mapstructure:"capacity"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Pretty  bool   `mapstructure:"pretty"`
	Tracing bool   `mapstructure:"tracing"`
	// File, when set, receives JSON logs with size-based rotation.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("..")
		viper.AddConfigPath(filepath.Join("/etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.SetEnvPrefix(internal.DefaultEnvPrefix)
	viper.AutomaticEnv()
	// bot.name is read from NLPBOT_BOT_NAME
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// variables the bot has always been deployed with
	_ = viper.BindEnv("discord.token", internal.DefaultEnvPrefix+"_DISCORD_TOKEN", "DISCORD_KEY")
	_ = viper.BindEnv("bot.name", internal.DefaultEnvPrefix+"_BOT_NAME", "NAME")
	_ = viper.BindEnv("bot.gender", internal.DefaultEnvPrefix+"_BOT_GENDER", "GENDER")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("bot.name", internal.DefaultBotName)
	viper.SetDefault("bot.gender", internal.DefaultBotGender)

	viper.SetDefault("model.name", "facebook/blenderbot-400M-distill")
	viper.SetDefault("model.family", "")
	viper.SetDefault("model.tokenizer_path", filepath.Join(internal.DefaultDataDir, "tokenizer"))
	viper.SetDefault("model.context_limit", 0)
	viper.SetDefault("model.backend", "remote")
	viper.SetDefault("model.health_interval", "30s")

	viper.SetDefault("model.gguf.model_path", "")
	viper.SetDefault("model.gguf.context_size", 2048)
	viper.SetDefault("model.gguf.gpu_layers", 0)
	viper.SetDefault("model.gguf.threads", 4)
	viper.SetDefault("model.gguf.pool_size", 1)
	viper.SetDefault("model.gguf.borrow_timeout", "5m")
	viper.SetDefault("model.gguf.request_timeout", "2m")
	viper.SetDefault("model.gguf.breaker_threshold", 5)
	viper.SetDefault("model.gguf.breaker_cooldown", "1m")

	viper.SetDefault("model.remote.endpoint", "http://127.0.0.1:8080")
	viper.SetDefault("model.remote.api_key", "")
	viper.SetDefault("model.remote.timeout", "2m")

	// zero keeps the model preset
	viper.SetDefault("generation.num_beams", 0)
	viper.SetDefault("generation.temperature", 0)
	viper.SetDefault("generation.top_p", 0)
	viper.SetDefault("generation.top_k", 0)
	viper.SetDefault("generation.min_length", 0)
	viper.SetDefault("generation.max_length", 0)
	viper.SetDefault("generation.max_new_tokens", 0)
	viper.SetDefault("generation.repetition_penalty", 0)
	viper.SetDefault("generation.seed", 0)
	viper.SetDefault("generation.stop", []string{})
	viper.SetDefault("generation.timeout_ms", 0)

	viper.SetDefault("sessions.workers", 1)
	viper.SetDefault("sessions.persist", true)
	viper.SetDefault("sessions.flush_on_response", false)

	viper.SetDefault("database.path", internal.DefaultDatabasePath)

	viper.SetDefault("discord.token", "")

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.capacity", 5)
	viper.SetDefault("rate_limit.refill_rate", "3s")

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.capacity", 256)
	viper.SetDefault("cache.ttl_seconds", 600)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.pretty", true)
	viper.SetDefault("logging.tracing", false)
	viper.SetDefault("logging.file", "")
	viper.SetDefault("logging.max_size_mb", 50)
	viper.SetDefault("logging.max_backups", 3)
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Model.Backend {
	case "gguf", "remote":
	default:
		return fmt.Errorf("model.backend must be gguf or remote, got %q", c.Model.Backend)
	}
	switch c.Model.Family {
	case "", "seq2seq", "causal":
	default:
		return fmt.Errorf("model.family must be seq2seq or causal, got %q", c.Model.Family)
	}
	if c.Sessions.Workers < 1 {
		return fmt.Errorf("sessions.workers must be positive, got %d", c.Sessions.Workers)
	}
	if c.Generation.TopP < 0 || c.Generation.TopP > 1 {
		return fmt.Errorf("generation.top_p must be between 0 and 1, got %f", c.Generation.TopP)
	}
	return nil
}

// Watch reloads the config file whenever it is written and passes the new
// generation section to onChange. Other sections need a restart.
func Watch(onChange func(GenerationConfig, error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var gen GenerationConfig
		if err := viper.UnmarshalKey("generation", &gen); err != nil {
			onChange(gen, fmt.Errorf("failed to decode generation config from %s: %w", e.Name, err))
			return
		}
		if gen.TopP < 0 || gen.TopP > 1 {
			onChange(gen, fmt.Errorf("generation.top_p must be between 0 and 1, got %f", gen.TopP))
			return
		}
		onChange(gen, nil)
	})
	viper.WatchConfig()
}
