// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Replay  ReplayConfig  `mapstructure:"replay" yaml:"replay"`
}

// LoggerConfig controls the zap logger bootstrap.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to console colors.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	DisableCache      bool          `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	// ViewportExpansion widens the "in viewport" band the probe reports, in
	// pixels; -1 includes the whole page.
	ViewportExpansion int  `mapstructure:"viewport_expansion" yaml:"viewport_expansion"`
	Highlight         bool `mapstructure:"highlight" yaml:"highlight"`
}

// AgentConfig holds settings for the step loop and conversation window.
type AgentConfig struct {
	MaxSteps            int           `mapstructure:"max_steps" yaml:"max_steps"`
	MaxFailures         int           `mapstructure:"max_failures" yaml:"max_failures"`
	RetryDelay          time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	MaxActionsPerStep   int           `mapstructure:"max_actions_per_step" yaml:"max_actions_per_step"`
	ActionDelay         time.Duration `mapstructure:"action_delay" yaml:"action_delay"`
	MaxInputTokens      int           `mapstructure:"max_input_tokens" yaml:"max_input_tokens"`
	TokenCutDecrement   int           `mapstructure:"token_cut_decrement" yaml:"token_cut_decrement"`
	ImageTokens         int           `mapstructure:"image_tokens" yaml:"image_tokens"`
	EstimatedCharsToken int           `mapstructure:"estimated_chars_per_token" yaml:"estimated_chars_per_token"`
	UseVision           bool          `mapstructure:"use_vision" yaml:"use_vision"`
	// Tokenizer selects the estimator: "heuristic" or "tiktoken".
	Tokenizer string `mapstructure:"tokenizer" yaml:"tokenizer"`
	// PlannerInterval runs the planner model every N steps; 0 disables it.
	PlannerInterval int      `mapstructure:"planner_interval" yaml:"planner_interval"`
	IncludeAttrs    []string `mapstructure:"include_attributes" yaml:"include_attributes"`
	// SensitiveData maps placeholder labels to the literal values that must
	// never reach the model in clear text.
	SensitiveData map[string]string `mapstructure:"sensitive_data" yaml:"sensitive_data"`
	HistoryFile   string            `mapstructure:"history_file" yaml:"history_file"`
}

// LLMProvider identifies a supported model backend.
type LLMProvider string

const (
	ProviderGemini    LLMProvider = "gemini"
	ProviderGeminiSDK LLMProvider = "gemini-sdk"
)

// LLMModelConfig configures a single model endpoint.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// RateLimit caps outgoing calls per second; 0 disables the limiter.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// LLMConfig holds the main and optional planner model configurations.
type LLMConfig struct {
	Main    LLMModelConfig `mapstructure:"main" yaml:"main"`
	Planner LLMModelConfig `mapstructure:"planner" yaml:"planner"`
}

// ReplayConfig tunes history re-execution.
type ReplayConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	// SkipFailures continues past steps whose elements cannot be re-resolved
	// instead of aborting the replay.
	SkipFailures bool `mapstructure:"skip_failures" yaml:"skip_failures"`
}

// SetDefaults initializes default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "waypoint")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 1100)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "500ms")
	v.SetDefault("browser.viewport_expansion", 500)
	v.SetDefault("browser.highlight", true)

	// -- Agent --
	v.SetDefault("agent.max_steps", 100)
	v.SetDefault("agent.max_failures", 3)
	v.SetDefault("agent.retry_delay", "10s")
	v.SetDefault("agent.max_actions_per_step", 10)
	v.SetDefault("agent.action_delay", "500ms")
	v.SetDefault("agent.max_input_tokens", 128000)
	v.SetDefault("agent.token_cut_decrement", 10000)
	v.SetDefault("agent.image_tokens", 800)
	v.SetDefault("agent.estimated_chars_per_token", 3)
	v.SetDefault("agent.use_vision", true)
	v.SetDefault("agent.tokenizer", "heuristic")
	v.SetDefault("agent.planner_interval", 0)
	v.SetDefault("agent.include_attributes", []string{
		"title", "type", "name", "role", "tabindex",
		"aria-label", "placeholder", "value", "alt", "aria-expanded",
	})
	v.SetDefault("agent.history_file", "")

	// -- LLM --
	v.SetDefault("llm.main.provider", "gemini")
	v.SetDefault("llm.main.model", "gemini-2.5-pro")
	v.SetDefault("llm.main.api_timeout", "120s")
	v.SetDefault("llm.main.temperature", 0.0)
	v.SetDefault("llm.main.max_tokens", 8192)
	v.SetDefault("llm.main.rate_limit", 0.0)
	v.SetDefault("llm.planner.provider", "gemini")
	v.SetDefault("llm.planner.model", "gemini-2.5-flash")
	v.SetDefault("llm.planner.api_timeout", "120s")
	v.SetDefault("llm.planner.temperature", 0.0)
	v.SetDefault("llm.planner.max_tokens", 4096)

	// -- Replay --
	v.SetDefault("replay.max_retries", 3)
	v.SetDefault("replay.retry_delay", "2s")
	v.SetDefault("replay.skip_failures", true)
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Load reads configuration from the given file (optional), environment
// variables prefixed with WAYPOINT_, and built-in defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WAYPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("llm.main.api_key", "WAYPOINT_LLM_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("llm.planner.api_key", "WAYPOINT_LLM_API_KEY", "GEMINI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults plus env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be a positive integer")
	}
	if c.Agent.MaxFailures <= 0 {
		return fmt.Errorf("agent.max_failures must be a positive integer")
	}
	if c.Agent.MaxInputTokens <= 0 {
		return fmt.Errorf("agent.max_input_tokens must be a positive integer")
	}
	if c.Agent.TokenCutDecrement <= 0 || c.Agent.TokenCutDecrement >= c.Agent.MaxInputTokens {
		return fmt.Errorf("agent.token_cut_decrement must be positive and below agent.max_input_tokens")
	}
	if c.Agent.MaxActionsPerStep <= 0 {
		return fmt.Errorf("agent.max_actions_per_step must be a positive integer")
	}
	switch c.Agent.Tokenizer {
	case "heuristic", "tiktoken":
	default:
		return fmt.Errorf("agent.tokenizer must be one of [heuristic, tiktoken], got %q", c.Agent.Tokenizer)
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser.window_width and browser.window_height must be positive")
	}
	if c.Replay.MaxRetries < 0 {
		return fmt.Errorf("replay.max_retries must not be negative")
	}
	return nil
}
