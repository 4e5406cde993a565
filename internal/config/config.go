// Package config provides configuration types and loading for wirdbot.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Discord, Model, Providers, Agent, Store, Quran,
// Scheduler, Events, Logging.
type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	Model     ModelConfig     `json:"model"`
	Providers ProvidersConfig `json:"providers"`
	Agent     AgentConfig     `json:"agent"`
	Store     StoreConfig     `json:"store"`
	Quran     QuranConfig     `json:"quran"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Events    EventsConfig    `json:"events"`
	Logging   LoggingConfig   `json:"logging"`
}

// ---------------------------------------------------------------------------
// Discord – gateway connection & identity
// ---------------------------------------------------------------------------

// DiscordConfig configures the Discord connection.
type DiscordConfig struct {
	Token    string `json:"token" envconfig:"TOKEN"`
	OwnerID  string `json:"ownerId" envconfig:"OWNER_ID"`
	Presence string `json:"presence,omitempty" envconfig:"PRESENCE"`
}

// ---------------------------------------------------------------------------
// Model – chat model selection & generation parameters
// ---------------------------------------------------------------------------

// ModelConfig selects the chat models used by the router. Simple serves
// short or routine requests, Complex serves everything the router classifies
// as demanding. Both are "provider/model" strings.
type ModelConfig struct {
	Simple      string  `json:"simple" envconfig:"SIMPLE"`
	Complex     string  `json:"complex" envconfig:"COMPLEX"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// ---------------------------------------------------------------------------
// Providers – model API keys & endpoints
// ---------------------------------------------------------------------------

// ProvidersConfig contains model provider configurations.
type ProvidersConfig struct {
	Gemini     ProviderConfig `json:"gemini"`
	OpenAI     ProviderConfig `json:"openai"`
	Anthropic  ProviderConfig `json:"anthropic"`
	OpenRouter ProviderConfig `json:"openrouter"`
	Groq       ProviderConfig `json:"groq"`
	VLLM       ProviderConfig `json:"vllm"`
}

// ProviderConfig contains settings for a single model provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ---------------------------------------------------------------------------
// Agent – turn loop bounds
// ---------------------------------------------------------------------------

// AgentConfig bounds the turn loop.
type AgentConfig struct {
	MaxToolCalls   int           `json:"maxToolCalls" envconfig:"MAX_TOOL_CALLS"`
	ToolTimeout    time.Duration `json:"toolTimeout" envconfig:"TOOL_TIMEOUT"`
	ApprovalMaxAge time.Duration `json:"approvalMaxAge" envconfig:"APPROVAL_MAX_AGE"`
	Workspace      string        `json:"workspace" envconfig:"WORKSPACE"`
}

// ---------------------------------------------------------------------------
// Store – persistence
// ---------------------------------------------------------------------------

// StoreConfig locates the SQLite database. An empty path resolves to
// <config dir>/wirdbot.db at load time.
type StoreConfig struct {
	Path string `json:"path,omitempty" envconfig:"PATH"`
}

// ---------------------------------------------------------------------------
// Quran – text API
// ---------------------------------------------------------------------------

// QuranConfig configures the Quran text API client.
type QuranConfig struct {
	APIBase string `json:"apiBase" envconfig:"API_BASE"`
	Edition string `json:"edition" envconfig:"EDITION"`
}

// ---------------------------------------------------------------------------
// Scheduler – daily wird delivery
// ---------------------------------------------------------------------------

// SchedulerConfig controls daily wird delivery.
type SchedulerConfig struct {
	Enabled      bool          `json:"enabled" envconfig:"ENABLED"`
	TickInterval time.Duration `json:"tickInterval" envconfig:"TICK_INTERVAL"`
}

// ---------------------------------------------------------------------------
// Events – audit stream
// ---------------------------------------------------------------------------

// EventsConfig configures the Kafka audit publisher.
type EventsConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers  string `json:"brokers" envconfig:"BROKERS"`
	Topic    string `json:"topic" envconfig:"TOPIC"`
	ClientID string `json:"clientId,omitempty" envconfig:"CLIENT_ID"`
}

// ---------------------------------------------------------------------------
// Logging
// ---------------------------------------------------------------------------

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level string `json:"level" envconfig:"LEVEL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Simple:      "gemini/gemini-2.5-flash-lite",
			Complex:     "gemini/gemini-2.5-flash",
			MaxTokens:   8192,
			Temperature: 0.7,
		},
		Agent: AgentConfig{
			MaxToolCalls:   10,
			ToolTimeout:    60 * time.Second,
			ApprovalMaxAge: 15 * time.Minute,
			Workspace:      "~/wirdbot-workspace",
		},
		Quran: QuranConfig{
			APIBase: "https://api.alquran.cloud/v1",
			Edition: "quran-uthmani",
		},
		Scheduler: SchedulerConfig{
			Enabled:      false,
			TickInterval: time.Minute,
		},
		Events: EventsConfig{
			Enabled: false,
			Topic:   "wirdbot.audit",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
