package config

// Config represents the complete hookgate configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	State   StateConfig   `yaml:"state"`
	Webhook WebhookConfig `yaml:"webhook"`
	Feeds   []FeedConfig  `yaml:"feeds,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StateConfig defines delivery journal storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// WebhookConfig defines the webhook listener and its tunnel.
type WebhookConfig struct {
	// Host and Port are the local bind address. Environment variables
	// HOOKGATE_WEBHOOK_ADDRESS and HOOKGATE_WEBHOOK_PORT override both.
	Host   string       `yaml:"host"`
	Port   int          `yaml:"port"`
	Tunnel TunnelConfig `yaml:"tunnel"`
}

// TunnelConfig defines tunnel provider settings.
type TunnelConfig struct {
	// AuthToken is the provider credential used to expose the webhook to
	// the internet. Required.
	AuthToken string `yaml:"authtoken"`

	// AgentAPI is the base URL of the tunnel agent's local control API.
	AgentAPI string `yaml:"agent_api,omitempty"`
}

// FeedConfig declares a service feed to subscribe at startup.
type FeedConfig struct {
	Name string `yaml:"name"`

	// Token authorizes payloads for this feed (checked inside the body).
	Token string `yaml:"token"`

	// ForwardURL is an optional internal consumer to relay accepted
	// payloads to. Without it, accepted payloads are only logged.
	ForwardURL string `yaml:"forward_url,omitempty"`
}

// Environment variable overrides for the bind address. An override wins over
// the configured value, which wins over the built-in default.
const (
	EnvWebhookAddress = "HOOKGATE_WEBHOOK_ADDRESS"
	EnvWebhookPort    = "HOOKGATE_WEBHOOK_PORT"
)

// Built-in bind defaults.
const (
	DefaultWebhookHost = "127.0.0.1"
	DefaultWebhookPort = 8080
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "hookgate",
			LogLevel:  "info",
			LogFormat: "json",
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		Webhook: WebhookConfig{
			Host: DefaultWebhookHost,
			Port: DefaultWebhookPort,
		},
	}
}
