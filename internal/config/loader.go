package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file, applies ${VAR}
// interpolation, defaults, environment bind overrides and validation. When a
// .checksums manifest sits next to the file, the file's integrity is verified
// against it first.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := applyBindOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $HOOKGATE_CONFIG, ~/.config/hookgate/config.yaml,
// /etc/hookgate/config.yaml, ./config.yaml
func DiscoverConfigPath() (string, error) {
	if path := os.Getenv("HOOKGATE_CONFIG"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "hookgate", "config.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return userConfig, nil
		}
	}

	systemConfig := "/etc/hookgate/config.yaml"
	if _, err := os.Stat(systemConfig); err == nil {
		return systemConfig, nil
	}

	legacyConfig := "./config.yaml"
	if _, err := os.Stat(legacyConfig); err == nil {
		return legacyConfig, nil
	}

	return "", fmt.Errorf("no config found (checked: $HOOKGATE_CONFIG, ~/.config/hookgate/config.yaml, /etc/hookgate/config.yaml, ./config.yaml)")
}

// applyDefaults merges default values into config where not explicitly set.
func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.Webhook.Host == "" {
		cfg.Webhook.Host = defaults.Webhook.Host
	}
	if cfg.Webhook.Port == 0 {
		cfg.Webhook.Port = defaults.Webhook.Port
	}
}

// applyBindOverrides resolves the bind address: environment variable override
// wins over the configured value, which wins over the built-in default
// (already applied by applyDefaults).
func applyBindOverrides(cfg *Config) error {
	if host := os.Getenv(EnvWebhookAddress); host != "" {
		cfg.Webhook.Host = host
	}
	if portS := os.Getenv(EnvWebhookPort); portS != "" {
		port, err := strconv.Atoi(portS)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q: %w", EnvWebhookPort, portS, err)
		}
		cfg.Webhook.Port = port
	}
	return nil
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	if cfg.Webhook.Port < 1 || cfg.Webhook.Port > 65535 {
		return fmt.Errorf("webhook.port must be in 1..65535 (got %d)", cfg.Webhook.Port)
	}

	if cfg.Webhook.Tunnel.AuthToken == "" {
		return fmt.Errorf("webhook.tunnel.authtoken is required to expose the webhook to the internet")
	}
	if envVarPattern.MatchString(cfg.Webhook.Tunnel.AuthToken) {
		matches := envVarPattern.FindStringSubmatch(cfg.Webhook.Tunnel.AuthToken)
		return fmt.Errorf("webhook.tunnel.authtoken: environment variable ${%s} is not set", matches[1])
	}

	seen := make(map[string]bool, len(cfg.Feeds))
	for i, f := range cfg.Feeds {
		if f.Name == "" {
			return fmt.Errorf("feeds[%d].name is required", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("feeds[%d]: duplicate feed name %q", i, f.Name)
		}
		seen[f.Name] = true

		if envVarPattern.MatchString(f.Token) {
			matches := envVarPattern.FindStringSubmatch(f.Token)
			return fmt.Errorf("feeds[%d] (%s): environment variable ${%s} is not set", i, f.Name, matches[1])
		}
		if f.ForwardURL != "" {
			if _, err := url.ParseRequestURI(f.ForwardURL); err != nil {
				return fmt.Errorf("feeds[%d] (%s): invalid forward_url %q: %w", i, f.Name, f.ForwardURL, err)
			}
		}
	}

	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}
