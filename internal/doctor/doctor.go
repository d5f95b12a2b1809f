// Package doctor validates hookgate configuration and environment setup.
package doctor

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattjoyce/hookgate/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateTunnelConfig(r)
	d.validateBindConfig(r)
	d.validateFeeds(r)
	d.validateStatePath(r)
	d.warnEnvOverrides(r)
	d.warnNoFeeds(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateServiceConfig checks required service fields.
func (d *Doctor) validateServiceConfig(r *Result) {
	switch d.cfg.Service.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		d.addError(r, "service", "service.log_level",
			fmt.Sprintf("invalid log level %q (debug, info, warn, error)", d.cfg.Service.LogLevel))
	}
	switch d.cfg.Service.LogFormat {
	case "", "text", "json":
	default:
		d.addError(r, "service", "service.log_format",
			fmt.Sprintf("invalid log format %q (text, json)", d.cfg.Service.LogFormat))
	}
}

// validateTunnelConfig checks the tunnel credential and agent endpoint.
func (d *Doctor) validateTunnelConfig(r *Result) {
	token := d.cfg.Webhook.Tunnel.AuthToken
	if token == "" {
		d.addError(r, "tunnel", "webhook.tunnel.authtoken",
			"authtoken is required to expose the webhook")
	} else if strings.Contains(token, "${") {
		d.addError(r, "tunnel", "webhook.tunnel.authtoken",
			"authtoken contains an unresolved environment variable")
	}

	if api := d.cfg.Webhook.Tunnel.AgentAPI; api != "" {
		u, err := url.Parse(api)
		if err != nil || u.Scheme == "" || u.Host == "" {
			d.addError(r, "tunnel", "webhook.tunnel.agent_api",
				fmt.Sprintf("agent_api %q is not a valid URL", api))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			d.addError(r, "tunnel", "webhook.tunnel.agent_api",
				fmt.Sprintf("agent_api scheme %q must be http or https", u.Scheme))
		}
	}
}

// validateBindConfig checks the local listener address.
func (d *Doctor) validateBindConfig(r *Result) {
	if d.cfg.Webhook.Host == "" {
		d.addError(r, "webhook", "webhook.host", "host is required")
	}
	port := d.cfg.Webhook.Port
	if port < 1 || port > 65535 {
		d.addError(r, "webhook", "webhook.port",
			fmt.Sprintf("port %d out of range (1-65535)", port))
	} else if port < 1024 && os.Geteuid() != 0 {
		d.addWarning(r, "webhook", "webhook.port",
			fmt.Sprintf("port %d is privileged and the process is not root", port))
	}
}

// validateFeeds checks feed declarations for duplicates and broken targets.
func (d *Doctor) validateFeeds(r *Result) {
	seen := make(map[string]bool)
	for i, f := range d.cfg.Feeds {
		field := fmt.Sprintf("feeds[%d]", i)

		if f.Name == "" {
			d.addError(r, "feeds", field+".name", "feed name is required")
			continue
		}
		if seen[f.Name] {
			d.addError(r, "feeds", field+".name",
				fmt.Sprintf("duplicate feed name %q; only the first subscription would win", f.Name))
		}
		seen[f.Name] = true

		if f.Token == "" {
			d.addWarning(r, "feeds", field+".token",
				fmt.Sprintf("feed %q has no token, every payload will be accepted", f.Name))
		}

		if f.ForwardURL != "" {
			u, err := url.Parse(f.ForwardURL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				d.addError(r, "feeds", field+".forward_url",
					fmt.Sprintf("forward_url %q is not a valid URL", f.ForwardURL))
			} else if u.Scheme != "http" && u.Scheme != "https" {
				d.addError(r, "feeds", field+".forward_url",
					fmt.Sprintf("forward_url scheme %q must be http or https", u.Scheme))
			}
		}
	}
}

// validateStatePath checks that the journal's parent directory is usable.
func (d *Doctor) validateStatePath(r *Result) {
	if d.cfg.State.Path == "" {
		d.addError(r, "state", "state.path", "state.path is required")
		return
	}
	dir := filepath.Dir(d.cfg.State.Path)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			d.addWarning(r, "state", "state.path",
				fmt.Sprintf("directory %s does not exist yet, it will be created on start", dir))
			return
		}
		d.addError(r, "state", "state.path",
			fmt.Sprintf("cannot stat directory %s: %v", dir, err))
		return
	}
	if !info.IsDir() {
		d.addError(r, "state", "state.path",
			fmt.Sprintf("%s exists but is not a directory", dir))
	}
}

// warnEnvOverrides surfaces active bind overrides so an operator is not
// surprised by a listener that ignores the config file.
func (d *Doctor) warnEnvOverrides(r *Result) {
	if v := os.Getenv(config.EnvWebhookAddress); v != "" {
		d.addWarning(r, "env", config.EnvWebhookAddress,
			fmt.Sprintf("bind host overridden to %q by environment", v))
	}
	if v := os.Getenv(config.EnvWebhookPort); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			d.addError(r, "env", config.EnvWebhookPort,
				fmt.Sprintf("override %q is not a number", v))
		} else {
			d.addWarning(r, "env", config.EnvWebhookPort,
				fmt.Sprintf("bind port overridden to %s by environment", v))
		}
	}
}

// warnNoFeeds flags a server that would accept nothing.
func (d *Doctor) warnNoFeeds(r *Result) {
	if len(d.cfg.Feeds) == 0 {
		d.addWarning(r, "feeds", "",
			"no feeds configured, every delivery will be answered with an internal error")
	}
}

// FormatHuman returns the result as readable text for terminal output.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
