// Package doctor validates missionctl configuration and environment setup.
package doctor

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/mattjoyce/missionctl/internal/config"
	"github.com/mattjoyce/missionctl/internal/supervisor"
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

// Doctor validates configuration against the agent registry and the host
// environment.
type Doctor struct {
	cfg      *config.Config
	registry *supervisor.Registry
}

// New creates a Doctor from a loaded config and agent registry.
func New(cfg *config.Config, registry *supervisor.Registry) *Doctor {
	return &Doctor{cfg: cfg, registry: registry}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateStore(r)
	d.validateGateway(r)
	d.validateAgentCLI(r)
	d.validateAPIConfig(r)
	d.validateTokenScopes(r)
	d.validateRegistry(r)
	d.warnMissingEnvVars(r)
	d.warnDeprecatedSyntax(r)

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
	if d.cfg.Service.TickInterval <= 0 {
		d.addError(r, "service", "service.tick_interval", "tick_interval must be positive")
	}
	if d.cfg.Service.MaxAttempts <= 0 {
		d.addError(r, "service", "service.max_dispatch_attempts", "max_dispatch_attempts must be positive")
	}
	if d.cfg.Service.RetryAfter > 0 && d.cfg.Service.RetryAfter < d.cfg.Service.TickInterval {
		d.addWarning(r, "service", "service.retry_after",
			"retry_after is shorter than tick_interval; every sweep will re-dispatch")
	}
}

// validateStore checks that the store directory exists or can be created.
func (d *Doctor) validateStore(r *Result) {
	if d.cfg.Store.Path == "" {
		d.addError(r, "store", "store.path", "store.path is required")
		return
	}
	info, err := os.Stat(d.cfg.Store.Path)
	if err != nil {
		if os.IsNotExist(err) {
			d.addWarning(r, "store", "store.path",
				fmt.Sprintf("store directory %q does not exist yet (will be created on start)", d.cfg.Store.Path))
			return
		}
		d.addError(r, "store", "store.path", fmt.Sprintf("cannot access store directory: %v", err))
		return
	}
	if !info.IsDir() {
		d.addError(r, "store", "store.path",
			fmt.Sprintf("store.path %q is a file, expected a directory", d.cfg.Store.Path))
	}
}

// validateGateway checks the websocket gateway settings.
func (d *Doctor) validateGateway(r *Result) {
	if d.cfg.Gateway.URL == "" {
		d.addWarning(r, "gateway", "gateway.url",
			"no gateway configured; dispatch will rely on the agent CLI fallback only")
		return
	}
	u, err := url.Parse(d.cfg.Gateway.URL)
	if err != nil {
		d.addError(r, "gateway", "gateway.url", fmt.Sprintf("invalid gateway URL: %v", err))
		return
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		d.addError(r, "gateway", "gateway.url",
			fmt.Sprintf("gateway URL scheme %q is not ws or wss", u.Scheme))
	}
	if d.cfg.Gateway.Token == "" {
		d.addError(r, "gateway", "gateway.token", "gateway.token is required when gateway.url is set")
	}
}

// validateAgentCLI checks the fallback binary is resolvable.
func (d *Doctor) validateAgentCLI(r *Result) {
	if d.cfg.AgentCLI.Bin == "" {
		d.addWarning(r, "agent_cli", "agent_cli.bin",
			"no agent CLI configured; dispatch has no fallback when the gateway is unreachable")
		return
	}
	if _, err := exec.LookPath(d.cfg.AgentCLI.Bin); err != nil {
		d.addWarning(r, "agent_cli", "agent_cli.bin",
			fmt.Sprintf("agent CLI %q not found on PATH", d.cfg.AgentCLI.Bin))
	}
}

// validateAPIConfig checks API server settings.
func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addWarning(r, "api", "api.auth", "API enabled but no authentication configured")
	}
}

var knownScopeResources = map[string]bool{
	"tasks":       true,
	"dispatch":    true,
	"agents":      true,
	"delegations": true,
	"events":      true,
	"gateway":     true,
	"healthz":     true,
}

// validateTokenScopes checks that scope references use known resources.
func (d *Doctor) validateTokenScopes(r *Result) {
	for i, token := range d.cfg.API.Auth.Tokens {
		for j, scope := range token.Scopes {
			field := fmt.Sprintf("api.auth.tokens[%d].scopes[%d]", i, j)
			d.validateSingleScope(r, scope, field)
		}
	}
}

func (d *Doctor) validateSingleScope(r *Result, scope, field string) {
	if scope == "*" {
		return
	}

	parts := strings.SplitN(scope, ":", 2)
	if len(parts) < 2 {
		d.addError(r, "token_scopes", field,
			fmt.Sprintf("invalid scope %q (expected format: resource:access)", scope))
		return
	}

	resource, access := parts[0], parts[1]
	if !knownScopeResources[resource] {
		d.addError(r, "token_scopes", field,
			fmt.Sprintf("scope %q references unknown resource %q", scope, resource))
		return
	}
	if access != "ro" && access != "rw" {
		d.addError(r, "token_scopes", field,
			fmt.Sprintf("scope %q: invalid access type %q (expected ro or rw)", scope, access))
	}
}

// validateRegistry checks the agent fleet is coherent.
func (d *Doctor) validateRegistry(r *Result) {
	if len(d.registry.IDs()) == 0 {
		d.addError(r, "registry", "", "agent registry is empty")
		return
	}
	if d.registry.SupervisorID() == "" {
		d.addWarning(r, "registry", "", "no supervisor agent in registry; delegation flow is unavailable")
	}
	for _, id := range d.registry.IDs() {
		cap, _ := d.registry.Get(id)
		if !cap.IsSupervisor && len(cap.Skills) == 0 {
			d.addWarning(r, "registry", "",
				fmt.Sprintf("worker %q has no skills and will never match a task", id))
		}
	}
}

// warnMissingEnvVars warns about token values that resolved to empty.
func (d *Doctor) warnMissingEnvVars(r *Result) {
	for i, token := range d.cfg.API.Auth.Tokens {
		if token.Token == "" {
			d.addWarning(r, "env_vars", fmt.Sprintf("api.auth.tokens[%d].token", i),
				"token value is empty (possibly unresolved environment variable)")
		}
	}
	if d.cfg.Gateway.URL != "" && d.cfg.Gateway.Token == "" {
		d.addWarning(r, "env_vars", "gateway.token",
			"gateway token is empty (possibly unresolved environment variable)")
	}
}

// warnDeprecatedSyntax warns about legacy config patterns.
func (d *Doctor) warnDeprecatedSyntax(r *Result) {
	if d.cfg.API.Auth.APIKey != "" && len(d.cfg.API.Auth.Tokens) > 0 {
		d.addWarning(r, "deprecated", "api.auth",
			"both api_key and tokens configured; prefer tokens array only")
	}
	if d.cfg.API.Auth.APIKey != "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addWarning(r, "deprecated", "api.auth.api_key",
			"legacy api_key grants full access; migrate to tokens array with scopes")
	}
}

// FormatHuman returns a human-readable validation report.
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
