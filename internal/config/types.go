package config

import "time"

// Config represents the complete missionctl configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Store    StoreConfig    `yaml:"store"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	AgentCLI AgentCLIConfig `yaml:"agent_cli"`
	API      APIConfig      `yaml:"api,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
	// OrchestratorEnabled gates the background sweep loop. Disable it to
	// run the API and manual dispatch only.
	OrchestratorEnabled bool `yaml:"orchestrator_enabled"`
	// AutoDispatch makes task creation match an agent and dispatch
	// immediately instead of waiting for an operator or the sweep.
	AutoDispatch bool          `yaml:"auto_dispatch"`
	TickInterval time.Duration `yaml:"tick_interval"`
	RetryAfter   time.Duration `yaml:"retry_after"`
	MaxAttempts  int           `yaml:"max_dispatch_attempts"`
	StuckAfter   time.Duration `yaml:"stuck_after"`
}

// StoreConfig defines where the flat-file record store lives.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// GatewayConfig defines the websocket gateway connection.
type GatewayConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// AgentCLIConfig defines the fallback agent CLI binary.
type AgentCLIConfig struct {
	Bin string `yaml:"bin"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	// CORSOrigins allows browser dashboards from these origins. Empty
	// leaves CORS off.
	CORSOrigins []string      `yaml:"cors_origins,omitempty"`
	Auth        APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the legacy single bearer token (admin/full access).
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:                "missionctl",
			LogLevel:            "info",
			OrchestratorEnabled: true,
			AutoDispatch:        false,
			TickInterval:        60 * time.Second,
			RetryAfter:          30 * time.Minute,
			MaxAttempts:         3,
			StuckAfter:          2 * time.Hour,
		},
		Store: StoreConfig{
			Path: "./data",
		},
		Gateway: GatewayConfig{
			Timeout: 30 * time.Second,
		},
		AgentCLI: AgentCLIConfig{
			Bin: "openclaw",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
	}
}
