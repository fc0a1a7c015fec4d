package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// ErrMissingResourceID is returned when no resource owner is configured.
var ErrMissingResourceID = errors.New("missing resource id: set VELORA_RESOURCE_ID or resource_id in config.toml")

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type WorkspaceConfig struct {
	Root string `toml:"root"`
}

type ToolsConfig struct {
	// Transport is "stdio" (spawn Command) or "http" (connect to URL).
	Transport string   `toml:"transport"`
	URL       string   `toml:"url"`
	Command   string   `toml:"command,omitempty"`
	Args      []string `toml:"args,omitempty"`
	Listen    string   `toml:"listen"`
}

type GatewayConfig struct {
	Listen     string `toml:"listen"`
	URL        string `toml:"url"`
	APIKeyHash string `toml:"api_key_hash,omitempty"`
}

type ProviderConfig struct {
	Type    string `toml:"type"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key,omitempty"`
}

type TimeoutsConfig struct {
	ToolCall    Duration `toml:"tool_call"`
	Turn        Duration `toml:"turn"`
	SessionIdle Duration `toml:"session_idle"`
}

type AgentConfig struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Instruction string `toml:"instruction"`
}

type UserConfig struct {
	ResourceID string          `toml:"resource_id"`
	Workspace  WorkspaceConfig `toml:"workspace"`
	Tools      ToolsConfig     `toml:"tools"`
	Gateway    GatewayConfig   `toml:"gateway"`
	Provider   ProviderConfig  `toml:"provider"`
	Timeouts   TimeoutsConfig  `toml:"timeouts"`
	Agents     []AgentConfig   `toml:"agents"`
}

type Config struct {
	DataDirectory string
	ResourceID    string
	WorkspaceRoot string

	Tools    ToolsConfig
	Gateway  GatewayConfig
	Provider ProviderConfig

	// GatewayToken is the bearer token the chat client presents to the gateway.
	GatewayToken string

	ToolCallTimeout time.Duration
	TurnTimeout     time.Duration
	SessionIdleTTL  time.Duration

	Agents []AgentConfig
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// RequireResourceID fails when the owning resource id is not configured.
// Commands that talk to the thread store call it before doing anything else.
func (c *Config) RequireResourceID() error {
	if c.ResourceID == "" {
		return ErrMissingResourceID
	}
	return nil
}

func (c *Config) applyUserConfig(u *UserConfig) {
	def := DefaultUserConfig()

	c.ResourceID = u.ResourceID
	c.WorkspaceRoot = firstNonEmpty(u.Workspace.Root, def.Workspace.Root)

	c.Tools = u.Tools
	c.Tools.Transport = firstNonEmpty(u.Tools.Transport, def.Tools.Transport)
	c.Tools.URL = firstNonEmpty(u.Tools.URL, def.Tools.URL)
	c.Tools.Listen = firstNonEmpty(u.Tools.Listen, def.Tools.Listen)

	c.Gateway = u.Gateway
	c.Gateway.Listen = firstNonEmpty(u.Gateway.Listen, def.Gateway.Listen)
	c.Gateway.URL = firstNonEmpty(u.Gateway.URL, def.Gateway.URL)

	c.Provider = u.Provider
	c.Provider.Type = firstNonEmpty(u.Provider.Type, def.Provider.Type)
	c.Provider.BaseURL = firstNonEmpty(u.Provider.BaseURL, def.Provider.BaseURL)
	c.Provider.Model = firstNonEmpty(u.Provider.Model, def.Provider.Model)

	c.ToolCallTimeout = u.Timeouts.ToolCall.Or(def.Timeouts.ToolCall.Duration)
	c.TurnTimeout = u.Timeouts.Turn.Or(def.Timeouts.Turn.Duration)
	c.SessionIdleTTL = u.Timeouts.SessionIdle.Or(def.Timeouts.SessionIdle.Duration)

	c.Agents = u.Agents
	if len(c.Agents) == 0 {
		c.Agents = def.Agents
	}
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("VELORA_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if id := os.Getenv("VELORA_RESOURCE_ID"); id != "" {
		c.ResourceID = id
	}
	if root := os.Getenv("VELORA_WORKSPACE"); root != "" {
		c.WorkspaceRoot = root
	}
	if url := os.Getenv("VELORA_GATEWAY_URL"); url != "" {
		c.Gateway.URL = url
	}
	if token := os.Getenv("VELORA_GATEWAY_TOKEN"); token != "" {
		c.GatewayToken = token
	}
	if p := os.Getenv("VELORA_PROVIDER"); p != "" {
		c.Provider.Type = p
	}
	if model := os.Getenv("VELORA_MODEL"); model != "" {
		c.Provider.Model = model
	}
	if key := os.Getenv("VELORA_API_KEY"); key != "" {
		c.Provider.APIKey = key
	}
}

func CheckDebug() bool {
	debug := os.Getenv("VELORA_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (VELORA_DEBUG=%s) ===", os.Getenv("VELORA_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// HasAllEnvVars reports whether the environment alone is enough to run
// without touching any config file.
func HasAllEnvVars() bool {
	return os.Getenv("VELORA_DATA_DIR") != "" &&
		os.Getenv("VELORA_RESOURCE_ID") != ""
}

func HasAnyEnvVar() bool {
	return os.Getenv("VELORA_DATA_DIR") != "" ||
		os.Getenv("VELORA_RESOURCE_ID") != ""
}

func GetMissingEnvVar() string {
	if os.Getenv("VELORA_DATA_DIR") == "" {
		return "VELORA_DATA_DIR"
	}
	if os.Getenv("VELORA_RESOURCE_ID") == "" {
		return "VELORA_RESOURCE_ID"
	}
	return ""
}

func Load() (*Config, error) {
	cfg := &Config{DataDirectory: GetDefaultDataDir()}
	cfg.applyUserConfig(DefaultUserConfig())

	if !SystemConfigExists() && HasAllEnvVars() {
		cfg.applyEnvOverrides()
	} else {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		cfg.DataDirectory = systemCfg.DataDirectory
		if dataDir := os.Getenv("VELORA_DATA_DIR"); dataDir != "" {
			cfg.DataDirectory = dataDir
		}

		userCfg, err := LoadUserConfig(cfg.DataDir())
		if err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
		cfg.applyUserConfig(userCfg)
		cfg.applyEnvOverrides()
	}

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
