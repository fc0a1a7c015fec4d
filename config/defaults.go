package config

import "time"

const ReaderInstruction = "If the user asks for file contents, ALWAYS use the `read_text` tool " +
	"with relative path to the workspace (e.g. './README.md'). " +
	"By default return only the first 3 lines, unless the user asks otherwise."

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/velora",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Workspace: WorkspaceConfig{
			Root: "../workspace",
		},
		Tools: ToolsConfig{
			Transport: "stdio",
			URL:       "http://localhost:8001/mcp",
			Listen:    ":8001",
		},
		Gateway: GatewayConfig{
			Listen: ":8000",
			URL:    "http://localhost:8000",
		},
		Provider: ProviderConfig{
			Type:    "ollama",
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1:latest",
		},
		Timeouts: TimeoutsConfig{
			ToolCall:    Duration{30 * time.Second},
			Turn:        Duration{120 * time.Second},
			SessionIdle: Duration{10 * time.Minute},
		},
		Agents: []AgentConfig{
			{ID: "reader", Name: "Reader", Instruction: ReaderInstruction},
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Velora System Configuration
# Location: ~/.config/velora/settings.toml
# This file uses TOML format: https://toml.io

# Directory where threads, user config and debug logs are stored
data_directory = "~/.local/share/velora"
`
}

func GenerateUserConfigTemplate() string {
	return `# Velora User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Owner of every thread created through the gateway (required)
resource_id = ""

[workspace]
# Directory the read_text tool is confined to
root = "../workspace"

[tools]
# "stdio" spawns "velora tools"; "http" connects to url
transport = "stdio"
url = "http://localhost:8001/mcp"
listen = ":8001"

[gateway]
listen = ":8000"
url = "http://localhost:8000"
# bcrypt hash of the bearer token required on /api (optional)
api_key_hash = ""

[provider]
# ollama, openai or anthropic
type = "ollama"
base_url = "http://localhost:11434"
model = "llama3.1:latest"
api_key = ""

[timeouts]
tool_call = "30s"
turn = "2m0s"
session_idle = "10m0s"

[[agents]]
id = "reader"
name = "Reader"
instruction = "` + ReaderInstruction + `"
`
}
