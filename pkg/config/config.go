// Package config contains the definition of the application config structure
// and logic required to load and update it.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/hivechat/pkg/fileutils"
)

const (
	// DefaultModel is used when no model is configured or given on the command line.
	DefaultModel = "qwen2.5:7b"
	// DefaultOllamaHost matches the Ollama daemon's default listen address.
	DefaultOllamaHost = "http://localhost:11434"
	// DefaultSmitheryURL is the public Smithery registry API.
	DefaultSmitheryURL = "https://registry.smithery.ai"
	// DefaultRegistryAPIURL is the public MCP registry API.
	DefaultRegistryAPIURL = "https://registry.modelcontextprotocol.io"

	defaultMaxToolRounds          = 10
	defaultAuthFlowTimeoutMinutes = 5
)

// Config represents the configuration of the application.
type Config struct {
	Chat     Chat     `yaml:"chat"`
	Model    Model    `yaml:"model"`
	Registry Registry `yaml:"registry"`
	Auth     Auth     `yaml:"auth"`
	Clients  Clients  `yaml:"clients"`

	// EnabledTools remembers per-tool enablement across sessions, keyed by
	// qualified tool name. Entries for tools that no longer exist are
	// dropped when the catalog is rebuilt.
	EnabledTools map[string]bool `yaml:"enabled_tools,omitempty"`

	// ServersFile overrides the default MCP server definition file.
	ServersFile string `yaml:"servers_file,omitempty"`

	CACertificatePath string `yaml:"ca_certificate_path,omitempty"`

	// SmitheryAPIKey is the pre-1.0 location of the registry API key.
	// Deprecated: use Registry.APIKey.
	SmitheryAPIKey string `yaml:"smithery_api_key,omitempty"`
}

// Chat controls the interactive conversation loop.
type Chat struct {
	// RetainContext keeps conversation history across queries.
	RetainContext *bool `yaml:"retain_context,omitempty"`
	// MaxToolRounds bounds how many consecutive rounds of tool calls the
	// model may issue for a single query.
	MaxToolRounds int `yaml:"max_tool_rounds,omitempty"`
	// ConfirmToolCalls asks before executing each tool call.
	ConfirmToolCalls  *bool `yaml:"confirm_tool_calls,omitempty"`
	ShowToolExecution *bool `yaml:"show_tool_execution,omitempty"`
	ShowMetrics       *bool `yaml:"show_metrics,omitempty"`
}

// Model selects the Ollama model and its generation options.
type Model struct {
	Name         string       `yaml:"name,omitempty"`
	Host         string       `yaml:"host,omitempty"`
	SystemPrompt string       `yaml:"system_prompt,omitempty"`
	Think        *bool        `yaml:"think,omitempty"`
	ShowThinking *bool        `yaml:"show_thinking,omitempty"`
	Options      ModelOptions `yaml:"options,omitempty"`
}

// ModelOptions mirrors the subset of Ollama generation options that can be
// tuned from the config file. Unset values are omitted from requests so the
// model's own defaults apply.
type ModelOptions struct {
	Temperature   *float64 `yaml:"temperature,omitempty"`
	TopK          *int     `yaml:"top_k,omitempty"`
	TopP          *float64 `yaml:"top_p,omitempty"`
	MinP          *float64 `yaml:"min_p,omitempty"`
	NumCtx        *int     `yaml:"num_ctx,omitempty"`
	NumPredict    *int     `yaml:"num_predict,omitempty"`
	RepeatPenalty *float64 `yaml:"repeat_penalty,omitempty"`
	Seed          *int     `yaml:"seed,omitempty"`
	Stop          []string `yaml:"stop,omitempty"`
}

// Registry holds upstream server registry settings.
type Registry struct {
	// SmitheryURL is the base URL of the Smithery registry API.
	SmitheryURL string `yaml:"smithery_url,omitempty"`
	// APIURL is the base URL of an MCP registry API server.
	APIURL string `yaml:"api_url,omitempty"`
	// APIKey is the fallback location for the Smithery API key when no OS
	// keyring is available. Prefer `hivechat config set-api-key`.
	APIKey         string `yaml:"api_key,omitempty"`
	AllowPrivateIp bool   `yaml:"allow_private_ip,omitempty"`
}

// Auth holds OAuth settings for remote MCP servers.
type Auth struct {
	// CallbackPort fixes the local port used for OAuth redirects. Zero
	// selects an available port when the flow starts.
	CallbackPort int `yaml:"callback_port,omitempty"`
	// FlowTimeoutMinutes bounds how long an authorization flow may stay
	// pending before it is abandoned.
	FlowTimeoutMinutes int `yaml:"flow_timeout_minutes,omitempty"`
}

// Clients contains settings for discovering MCP server definitions in other
// installed client applications.
type Clients struct {
	AutoDiscovery bool `yaml:"auto_discovery"`
}

func boolPtr(b bool) *bool {
	return &b
}

func defaultConfig() Config {
	return Config{
		Chat: Chat{
			RetainContext:     boolPtr(true),
			MaxToolRounds:     defaultMaxToolRounds,
			ConfirmToolCalls:  boolPtr(true),
			ShowToolExecution: boolPtr(true),
			ShowMetrics:       boolPtr(false),
		},
		Model: Model{
			Name:         DefaultModel,
			Host:         DefaultOllamaHost,
			Think:        boolPtr(true),
			ShowThinking: boolPtr(false),
		},
		Registry: Registry{
			SmitheryURL: DefaultSmitheryURL,
			APIURL:      DefaultRegistryAPIURL,
		},
		Auth: Auth{
			FlowTimeoutMinutes: defaultAuthFlowTimeoutMinutes,
		},
	}
}

// createNewConfigWithDefaults creates a new config with default values
func createNewConfigWithDefaults() Config {
	return defaultConfig()
}

// EnsureDefaults fills any unset fields with their default values. Values
// provided by the user, including explicit false settings, are preserved.
func (c *Config) EnsureDefaults() error {
	defaults := defaultConfig()
	if err := mergo.Merge(c, defaults); err != nil {
		return fmt.Errorf("failed to apply configuration defaults: %w", err)
	}
	return nil
}

// applyBackwardCompatibility migrates settings written by older releases.
// It reports whether the config changed and should be written back.
func applyBackwardCompatibility(config *Config) bool {
	changed := false

	// The Smithery API key used to live at the top level of the file.
	if config.SmitheryAPIKey != "" {
		if config.Registry.APIKey == "" {
			config.Registry.APIKey = config.SmitheryAPIKey
		}
		config.SmitheryAPIKey = ""
		changed = true
	}

	return changed
}

// defaultPathGenerator generates the default config path using xdg
var defaultPathGenerator = func() (string, error) {
	return xdg.ConfigFile("hivechat/config.yaml")
}

// getConfigPath is the current path generator, can be replaced in tests
var getConfigPath = defaultPathGenerator

// NamedConfigPath returns the path of a named configuration profile. Names
// are reduced to lowercase alphanumerics, hyphens and underscores; an empty
// result falls back to the default profile.
func NamedConfigPath(name string) (string, error) {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, name)
	if sanitized == "" || sanitized == "default" {
		return getConfigPath()
	}
	return xdg.ConfigFile(filepath.Join("hivechat", sanitized+".yaml"))
}

// LoadOrCreateConfig fetches the application configuration.
// If it does not already exist - it will create a new config file with default values.
func LoadOrCreateConfig() (*Config, error) {
	return LoadOrCreateConfigWithPath("")
}

// LoadOrCreateConfigWithPath fetches the application configuration from a specific path.
// If configPath is empty, it uses the default path.
// If it does not already exist - it will create a new config file with default values.
func LoadOrCreateConfigWithPath(configPath string) (*Config, error) {
	store, err := NewConfigStoreWithPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create config store: %w", err)
	}

	ctx := context.Background()
	return store.Load(ctx)
}

// Save serializes the config struct and writes it to disk.
func (c *Config) save() error {
	return c.saveToPath("")
}

// saveToPath serializes the config struct and writes it to a specific path.
// If configPath is empty, it uses the default path.
func (c *Config) saveToPath(configPath string) error {
	if configPath == "" {
		var err error
		configPath, err = getConfigPath()
		if err != nil {
			return fmt.Errorf("unable to fetch config path: %w", err)
		}
	}

	configBytes, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error serializing config file: %w", err)
	}

	err = fileutils.AtomicWriteFile(configPath, configBytes, 0600)
	if err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// UpdateConfig loads config from appropriate store, applies changes, and saves back
func UpdateConfig(updateFn func(*Config)) error {
	return UpdateConfigWithStore(nil, updateFn)
}

// UpdateConfigWithStore uses the provided store or creates a new one to update config
func UpdateConfigWithStore(store Store, updateFn func(*Config)) error {
	var err error
	if store == nil {
		store, err = NewConfigStore()
		if err != nil {
			return fmt.Errorf("failed to create config store: %w", err)
		}
	}

	ctx := context.Background()

	// Load current config
	config, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply changes
	updateFn(config)

	// Save updated config
	err = store.Save(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	// Refresh the singleton cache when it has already been populated
	configMu.Lock()
	if appConfig != nil {
		appConfig = config
	}
	configMu.Unlock()

	return nil
}

// UpdateConfigAtPath loads config using appropriate store, applies changes, and saves back
// If configPath is empty, it uses the default path.
func UpdateConfigAtPath(configPath string, updateFn func(*Config)) error {
	store, err := NewConfigStoreWithPath(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config store: %w", err)
	}

	ctx := context.Background()
	return store.Update(ctx, updateFn)
}
