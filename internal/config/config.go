package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// CommentPlaceholder is replaced with the comment text when composing a prompt.
const CommentPlaceholder = "{comment}"

type Config struct {
	Model   Model   `yaml:"model"`
	Prompt  Prompt  `yaml:"prompt"`
	Output  Output  `yaml:"output"`
	Journal Journal `yaml:"journal"`
}

type Model struct {
	Provider    string `yaml:"provider"`
	Name        string `yaml:"name"`
	Command     string `yaml:"command"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	MaxTokens   int    `yaml:"max_tokens"`
	Timeout     int    `yaml:"timeout"`
}

type Prompt struct {
	Template string `yaml:"template"`
}

type Output struct {
	Path    string `yaml:"path"`
	DataDir string `yaml:"data_dir"`
}

type Journal struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ConfigDir returns the XDG config directory for townhall.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "townhall")
}

// DataDir returns the XDG data directory for townhall.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "townhall")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/townhall/config.yaml > ./townhall.yaml.
// An empty path with a nil error means no file exists and the
// embedded defaults apply.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "townhall.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", nil
}

// Default returns the configuration baked into the binary.
func Default() *Config {
	cfg, err := parse(nil)
	if err != nil {
		// default.yaml ships with the binary; failing here is a build defect.
		panic(err)
	}
	return cfg
}

// Load reads and parses a config YAML file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse overlays YAML bytes on top of the embedded defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(DefaultConfigYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail on every row.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Model.Provider) {
	case "command", "ollama", "openai":
	default:
		return fmt.Errorf("unknown model provider %q (want command, ollama or openai)", c.Model.Provider)
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		return fmt.Errorf("model name is empty")
	}
	if !strings.Contains(c.Prompt.Template, CommentPlaceholder) {
		return fmt.Errorf("prompt template must contain %s", CommentPlaceholder)
	}
	if c.Model.Timeout < 0 {
		return fmt.Errorf("model timeout must not be negative")
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GetJournalPath returns the run journal database path.
func (c *Config) GetJournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.GetDataDir(), "townhall.db")
}

// GetOutputPath returns the output table path, defaulting to ./output.csv.
func (c *Config) GetOutputPath() string {
	if c.Output.Path != "" {
		return c.Output.Path
	}
	return "output.csv"
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
