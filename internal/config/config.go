package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the file venvup looks for in a project root
	ConfigFileName = "venvup.yaml"
	// StateDir is the directory venvup keeps its run state in
	StateDir = ".venvup"
)

// DefaultPackages is the package set installed when none are configured
var DefaultPackages = []string{"flask", "flask-sqlalchemy", "flask-login"}

// Config represents the venvup.yaml configuration
type Config struct {
	Project    string    `yaml:"project"`
	Python     string    `yaml:"python,omitempty"` // base interpreter override
	Venv       string    `yaml:"venv"`
	Entrypoint string    `yaml:"entrypoint"`
	Packages   []string  `yaml:"packages"`
	App        AppConfig `yaml:"app"`
	Pause      *bool     `yaml:"pause,omitempty"`
}

// AppConfig describes where the launched application is expected to listen
type AppConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultConfig returns the stock flask setup for a new project
func DefaultConfig(projectName string) *Config {
	pause := true
	return &Config{
		Project:    projectName,
		Venv:       "venv",
		Entrypoint: "main.py",
		Packages:   append([]string(nil), DefaultPackages...),
		App: AppConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Pause: &pause,
	}
}

// Load reads the config from dir, overlaying the file on top of the
// defaults so missing keys keep their default values
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig(projectNameFor(dir))
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// projectNameFor derives the default project name from the directory,
// the same name a bare run without any config would use
func projectNameFor(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Base(dir)
	}
	return filepath.Base(abs)
}

// Save writes the config to dir as YAML
func Save(dir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// CreateStateDir makes the state directory if it is missing
func CreateStateDir(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, StateDir), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// Exists reports whether dir holds a venvup config file
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// PauseEnabled reports whether the final acknowledgment pause is on
func (c *Config) PauseEnabled() bool {
	return c.Pause == nil || *c.Pause
}

// FindProjectRoot walks up from startDir until it reaches a directory
// holding a config file
func FindProjectRoot(startDir string) (string, error) {
	dir := startDir
	for !Exists(dir) {
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a venvup project (no %s found)", ConfigFileName)
		}
		dir = parent
	}
	return dir, nil
}
