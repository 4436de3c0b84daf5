// ABOUTME: Settings loading with global + project config merge for the interactions CLI
// ABOUTME: YAML (gopkg.in/yaml.v3) or JSON by file extension; project values override global ones

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds the merged configuration.
type Settings struct {
	APIKey            string            `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL           string            `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIVersion        string            `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Model             string            `json:"model,omitempty" yaml:"model,omitempty"`
	Agent             string            `json:"agent,omitempty" yaml:"agent,omitempty"`
	SystemInstruction string            `json:"system_instruction,omitempty" yaml:"system_instruction,omitempty"`
	Temperature       *float64          `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxOutputTokens   int               `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
	ThinkingLevel     string            `json:"thinking_level,omitempty" yaml:"thinking_level,omitempty"`
	Output            string            `json:"output,omitempty" yaml:"output,omitempty"`
	IdleTimeout       string            `json:"idle_timeout,omitempty" yaml:"idle_timeout,omitempty"`
	RateLimit         float64           `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	LogLevel          string            `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	Headers           map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Idle parses IdleTimeout. An empty value means no timeout.
func (s *Settings) Idle() (time.Duration, error) {
	if s.IdleTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.IdleTimeout)
	if err != nil {
		return 0, fmt.Errorf("idle_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("idle_timeout: negative duration %s", d)
	}
	return d, nil
}

// Load reads and merges global and project-local settings, then expands
// ${VAR} references. Project settings override global settings.
func Load(projectRoot string) (*Settings, error) {
	global, err := loadFile(GlobalConfigFile())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading global config: %w", err)
	}

	project, err := loadFile(ProjectConfigFile(projectRoot))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	merged := merge(global, project)
	ResolveEnvVars(merged)
	return merged, nil
}

// loadFile reads Settings from a YAML or JSON file. Returns zero Settings if
// the file does not exist.
func loadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Settings{}, err
	}

	var s Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &s)
	default:
		err = yaml.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}

// Save writes s to path as YAML or JSON depending on the extension.
func Save(path string, s *Settings) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(s, "", "  ")
	default:
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, data, defaultConfigPerm)
}

// merge overlays project settings onto global settings.
// Non-zero project values override global values.
func merge(global, project *Settings) *Settings {
	if global == nil {
		global = &Settings{}
	}
	if project == nil {
		return global
	}

	result := *global

	overrideString(&result.APIKey, project.APIKey)
	overrideString(&result.BaseURL, project.BaseURL)
	overrideString(&result.APIVersion, project.APIVersion)
	overrideString(&result.SystemInstruction, project.SystemInstruction)
	overrideString(&result.ThinkingLevel, project.ThinkingLevel)
	overrideString(&result.Output, project.Output)
	overrideString(&result.IdleTimeout, project.IdleTimeout)
	overrideString(&result.LogLevel, project.LogLevel)

	// Model and agent are alternatives; the project's choice replaces both.
	if project.Model != "" || project.Agent != "" {
		result.Model = project.Model
		result.Agent = project.Agent
	}
	if project.Temperature != nil {
		t := *project.Temperature
		result.Temperature = &t
	}
	if project.MaxOutputTokens != 0 {
		result.MaxOutputTokens = project.MaxOutputTokens
	}
	if project.RateLimit != 0 {
		result.RateLimit = project.RateLimit
	}

	if len(global.Headers) > 0 || len(project.Headers) > 0 {
		result.Headers = make(map[string]string, len(global.Headers)+len(project.Headers))
		for k, v := range global.Headers {
			result.Headers[k] = v
		}
		for k, v := range project.Headers {
			result.Headers[k] = v
		}
	}

	return &result
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// apiKeyEnvVars are consulted in order when no key is configured.
var apiKeyEnvVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// ResolveAPIKey returns the configured key, falling back to the environment.
func ResolveAPIKey(s *Settings) string {
	if s != nil && s.APIKey != "" {
		return s.APIKey
	}
	for _, name := range apiKeyEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
