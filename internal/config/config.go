package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"jcr/pkg/jsonc"
)

// BuiltinPluginPath selects a plugin compiled into jcr instead of a .so file.
const BuiltinPluginPath = "builtin"

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type PluginConfig struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type MimeTypeConfig struct {
	MimeType       string         `json:"mime_type"`
	StripRequests  bool           `json:"strip_requests"`
	StripResponses bool           `json:"strip_responses"`
	Plugins        []PluginConfig `json:"plugins"`
}

type Config struct {
	BackendURL     string            `json:"backend_url"`
	ListenAddr     string            `json:"listen_addr"`
	HealthPort     int               `json:"health_port"`
	Redis          RedisConfig       `json:"redis"`
	MimeTypes      []MimeTypeConfig  `json:"mime_types"`
	CookieDenylist []string          `json:"cookie_denylist"`
	RequestTimeout int               `json:"request_timeout"`
	MaxBodySizeMB  int               `json:"max_body_size_mb"`
	CacheTTL       int               `json:"cache_ttl"`
	Variables      map[string]string `json:"variables"`
}

// Load reads a configuration file. The file may contain // and /* */
// comments.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes, validates and defaults a configuration document.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(jsonc.Strip(data), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	setDefaults(&config)

	return &config, nil
}

// SendConfig holds the settings jcr send reads from a configuration file.
// Relay settings in the same file are ignored.
type SendConfig struct {
	RequestTimeout int               `json:"request_timeout"`
	Variables      map[string]string `json:"variables"`
}

// LoadSend reads the send settings from a configuration file without
// requiring a complete relay configuration.
func LoadSend(filename string) (*SendConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseSend(data)
}

func ParseSend(data []byte) (*SendConfig, error) {
	var config SendConfig
	if err := json.Unmarshal(jsonc.Strip(data), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if config.RequestTimeout < 0 {
		return nil, fmt.Errorf("invalid configuration: request_timeout must not be negative")
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30
	}
	if config.Variables == nil {
		config.Variables = make(map[string]string)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}

	u, err := url.Parse(config.BackendURL)
	if err != nil {
		return fmt.Errorf("backend_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend_url must be an absolute http or https URL, got '%s'", config.BackendURL)
	}

	if config.CacheTTL >= 0 && config.Redis.Addr == "" {
		for _, mimeConfig := range config.MimeTypes {
			if mimeConfig.StripResponses {
				return fmt.Errorf("redis.addr is required when responses are processed; set cache_ttl to -1 to disable caching")
			}
		}
	}

	if config.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if config.MaxBodySizeMB < 0 {
		return fmt.Errorf("max_body_size_mb must not be negative")
	}

	seen := make(map[string]bool)
	for i, mimeConfig := range config.MimeTypes {
		if !IsJSONMimeType(mimeConfig.MimeType) {
			return fmt.Errorf("mime_types[%d]: invalid MIME type '%s', must be application/json, text/json or application/<type>+json",
				i, mimeConfig.MimeType)
		}

		if seen[mimeConfig.MimeType] {
			return fmt.Errorf("mime_types[%d]: duplicate MIME type '%s'", i, mimeConfig.MimeType)
		}
		seen[mimeConfig.MimeType] = true

		if !mimeConfig.StripRequests && !mimeConfig.StripResponses {
			return fmt.Errorf("mime_types[%d]: at least one of strip_requests or strip_responses must be enabled", i)
		}

		if len(mimeConfig.Plugins) == 0 {
			return fmt.Errorf("mime_types[%d]: at least one plugin must be specified", i)
		}

		for j, plugin := range mimeConfig.Plugins {
			if plugin.Path == "" {
				return fmt.Errorf("mime_types[%d].plugins[%d]: path is required", i, j)
			}
			if plugin.Name == "" {
				return fmt.Errorf("mime_types[%d].plugins[%d]: name is required", i, j)
			}
		}
	}

	return nil
}

func setDefaults(config *Config) {
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.HealthPort == 0 {
		config.HealthPort = 8081
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30
	}
	if config.MaxBodySizeMB == 0 {
		config.MaxBodySizeMB = 10
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 3600
	}
	if config.Variables == nil {
		config.Variables = make(map[string]string)
	}
}

// IsJSONMimeType reports whether mimeType names a JSON media type.
func IsJSONMimeType(mimeType string) bool {
	switch mimeType {
	case "application/json", "text/json":
		return true
	}
	sub, ok := strings.CutPrefix(mimeType, "application/")
	return ok && len(sub) > len("+json") && strings.HasSuffix(sub, "+json")
}

// CachingEnabled reports whether processed responses are cached.
func (c *Config) CachingEnabled() bool {
	return c.CacheTTL > 0 && c.Redis.Addr != ""
}

func (c *Config) GetMimeTypeConfig(mimeType string) *MimeTypeConfig {
	for i := range c.MimeTypes {
		if c.MimeTypes[i].MimeType == mimeType {
			return &c.MimeTypes[i]
		}
	}
	return nil
}

func (c *Config) StripsRequests(mimeType string) bool {
	mt := c.GetMimeTypeConfig(mimeType)
	return mt != nil && mt.StripRequests
}

func (c *Config) StripsResponses(mimeType string) bool {
	mt := c.GetMimeTypeConfig(mimeType)
	return mt != nil && mt.StripResponses
}

func (c *Config) GetPluginsForMimeType(mimeType string) []PluginConfig {
	if mt := c.GetMimeTypeConfig(mimeType); mt != nil {
		return mt.Plugins
	}
	return nil
}
