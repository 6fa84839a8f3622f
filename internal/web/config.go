package web

import (
	appconfig "github.com/opendatama/rejtracts/internal/config"
)

// Config represents the preview server configuration
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Features FeatureConfig
	Title    string
	PerPage  int
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port int
	Host string
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	APIKey string
}

// FeatureConfig contains feature toggles
type FeatureConfig struct {
	ExportEnabled bool
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8050,
			Host: "localhost",
		},
		Features: FeatureConfig{
			ExportEnabled: true,
		},
		Title:   "REJ × MassSave Participation (Preview)",
		PerPage: 50,
	}
}

// NewConfig derives the server configuration from the application config
func NewConfig(c appconfig.WebConfig) *Config {
	cfg := DefaultConfig()
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.PerPage > 0 {
		cfg.PerPage = c.PerPage
	}
	cfg.Auth.APIKey = c.APIKey
	return cfg
}
