package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level keygate configuration file.
type YAMLConfig struct {
	Server       ServerConfig  `yaml:"server"`
	Auth         AuthConfig    `yaml:"auth"`
	PublicRoutes []PublicRoute `yaml:"public_routes"`
	Logging      LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret    string   `yaml:"jwt_secret"`
	APIKeyHeader string   `yaml:"api_key_header"`
	RatePerMin   int      `yaml:"rate_per_minute"`
	// AdminSubjects are the subject IDs allowed to write billing profiles
	// (tier and credits). Usually the billing webhook's service identity.
	AdminSubjects []string `yaml:"admin_subjects"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PublicRoute marks a method/path pair as reachable without authentication.
// Method "*" matches any method; a path ending in "/*" matches any request
// under that prefix.
type PublicRoute struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
}

// LoadYAML reads and parses a keygate configuration file.
func LoadYAML(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}
