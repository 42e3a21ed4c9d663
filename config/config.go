// Package config contains the configuration options for the server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml duration strings
// such as "20m" or "72h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("not a valid duration: %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Auth holds the token settings.
type Auth struct {
	// Secret is the HMAC secret used to sign tokens. It must not be empty.
	Secret string `yaml:"secret"`

	// AccessLifetime is how long a minted access token stays valid. It will
	// default to 20 minutes if none is given.
	AccessLifetime Duration `yaml:"accessLifetime"`

	// RefreshLifetime is how long a minted refresh token stays valid. It will
	// default to 12 hours if none is given.
	RefreshLifetime Duration `yaml:"refreshLifetime"`

	// RememberLifetime is how long a refresh token minted with remember-me
	// stays valid. It will default to 30 days if none is given.
	RememberLifetime Duration `yaml:"rememberLifetime"`
}

// Nutritionix holds the credentials of the calories lookup service. All
// fields empty disables the lookup.
type Nutritionix struct {
	BaseURL string `yaml:"baseUrl"`
	AppID   string `yaml:"appId"`
	AppKey  string `yaml:"appKey"`
}

// Enabled returns whether the calories lookup is configured.
func (n Nutritionix) Enabled() bool {
	return n.BaseURL != "" && n.AppID != "" && n.AppKey != ""
}

// Config is the top-level config of the server.
type Config struct {
	// Address is the internet address that the server will listen on. It will
	// default to "localhost" if none is given.
	Address string `yaml:"address"`

	// Port is the port that the server will listen on. It will default to
	// 8080 if none is given.
	Port int `yaml:"port"`

	// URIBase is the base path that all endpoints are rooted on. It will
	// default to "/api".
	URIBase string `yaml:"base"`

	// DBFile is the path of the sqlite database file. It will default to
	// "deliciousfood.db".
	DBFile string `yaml:"db"`

	// LogFile is the file to log to. If not set, all logging will be done to
	// stderr only.
	LogFile string `yaml:"logFile"`

	Auth        Auth        `yaml:"auth"`
	Nutritionix Nutritionix `yaml:"nutritionix"`
}

// FillDefaults returns a copy of cfg with all missing values set to their
// defaults.
func (cfg Config) FillDefaults() Config {
	newCFG := cfg

	if newCFG.Address == "" {
		newCFG.Address = "localhost"
	}
	if newCFG.Port == 0 {
		newCFG.Port = 8080
	}
	if newCFG.URIBase == "" {
		newCFG.URIBase = "/api"
	}
	if newCFG.DBFile == "" {
		newCFG.DBFile = "deliciousfood.db"
	}
	if newCFG.Auth.AccessLifetime == 0 {
		newCFG.Auth.AccessLifetime = Duration(20 * time.Minute)
	}
	if newCFG.Auth.RefreshLifetime == 0 {
		newCFG.Auth.RefreshLifetime = Duration(12 * time.Hour)
	}
	if newCFG.Auth.RememberLifetime == 0 {
		newCFG.Auth.RememberLifetime = Duration(30 * 24 * time.Hour)
	}

	return newCFG
}

// Validate returns an error if the Config has invalid field values set.
// Defaults should be alredy filled in before calling this.
func (cfg Config) Validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port: must be between 1 and 65535")
	}
	if !strings.HasPrefix(cfg.URIBase, "/") {
		return fmt.Errorf("base: must start with '/'")
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret: must not be empty")
	}
	if cfg.Auth.AccessLifetime <= 0 {
		return fmt.Errorf("auth.accessLifetime: must be positive")
	}
	if cfg.Auth.RefreshLifetime <= 0 {
		return fmt.Errorf("auth.refreshLifetime: must be positive")
	}
	if cfg.Auth.RememberLifetime <= 0 {
		return fmt.Errorf("auth.rememberLifetime: must be positive")
	}
	return nil
}

// ListenAddress returns the address:port the server listens on.
func (cfg Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
}

// Load reads the config from a yaml file, fills in defaults, and validates
// the result.
func Load(file string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(file)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.ToSlash(file), err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.ToSlash(file), err)
	}

	cfg = cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.ToSlash(file), err)
	}
	return cfg, nil
}
