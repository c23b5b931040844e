// Package config loads and validates the photomirror configuration file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configuration for all identities.
type Config struct {
	// LogLevel is the log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// Identities maps an identity name to its configuration. Each identity is
	// one logical account being mirrored, with its own data directory, lock
	// and catalog.
	Identities map[string]*IdentityConfig `yaml:"identities" mapstructure:"identities"`
}

// IdentityConfig holds the configuration of a single identity. Defaults are
// resolved once at load time, not at each access.
type IdentityConfig struct {
	// DataDir is the directory holding the catalog, the lock file and the
	// mirrored library.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
	// AuthFile is the OAuth2 client credentials file.
	AuthFile string `yaml:"auth_file" mapstructure:"auth_file"`
	// Concurrency caps simultaneous in-flight downloads and link creations.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// UseSymlinks selects symbolic links for album items; hard links otherwise.
	UseSymlinks *bool `yaml:"use_symlinks" mapstructure:"use_symlinks"`
	// Albums restricts album indexing to the named albums. Empty means all.
	Albums []string `yaml:"albums" mapstructure:"albums"`
	// Webserver enables the local callback webserver for the auth flow.
	Webserver bool `yaml:"webserver" mapstructure:"webserver"`
	// WebserverPort is the port of the local callback webserver.
	WebserverPort int `yaml:"webserver_port" mapstructure:"webserver_port"`
}

// Symlinks reports whether album items should be symlinked.
func (c *IdentityConfig) Symlinks() bool {
	return c.UseSymlinks == nil || *c.UseSymlinks
}

// Load reads the config file and returns the validated configuration. If path
// is empty, the default locations are searched.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/photomirror")
		v.AddConfigPath("/etc/photomirror")
	}

	v.SetEnvPrefix("PHOTOMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Identities) == 0 {
		return fmt.Errorf("no identities configured")
	}

	for name, identity := range c.Identities {
		if identity == nil {
			return fmt.Errorf("identity %q has no configuration", name)
		}
		if identity.DataDir == "" {
			return fmt.Errorf("identity %q is missing data_dir", name)
		}
		if identity.AuthFile == "" {
			return fmt.Errorf("identity %q is missing auth_file", name)
		}
		if identity.Concurrency <= 0 {
			identity.Concurrency = 10
		}
		if identity.WebserverPort == 0 {
			identity.WebserverPort = 8080
		}
	}
	return nil
}
