package spiredevserver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
)

// ServerConfig holds the settings of a minispire server.
type ServerConfig struct {
	TrustDomain string        `mapstructure:"trust_domain"`
	SocketPath  string        `mapstructure:"socket_path"`
	KeyType     string        `mapstructure:"key_type"`
	SVIDTTL     time.Duration `mapstructure:"svid_ttl"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl"`

	Attest  AttestConfig  `mapstructure:"attest"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// AttestConfig controls how callers are attested.
type AttestConfig struct {
	// ResolveProcess looks the caller's pid up in the process table to
	// record its binary name.
	ResolveProcess bool `mapstructure:"resolve_process"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// LoadServerConfig reads configuration from configPath (or config.yaml in
// the usual places when empty), applies MINISPIRE_* environment overrides and
// validates the result.
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/minispire")
	}

	v.SetEnvPrefix("MINISPIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trust_domain", "example.com")
	v.SetDefault("socket_path", "/tmp/spire.sock")
	v.SetDefault("key_type", "ecdsa-p256")
	// short enough to exercise rotation locally
	v.SetDefault("svid_ttl", 4*time.Minute)
	v.SetDefault("jwt_ttl", 5*time.Minute)

	v.SetDefault("attest.resolve_process", true)

	v.SetDefault("log.level", "info")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9988")
}

// Validate checks the settings that cannot be defaulted.
func (c *ServerConfig) Validate() error {
	if _, err := spiffeid.TrustDomainFromString(c.TrustDomain); err != nil {
		return fmt.Errorf("invalid trust_domain %q: %w", c.TrustDomain, err)
	}
	if c.SocketPath == "" {
		return errors.New("socket_path must be set")
	}
	if _, err := ParseKeyType(c.KeyType); err != nil {
		return err
	}
	if c.SVIDTTL <= 0 {
		return fmt.Errorf("svid_ttl must be positive, got %s", c.SVIDTTL)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("jwt_ttl must be positive, got %s", c.JWTTTL)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return errors.New("metrics.address must be set when metrics are enabled")
	}
	return nil
}
