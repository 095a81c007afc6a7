package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RelayServer describes one TURN/STUN relay endpoint handed to clients by the
// credential route.
type RelayServer struct {
	URLs       []string `yaml:"urls" json:"urls"`
	Username   string   `yaml:"username,omitempty" json:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty" json:"credential,omitempty"`
}

// Config is the server configuration: defaults, overridden by an optional
// YAML file, overridden by environment variables.
type Config struct {
	HTTP struct {
		Address         string   `yaml:"address"`
		ReadTimeout     Duration `yaml:"read_timeout"`
		WriteTimeout    Duration `yaml:"write_timeout"`
		ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Room struct {
		GracePeriod Duration `yaml:"grace_period"`
	} `yaml:"room"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Relay []RelayServer `yaml:"relay"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (*Config, error) {
	config := &Config{}
	config.HTTP.Address = ":8080"
	config.HTTP.ReadTimeout = Duration(10 * time.Second)
	config.HTTP.WriteTimeout = Duration(10 * time.Second)
	config.HTTP.ShutdownTimeout = Duration(15 * time.Second)
	config.Room.GracePeriod = Duration(30 * time.Second)
	config.Log.Level = "info"
	config.Log.Format = "text"

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvironmentOverrides(config)
	return config, nil
}

func applyEnvironmentOverrides(config *Config) {
	if addr := os.Getenv("HTTP_ADDRESS"); addr != "" {
		config.HTTP.Address = addr
	}
	if port := os.Getenv("PORT"); port != "" {
		config.HTTP.Address = ":" + port
	}
	if grace := os.Getenv("ROOM_GRACE_PERIOD"); grace != "" {
		if d, err := time.ParseDuration(grace); err == nil {
			config.Room.GracePeriod = Duration(d)
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Log.Format = format
	}
}
