package server

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/parleyhq/parley/controller"
	"github.com/parleyhq/parley/history"
	"github.com/parleyhq/parley/remote/httpapi"
)

const defaultAddr = ":8080"

// Config holds initialization parameters for the HTTP server and the
// subsystems behind it. Each subsystem section delegates to that subsystem's
// config-driven constructor.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr,omitempty"`

	Controller controller.Config `json:"controller"`
	Remote     httpapi.Config    `json:"remote"`
	History    history.Config    `json:"history"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Addr:       defaultAddr,
		Controller: controller.DefaultConfig(),
		Remote:     httpapi.DefaultConfig(),
		History:    history.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	if source == nil {
		return
	}
	c.Controller.Merge(&source.Controller)
	c.Remote.Merge(&source.Remote)
	c.History.Merge(&source.History)

	if source.Addr != "" {
		c.Addr = source.Addr
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
