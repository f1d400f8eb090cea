// Package config loads client configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the client binary needs to reach a room server.
// Values come from ROOMCHAT_* environment variables; the binary's flags
// override them.
type Config struct {
	// ServerURL is the websocket endpoint of the room's event channel.
	ServerURL string `envconfig:"SERVER_URL" default:"ws://localhost:8080/ws"`

	// LoginURL is the base URL of the name registration endpoint.
	LoginURL string `envconfig:"LOGIN_URL" default:"http://localhost:8080"`

	// LogFile receives structured logs; a TUI cannot log to its own
	// terminal.
	LogFile string `envconfig:"LOG_FILE" default:"roomchat.log"`

	// Debug lowers the log level to debug.
	Debug bool `envconfig:"DEBUG" default:"false"`
}

// Load reads configuration from ROOMCHAT_* environment variables, filling
// defaults for anything unset.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("roomchat", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
