package app

import (
	"fmt"
	"strings"
)

// Config holds the settings of one App instance, after command-line flags
// have been applied on top of the project file.
type Config struct {
	WorkspacePath string
	LogFormat     string
	LogLevel      string
	// ReportURL, when set, streams run events to a socket.io endpoint.
	ReportURL string
	// Quiet disables progress bars.
	Quiet bool
}

// NewConfig fills unset fields of cfg from the project and validates the
// result.
func NewConfig(cfg Config, project *Project) (*Config, error) {
	if project != nil {
		if cfg.WorkspacePath == "" {
			cfg.WorkspacePath = project.WorkspacePath()
		}
		if cfg.LogLevel == "" {
			cfg.LogLevel = project.LogLevel
		}
		if cfg.LogFormat == "" {
			cfg.LogFormat = project.LogFormat
		}
	}
	if cfg.WorkspacePath == "" {
		cfg.WorkspacePath = DefaultWorkspace
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	return &cfg, nil
}
