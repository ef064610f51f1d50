// Package config loads and validates crewd configuration from YAML files
// and CREWD_-prefixed environment variables, layered over built-in
// defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration document.
type Config struct {
	Memory    MemoryConfig    `koanf:"memory"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	Executor  ExecutorConfig  `koanf:"executor"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// MemoryConfig controls persistent project memory and the conversation log.
type MemoryConfig struct {
	// Dir is where per-project memory documents are stored.
	Dir string `koanf:"dir"`
	// MaxConversationLength is the log size above which summarization runs.
	MaxConversationLength int `koanf:"max_conversation_length"`
	// HandoffContextEntries is how many recent entries travel with a handoff.
	HandoffContextEntries int `koanf:"handoff_context_entries"`
}

// WorkflowConfig controls workflow execution.
type WorkflowConfig struct {
	// DefaultComplexity is assumed when a request carries no complexity hint.
	DefaultComplexity string `koanf:"default_complexity"`
	// StepTimeout bounds a single agent step.
	StepTimeout Duration `koanf:"step_timeout"`
}

// ExecutorConfig configures the HTTP client that runs agent steps against
// a model endpoint.
type ExecutorConfig struct {
	Endpoint       string   `koanf:"endpoint"`
	APIKey         Secret   `koanf:"api_key"`
	RequestTimeout Duration `koanf:"request_timeout"`
	MaxRetries     int      `koanf:"max_retries"`
	// RateLimitRPS caps outbound requests per second; zero disables limiting.
	RateLimitRPS float64 `koanf:"rate_limit_rps"`
	RateBurst    int     `koanf:"rate_burst"`
}

// LoggingConfig mirrors the logging package settings.
type LoggingConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Caller     bool   `koanf:"caller"`
	Stacktrace bool   `koanf:"stacktrace"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// NewDefaultConfig returns the built-in defaults. File and environment
// values are layered on top of these.
func NewDefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Memory: MemoryConfig{
			Dir:                   filepath.Join(home, ".crewd", "memory"),
			MaxConversationLength: 50,
			HandoffContextEntries: 3,
		},
		Workflow: WorkflowConfig{
			DefaultComplexity: "medium",
			StepTimeout:       Duration(5 * time.Minute),
		},
		Executor: ExecutorConfig{
			Endpoint:       "http://localhost:11434/v1/chat/completions",
			RequestTimeout: Duration(120 * time.Second),
			MaxRetries:     3,
			RateLimitRPS:   2,
			RateBurst:      4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "crewd",
			Protocol:    "grpc",
			SampleRate:  1.0,
		},
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Memory.Dir == "" {
		return fmt.Errorf("memory.dir is required")
	}
	if c.Memory.MaxConversationLength < 1 {
		return fmt.Errorf("memory.max_conversation_length must be positive, got %d", c.Memory.MaxConversationLength)
	}
	if c.Memory.HandoffContextEntries < 1 {
		return fmt.Errorf("memory.handoff_context_entries must be positive, got %d", c.Memory.HandoffContextEntries)
	}
	switch c.Workflow.DefaultComplexity {
	case "simple", "medium", "complex", "expert":
	default:
		return fmt.Errorf("workflow.default_complexity must be one of simple, medium, complex, expert, got %q", c.Workflow.DefaultComplexity)
	}
	if c.Workflow.StepTimeout.Std() <= 0 {
		return fmt.Errorf("workflow.step_timeout must be positive")
	}
	if c.Executor.Endpoint == "" {
		return fmt.Errorf("executor.endpoint is required")
	}
	if c.Executor.RequestTimeout.Std() <= 0 {
		return fmt.Errorf("executor.request_timeout must be positive")
	}
	if c.Executor.MaxRetries < 0 {
		return fmt.Errorf("executor.max_retries must not be negative, got %d", c.Executor.MaxRetries)
	}
	if c.Executor.RateLimitRPS < 0 {
		return fmt.Errorf("executor.rate_limit_rps must not be negative")
	}
	switch c.Telemetry.Protocol {
	case "grpc", "http":
	default:
		return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be in [0, 1], got %v", c.Telemetry.SampleRate)
	}
	return nil
}
