package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/dispenser/assign"
	"github.com/justapithecus/dispenser/queue"
)

// Config represents a dispenser.yaml configuration file. The serve
// command takes dispatcher and adapter settings only from this file; no
// CLI flag overrides them.
type Config struct {
	Capacity     int              `yaml:"capacity"`
	DropStrategy string           `yaml:"drop_strategy"`
	Policy       string           `yaml:"policy"`
	Dispatcher   DispatcherConfig `yaml:"dispatcher"`
	Adapter      AdapterConfig    `yaml:"adapter"`
}

// DispatcherConfig selects the dispatch discipline and its knobs.
// BatchSize and MaxDelay are only meaningful when Kind is "batching".
type DispatcherConfig struct {
	Kind      string   `yaml:"kind"`
	BatchSize int      `yaml:"batch_size"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// AdapterConfig holds delivery adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// DropStrategyValue resolves the configured drop strategy string.
func (c *Config) DropStrategyValue() (queue.DropStrategy, error) {
	switch c.DropStrategy {
	case "", "drop_oldest":
		return queue.DropOldest, nil
	case "drop_newest":
		return queue.DropNewest, nil
	default:
		return 0, fmt.Errorf("config: unknown drop_strategy %q", c.DropStrategy)
	}
}

// PolicyName resolves the configured policy string into an assign.Name.
func (c *Config) PolicyName() (assign.Name, error) {
	switch c.Policy {
	case "", "even":
		return assign.NameEven, nil
	case "greedy":
		return assign.NameGreedy, nil
	default:
		return "", fmt.Errorf("config: unknown policy %q", c.Policy)
	}
}

// Validate checks required fields and cross-field constraints that
// plain YAML decoding can't express (e.g. dispatcher-kind-specific
// requirements).
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("config: capacity must be positive, got %d", c.Capacity)
	}
	if _, err := c.DropStrategyValue(); err != nil {
		return err
	}
	if _, err := c.PolicyName(); err != nil {
		return err
	}
	switch c.Dispatcher.Kind {
	case "", "immediate":
	case "batching":
		if c.Dispatcher.BatchSize <= 0 {
			return fmt.Errorf("config: dispatcher.batch_size must be positive for batching")
		}
		if c.Dispatcher.MaxDelay.Duration <= 0 {
			return fmt.Errorf("config: dispatcher.max_delay must be positive for batching")
		}
	default:
		return fmt.Errorf("config: unknown dispatcher.kind %q", c.Dispatcher.Kind)
	}
	return nil
}
