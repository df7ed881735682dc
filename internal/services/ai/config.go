// File: internal/services/ai/config.go
package ai

import (
	"fmt"
	"time"
)

// DefaultTemperature is applied to every completion. It is not user-configurable.
const DefaultTemperature float32 = 0.7

type Config struct {
	APIKey  string
	BaseURL string

	// Optional attribution headers understood by OpenRouter.
	AppURL   string
	AppTitle string

	Timeout     time.Duration
	Temperature float32
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("provider base URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://openrouter.ai/api/v1",
		Timeout:     120 * time.Second,
		Temperature: DefaultTemperature,
	}
}
