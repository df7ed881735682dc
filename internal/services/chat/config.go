// File: internal/services/chat/config.go
package chat

import (
	"fmt"
	"time"

	"github.com/iyunix/go-chatrelay/internal/services/ai"
)

const (
	// SidebarSize is how many recent conversations the sidebar shows.
	SidebarSize = 15

	titleTimeout  = 30 * time.Second
	dbSaveTimeout = 5 * time.Second // persistence after the request context is gone
)

type Config struct {
	Temperature     float32
	ProviderTimeout time.Duration // synchronous completions
	StreamTimeout   time.Duration // whole streaming turn, upstream open to last fragment
	TitleTimeout    time.Duration
	SaveTimeout     time.Duration

	// HistoryLimit caps the messages sent per turn. Zero sends the full history.
	HistoryLimit int
}

func (c *Config) Validate() error {
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	if c.StreamTimeout <= 0 {
		return fmt.Errorf("stream timeout must be positive")
	}
	if c.TitleTimeout <= 0 || c.SaveTimeout <= 0 {
		return fmt.Errorf("title and save timeouts must be positive")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history limit cannot be negative")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Temperature:     ai.DefaultTemperature,
		ProviderTimeout: 120 * time.Second,
		StreamTimeout:   5 * time.Minute,
		TitleTimeout:    titleTimeout,
		SaveTimeout:     dbSaveTimeout,
	}
}
