// File: internal/services/ai/tokens.go
package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// TokenCounter estimates the token length of a message. ok is false when no estimate is available.
type TokenCounter interface {
	CountTokens(text string) (count int, ok bool)
}

// TiktokenCounter loads its encoding on first use. A load failure disables counting for the process.
type TiktokenCounter struct {
	encoding string
	logger   Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func NewTiktokenCounter(logger Logger) *TiktokenCounter {
	return &TiktokenCounter{encoding: defaultEncoding, logger: logger}
}

// Warm loads the encoding. The first load fetches BPE ranks over the network,
// so call it at startup rather than leaving it to the first saved message.
func (c *TiktokenCounter) Warm() error {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding(c.encoding)
		if c.err != nil {
			c.logger.Warn("token counting disabled", "encoding", c.encoding, "error", c.err)
		}
	})
	return c.err
}

func (c *TiktokenCounter) CountTokens(text string) (int, bool) {
	if c.Warm() != nil {
		return 0, false
	}
	return len(c.enc.Encode(text, nil, nil)), true
}
