// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/deskrag/core"
)

const (
	// MaxSafeChars bounds text length before transmission to the
	// embedding API. At a conservative 4 chars/token this stays well
	// inside common embedding model token budgets.
	MaxSafeChars = 6000
)

// Config holds configuration for AI service providers.
type Config struct {
	// APIKey authenticates against the embedding and chat APIs.
	APIKey string

	// BaseURL is the API base, e.g. "https://api.openai.com/v1".
	BaseURL string

	// EmbeddingModel is the embedding model identifier.
	// Example: "text-embedding-3-small"
	EmbeddingModel string

	// ChatModel is the model used for summary and reply composition.
	ChatModel string

	// Dimension is the fixed embedding output dimension, set at
	// deployment. Common values are 768 and 1536.
	Dimension int

	// RequestTimeout bounds each embedding request. Default 60 s.
	RequestTimeout time.Duration

	// MaxAttempts is the retry budget per request. Default 5.
	MaxAttempts int

	// RetryBaseDelay is the base backoff delay, doubling per attempt.
	// Default 1 s.
	RetryBaseDelay time.Duration

	// MinRequestInterval is the minimum pause between successive
	// requests. Default 20 ms.
	MinRequestInterval time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = baseURL
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModel sets the composition model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithDimension sets the embedding output dimension.
func WithDimension(dimension int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dimension
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = timeout
	}
}

// WithRetry sets the retry budget and base backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxAttempts = maxAttempts
		c.RetryBaseDelay = baseDelay
	}
}

// WithMinRequestInterval sets the minimum pause between requests.
func WithMinRequestInterval(interval time.Duration) ConfigOption {
	return func(c *Config) {
		c.MinRequestInterval = interval
	}
}

// DefaultConfig returns a Config with defaults for the OpenAI embeddings
// API. The API key must still be supplied.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://api.openai.com/v1",
		EmbeddingModel:     "text-embedding-3-small",
		ChatModel:          "gpt-4o-mini",
		Dimension:          1536,
		RequestTimeout:     60 * time.Second,
		MaxAttempts:        5,
		RetryBaseDelay:     1 * time.Second,
		MinRequestInterval: 20 * time.Millisecond,
	}
}

// NewConfig creates a Config with default values and applies the provided
// options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in canonical form.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.APIKey == "" {
		return fmt.Errorf("%w: ai config: APIKey is required", core.ErrConfig)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("%w: ai config: BaseURL is required", core.ErrConfig)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: ai config: EmbeddingModel is required", core.ErrConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: ai config: Dimension must be positive", core.ErrConfig)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: ai config: MaxAttempts must be positive", core.ErrConfig)
	}
	return nil
}
