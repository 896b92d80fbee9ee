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


package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/poiesic/deskrag/core"
)

// Vector store backends.
const (
	BackendBadger   = "badger"
	BackendPgvector = "pgvector"
)

// Config holds the process configuration, loaded from the environment
// with an optional .env file.
type Config struct {
	// Ticketing platform credentials. Optional: without them ingestion
	// endpoints fail cleanly while search remains available.
	ZendeskSubdomain string
	ZendeskEmail     string
	ZendeskAPIToken  string

	// Embedding and composition provider. The API key is required.
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	EmbeddingModel string
	ChatModel      string
	EmbeddingDim   int

	// Vector store binding.
	VectorBackend string
	BadgerPath    string
	DatabaseURL   string
	VectorTable   string

	HTTPPort  string
	SourceTag string
	LogLevel  string
}

// Load reads the .env file if present, then the environment, and
// validates the result. Missing embedding or vector-store configuration
// is fatal; missing ticketing credentials are not.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment variables")
	}

	cfg := &Config{
		ZendeskSubdomain: getEnv("ZENDESK_SUBDOMAIN", ""),
		ZendeskEmail:     getEnv("ZENDESK_EMAIL", ""),
		ZendeskAPIToken:  getEnv("ZENDESK_API_TOKEN", ""),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", ""),
		ChatModel:      getEnv("CHAT_MODEL", ""),
		EmbeddingDim:   getEnvAsInt("EMBEDDING_DIMENSION", 1536),

		VectorBackend: getEnv("VECTOR_BACKEND", BackendBadger),
		BadgerPath:    getEnv("BADGER_PATH", "./data/vectors"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		VectorTable:   getEnv("VECTOR_TABLE", "deskrag_vectors"),

		HTTPPort:  getEnv("HTTP_PORT", "8080"),
		SourceTag: getEnv("SOURCE_TAG", "deskrag"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is required", core.ErrConfig)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: EMBEDDING_DIMENSION must be positive", core.ErrConfig)
	}

	switch c.VectorBackend {
	case BackendBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("%w: BADGER_PATH is required for the badger backend", core.ErrConfig)
		}
	case BackendPgvector:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the pgvector backend", core.ErrConfig)
		}
		if c.VectorTable == "" {
			return fmt.Errorf("%w: VECTOR_TABLE is required for the pgvector backend", core.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown vector backend %q", core.ErrConfig, c.VectorBackend)
	}
	return nil
}

// HasTicketing reports whether ticketing-platform credentials are fully
// configured.
func (c *Config) HasTicketing() bool {
	return c.ZendeskSubdomain != "" && c.ZendeskEmail != "" && c.ZendeskAPIToken != ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
