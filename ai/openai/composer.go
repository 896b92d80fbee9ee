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


package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/deskrag/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Composer implements ai.Composer using an OpenAI-compatible chat model
// via langchaingo.
type Composer struct {
	llm    llms.Model
	logger *slog.Logger
}

// newComposer is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newComposer(config *ai.Config) (*Composer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithToken(config.APIKey),
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Composer{
		llm:    client,
		logger: slog.Default().With("component", "openai-composer"),
	}, nil
}

// NewComposer creates a new composer using the provided configuration.
//
// Returns ai.Composer interface to enforce abstraction.
func NewComposer(config *ai.Config) (ai.Composer, error) {
	return newComposer(config)
}

// SummarizeTicket produces a short summary of the supplied ticket context.
func (c *Composer) SummarizeTicket(ctx context.Context, ticketContext string) (string, error) {
	c.logger.Debug("summarizing ticket context", "length", len(ticketContext))

	prompt := fmt.Sprintf(summarizePromptTemplate, ticketContext)
	completion, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt)
	if err != nil {
		c.logger.Error("failed to generate summary", "err", err)
		return "", err
	}

	return strings.TrimSpace(completion), nil
}

// DraftReply drafts a support reply to the question, grounded on the
// supplied context of related resolutions.
func (c *Composer) DraftReply(ctx context.Context, question, ticketContext string) (string, error) {
	c.logger.Debug("drafting reply", "questionLength", len(question), "contextLength", len(ticketContext))

	prompt := fmt.Sprintf(draftReplyPromptTemplate, question, ticketContext)
	completion, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt)
	if err != nil {
		c.logger.Error("failed to draft reply", "err", err)
		return "", err
	}

	return strings.TrimSpace(completion), nil
}
