// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package factory selects a chat-completion provider at startup. Nothing
// downstream inspects the concrete variant.
package factory

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/llm/anthropic"
	"github.com/teradata-labs/heddle/pkg/llm/openai"
	"github.com/teradata-labs/heddle/pkg/types"
)

// Config holds provider selection and credentials.
type Config struct {
	// Provider picks the variant: "anthropic-like" (default) or
	// "openai-compatible". The bare provider names are accepted as aliases.
	Provider string
	Model    string

	// BaseURL overrides the provider endpoint, for proxies and local
	// gateways. Falls back to LLM_BASE_URL.
	BaseURL string

	// Credentials. Empty values fall back to ANTHROPIC_API_KEY and
	// OPENAI_API_KEY respectively.
	AnthropicAPIKey string
	OpenAIAPIKey    string

	// Common settings
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Logger      *zap.Logger
}

// NewCompleter creates the configured chat-completion client.
func NewCompleter(cfg Config) (types.ChatCompleter, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "anthropic-like"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("LLM_BASE_URL")
	}

	switch provider {
	case "anthropic-like", "anthropic":
		return newAnthropicClient(cfg)
	case "openai-compatible", "openai":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func newAnthropicClient(cfg Config) (types.ChatCompleter, error) {
	apiKey := cfg.AnthropicAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured (set llm.anthropic_api_key or ANTHROPIC_API_KEY)")
	}

	return anthropic.NewClient(anthropic.Config{
		APIKey:      apiKey,
		Model:       cfg.Model,
		Endpoint:    cfg.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		Logger:      cfg.Logger,
	}), nil
}

func newOpenAIClient(cfg Config) (types.ChatCompleter, error) {
	apiKey := cfg.OpenAIAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key not configured (set llm.openai_api_key or OPENAI_API_KEY)")
	}

	return openai.NewClient(openai.Config{
		APIKey:      apiKey,
		Model:       cfg.Model,
		Endpoint:    cfg.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		Logger:      cfg.Logger,
	}), nil
}
