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

// Package openai implements the openai-compatible chat-completion client.
// Unlike the Messages API, system messages ride inline in the messages
// array, so the conversation is forwarded as-is.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/types"
)

const (
	// DefaultModel is the default chat model
	DefaultModel = "gpt-4.1"
	// DefaultEndpoint is the default Chat Completions endpoint
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 120 * time.Second
)

// Client implements types.ChatCompleter against the Chat Completions API.
type Client struct {
	apiKey      string
	model       string
	endpoint    string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger
}

// Config holds configuration for the openai-compatible client.
type Config struct {
	APIKey      string
	Model       string        // Default: gpt-4.1
	Endpoint    string        // Default: https://api.openai.com/v1/chat/completions
	Timeout     time.Duration // Default: 120s
	MaxTokens   int           // Default: 2000
	Temperature float64       // Default: 0.7
	Logger      *zap.Logger
}

// NewClient creates a new openai-compatible client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		// Check environment variable first, then use default
		if envModel := os.Getenv("OPENAI_DEFAULT_MODEL"); envModel != "" {
			config.Model = envModel
		} else {
			config.Model = DefaultModel
		}
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = types.DefaultMaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = types.DefaultTemperature
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Client{
		apiKey:      config.APIKey,
		model:       config.Model,
		endpoint:    config.Endpoint,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		logger:      config.Logger,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "openai-compatible"
}

// Model returns the default model identifier.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the conversation and returns the generated text.
func (c *Client) Complete(ctx context.Context, messages []types.Message, opts types.CompletionOptions) (*types.CompletionResponse, error) {
	apiMessages := convertMessages(messages)
	if len(apiMessages) == 0 {
		return nil, types.NewValidationError("at least one message is required")
	}

	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := c.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	temperature := c.temperature
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}

	req := &chatCompletionRequest{
		Model:       model,
		Messages:    apiMessages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, types.NewProviderError("chat completion contained no content")
	}

	c.logger.Debug("openai completion",
		zap.String("model", resp.Model),
		zap.String("finish_reason", resp.Choices[0].FinishReason),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return &types.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// convertMessages maps conversation messages straight onto the wire shape.
// System messages keep their position in the array.
func convertMessages(messages []types.Message) []chatMessage {
	apiMessages := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem, types.RoleUser, types.RoleAssistant:
			apiMessages = append(apiMessages, chatMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		}
	}
	return apiMessages
}

// callAPI makes the HTTP request to the Chat Completions endpoint.
func (c *Client) callAPI(ctx context.Context, req *chatCompletionRequest) (*chatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, types.NewProviderError("chat completion request failed").WithCause(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, types.NewProviderError("failed to read chat completion response").WithCause(err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, types.NewProviderError("chat completion API error (status %d): %s",
			httpResp.StatusCode, string(respBody)).WithDetail("status", httpResp.StatusCode)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, types.NewProviderError("failed to unmarshal chat completion response").WithCause(err)
	}

	return &resp, nil
}

// Ensure Client implements ChatCompleter.
var _ types.ChatCompleter = (*Client)(nil)
