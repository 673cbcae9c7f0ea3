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

// Package anthropic implements the anthropic-like chat-completion client.
// System messages are extracted from the message list and sent out-of-band
// in the request's top-level system field, as the Messages API requires.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/types"
)

const (
	// DefaultModel is the default Claude model
	DefaultModel = "claude-sonnet-4-5-20250929"
	// DefaultEndpoint is the default Anthropic API endpoint
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 120 * time.Second
)

// Client implements types.ChatCompleter against Anthropic's Messages API.
type Client struct {
	apiKey      string
	model       string
	endpoint    string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger
}

// Config holds configuration for the anthropic-like client.
type Config struct {
	APIKey      string
	Model       string        // Default: claude-sonnet-4-5-20250929
	Endpoint    string        // Default: https://api.anthropic.com/v1/messages
	Timeout     time.Duration // Default: 120s
	MaxTokens   int           // Default: 2000
	Temperature float64       // Default: 0.7
	Logger      *zap.Logger
}

// NewClient creates a new anthropic-like client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		// Check environment variable first, then use default
		if envModel := os.Getenv("ANTHROPIC_DEFAULT_MODEL"); envModel != "" {
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
	return "anthropic-like"
}

// Model returns the default model identifier.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the conversation and returns the generated text.
func (c *Client) Complete(ctx context.Context, messages []types.Message, opts types.CompletionOptions) (*types.CompletionResponse, error) {
	system, apiMessages := convertMessages(messages)
	if len(apiMessages) == 0 {
		return nil, types.NewValidationError("at least one non-system message is required")
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

	req := &messagesRequest{
		Model:       model,
		Messages:    apiMessages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      system,
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, types.NewProviderError("anthropic response contained no text content")
	}

	c.logger.Debug("anthropic completion",
		zap.String("model", resp.Model),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens))

	return &types.CompletionResponse{
		Content: content.String(),
		Model:   resp.Model,
		Usage: types.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// convertMessages splits out system messages for the top-level system field
// and maps the rest to API messages.
func convertMessages(messages []types.Message) (string, []apiMessage) {
	var systemPrompts []string
	var apiMessages []apiMessage

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			if msg.Content != "" {
				systemPrompts = append(systemPrompts, msg.Content)
			}
		case types.RoleUser, types.RoleAssistant:
			apiMessages = append(apiMessages, apiMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		}
	}

	return strings.Join(systemPrompts, "\n\n"), apiMessages
}

// callAPI makes the HTTP request to Anthropic's API.
func (c *Client) callAPI(ctx context.Context, req *messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, types.NewProviderError("anthropic request failed").WithCause(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, types.NewProviderError("failed to read anthropic response").WithCause(err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, types.NewProviderError("anthropic API error (status %d): %s",
			httpResp.StatusCode, string(respBody)).WithDetail("status", httpResp.StatusCode)
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, types.NewProviderError("failed to unmarshal anthropic response").WithCause(err)
	}

	return &resp, nil
}

// Ensure Client implements ChatCompleter.
var _ types.ChatCompleter = (*Client)(nil)
