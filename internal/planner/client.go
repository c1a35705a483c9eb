// Package planner talks to an OpenAI-compatible chat completion endpoint to
// turn natural-language tasks into ordered command plans, and to judge when a
// task is complete.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const defaultRequestTimeout = 120 * time.Second

// Message is one chat turn in the planning conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options configures a planner client.
type Options struct {
	// BaseURL is the API root, e.g. https://api.openai.com/v1.
	BaseURL string
	// APIKey is the bearer token. Required.
	APIKey string
	// Model is the chat model identifier.
	Model string
	// Temperature is passed through to the completion request.
	Temperature float64
	// RequestTimeout bounds one completion round trip.
	RequestTimeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	// Logger receives structured request logs. May be nil.
	Logger *log.Logger
}

// Client calls the chat completion API.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	logger      *log.Logger
}

// NewClient validates options and builds a planner client.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("API key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, errors.New("model is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      opts.APIKey,
		model:       model,
		temperature: opts.Temperature,
		httpClient:  httpClient,
		logger:      opts.Logger,
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Messages    []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the conversation and returns the raw assistant reply.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c == nil {
		return "", errors.New("planner client is nil")
	}
	if len(messages) == 0 {
		return "", errors.New("at least one message is required")
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		if decoded.Error != nil && decoded.Error.Message != "" {
			return "", fmt.Errorf("chat completion failed (%d): %s", response.StatusCode, decoded.Error.Message)
		}
		return "", fmt.Errorf("chat completion failed with status %d", response.StatusCode)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	if c.logger != nil {
		c.logger.With("model", c.model, "latency_ms", time.Since(start).Milliseconds()).
			Debug("chat completion")
	}
	return decoded.Choices[0].Message.Content, nil
}

// PlanCommands asks the model for the next command plan and records the
// assistant turn in the conversation.
func (c *Client) PlanCommands(ctx context.Context, conversation *Conversation) (Plan, error) {
	if conversation == nil {
		return Plan{}, errors.New("conversation is required")
	}

	content, err := c.Complete(ctx, conversation.Messages())
	if err != nil {
		return Plan{}, err
	}

	plan, err := ParsePlan(content)
	if err != nil {
		return Plan{}, err
	}

	conversation.AddAssistant(content)
	return plan, nil
}

// AssessCompletion asks the model whether the original task is finished based
// on the conversation and command outputs so far. The probing question is sent
// with the request but only the assistant verdict joins the conversation.
func (c *Client) AssessCompletion(ctx context.Context, conversation *Conversation) (Assessment, error) {
	if conversation == nil {
		return Assessment{}, errors.New("conversation is required")
	}

	check := Message{
		Role: "user",
		Content: "Determine if the original task is complete based on the prior " +
			"conversation and command outputs. Respond with JSON including a " +
			"boolean 'done' field and a short 'summary' of what was achieved.",
	}

	content, err := c.Complete(ctx, append(conversation.Messages(), check))
	if err != nil {
		return Assessment{}, err
	}

	assessment, err := ParseAssessment(content)
	if err != nil {
		return Assessment{}, err
	}

	conversation.AddAssistant(content)
	return assessment, nil
}
