package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/pkg/config"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements the review reply generator on the OpenAI API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *tokenBucket
}

var _ providers.ReplyGenerator = (*Client)(nil)

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		limiter: newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}, nil
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseOutput struct {
	Content []responseContent `json:"content"`
}

type responseEnvelope struct {
	Output []responseOutput `json:"output"`
}

// GenerateReply returns an AI-drafted reply for a review.
func (c *Client) GenerateReply(ctx context.Context, rc providers.ReplyContext) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	payload := map[string]interface{}{
		"model": c.model,
		"input": []map[string]string{
			{"role": "system", "content": replyDraftSystemPrompt},
			{"role": "user", "content": buildReplyDraftUserPrompt(rc)},
		},
		"temperature":       0.7,
		"max_output_tokens": 300,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewExternalError("openai request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.NewExternalError(
			fmt.Sprintf("openai request failed with status %d", resp.StatusCode), nil)
	}

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", err
	}

	var text string
	for _, out := range envelope.Output {
		for _, content := range out.Content {
			if content.Type == "output_text" && content.Text != "" {
				text = content.Text
				break
			}
		}
		if text != "" {
			break
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewExternalError("openai returned an empty draft", nil)
	}

	return text, nil
}

// tokenBucket is a simple requests-per-minute limiter.
type tokenBucket struct {
	tokens chan struct{}
	done   chan struct{}
}

func newTokenBucket(rpm, burst int) *tokenBucket {
	if rpm < 0 {
		return nil // limiter disabled
	}
	if rpm == 0 {
		rpm = 60
	}
	if burst <= 0 {
		burst = 5
	}

	tb := &tokenBucket{
		tokens: make(chan struct{}, burst),
		done:   make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		tb.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case tb.tokens <- struct{}{}:
				default:
				}
			case <-tb.done:
				return
			}
		}
	}()

	return tb
}

// Wait blocks until a token is available or the context is done.
func (tb *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-tb.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts down the refill goroutine.
func (tb *tokenBucket) Stop() {
	close(tb.done)
}
