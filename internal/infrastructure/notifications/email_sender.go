package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/pkg/config"
)

// ResendEmailSender sends transactional email via the Resend API
type ResendEmailSender struct {
	apiKey      string
	fromAddress string
	baseURL     string
	httpClient  *http.Client
}

var _ providers.EmailSender = (*ResendEmailSender)(nil)

// NewResendEmailSender creates a new Resend sender
func NewResendEmailSender(cfg *config.EmailConfig) (*ResendEmailSender, error) {
	if cfg.APIKey == "" || cfg.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_API_KEY and EMAIL_FROM_ADDRESS must be set")
	}

	return &ResendEmailSender{
		apiKey:      cfg.APIKey,
		fromAddress: cfg.FromAddress,
		baseURL:     cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// ResendEmailRequest represents the send payload
type ResendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// ResendEmailResponse represents the API response
type ResendEmailResponse struct {
	ID string `json:"id"`
}

// Send delivers a single HTML email to the given recipients
func (s *ResendEmailSender) Send(ctx context.Context, to []string, subject, html string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	payload := ResendEmailRequest{
		From:    s.fromAddress,
		To:      to,
		Subject: subject,
		HTML:    html,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Resend API error (status %d): %s", resp.StatusCode, string(body))
	}

	var emailResp ResendEmailResponse
	if err := json.Unmarshal(body, &emailResp); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if emailResp.ID == "" {
		return fmt.Errorf("no email ID in response")
	}

	return nil
}
