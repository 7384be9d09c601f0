// Postmark transactional email client.
//
// Only the single-message endpoint is used: POST {base}email with the
// server token in X-Postmark-Server-Token.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hermod-app/hermod/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultPostmarkTimeout = 5 * time.Second

type PostmarkClient struct {
	baseURL     *url.URL
	serverToken string
	from        string
	httpClient  *http.Client
}

// PostmarkEmail is the request body of the email endpoint.
type PostmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody"`
}

// PostmarkResponse is the subset of the reply we read. ErrorCode 0 means
// the message was accepted.
type PostmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID,omitempty"`
}

func NewPostmarkClient(cfg config.PostmarkConfig) (*PostmarkClient, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid POSTMARK_BASE_URL: %w", err)
	}

	timeout := defaultPostmarkTimeout
	if raw := strings.TrimSpace(cfg.Timeout); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return nil, fmt.Errorf("invalid POSTMARK_TIMEOUT %q", raw)
		}
	}

	return &PostmarkClient{
		baseURL:     baseURL,
		serverToken: strings.TrimSpace(cfg.ServerToken),
		from:        strings.TrimSpace(cfg.From),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// IsConfigured reports whether both the server token and sender are set.
func (c *PostmarkClient) IsConfigured() bool {
	return c.serverToken != "" && c.from != ""
}

func (c *PostmarkClient) SendEmail(ctx context.Context, to, subject, body string) error {
	if !c.IsConfigured() {
		return fmt.Errorf("postmark client is not configured")
	}

	payload, err := json.Marshal(PostmarkEmail{
		From:     c.from,
		To:       to,
		Subject:  subject,
		TextBody: body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: "email"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pmResp PostmarkResponse
		if json.Unmarshal(respBody, &pmResp) == nil && pmResp.Message != "" {
			return fmt.Errorf("postmark API error (status %d, code %d): %s", resp.StatusCode, pmResp.ErrorCode, pmResp.Message)
		}
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}
	return nil
}
