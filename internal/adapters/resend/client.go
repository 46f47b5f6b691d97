// Package resend delivers email through the Resend HTTP API.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/core"
	apperrors "github.com/target/title-doctor/internal/errors"
)

const (
	apiKeyEnv        = "RESEND_API_KEY"
	maxErrorBodySize = 4096
)

var _ core.Mailer = (*Client)(nil)

// Options configures a Client.
type Options struct {
	Config     config.ResendConfig
	HTTPClient *http.Client // Optional: defaults to a client with Config.Timeout
	Logger     *slog.Logger
}

// Client sends email with the Resend /emails endpoint.
type Client struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a Resend client from opts.
func NewClient(opts Options) *Client {
	cfg := opts.Config
	cfg.Sanitize()

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		from:    cfg.FromAddress,
		http:    hc,
		logger:  logger.With("component", "resend"),
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers email and returns the Resend message id. Every failure is
// reported with code notification, except a missing API key which is a
// configuration error.
func (c *Client) Send(ctx context.Context, email core.Email) (string, error) {
	if c.apiKey == "" {
		return "", apperrors.MissingCredential(apiKeyEnv)
	}

	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{email.To},
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    email.Text,
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode email")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "create resend request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeNotification, "resend request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.Wrap(
			fmt.Errorf("resend %s: %s", resp.Status, readErrorMessage(resp.Body)),
			apperrors.ErrCodeNotification, "failed to send email")
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeNotification, "decode resend response")
	}
	if out.ID == "" {
		return "", &apperrors.AppError{Code: apperrors.ErrCodeNotification, Message: "resend response has no email id"}
	}

	c.logger.DebugContext(ctx, "email accepted", "email_id", out.ID, "subject", email.Subject)
	return out.ID, nil
}

func readErrorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	var e struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && e.Message != "" {
		if e.Name != "" {
			return e.Name + ": " + e.Message
		}
		return e.Message
	}
	return strings.TrimSpace(string(raw))
}
