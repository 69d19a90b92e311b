package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MailSender delivers a rendered message.
type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailAddress is a display name plus address.
type MailAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// MailMessage is the transactional-mail API payload.
type MailMessage struct {
	Sender      MailAddress   `json:"sender"`
	To          []MailAddress `json:"to"`
	Subject     string        `json:"subject"`
	HTMLContent string        `json:"htmlContent"`
}

// HTTPMailClient posts messages to a Brevo-style SMTP API.
type HTTPMailClient struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

func NewHTTPMailClient(endpoint, apiKey string) *HTTPMailClient {
	return &HTTPMailClient{
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

func (c *HTTPMailClient) Send(ctx context.Context, msg MailMessage) error {
	if c.endpoint == "" {
		return errors.New("mail api url not configured")
	}
	if len(msg.To) == 0 {
		return errors.New("mail has no recipient")
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail api returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
