package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEmailJSEndpoint is the EmailJS REST send endpoint.
const DefaultEmailJSEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// EmailJSClient sends messages through the EmailJS REST API.
type EmailJSClient struct {
	endpoint   string
	creds      Credentials
	httpClient *http.Client
}

// NewEmailJSClient constructs a client. An empty endpoint selects the public
// EmailJS API.
func NewEmailJSClient(endpoint string, creds Credentials) *EmailJSClient {
	if endpoint == "" {
		endpoint = DefaultEmailJSEndpoint
	}
	return &EmailJSClient{
		endpoint: endpoint,
		creds:    creds,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send posts msg to EmailJS.
func (c *EmailJSClient) Send(ctx context.Context, msg Message) (Result, error) {
	if c.creds.PublicKey == "" {
		return Result{}, fmt.Errorf("%w: emailjs public key not configured", ErrRejected)
	}
	payload, err := json.Marshal(emailJSRequest{
		ServiceID:      msg.ServiceID,
		TemplateID:     msg.TemplateID,
		UserID:         c.creds.PublicKey,
		AccessToken:    c.creds.PrivateKey,
		TemplateParams: msg.Params,
	})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("emailjs: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(body))
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("%w: emailjs returned status %d: %s", ErrRejected, resp.StatusCode, text)
	}
	return Result{Status: resp.StatusCode, Text: text, Transport: "emailjs"}, nil
}
