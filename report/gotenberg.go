// Package report converts rendered HTML documents into PDF through a
// Gotenberg instance.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/stockflow/stockflow/internal/shared"
)

// PageOptions maps onto Gotenberg's chromium form fields. Sizes are inches.
type PageOptions struct {
	PaperWidth  float64
	PaperHeight float64
	Margin      float64
	Landscape   bool
}

// A4 is the page setup used for printed budget requests.
var A4 = PageOptions{PaperWidth: 8.27, PaperHeight: 11.7, Margin: 0.4}

// Client wraps interactions with the Gotenberg API.
type Client struct {
	baseURL    string
	page       PageOptions
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string, page PageOptions) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		page:    page,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("report: ping: %w: %w", shared.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("report: gotenberg returned status %d: %w", resp.StatusCode, shared.ErrUpstream)
	}
	return nil
}

// RenderHTML converts a standalone HTML document into PDF.
func (c *Client) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, strings.NewReader(html)); err != nil {
		return nil, err
	}
	for name, value := range c.page.fields() {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report: render: %w: %w", shared.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("report: render failed with status %d: %s: %w", resp.StatusCode, bytes.TrimSpace(msg), shared.ErrUpstream)
	}
	return io.ReadAll(resp.Body)
}

func (p PageOptions) fields() map[string]string {
	out := map[string]string{"printBackground": "true"}
	if p.PaperWidth > 0 && p.PaperHeight > 0 {
		out["paperWidth"] = formatInches(p.PaperWidth)
		out["paperHeight"] = formatInches(p.PaperHeight)
	}
	if p.Margin > 0 {
		m := formatInches(p.Margin)
		out["marginTop"], out["marginBottom"], out["marginLeft"], out["marginRight"] = m, m, m, m
	}
	if p.Landscape {
		out["landscape"] = "true"
	}
	return out
}

func formatInches(v float64) string {
	return fmt.Sprintf("%g", v)
}
