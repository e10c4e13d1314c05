// Package links generates tenant-scoped tracked booking links.
// A nil client is a disabled client; callers fall through to the
// tenant's static link or the platform default.
package links

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"callops_backend/platform/logger"

	"github.com/google/uuid"
)

// Config is the subset of configuration the client needs.
type Config interface {
	GetLinksServiceURL() string
	GetLinksAPIKey() string
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

type generateRequest struct {
	OrganizationID string `json:"organization_id"`
	Campaign       string `json:"campaign"`
	Ref            string `json:"ref,omitempty"`
}

type generateResponse struct {
	URL string `json:"url"`
}

// NewClient creates the tracked-link client, or nil when no service is
// configured.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.GetLinksServiceURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetLinksServiceURL(), "/"),
		apiKey:  cfg.GetLinksAPIKey(),
		http:    &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

// GenerateBookingLink asks the link service for a tracked booking URL for
// the tenant. ref ties the click back to the originating call.
func (c *Client) GenerateBookingLink(ctx context.Context, orgID uuid.UUID, ref string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("link service not configured")
	}

	payload := generateRequest{
		OrganizationID: orgID.String(),
		Campaign:       "post-call-followup",
		Ref:            ref,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal link payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/links", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("link request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("link service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode link response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("link service returned empty url")
	}
	return out.URL, nil
}
