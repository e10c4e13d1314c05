// Package sms sends outbound text messages through the SMS provider's
// HTTP API. A nil client is a disabled client; all sends become no-ops.
package sms

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
	"callops_backend/platform/phone"
)

// Config is the subset of configuration the client needs.
type Config interface {
	GetSMSProviderURL() string
	GetSMSAPIKey() string
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// NewClient creates the SMS client, or nil when no provider is configured.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.GetSMSProviderURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetSMSProviderURL(), "/"),
		apiKey:  cfg.GetSMSAPIKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Send dispatches one message and returns the provider message id on
// acknowledgement.
func (c *Client) Send(ctx context.Context, from, to, body string) (string, error) {
	if c == nil {
		return "", nil
	}

	payload := sendRequest{
		From: phone.NormalizeE164(from),
		To:   phone.NormalizeE164(to),
		Body: body,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal sms payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", c.baseURL)
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
		return "", fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var ack sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return "", fmt.Errorf("decode sms ack: %w", err)
	}

	c.log.Info("sms dispatched", "to", payload.To, "message_id", ack.MessageID)
	return ack.MessageID, nil
}
