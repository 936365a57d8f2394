// Package termii sends SMS/WhatsApp messages through the Termii API. It
// implements notify.Sender; callers treat delivery as best-effort.
package termii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/doncapon/yemisshop-sub009/internal/config"
	"github.com/doncapon/yemisshop-sub009/internal/notify"
)

type Client struct {
	baseURL  string
	apiKey   string
	senderID string
	http     *http.Client
}

func NewClient(cfg config.NotifyConfig) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		senderID: cfg.SenderID,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Send(ctx context.Context, destination, message string) error {
	payload, err := json.Marshal(map[string]string{
		"api_key": c.apiKey,
		"to":      destination,
		"from":    c.senderID,
		"sms":     message,
		"type":    "plain",
		"channel": "generic",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sms/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("termii: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("termii: unexpected status %d", resp.StatusCode)
	}
	return nil
}

var _ notify.Sender = (*Client)(nil)
