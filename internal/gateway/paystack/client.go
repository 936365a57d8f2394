// Package paystack is the external transfer-provider client used by the
// payout engine. Amounts are integer kobo; every call carries a bounded
// timeout and any timeout, non-2xx response or malformed body is a failure.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/doncapon/yemisshop-sub009/internal/config"
	"github.com/doncapon/yemisshop-sub009/internal/usecase/payout"
)

type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(cfg config.PaystackConfig) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type recipientData struct {
	RecipientCode string `json:"recipient_code"`
}

type transferData struct {
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
}

func (c *Client) CreateRecipient(ctx context.Context, bank payout.BankAccount) (string, error) {
	body := map[string]string{
		"type":           "nuban",
		"name":           bank.AccountName,
		"account_number": bank.AccountNumber,
		"bank_code":      bank.BankCode,
		"currency":       "NGN",
	}
	var data recipientData
	if err := c.post(ctx, "/transferrecipient", body, &data); err != nil {
		return "", err
	}
	if data.RecipientCode == "" {
		return "", fmt.Errorf("paystack: empty recipient code")
	}
	return data.RecipientCode, nil
}

func (c *Client) InitiateTransfer(ctx context.Context, recipientCode string, amountKobo int64, reason string) (string, error) {
	body := map[string]any{
		"source":    "balance",
		"recipient": recipientCode,
		"amount":    amountKobo,
		"currency":  "NGN",
		"reason":    reason,
	}
	var data transferData
	if err := c.post(ctx, "/transfer", body, &data); err != nil {
		return "", err
	}
	ref := data.Reference
	if ref == "" {
		ref = data.TransferCode
	}
	if ref == "" {
		return "", fmt.Errorf("paystack: empty transfer reference")
	}
	return ref, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paystack: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paystack: %s: unexpected status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("paystack: %s: decode: %w", path, err)
	}
	if !env.Status {
		return fmt.Errorf("paystack: %s: %s", path, env.Message)
	}
	return json.Unmarshal(env.Data, out)
}

var _ payout.TransferProvider = (*Client)(nil)
