// Package supplier talks to externally integrated suppliers' ordering APIs.
// Each purchase-order leg runs place -> pay -> receipt; the receipt fetch is
// best-effort. Timeouts and non-2xx responses fail the call.
package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/doncapon/yemisshop-sub009/internal/config"
	"github.com/doncapon/yemisshop-sub009/internal/usecase/purchase"
)

// Directory resolves a supplier id to its API endpoint and credentials.
type Directory interface {
	Endpoint(ctx context.Context, supplierID string) (baseURL, apiKey string, err error)
}

type Client struct {
	dir  Directory
	http *http.Client
}

func NewClient(dir Directory, cfg config.SupplierConfig) *Client {
	return &Client{
		dir:  dir,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type placeOrderResp struct {
	Reference string `json:"reference"`
}

type receiptResp struct {
	ReceiptURL string `json:"receiptUrl"`
}

func (c *Client) PlaceOrder(ctx context.Context, in purchase.PlaceOrderInput) (string, error) {
	baseURL, apiKey, err := c.dir.Endpoint(ctx, in.SupplierID)
	if err != nil {
		return "", err
	}

	var out placeOrderResp
	err = c.do(ctx, http.MethodPost, baseURL+"/orders", apiKey, map[string]any{
		"productId": in.ProductID,
		"qty":       in.Qty,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Reference == "" {
		return "", fmt.Errorf("supplier %s: empty order reference", in.SupplierID)
	}
	// Prefix with the supplier id so later calls can find the endpoint again.
	return in.SupplierID + ":" + out.Reference, nil
}

func (c *Client) PayOrder(ctx context.Context, externalRef string, amountKobo int64) error {
	baseURL, apiKey, upstream, err := c.endpointForRef(ctx, externalRef)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, baseURL+"/orders/"+upstream+"/pay", apiKey, map[string]any{
		"amountKobo": amountKobo,
		"currency":   "NGN",
	}, nil)
}

func (c *Client) FetchReceipt(ctx context.Context, externalRef string) (string, error) {
	baseURL, apiKey, upstream, err := c.endpointForRef(ctx, externalRef)
	if err != nil {
		return "", err
	}
	var out receiptResp
	if err := c.do(ctx, http.MethodGet, baseURL+"/orders/"+upstream+"/receipt", apiKey, nil, &out); err != nil {
		return "", err
	}
	if out.ReceiptURL == "" {
		return "", fmt.Errorf("supplier: empty receipt url for %s", externalRef)
	}
	return out.ReceiptURL, nil
}

// endpointForRef recovers the supplier from the reference prefix assigned at
// place time (refs are "<supplierID>:<upstream ref>").
func (c *Client) endpointForRef(ctx context.Context, externalRef string) (baseURL, apiKey, upstream string, err error) {
	supplierID, upstream, ok := splitRef(externalRef)
	if !ok {
		return "", "", "", fmt.Errorf("supplier: malformed reference %q", externalRef)
	}
	baseURL, apiKey, err = c.dir.Endpoint(ctx, supplierID)
	return baseURL, apiKey, upstream, err
}

func splitRef(ref string) (supplierID, upstream string, ok bool) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == ':' {
			return ref[:i], ref[i+1:], i > 0 && i < len(ref)-1
		}
	}
	return "", "", false
}

func (c *Client) do(ctx context.Context, method, url, apiKey string, body any, out any) error {
	var payload *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(b)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("supplier api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("supplier api: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("supplier api: decode: %w", err)
	}
	return nil
}

var _ purchase.Dispatcher = (*Client)(nil)
