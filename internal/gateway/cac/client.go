// Package cac queries the corporate-registry API for RC-number lookups on
// behalf of the lookup rate gate.
package cac

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/doncapon/yemisshop-sub009/internal/usecase/lookup"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type lookupResp struct {
	RCNumber    string `json:"rcNumber"`
	CompanyName string `json:"approvedName"`
	CompanyType string `json:"companyType"`
	Address     string `json:"address"`
	Status      string `json:"status"`
}

func (c *Client) LookupRC(ctx context.Context, rcNumber string) (*lookup.CompanyProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/searches/"+url.PathEscape(rcNumber), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cac: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, lookup.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cac: unexpected status %d", resp.StatusCode)
	}

	var out lookupResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("cac: decode: %w", err)
	}
	return &lookup.CompanyProfile{
		RCNumber:    out.RCNumber,
		CompanyName: out.CompanyName,
		CompanyType: out.CompanyType,
		Address:     out.Address,
		Active:      out.Status == "ACTIVE",
	}, nil
}

var _ lookup.Provider = (*Client)(nil)
