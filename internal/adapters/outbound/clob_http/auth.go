package clob_http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charleschow/polymarket-exec/internal/telemetry"
)

// Authenticate establishes L2 API credentials for the signing key: it tries
// to derive an existing key pair first and falls back to creating one. All
// subsequent requests are HMAC-signed with the result.
func (c *Client) Authenticate(ctx context.Context) error {
	creds, err := c.deriveAPIKey(ctx)
	if err != nil {
		telemetry.Debugf("clob_http: derive-api-key failed, creating: %v", err)
		creds, err = c.createAPIKey(ctx)
		if err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}

	c.setCreds(creds)
	telemetry.Infof("clob_http: authenticated address=%s", c.signer.Address().Hex())
	return nil
}

func (c *Client) deriveAPIKey(ctx context.Context) (APICreds, error) {
	return c.authRequest(ctx, http.MethodGet, "/auth/derive-api-key")
}

func (c *Client) createAPIKey(ctx context.Context) (APICreds, error) {
	return c.authRequest(ctx, http.MethodPost, "/auth/api-key")
}

// authRequest performs an L1 (key-signed) request. These are the only calls
// signed with the EIP-712 attestation instead of HMAC headers.
func (c *Client) authRequest(ctx context.Context, method, path string) (APICreds, error) {
	headers, err := c.signer.AuthHeaders(0)
	if err != nil {
		return APICreds{}, fmt.Errorf("auth headers: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return APICreds{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return APICreds{}, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return APICreds{}, fmt.Errorf("%s %s: status=%d", method, path, resp.StatusCode)
	}

	var creds APICreds
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return APICreds{}, fmt.Errorf("decode creds: %w", err)
	}
	if creds.Key == "" || creds.Secret == "" {
		return APICreds{}, fmt.Errorf("%s %s: empty credentials", method, path)
	}

	return creds, nil
}
