package clob_http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/charleschow/polymarket-exec/internal/adapters/polymarket_auth"
	"github.com/charleschow/polymarket-exec/internal/telemetry"
)

// APICreds are the L2 credentials derived from the signing key via the
// /auth endpoints. They authenticate every trading request.
type APICreds struct {
	Key        string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

type tokenMeta struct {
	tickSize decimal.Decimal
	feeBps   int64
	negRisk  bool
	hasTick  bool
	hasFee   bool
	hasNeg   bool
}

// Client talks to the Polymarket CLOB REST API. Read and write traffic get
// separate rate limiters; every request after authentication carries L2
// HMAC headers.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	signer       *polymarket_auth.Signer
	readLimiter  *rate.Limiter
	writeLimiter *rate.Limiter

	credsMu sync.RWMutex
	creds   APICreds

	// Per-token metadata warmed by prefetch; read by order building.
	metaMu sync.RWMutex
	meta   map[string]*tokenMeta
}

func NewClient(baseURL string, signer *polymarket_auth.Signer, readPerSec, writePerSec int) *Client {
	if readPerSec <= 0 {
		readPerSec = 20
	}
	if writePerSec <= 0 {
		writePerSec = 10
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		signer:       signer,
		readLimiter:  rate.NewLimiter(rate.Limit(readPerSec), readPerSec),
		writeLimiter: rate.NewLimiter(rate.Limit(writePerSec), writePerSec),
		meta:         make(map[string]*tokenMeta),
	}
}

// Signer exposes the trading identity for order construction.
func (c *Client) Signer() *polymarket_auth.Signer { return c.signer }

func (c *Client) setCreds(creds APICreds) {
	c.credsMu.Lock()
	c.creds = creds
	c.credsMu.Unlock()
}

func (c *Client) getCreds() APICreds {
	c.credsMu.RLock()
	defer c.credsMu.RUnlock()
	return c.creds
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	lim := c.readLimiter
	if method != http.MethodGet {
		lim = c.writeLimiter
	}
	waitStart := time.Now()
	if err := lim.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}
	telemetry.Metrics.RateLimiterWait.Record(time.Since(waitStart))

	var payload []byte
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal body: %w", err)
		}
		payload = data
		bodyReader = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if err := c.signL2(req, method, path, payload); err != nil {
		return nil, 0, fmt.Errorf("sign: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	telemetry.Debugf("clob_http: %s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start))

	return respBody, resp.StatusCode, nil
}

// signL2 sets the POLY_* HMAC headers. No-op until credentials are derived;
// public market-data endpoints don't need them.
func (c *Client) signL2(req *http.Request, method, path string, body []byte) error {
	creds := c.getCreds()
	if creds.Key == "" {
		return nil
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)

	secret, err := base64.URLEncoding.DecodeString(creds.Secret)
	if err != nil {
		return fmt.Errorf("decode api secret: %w", err)
	}

	message := ts + method + path
	if len(body) > 0 {
		message += string(body)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("POLY_ADDRESS", c.signer.Address().Hex())
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_API_KEY", creds.Key)
	req.Header.Set("POLY_PASSPHRASE", creds.Passphrase)

	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, int, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string, body any) ([]byte, int, error) {
	return c.do(ctx, http.MethodDelete, path, body)
}
