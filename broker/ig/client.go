// Package ig implements the broker adapter for the IG REST dealing API.
package ig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/realKyawSwar/igfx-bot-timescale-update/broker"
	"github.com/sirupsen/logrus"
)

const (
	// DemoURL is the IG demo environment.
	DemoURL = "https://demo-api.ig.com/gateway/deal"
	// LiveURL is the IG production environment.
	LiveURL = "https://api.ig.com/gateway/deal"
)

// Credentials holds the IG session inputs, normally sourced from the
// environment.
type Credentials struct {
	APIKey     string
	Identifier string
	Password   string
	AccountID  string // optional; switches account after login
}

// Client is an authenticated IG REST client. Session tokens are refreshed
// lazily when the API reports them expired.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	log        *logrus.Logger

	mu            sync.Mutex
	cst           string
	securityToken string
}

// NewClient builds a client for the demo or live environment. It does not
// touch the network; the session is created on first use.
func NewClient(creds Credentials, demo bool, log *logrus.Logger) *Client {
	baseURL := LiveURL
	if demo {
		baseURL = DemoURL
	}
	if log == nil {
		log = logrus.New()
	}
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		log:     log,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type sessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login creates an IG session and captures the CST and security tokens.
func (c *Client) Login(ctx context.Context) error {
	body, _ := json.Marshal(sessionRequest{
		Identifier: c.creds.Identifier,
		Password:   c.creds.Password,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session", bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req, 2, false)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &broker.TransportError{Op: "login", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ig login: %s", apiErrorCode(resp.Body))
	}

	c.mu.Lock()
	c.cst = resp.Header.Get("CST")
	c.securityToken = resp.Header.Get("X-SECURITY-TOKEN")
	c.mu.Unlock()

	c.log.WithField("account", c.creds.AccountID).Info("ig session created")
	return nil
}

// Logout ends the session. Failures are logged, not returned; the session
// expires server-side regardless.
func (c *Client) Logout(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/session", nil)
	if err != nil {
		return
	}
	c.setHeaders(req, 1, true)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("ig logout failed")
		return
	}
	resp.Body.Close()
	c.log.Info("ig session ended")
}

func (c *Client) setHeaders(req *http.Request, version int, authed bool) {
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json; charset=UTF-8")
	req.Header.Set("X-IG-API-KEY", c.creds.APIKey)
	req.Header.Set("Version", fmt.Sprintf("%d", version))
	if authed {
		c.mu.Lock()
		req.Header.Set("CST", c.cst)
		req.Header.Set("X-SECURITY-TOKEN", c.securityToken)
		c.mu.Unlock()
	}
}

// do runs an authenticated request and decodes the JSON response into out.
// Network failures come back as TransportError; non-2xx responses as a
// plain error carrying the IG errorCode.
func (c *Client) do(ctx context.Context, method, path string, version int, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	c.setHeaders(req, version, true)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &broker.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ig %s %s: status %d: %s", method, path, resp.StatusCode, apiErrorCode(resp.Body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ig %s %s: decode response: %w", method, path, err)
	}
	return nil
}

func apiErrorCode(r io.Reader) string {
	var e struct {
		ErrorCode string `json:"errorCode"`
	}
	if err := json.NewDecoder(r).Decode(&e); err != nil || e.ErrorCode == "" {
		return "unknown error"
	}
	return e.ErrorCode
}
