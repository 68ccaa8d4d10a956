package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/existflow/caldo/internal/logger"
)

// Client is the HTTP implementation of Repository.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// Options configures a Client.
type Options struct {
	URL           string
	Username      string
	Password      string
	AllowInsecure bool // skip TLS verification
	Timeout       time.Duration
}

// NewClient creates an HTTP repository client. The URL must be non-empty;
// callers with no remote configured should not construct a client at all.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("remote URL is empty")
	}
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("invalid remote URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport
	if opts.AllowInsecure {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		baseURL:  opts.URL,
		username: opts.Username,
		password: opts.Password,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// FetchAll implements Repository.
func (c *Client) FetchAll(ctx context.Context) (Inventory, error) {
	u := c.baseURL + "/api/v1/all"
	logger.Debug("HTTP Request", logger.F("method", "GET"), logger.F("url", u))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Inventory{}, err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("HTTP request failed", logger.F("error", err), logger.F("url", u))
		return Inventory{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		logger.Error("Fetch failed",
			logger.F("status", resp.StatusCode),
			logger.F("response", string(respBody)))
		return Inventory{}, fmt.Errorf("server error: %s", string(respBody))
	}

	var inv Inventory
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return Inventory{}, fmt.Errorf("failed to decode inventory: %w", err)
	}

	logger.Info("Fetched remote snapshot",
		logger.F("tasks", len(inv.Tasks)),
		logger.F("calendars", len(inv.Calendars)))
	return inv, nil
}

// Push implements Repository.
func (c *Client) Push(ctx context.Context, op Op) error {
	body, err := json.Marshal(op)
	if err != nil {
		return err
	}

	u := c.baseURL + "/api/v1/mutations"
	logger.Debug("HTTP Request",
		logger.F("method", "POST"),
		logger.F("url", u),
		logger.F("kind", op.Kind),
		logger.F("uid", op.Task.UID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("HTTP request failed", logger.F("error", err), logger.F("url", u))
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound, http.StatusGone, http.StatusPreconditionFailed:
		// The resource moved on without us; retrying the same op can
		// never succeed.
		return fmt.Errorf("push %s %s: %w", op.Kind, op.Task.UID, ErrVanished)
	default:
		respBody, _ := io.ReadAll(resp.Body)
		logger.Error("Push failed",
			logger.F("status", resp.StatusCode),
			logger.F("response", string(respBody)))
		return fmt.Errorf("server error: %s", string(respBody))
	}
}
