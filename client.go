package zenodo

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	productionBaseURL = "https://zenodo.org"
	sandboxBaseURL    = "https://sandbox.zenodo.org"
)

// Client is the Zenodo deposit API client
type Client struct {
	config     *Config
	httpClient *http.Client
	// transferClient carries file uploads and downloads. It gets no
	// overall timeout because large transfers can legitimately run
	// longer than any fixed deadline.
	transferClient *http.Client
	apiBase        string
}

// Config holds client configuration
type Config struct {
	Token     string         // Zenodo personal access token
	Sandbox   bool           // Use sandbox.zenodo.org instead of zenodo.org
	BaseURL   string         // Base URL override (default derived from Sandbox)
	UserAgent string         // Optional custom user agent
	Timeout   int            // API request timeout in seconds (default: 30)
	Logger    *logrus.Logger // Optional; nil disables client logging
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		UserAgent: "compchem-dev/zenodo-deposit/1.0",
		Timeout:   30,
	}
}

// NewClient creates a new Zenodo API client.
// A token is optional - published records can be downloaded without
// credentials, deposit operations require a token and fail with
// *AuthError without one.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	// Apply defaults
	if config.BaseURL == "" {
		if config.Sandbox {
			config.BaseURL = sandboxBaseURL
		} else {
			config.BaseURL = productionBaseURL
		}
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultConfig().UserAgent
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
		transferClient: &http.Client{},
		apiBase:        strings.TrimRight(config.BaseURL, "/") + "/api",
	}, nil
}

// newRequest builds a request with the bearer token and user agent set
func (c *Client) newRequest(ctx context.Context, method, urlStr string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, err
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	return req, nil
}

// do executes an API request. Network faults map to *ServiceError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.debugf("%s %s", req.Method, req.URL.Path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Message: err.Error()}
	}
	c.debugf("%s %s -> %d", req.Method, req.URL.Path, resp.StatusCode)
	return resp, nil
}

// doTransfer executes a streaming upload or download request
func (c *Client) doTransfer(req *http.Request) (*http.Response, error) {
	c.debugf("%s %s (transfer)", req.Method, req.URL.Path)
	resp, err := c.transferClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Message: err.Error()}
	}
	c.debugf("%s %s -> %d", req.Method, req.URL.Path, resp.StatusCode)
	return resp, nil
}

func (c *Client) debugf(format string, args ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debugf(format, args...)
	}
}

// VerifyToken checks that the configured token is accepted by the
// selected environment. A 403 usually means the token is missing the
// deposit:write or deposit:actions scope.
func (c *Client) VerifyToken(ctx context.Context) error {
	if c.config.Token == "" {
		return &AuthError{Message: "no access token configured"}
	}

	req, err := c.newRequest(ctx, "GET", c.apiBase+"/deposit/depositions", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return &AuthError{
			StatusCode: resp.StatusCode,
			Message:    "token lacks required scopes (deposit:write, deposit:actions)",
		}
	}
	return checkStatus(resp)
}

// checkStatus maps a non-success response to the error taxonomy.
// Callers that want special handling for 404 check it before calling.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(body))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode, Message: message}
	case http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &RateLimitError{RetryAfter: retryAfter}
	default:
		return &ServiceError{StatusCode: resp.StatusCode, Message: message}
	}
}
