package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	healthPath = "/chat/health"
	chatPath   = "/chat/"

	// maxErrorBody bounds how much of a failed response body ends up in an error.
	maxErrorBody = 512
)

// ChatRequest is the body of POST /chat/.
type ChatRequest struct {
	Message string      `json:"message"`
	History []chat.Turn `json:"history"`
}

// ChatResponse is the body returned by POST /chat/ on success.
type ChatResponse struct {
	Response string `json:"response"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s %s: HTTP error! status: %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client talks to the chat backend rooted at an API base URL such as http://localhost:8000/api.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

var _ chat.Backend = &Client{}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every request. Zero keeps requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("chat client: empty api base")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// Health queries GET {base}/chat/health.
func (c *Client) Health(ctx context.Context) (chat.HealthReport, error) {
	var report chat.HealthReport
	if err := c.do(ctx, http.MethodGet, healthPath, nil, &report); err != nil {
		return chat.HealthReport{}, err
	}
	return report, nil
}

// Send posts one message with the backend-format history and returns the reply text.
func (c *Client) Send(ctx context.Context, message string, history []chat.Turn) (string, error) {
	if history == nil {
		history = []chat.Turn{}
	}
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, chatPath, ChatRequest{Message: message, History: history}, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := c.baseURL + path
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	log.Debug().
		Str("component", "client").
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s response", method, url)
	}
	return nil
}
