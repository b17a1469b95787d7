package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultBackoff = 200 * time.Millisecond
	MaxBackoff     = 5 * time.Second
)

// Client envuelve un retryablehttp.Client: reintenta errores de red, 5xx y 429
// con backoff lineal.
type Client struct {
	HTTP *retryablehttp.Client
}

// New crea un Client; retries=0 hace un solo intento.
func New(timeout time.Duration, retries int) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retries < 0 {
		retries = 0
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = timeout
	rc.RetryMax = retries
	rc.RetryWaitMin = DefaultBackoff
	rc.RetryWaitMax = MaxBackoff
	rc.Backoff = retryablehttp.LinearJitterBackoff
	rc.Logger = nil
	// devuelve la última respuesta para armar el HTTPError
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{HTTP: rc}
}

// SetBackoff ajusta la espera entre reintentos.
func (c *Client) SetBackoff(min, max time.Duration) {
	c.HTTP.RetryWaitMin = min
	c.HTTP.RetryWaitMax = max
}

// HTTPError representa una respuesta no-2xx.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, e.Body)
}

// DoJSON serializa in (si no es nil), hace el request y decodifica en out (si no es nil).
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, in, out any) error {
	if c == nil || c.HTTP == nil {
		return errors.New("httpclient: nil client")
	}
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("httpclient: invalid url %q", url)
	}

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: marshal json: %w", err)
		}
		payload = b
	}

	var body any
	if payload != nil {
		body = payload
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("httpclient: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		if strings.TrimSpace(k) == "" {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("httpclient: do request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB max

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("httpclient: unmarshal json: %w", err)
	}
	return nil
}
