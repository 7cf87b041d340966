package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPClient talks JSON over HTTP to the order authority:
//
//	GET  /api/pos/{collection}?updated_since=RFC3339&limit=N
//	POST /api/pos/{collection}
//	PUT  /api/pos/{collection}/{id}
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// newTransportClient builds an HTTP client with forced IPv4 dialing. Venue
// routers frequently advertise broken IPv6; dialing tcp4 avoids the
// happy-eyeballs stall on every request.
func newTransportClient(timeout time.Duration) *http.Client {
	ipv4Dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return ipv4Dialer.DialContext(ctx, "tcp4", addr)
			},
			MaxIdleConns:       100,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: true,
		},
	}
}

// NewHTTPClient creates a client for the JSON order authority API.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    newTransportClient(timeout),
	}
}

func (c *HTTPClient) List(ctx context.Context, collection string, since time.Time, limit int) ([]Document, error) {
	q := url.Values{}
	if !since.IsZero() {
		q.Set("updated_since", since.UTC().Format(time.RFC3339Nano))
	}
	q.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/pos/%s?%s", c.baseURL, collection, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "list " + collection, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("list "+collection, resp)
	}

	var docs []Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s list: %w", collection, err)
	}
	return docs, nil
}

func (c *HTTPClient) Create(ctx context.Context, collection string, doc Document) error {
	endpoint := fmt.Sprintf("%s/api/pos/%s", c.baseURL, collection)
	resp, err := c.send(ctx, http.MethodPost, endpoint, doc)
	if err != nil {
		return &NetworkError{Op: "create " + collection, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return ErrConflict
	default:
		return c.statusError("create "+collection, resp)
	}
}

func (c *HTTPClient) Update(ctx context.Context, collection string, doc Document) error {
	endpoint := fmt.Sprintf("%s/api/pos/%s/%s", c.baseURL, collection, url.PathEscape(doc.ID))
	resp, err := c.send(ctx, http.MethodPut, endpoint, doc)
	if err != nil {
		return &NetworkError{Op: "update " + collection, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return c.statusError("update "+collection, resp)
	}
}

func (c *HTTPClient) send(ctx context.Context, method, endpoint string, doc Document) (*http.Response, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

// statusError classifies non-success responses. Server-side errors (5xx) are
// transport failures from the device's point of view: the request may retry
// later and the document itself is not at fault.
func (c *HTTPClient) statusError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	err := fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	if resp.StatusCode >= 500 {
		return &NetworkError{Op: op, Err: err}
	}
	return fmt.Errorf("remote %s failed: %w", op, err)
}
