// Package llamastack is a small client for the parts of the Llama Stack REST
// API the harness needs: agents and streamed turns, the tool runtime, tool
// group registration and the RAG vector store.
package llamastack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrEncodeRequest  = errors.New("encode request")
	ErrDecodeResponse = errors.New("decode response")
	ErrReadResponse   = errors.New("read response")
)

// RequestError is returned for non-2xx responses.
type RequestError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	statusText := http.StatusText(e.StatusCode)
	if statusText == "" {
		statusText = "unknown status"
	}
	return fmt.Sprintf("request failed: status=%d (%s) message=%s", e.StatusCode, statusText, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the platform at baseURL. A nil httpClient gets a
// client with the given timeout; streamed turns are bounded by the same
// timeout, as they are in the platform's own SDK.
func New(baseURL string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("new client: base URL is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("new client: parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("new client: base URL must include scheme and host")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: httpClient,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	response, err := c.send(ctx, method, path, payload, "application/json")
	if err != nil {
		return err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReadResponse, err)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeResponse, err)
	}
	return nil
}

// send performs the request and checks the status; the caller owns the body.
func (c *Client) send(ctx context.Context, method, path string, payload any, accept string) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		var encoded bytes.Buffer
		if err := json.NewEncoder(&encoded).Encode(payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeRequest, err)
		}
		bodyReader = &encoded
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", accept)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		defer response.Body.Close()
		body, _ := io.ReadAll(response.Body)
		return nil, &RequestError{
			StatusCode: response.StatusCode,
			Message:    errorMessage(body),
			Body:       body,
		}
	}
	return response, nil
}

// errorMessage extracts the platform's {"detail": ...} or {"error": {"message": ...}}.
func errorMessage(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
		switch d := payload.Detail.(type) {
		case string:
			return d
		case nil:
		default:
			data, _ := json.Marshal(d)
			return string(data)
		}
	}
	return strings.TrimSpace(string(body))
}

// listData decodes either a bare JSON array or a {"data": [...]} envelope;
// platform versions disagree on which one they return.
func listData[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var items []T
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeResponse, err)
		}
		return items, nil
	}
	var envelope struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeResponse, err)
	}
	return envelope.Data, nil
}
