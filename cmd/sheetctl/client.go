package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// client calls the sheets REST API.
type client struct {
	baseURL    string
	token      string
	userHeader string
	http       *http.Client
}

func newClient(baseURL, token, userHeader string) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userHeader: userHeader,
		http:       &http.Client{Timeout: 60 * time.Second},
	}
}

// apiError is a failure envelope returned by the server.
type apiError struct {
	Status  int
	Kind    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (c *client) newRequest(ctx context.Context, method, path, user string, body []byte) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if user != "" {
		req.Header.Set(c.userHeader, user)
	}
	return req, nil
}

// call sends a request and decodes the envelope's data into dst.
func (c *client) call(ctx context.Context, method, path string, body []byte, dst any) error {
	req, err := c.newRequest(ctx, method, path, "", body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode response (status %d): %w", method, path, resp.StatusCode, err)
	}
	if !env.Success {
		return &apiError{Status: resp.StatusCode, Kind: env.Error, Message: env.Message}
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(env.Data, dst)
}

// download streams a non-envelope response body to w as user.
func (c *client) download(ctx context.Context, path, user string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, user, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return 0, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
		}
		return 0, &apiError{Status: resp.StatusCode, Kind: env.Error, Message: env.Message}
	}
	return io.Copy(w, resp.Body)
}
