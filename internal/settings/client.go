package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrUnauthorized = errors.New("settings: unauthorized")

// Client is a Store backed by the server's /api/admin/settings endpoint.
type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(base, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), token: token, http: hc}
}

func (c *Client) Load(ctx context.Context) (Settings, error) {
	return c.do(ctx, http.MethodGet, nil)
}

func (c *Client) Save(ctx context.Context, s Settings) (Settings, error) {
	body, err := json.Marshal(s.Normalize())
	if err != nil {
		return Settings{}, err
	}
	return c.do(ctx, http.MethodPost, body)
}

func (c *Client) do(ctx context.Context, method string, body []byte) (Settings, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+"/api/admin/settings", rd)
	if err != nil {
		return Settings{}, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", method, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return Settings{}, ErrUnauthorized
	case res.StatusCode < 200 || res.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return Settings{}, fmt.Errorf("settings %s: status %d: %s", method, res.StatusCode, strings.TrimSpace(string(msg)))
	}
	s, err := Decode(res.Body)
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}
