// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/fluffyriot/crossfeed/internal/models"
	"github.com/fluffyriot/crossfeed/internal/wire"
)

var (
	ErrNotFound            = errors.New("post not found")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// DecodeError is returned when a platform response does not match its schema.
type DecodeError = wire.DecodeError

type StatusError struct {
	Platform   models.Platform
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: failed to get a successful response. %v: %v", e.Platform, e.StatusCode, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientWith wraps an existing http.Client, e.g. one from httptest.
func NewClientWith(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// forAccount returns an http.Client that sends the account's bearer token.
func (c *Client) forAccount(ctx context.Context, account models.Account) *http.Client {
	if account.Token == "" {
		return c.httpClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: account.Token,
		TokenType:   "Bearer",
	}))
	hc.Timeout = c.httpClient.Timeout
	return hc
}

func (c *Client) getJSON(ctx context.Context, account models.Account, endpoint, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.forAccount(ctx, account).Do(req)
	if err != nil {
		return fmt.Errorf("%s: request %s: %w", account.Platform, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Platform:   account.Platform,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return wire.Decode(string(account.Platform), endpoint, resp.Body, v)
}
