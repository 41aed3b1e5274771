package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rezacr588/pactoria-mvp-sub005/internal/model"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/circuitbreaker"
	apperrors "github.com/rezacr588/pactoria-mvp-sub005/pkg/errors"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/logger"
)

// Config holds notification service client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

const defaultTimeout = 15 * time.Second

// ListOptions narrows a paginated fetch.
type ListOptions struct {
	Page       int
	Size       int
	UnreadOnly bool
	Kind       model.NotificationKind
}

// Client talks to the external notification service. It carries no
// retry policy of its own; the polling fallback and push echo are the
// recovery paths.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	cb      *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "notification-service",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		logger: log.WithComponent("notifier"),
	}
}

// List fetches one page of notifications.
func (c *Client) List(ctx context.Context, opts ListOptions) (*model.NotificationPage, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Size > 0 {
		q.Set("size", strconv.Itoa(opts.Size))
	}
	if opts.UnreadOnly {
		q.Set("unread_only", "true")
	}
	if opts.Kind != "" {
		q.Set("kind", string(opts.Kind))
	}

	path := "/api/v1/notifications"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var page model.NotificationPage
	if err := c.do(ctx, http.MethodGet, path, &page); err != nil {
		return nil, apperrors.Fetch("failed to fetch notifications", err)
	}
	return &page, nil
}

// MarkRead marks one notification read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/notifications/%s/read", url.PathEscape(id))
	if err := c.do(ctx, http.MethodPut, path, nil); err != nil {
		return apperrors.Mutation("failed to mark notification read", err)
	}
	return nil
}

// MarkAllRead marks every notification read and returns how many the
// server updated.
func (c *Client) MarkAllRead(ctx context.Context) (int, error) {
	var resp struct {
		UpdatedCount int `json:"updated_count"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/v1/notifications/read-all", &resp); err != nil {
		return 0, apperrors.Mutation("failed to mark all notifications read", err)
	}
	return resp.UpdatedCount, nil
}

// Delete removes one notification.
func (c *Client) Delete(ctx context.Context, id string) error {
	path := "/api/v1/notifications/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodDelete, path, nil); err != nil {
		return apperrors.Mutation("failed to delete notification", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	return c.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("notification service returned %d: %s", resp.StatusCode, string(body))
		}

		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}
