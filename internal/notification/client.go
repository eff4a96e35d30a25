package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"golang.org/x/sync/errgroup"
)

const (
	ChannelEmail    = "email"
	ChannelInApp    = "in_app"
	ChannelWhatsApp = "whatsapp"
	ChannelPush     = "push"
)

type Notification struct {
	UserID   string            `json:"userId"`
	Channels []string          `json:"channels"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Link     string            `json:"link,omitempty"`
	Type     string            `json:"type,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Sender delivers notifications to users.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(cfg config.NotificationConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

func (c *Client) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notification service status=%d body=%s", resp.StatusCode, msg)
	}

	middleware.GetLogger(ctx).Debug().
		Str("user_id", n.UserID).
		Strs("channels", n.Channels).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("notification sent")
	return nil
}

// SendAll delivers notifications concurrently and returns the first error.
func SendAll(ctx context.Context, s Sender, ns []Notification, concurrency int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, n := range ns {
		g.Go(func() error {
			return s.Send(ctx, n)
		})
	}
	return g.Wait()
}
