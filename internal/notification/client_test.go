package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsNotification(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(config.NotificationConfig{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second})
	err := c.Send(context.Background(), Notification{UserID: "u1", Channels: []string{ChannelEmail}, Title: "Hi", Message: "there"})
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, []string{ChannelEmail}, got.Channels)
}

func TestSendReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(config.NotificationConfig{BaseURL: srv.URL, Timeout: time.Second})
	assert.ErrorContains(t, c.Send(context.Background(), Notification{UserID: "u1"}), "status=503")
}

type countingSender struct{ n atomic.Int32 }

func (s *countingSender) Send(context.Context, Notification) error {
	s.n.Add(1)
	return nil
}

func TestSendAll(t *testing.T) {
	s := &countingSender{}
	ns := make([]Notification, 10)
	require.NoError(t, SendAll(context.Background(), s, ns, 3))
	assert.Equal(t, int32(10), s.n.Load())
}
