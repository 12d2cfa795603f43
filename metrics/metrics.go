// Package metrics records Prometheus metrics for chat store operations.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	chatstore "github.com/xyzj/chatstore"
	"github.com/xyzj/chatstore/chat"
)

var (
	// StoreLatency observes the duration of every chat store operation.
	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatstore_operation_duration_seconds",
		Help:    "Duration of chat store operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// StoreErrors counts operations that returned an error, by outcome.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatstore_operation_errors_total",
		Help: "Chat store operations that returned an error.",
	}, []string{"operation", "reason"})

	// ListFailures counts listings answered with an empty result because the
	// store failed.
	ListFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatstore_list_failures_total",
		Help: "Chat listings degraded to an empty result by a store failure.",
	})
)

// ListFailure is meant for chatstore.WithListFailureHook.
func ListFailure(_ string, _ error) {
	ListFailures.Inc()
}

// Wrap returns a Service that records StoreLatency and StoreErrors for every
// operation of inner.
func Wrap(inner chatstore.Service) chatstore.Service {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner chatstore.Service
}

func observe(op string, start time.Time) {
	StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func count(op string, err error) {
	if err == nil {
		return
	}
	StoreErrors.WithLabelValues(op, reason(err)).Inc()
}

func reason(err error) string {
	switch {
	case errors.Is(err, chatstore.ErrNotFound):
		return "not_found"
	case errors.Is(err, chatstore.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, chatstore.ErrNoChatsToClear):
		return "no_chats"
	case errors.Is(err, chatstore.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

func (m *metricsStore) ListChats(ctx context.Context, userID string) []*chat.Chat {
	defer observe("list_chats", time.Now())
	return m.inner.ListChats(ctx, userID)
}

func (m *metricsStore) GetChat(ctx context.Context, id, userID string) (*chat.Chat, error) {
	defer observe("get_chat", time.Now())
	c, err := m.inner.GetChat(ctx, id, userID)
	count("get_chat", err)
	return c, err
}

func (m *metricsStore) GetSharedChat(ctx context.Context, id string) (*chat.Chat, error) {
	defer observe("get_shared_chat", time.Now())
	c, err := m.inner.GetSharedChat(ctx, id)
	count("get_shared_chat", err)
	return c, err
}

func (m *metricsStore) SaveChat(ctx context.Context, c *chat.Chat, userID string) error {
	defer observe("save_chat", time.Now())
	err := m.inner.SaveChat(ctx, c, userID)
	count("save_chat", err)
	return err
}

func (m *metricsStore) ClearChats(ctx context.Context, userID string) error {
	defer observe("clear_chats", time.Now())
	err := m.inner.ClearChats(ctx, userID)
	count("clear_chats", err)
	return err
}

func (m *metricsStore) ShareChat(ctx context.Context, id, userID string) (*chat.Chat, error) {
	defer observe("share_chat", time.Now())
	c, err := m.inner.ShareChat(ctx, id, userID)
	count("share_chat", err)
	return c, err
}

var _ chatstore.Service = (*metricsStore)(nil)
