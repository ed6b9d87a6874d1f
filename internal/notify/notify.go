// Package notify delivers user lifecycle events to an external webhook.
// Deliveries run in the background and never fail the request that caused
// them.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/user-service/pkg/httpclient"
	"github.com/Sternrassler/user-service/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Event types.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

var deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webhook_deliveries_total",
	Help: "Total webhook deliveries by event and result",
}, []string{"event", "result"})

// Event is the JSON payload posted to the webhook.
type Event struct {
	Type       string    `json:"event"`
	UserID     int64     `json:"user_id"`
	Data       any       `json:"data,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Config holds webhook settings.
type Config struct {
	URL     string
	Timeout time.Duration

	// RetryCount is the number of retries after the first delivery attempt.
	// Zero disables retries; a negative value takes the HTTP client default.
	RetryCount int

	// Transport overrides the HTTP transport (for testing).
	Transport http.RoundTripper
}

// Webhook posts events to a single URL.
type Webhook struct {
	client *httpclient.Client
	url    string
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewWebhook creates a webhook notifier. An unset timeout takes the HTTP
// client default.
func NewWebhook(cfg Config) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}

	hc := httpclient.DefaultConfig()
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}
	if cfg.RetryCount >= 0 {
		hc.RetryCount = cfg.RetryCount
	}
	hc.Transport = cfg.Transport

	client, err := httpclient.New(hc)
	if err != nil {
		return nil, fmt.Errorf("create webhook client: %w", err)
	}

	return &Webhook{
		client: client,
		url:    cfg.URL,
		logger: logging.NewLogger("notify"),
	}, nil
}

// Notify schedules delivery of e and returns immediately. The delivery keeps
// the values of ctx but not its cancellation. Events sent after Close are
// dropped.
func (w *Webhook) Notify(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		deliveriesTotal.WithLabelValues(e.Type, "dropped").Inc()
		w.logger.Warn().Str("event", e.Type).Int64("user_id", e.UserID).Msg("Notifier closed, dropping event")
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		w.deliver(context.WithoutCancel(ctx), e)
	}()
}

func (w *Webhook) deliver(ctx context.Context, e Event) {
	resp := w.client.Fetch(ctx, httpclient.Request{
		Path:   w.url,
		Method: http.MethodPost,
		Body:   e,
	})

	logger := logging.Ctx(ctx)
	if !resp.OK() {
		deliveriesTotal.WithLabelValues(e.Type, "failure").Inc()
		logger.Error().
			Str("event", e.Type).
			Int64("user_id", e.UserID).
			Int("status", resp.StatusCode).
			Int("attempts", resp.Attempts).
			Interface("response", resp.Data).
			Msg("Webhook delivery failed")
		return
	}

	deliveriesTotal.WithLabelValues(e.Type, "success").Inc()
	logger.Debug().
		Str("event", e.Type).
		Int64("user_id", e.UserID).
		Int("attempts", resp.Attempts).
		Msg("Webhook delivered")
}

// Close stops accepting events and waits for in-flight deliveries.
func (w *Webhook) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info().Msg("Webhook notifier closed")
}

// Nop discards every event. It stands in when no webhook is configured.
type Nop struct{}

// Notify implements the notifier contract by doing nothing.
func (Nop) Notify(context.Context, Event) {}

// Close does nothing.
func (Nop) Close() {}
