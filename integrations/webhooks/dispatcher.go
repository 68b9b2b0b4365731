package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"farmchain/core/events"
	"farmchain/core/types"
)

const (
	// TopicEventsCommitted carries the events of one committed ledger call.
	TopicEventsCommitted = "farm.events.committed"

	signatureHeader = "X-Farm-Signature"
	topicHeader     = "X-Farm-Event"

	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultDrainWait   = 10 * time.Second
)

// ErrQueueFull is returned when deliveries are produced faster than the
// endpoint accepts them.
var ErrQueueFull = errors.New("webhook: delivery queue full")

// ErrClosed is returned by Append once Close has been called.
var ErrClosed = errors.New("webhook: dispatcher closed")

// CommittedPayload is the webhook body for a committed batch.
type CommittedPayload struct {
	Topic       string        `json:"topic"`
	Height      uint64        `json:"height"`
	Events      []types.Event `json:"events"`
	GeneratedAt time.Time     `json:"generatedAt"`
	DeliveryID  string        `json:"deliveryId"`
}

// Dispatcher delivers committed ledger events to an HTTP endpoint with
// retry and exponential backoff. Bodies are signed with HMAC-SHA256.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	allowed     map[string]struct{}
	drainWait   time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	queue     chan delivery
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closing   bool
	closeOnce sync.Once
}

type delivery struct {
	topic string
	body  []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithEventTypes restricts deliveries to the listed event types.
func WithEventTypes(eventTypes ...string) Option {
	return func(d *Dispatcher) {
		for _, t := range eventTypes {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				if d.allowed == nil {
					d.allowed = make(map[string]struct{})
				}
				d.allowed[trimmed] = struct{}{}
			}
		}
	}
}

// WithDrainTimeout bounds how long Close waits for queued deliveries before
// aborting the rest.
func WithDrainTimeout(wait time.Duration) Option {
	return func(d *Dispatcher) {
		if wait > 0 {
			d.drainWait = wait
		}
	}
}

// NewDispatcher constructs a dispatcher and spawns the worker goroutine.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: 15 * time.Second},
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		drainWait:   defaultDrainWait,
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, 256),
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	dispatcher.wg.Add(1)
	go dispatcher.worker()
	return dispatcher, nil
}

// Close stops accepting batches and delivers everything already queued,
// retries included. Deliveries still pending once the drain timeout expires
// are abandoned.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closing = true
		close(d.queue)
		d.mu.Unlock()

		drained := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(d.drainWait):
			d.cancel()
			<-drained
		}
		d.cancel()
	})
	return nil
}

// Append queues the events committed at height for delivery. It never
// blocks the ledger: a full queue drops the batch and reports ErrQueueFull.
func (d *Dispatcher) Append(_ context.Context, height uint64, evts []events.Event) error {
	if d == nil {
		return errors.New("webhook: dispatcher not initialised")
	}
	rendered := make([]types.Event, 0, len(evts))
	for _, evt := range evts {
		r := events.Render(evt)
		if r == nil {
			continue
		}
		if d.allowed != nil {
			if _, ok := d.allowed[r.Type]; !ok {
				continue
			}
		}
		r.Height = height
		rendered = append(rendered, *r)
	}
	if len(rendered) == 0 {
		return nil
	}
	data, err := json.Marshal(CommittedPayload{
		Topic:       TopicEventsCommitted,
		Height:      height,
		Events:      rendered,
		GeneratedAt: time.Now().UTC(),
		DeliveryID:  uuid.NewString(),
	})
	if err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closing {
		return ErrClosed
	}
	select {
	case d.queue <- delivery{topic: TopicEventsCommitted, body: data}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		d.process(job)
	}
}

func (d *Dispatcher) process(job delivery) {
	attempt := 0
	backoff := d.minBackoff
	for {
		attempt++
		ctx, cancel := context.WithTimeout(d.ctx, d.client.Timeout)
		err := d.send(ctx, job)
		cancel()
		if err == nil {
			return
		}
		if attempt >= d.maxAttempts {
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(topicHeader, job.topic)
	req.Header.Set(signatureHeader, Sign(d.secret, job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	if next < current {
		return max
	}
	return next
}
