package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"farmchain/core/events"
)

func sampleEvents() []events.Event {
	return []events.Event{
		events.FarmPoolDeposited{PoolID: 0, Account: [20]byte{0xA1}, Amount: big.NewInt(10)},
		events.FarmPoolHarvested{PoolID: 0, Account: [20]byte{0xA1}, Amount: big.NewInt(4), Recipient: [20]byte{0xA1}},
	}
}

func TestDispatcherSignsPayload(t *testing.T) {
	var (
		mu        sync.Mutex
		signature string
		body      []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		mu.Lock()
		body = data
		signature = r.Header.Get(signatureHeader)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	if err := dispatcher.Append(context.Background(), 7, sampleEvents()); err != nil {
		t.Fatalf("append: %v", err)
	}
	waitFor(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return signature != ""
	}, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if signature != Sign([]byte("secret"), body) {
		t.Fatalf("signature mismatch: %s", signature)
	}
	var payload CommittedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Height != 7 || len(payload.Events) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Events[1].Height != 7 || payload.Events[1].Type != events.TypeFarmPoolHarvested {
		t.Fatalf("unexpected event: %+v", payload.Events[1])
	}
	if payload.DeliveryID == "" {
		t.Fatalf("expected delivery id")
	}
}

func TestDispatcherFiltersTypes(t *testing.T) {
	var received int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload CommittedPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		atomic.AddInt32(&received, int32(len(payload.Events)))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithEventTypes(events.TypeFarmPoolHarvested))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	if err := dispatcher.Append(context.Background(), 1, sampleEvents()[:1]); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := dispatcher.Append(context.Background(), 2, sampleEvents()); err != nil {
		t.Fatalf("append: %v", err)
	}
	waitFor(func() bool { return atomic.LoadInt32(&received) >= 1 }, time.Second)
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&received); got != 1 {
		t.Fatalf("expected one harvested event, got %d", got)
	}
}

func TestDispatcherRetries(t *testing.T) {
	attempts := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithRetryPolicy(5, time.Millisecond*10, time.Millisecond*20))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	if err := dispatcher.Append(context.Background(), 2, sampleEvents()); err != nil {
		t.Fatalf("append: %v", err)
	}
	waitFor(func() bool { return atomic.LoadInt32(&attempts) >= 3 }, time.Second)
	if atomic.LoadInt32(&attempts) < 3 {
		t.Fatalf("expected retries, got %d", attempts)
	}
}

func TestDispatcherCloseDeliversQueuedBatches(t *testing.T) {
	delivered := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&delivered, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	for height := uint64(1); height <= 4; height++ {
		if err := dispatcher.Append(context.Background(), height, sampleEvents()); err != nil {
			t.Fatalf("append %d: %v", height, err)
		}
	}
	if err := dispatcher.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := atomic.LoadInt32(&delivered); got != 4 {
		t.Fatalf("expected 4 deliveries after close, got %d", got)
	}
	if err := dispatcher.Append(context.Background(), 5, sampleEvents()); !errors.Is(err, ErrClosed) {
		t.Fatalf("append after close: expected ErrClosed, got %v", err)
	}
	if err := dispatcher.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestDispatcherCloseAbandonsAfterDrainTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"),
		WithRetryPolicy(10, time.Second, time.Second),
		WithDrainTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	if err := dispatcher.Append(context.Background(), 1, sampleEvents()); err != nil {
		t.Fatalf("append: %v", err)
	}
	start := time.Now()
	if err := dispatcher.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("close waited %s for a failing endpoint", elapsed)
	}
}

func TestNewDispatcherValidates(t *testing.T) {
	if _, err := NewDispatcher(" ", []byte("s")); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := NewDispatcher("http://localhost", nil); err == nil {
		t.Fatalf("expected secret error")
	}
}

func waitFor(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond * 10)
	}
}
