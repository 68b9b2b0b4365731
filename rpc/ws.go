package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"farmchain/core/types"
)

const (
	wsWriteTimeout  = 10 * time.Second
	wsEventBuffer   = 256
	wsEventsPattern = "/ws/events"
)

// eventStreamFilter narrows the websocket feed. Empty fields match all events.
type eventStreamFilter struct {
	types  map[string]struct{}
	poolID string
}

func parseEventStreamFilter(r *http.Request) eventStreamFilter {
	query := r.URL.Query()
	filter := eventStreamFilter{poolID: strings.TrimSpace(query.Get("poolId"))}
	for _, raw := range query["type"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				if filter.types == nil {
					filter.types = make(map[string]struct{})
				}
				filter.types[t] = struct{}{}
			}
		}
	}
	return filter
}

func (f eventStreamFilter) matches(evt types.Event) bool {
	if len(f.types) > 0 {
		if _, ok := f.types[evt.Type]; !ok {
			return false
		}
	}
	if f.poolID != "" && evt.Attributes["poolId"] != f.poolID {
		return false
	}
	return true
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	filter := parseEventStreamFilter(r)
	// Subscribe before the handshake completes so that no event committed
	// after the client connects is missed.
	updates, cancel := s.node.SubscribeEvents(wsEventBuffer)
	defer cancel()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	// The stream is write-only. CloseRead handles control frames and cancels
	// ctx once the client goes away.
	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, conn, updates, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, updates <-chan types.Event, filter eventStreamFilter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if !filter.matches(evt) {
				continue
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt types.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
