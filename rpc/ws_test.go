package rpc

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"farmchain/core/types"
)

func TestEventStreamDeliversCommittedEvents(t *testing.T) {
	h := newHarness(t, ServerConfig{}, nil)
	srv := httptest.NewServer(h.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + wsEventsPattern + "?type=farm.pool.deposited&poolId=0"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test complete")

	_, err = h.node.Deposit(ctx, aliceAddr, 1, tokens(1, 0))
	require.Error(t, err)
	_, err = h.node.Deposit(ctx, aliceAddr, 0, tokens(25, 0))
	require.NoError(t, err)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt types.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, "farm.pool.deposited", evt.Type)
	require.Equal(t, "25", evt.Attributes["amount"])
	require.Equal(t, "0", evt.Attributes["poolId"])
	require.Equal(t, uint64(1), evt.Height)
}

func TestEventStreamFilter(t *testing.T) {
	req := httptest.NewRequest("GET", wsEventsPattern+"?type=a,b&type=c&poolId=3", nil)
	filter := parseEventStreamFilter(req)
	require.Len(t, filter.types, 3)
	require.True(t, filter.matches(types.Event{Type: "b", Attributes: map[string]string{"poolId": "3"}}))
	require.False(t, filter.matches(types.Event{Type: "b", Attributes: map[string]string{"poolId": "4"}}))
	require.False(t, filter.matches(types.Event{Type: "d", Attributes: map[string]string{"poolId": "3"}}))
	require.True(t, parseEventStreamFilter(httptest.NewRequest("GET", wsEventsPattern, nil)).matches(types.Event{Type: "x"}))
}
