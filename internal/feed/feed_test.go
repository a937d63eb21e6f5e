package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func serveBars(messages []string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestDialStreamsDecodedBars(t *testing.T) {
	server := serveBars([]string{
		`{"ts_ms":1000,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10}`,
		`{"ts_ms":2000,"open":1.5,"high":2.5,"low":1,"close":2,"volume":12}`,
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := Dial(ctx, wsURL(server))
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000*time.Millisecond), first.TsNs)
	assert.Equal(t, 1.5, first.Close)

	second, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, second.Close)
}

func TestDialSkipsMalformedMessages(t *testing.T) {
	server := serveBars([]string{
		`not-json`,
		`{"ts_ms":3000,"open":1,"high":1,"low":1,"close":1,"volume":1}`,
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := Dial(ctx, wsURL(server))
	require.NoError(t, err)
	defer stream.Close()

	b, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3000*time.Millisecond), b.TsNs)
}

func TestNextReturnsErrorWhenServerDropsConnection(t *testing.T) {
	server := serveBars(nil)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := Dial(ctx, wsURL(server))
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next(ctx)
	assert.Error(t, err)
}

func TestNextRespectsContextCancellation(t *testing.T) {
	server := serveBars(nil)
	defer server.Close()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()

	stream, err := Dial(dialCtx, wsURL(server))
	require.NoError(t, err)
	defer stream.Close()

	callCtx, callCancel := context.WithCancel(context.Background())
	callCancel()

	_, err = stream.Next(callCtx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDialRejectsBadURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Dial(ctx, "ws://127.0.0.1:0/no-such-host")
	assert.Error(t, err)
}
