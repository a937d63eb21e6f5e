// Package feed adapts a websocket bar stream into the bar.Stream capability
// the core consumes (spec.md §6), for the CLI's live-demo mode. Grounded on
// the teacher's gorilla/websocket dependency; it shows no terminal spinner.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/wfrisk/internal/bar"
)

// wireBar is the JSON shape read off the socket; field names match a
// typical bar-feed wire format rather than bar.Bar's Go-idiomatic names.
type wireBar struct {
	TsMs   int64   `json:"ts_ms"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func (w wireBar) toBar() bar.Bar {
	return bar.Bar{
		TsNs:   w.TsMs * int64(time.Millisecond),
		Open:   w.Open,
		High:   w.High,
		Low:    w.Low,
		Close:  w.Close,
		Volume: w.Volume,
	}
}

// WSStream reads one JSON bar per websocket message off a connection and
// exposes them through bar.Stream. One instance serves one instrument.
type WSStream struct {
	conn   *websocket.Conn
	bars   chan bar.Bar
	errs   chan error
	cancel context.CancelFunc
}

// Dial connects to url and starts the background read loop. The caller
// must call Close when done to release the connection and goroutine.
func Dial(ctx context.Context, url string) (*WSStream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", url, err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	s := &WSStream{
		conn:   conn,
		bars:   make(chan bar.Bar, 64),
		errs:   make(chan error, 1),
		cancel: cancel,
	}
	go s.readLoop(readCtx)
	return s, nil
}

func (s *WSStream) readLoop(ctx context.Context) {
	defer close(s.bars)
	for {
		if ctx.Err() != nil {
			return
		}
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case s.errs <- err:
				default:
				}
			}
			return
		}

		var w wireBar
		if err := json.Unmarshal(payload, &w); err != nil {
			log.Warn().Err(err).Msg("feed: dropping malformed bar message")
			continue
		}

		select {
		case s.bars <- w.toBar():
		case <-ctx.Done():
			return
		}
	}
}

// Next implements bar.Stream, blocking until a bar arrives, the server
// closes the stream with a normal close frame (io.EOF), the connection
// fails (a wrapped error), or ctx is cancelled.
func (s *WSStream) Next(ctx context.Context) (bar.Bar, error) {
	select {
	case b, ok := <-s.bars:
		if !ok {
			select {
			case err := <-s.errs:
				return bar.Bar{}, fmt.Errorf("feed: stream closed: %w", err)
			default:
				return bar.Bar{}, io.EOF
			}
		}
		return b, nil
	case <-ctx.Done():
		return bar.Bar{}, ctx.Err()
	}
}

// Close tears down the read loop and the underlying connection.
func (s *WSStream) Close() error {
	s.cancel()
	return s.conn.Close()
}
