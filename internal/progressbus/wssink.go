// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package progressbus

import (
	"context"
	"fmt"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/vaultkeep/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WebSocketSink pumps one Bus subscription's events to a single WebSocket
// connection. It is the optional transport the Bus's core broadcast logic
// never depends on: a caller that wants progress over a CLI pipe or a test
// channel uses Subscription directly, while a caller exposing progress to a
// browser wraps the same subscription in a WebSocketSink.
type WebSocketSink struct {
	conn *websocket.Conn
	sub  *Subscription
}

// NewWebSocketSink pairs conn with sub. Run drives both until the
// connection closes or ctx is cancelled.
func NewWebSocketSink(conn *websocket.Conn, sub *Subscription) *WebSocketSink {
	return &WebSocketSink{conn: conn, sub: sub}
}

// Run pumps events from sub to the connection until ctx is done or the
// connection errors, and answers client pings with pongs on its own
// read pump so the connection's idle timeout never fires while progress
// is flowing. It returns once the connection is no longer usable.
func (s *WebSocketSink) Run(ctx context.Context) error {
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	go s.readPump(readCtx)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.writeDeadline(); err != nil {
				return err
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		default:
		}

		evCtx, cancel := context.WithTimeout(ctx, wsPingPeriod)
		e, err := s.sub.Recv(evCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue // evCtx deadline, loop back to the ping check
		}

		body, err := gojson.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal progress event: %w", err)
		}
		if err := s.writeDeadline(); err != nil {
			return err
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, body); err != nil {
			return err
		}
	}
}

func (s *WebSocketSink) writeDeadline() error {
	return s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
}

// readPump discards client frames but keeps the read deadline alive on
// every pong, mirroring the hub's client read pump: a progress sink never
// expects inbound application messages, only liveness.
func (s *WebSocketSink) readPump(ctx context.Context) {
	if err := s.conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		logging.Logger().Warn().Err(err).Msg("failed to set progress sink read deadline")
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}
