// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/traylinx/modeldeck/internal/logging"
	"github.com/traylinx/modeldeck/internal/registry"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The chat UI is served from its own dev origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamMessage is the frame pushed to stream subscribers.
type streamMessage struct {
	Type string            `json:"type"`
	Data registry.Snapshot `json:"data"`
}

// stream upgrades to a websocket and pushes a registry snapshot on connect and
// after every change. Slow clients only see the newest state.
func (s *Server) stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.FromContext(c).Warnf("Stream upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	updates, unsubscribe := s.registry.Subscribe()
	defer unsubscribe()

	entry := logging.FromContext(c)
	entry.Debug("Stream client connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeSnapshot(conn, s.registry.State()); err != nil {
		entry.Debugf("Stream write failed: %v", err)
		return
	}

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			entry.Debug("Stream client disconnected")
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := writeSnapshot(conn, st); err != nil {
				entry.Debugf("Stream write failed: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, st registry.State) error {
	payload, err := json.Marshal(streamMessage{Type: "snapshot", Data: st.Snapshot()})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
