// Copyright 2025 Molt Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ws

import (
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"

	"github.com/molthq/molt/pkg/id"
)

// Message types, re-exported so callers do not import the transport package.
const (
	TextMessage   = websocket.TextMessage
	BinaryMessage = websocket.BinaryMessage
)

// Conn is one websocket client connection. Writes are serialized.
type Conn interface {
	ID() string
	RemoteAddr() string
	WriteJSON(v any) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Handler receives connection lifecycle callbacks.
type Handler interface {
	OnConnect(conn Conn) error
	OnMessage(conn Conn, messageType int, data []byte) error
	OnDisconnect(conn Conn, err error)
	OnError(conn Conn, err error)
}

// Hub tracks live connections.
type Hub interface {
	Register(conn Conn)
	Unregister(connID string)
	Get(connID string) (Conn, bool)
	Each(fn func(Conn))
	Len() int
}

type hub struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewHub builds an empty connection hub.
func NewHub() Hub {
	return &hub{conns: make(map[string]Conn)}
}

func (h *hub) Register(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID()] = conn
}

func (h *hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
}

func (h *hub) Get(connID string) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	return conn, ok
}

func (h *hub) Each(fn func(Conn)) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		fn(c)
	}
}

func (h *hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

type conn struct {
	id string
	ws *fiberws.Conn
	mu sync.Mutex
}

func (c *conn) ID() string {
	return c.id
}

func (c *conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *conn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(messageType, data)
}

func (c *conn) Close() error {
	return c.ws.Close()
}

// Handle upgrades the request and pumps messages into handler until the
// client goes away. The read error is passed to OnDisconnect so handlers
// can distinguish normal closes.
func Handle(hub Hub, handler Handler) fiber.Handler {
	return fiberws.New(func(wc *fiberws.Conn) {
		c := &conn{id: id.GetXid(), ws: wc}
		hub.Register(c)
		defer hub.Unregister(c.id)

		if err := handler.OnConnect(c); err != nil {
			handler.OnError(c, err)
			_ = c.Close()
			return
		}

		var readErr error
		for {
			messageType, data, err := wc.ReadMessage()
			if err != nil {
				readErr = err
				break
			}
			if err := handler.OnMessage(c, messageType, data); err != nil {
				handler.OnError(c, err)
			}
		}
		handler.OnDisconnect(c, readErr)
	})
}
