// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file fans generation job events out to websocket subscribers. The
// hub is the single consumer of the orchestrator's event channel; browsers
// connect and disconnect freely without affecting the running job.
package main

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/promptpilot/video-prompt-studio/internal/core/generator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is served from its own dev server locally; origin checks
	// follow the same permissive policy as the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// eventWriteTimeout bounds each websocket write so one stalled client
// cannot hold the hub mutex and back the event channel up behind it.
const eventWriteTimeout = 5 * time.Second

// eventHub drains the orchestrator's event channel and broadcasts each
// event to every connected websocket client.
type eventHub struct {
	source <-chan generator.JobEvent

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	latest  *generator.JobEvent
}

func newEventHub(source <-chan generator.JobEvent) *eventHub {
	return &eventHub{
		source:  source,
		clients: make(map[*websocket.Conn]bool),
	}
}

// run consumes events until the source channel closes. Runs on its own
// goroutine for the life of the process.
func (h *eventHub) run() {
	for event := range h.source {
		h.broadcast(event)
	}
}

func (h *eventHub) broadcast(event generator.JobEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = &event
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		if err := conn.WriteJSON(event); err != nil {
			slog.Warn("dropping unresponsive event subscriber", "error", err)
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
}

// subscribe upgrades the request and registers the connection. A new
// subscriber immediately receives the latest event so it can render the
// current job state without waiting for the next update.
func (h *eventHub) subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	latest := h.latest
	h.mu.Unlock()

	if latest != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		if err := conn.WriteJSON(*latest); err != nil {
			h.unsubscribe(conn)
			return
		}
	}

	// Consume control frames so pings and the close handshake work; any
	// data the client sends is ignored.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unsubscribe(conn)
				return
			}
		}
	}()
}

func (h *eventHub) unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[conn] {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
