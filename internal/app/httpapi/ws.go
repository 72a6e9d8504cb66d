package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/photonft/market_layer/internal/app/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// eventFeed streams marketplace events to websocket clients.
type eventFeed struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
}

func newEventFeed(bus *events.Bus) *eventFeed {
	return &eventFeed{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (f *eventFeed) serve(w http.ResponseWriter, r *http.Request) {
	if f.bus == nil {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := f.bus.Subscribe()
	defer cancel()

	// Drain client frames so close and pong handling keep working.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
