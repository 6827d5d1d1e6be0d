package progress

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 20 * time.Second
	subscriberQ  = 16
)

// Hub keeps the latest snapshot per instrument and fans snapshots out to
// websocket subscribers. It implements orchestrator.Reporter.
type Hub struct {
	mu     sync.RWMutex
	latest map[string]orchestrator.Snapshot
	subs   map[string]map[chan orchestrator.Snapshot]struct{}

	upgrader websocket.Upgrader
}

// NewHub creates new progress hub. checkOrigin may be nil to accept any origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		latest: make(map[string]orchestrator.Snapshot),
		subs:   make(map[string]map[chan orchestrator.Snapshot]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Report stores the snapshot and forwards it to subscribers.
// A subscriber whose queue is full loses its oldest queued snapshot, so the
// newest one (the terminal one included) always reaches it.
func (h *Hub) Report(snap orchestrator.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest[snap.Instrument] = snap
	for ch := range h.subs[snap.Instrument] {
		deliver(ch, snap)
	}
}

// deliver never blocks. Senders hold h.mu, so after one drain the send has room.
func deliver(ch chan orchestrator.Snapshot, snap orchestrator.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}

	select {
	case <-ch:
		logger.Debug("progress subscriber lagging, dropped oldest snapshot", zap.String("instrument", snap.Instrument))
	default:
	}

	select {
	case ch <- snap:
	default:
	}
}

// Latest returns the most recent snapshot for the instrument
func (h *Hub) Latest(instrument string) (orchestrator.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snap, ok := h.latest[instrument]
	return snap, ok
}

// Subscribe registers a listener for the instrument. The returned function
// unregisters it and closes the channel.
func (h *Hub) Subscribe(instrument string) (<-chan orchestrator.Snapshot, func()) {
	ch := make(chan orchestrator.Snapshot, subscriberQ)

	h.mu.Lock()
	if h.subs[instrument] == nil {
		h.subs[instrument] = make(map[chan orchestrator.Snapshot]struct{})
	}
	h.subs[instrument][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[instrument], ch)
			if len(h.subs[instrument]) == 0 {
				delete(h.subs, instrument)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of listeners for the instrument
func (h *Hub) Subscribers(instrument string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[instrument])
}

// ServeWS upgrades the request and streams snapshots for the instrument,
// starting with the latest one, until the client goes away
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, instrument string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	updates, unsubscribe := h.Subscribe(instrument)
	defer unsubscribe()

	if snap, ok := h.Latest(instrument); ok {
		if err := writeSnapshot(conn, snap); err != nil {
			return nil
		}
	}

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return nil
		case <-r.Context().Done():
			return nil
		case snap := <-updates:
			if err := writeSnapshot(conn, snap); err != nil {
				logger.Debug("progress stream closed", zap.String("instrument", instrument), zap.Error(err))
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap orchestrator.Snapshot) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snap)
}

// readPump drains client frames so pongs and close frames are processed
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
