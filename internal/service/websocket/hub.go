package websocket

import (
	"sync"
	"time"

	"groundtruth/internal/logger"
	"groundtruth/internal/metrics"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Snapshot renders the current state sent to a viewer once it is subscribed.
type Snapshot func() ([]byte, error)

type subscription struct {
	conn      *websocket.Conn
	sessionID string
	snapshot  Snapshot
}

type message struct {
	sessionID string
	payload   []byte
}

// HubService fans out metric updates to viewers subscribed to a session.
type HubService struct {
	clients    map[string]map[*websocket.Conn]bool
	broadcast  chan message
	register   chan subscription
	unregister chan subscription
	quit       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewHubService(logger *logger.Logger, m *metrics.Metrics) *HubService {
	return &HubService{
		clients:    make(map[string]map[*websocket.Conn]bool),
		broadcast:  make(chan message, 64),
		register:   make(chan subscription),
		unregister: make(chan subscription),
		quit:       make(chan struct{}),
		logger:     logger,
		metrics:    m,
	}
}

func (h *HubService) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mutex.Lock()
			if h.clients[sub.sessionID] == nil {
				h.clients[sub.sessionID] = make(map[*websocket.Conn]bool)
			}
			h.clients[sub.sessionID][sub.conn] = true
			h.mutex.Unlock()
			h.metrics.LiveViewers.Add(1)
			h.logger.Info("Viewer subscribed to session %s. Total: %d", sub.sessionID, h.GetClientCount())
			h.sendSnapshot(sub)

		case sub := <-h.unregister:
			h.remove(sub.sessionID, sub.conn)

		case msg := <-h.broadcast:
			h.mutex.RLock()
			var failed []*websocket.Conn
			for client := range h.clients[msg.sessionID] {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					h.logger.Error("Error sending metrics to viewer of %s: %v", msg.sessionID, err)
					failed = append(failed, client)
				}
			}
			h.mutex.RUnlock()
			for _, client := range failed {
				h.remove(msg.sessionID, client)
			}

		case <-h.quit:
			h.mutex.Lock()
			for _, conns := range h.clients {
				for client := range conns {
					client.Close()
				}
			}
			h.clients = make(map[string]map[*websocket.Conn]bool)
			h.mutex.Unlock()
			h.metrics.LiveViewers.Store(0)
			return
		}
	}
}

// sendSnapshot runs on the hub goroutine, after the viewer is in the client
// set, so no update can fall between the snapshot and the first broadcast.
func (h *HubService) sendSnapshot(sub subscription) {
	if sub.snapshot == nil {
		return
	}
	payload, err := sub.snapshot()
	if err == nil {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = sub.conn.WriteMessage(websocket.TextMessage, payload)
	}
	if err != nil {
		h.logger.Error("Error sending snapshot to viewer of %s: %v", sub.sessionID, err)
		h.remove(sub.sessionID, sub.conn)
	}
}

func (h *HubService) remove(sessionID string, client *websocket.Conn) {
	h.mutex.Lock()
	conns := h.clients[sessionID]
	_, ok := conns[client]
	if ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clients, sessionID)
		}
		client.Close()
	}
	h.mutex.Unlock()

	if ok {
		h.metrics.LiveViewers.Add(-1)
		h.logger.Info("Viewer of session %s disconnected. Total: %d", sessionID, h.GetClientCount())
	}
}

// Register subscribes a viewer. snapshot, when set, is rendered and written
// by the hub before any later broadcast reaches the viewer.
func (h *HubService) Register(sessionID string, client *websocket.Conn, snapshot Snapshot) {
	select {
	case h.register <- subscription{conn: client, sessionID: sessionID, snapshot: snapshot}:
	case <-h.quit:
		client.Close()
	}
}

func (h *HubService) Unregister(sessionID string, client *websocket.Conn) {
	select {
	case h.unregister <- subscription{conn: client, sessionID: sessionID}:
	case <-h.quit:
	}
}

// Broadcast queues a payload for the viewers of one session. It never blocks;
// when the queue is full the update is dropped, the next one supersedes it.
func (h *HubService) Broadcast(sessionID string, payload []byte) {
	select {
	case h.broadcast <- message{sessionID: sessionID, payload: payload}:
	default:
		h.logger.Warning("Live update queue full, dropping update for session %s", sessionID)
	}
}

// Stop closes every viewer connection and ends Run.
func (h *HubService) Stop() {
	close(h.quit)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}
