package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/DDH2004/AIoTHackStorm/internal/models"
	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
	"github.com/DDH2004/AIoTHackStorm/internal/services"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
)

const (
	MessageWelcome = "WELCOME"
	MessageResult  = "RESULT"
	MessagePing    = "PING"
	MessagePong    = "PONG"
	MessageLatest  = "LATEST"

	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

type WebSocketMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type wsClient struct {
	conn     *websocket.Conn
	clientID string
	send     chan WebSocketMessage
	done     chan struct{}
	once     sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// enqueue never blocks; a client that does not drain its queue loses messages.
func (c *wsClient) enqueue(msg WebSocketMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
	}
}

// Hub pushes every published result to connected WebSocket clients.
type Hub struct {
	store       pipeline.Store
	broadcaster *services.Broadcaster
	metrics     *services.Metrics
	upgrader    websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*wsClient
}

func NewHub(store pipeline.Store, broadcaster *services.Broadcaster, metrics *services.Metrics) *Hub {
	return &Hub{
		store:       store,
		broadcaster: broadcaster,
		metrics:     metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*wsClient),
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "websocket upgrade failed")
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := &wsClient{
		conn:     conn,
		clientID: clientID,
		send:     make(chan WebSocketMessage, 16),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	if old, ok := h.clients[clientID]; ok {
		old.close()
	}
	h.clients[clientID] = client
	h.mu.Unlock()
	h.metrics.IncrementWebSocketConnections()
	log.Info(log.Fields{"client_id": clientID}, "websocket client connected")

	results, cancel := h.broadcaster.Subscribe()

	client.enqueue(WebSocketMessage{
		Type:      MessageWelcome,
		ClientID:  clientID,
		Timestamp: time.Now().Unix(),
		Payload:   h.store.Latest(),
	})

	go h.writePump(client, results)
	h.readPump(client)

	cancel()
	h.mu.Lock()
	if h.clients[clientID] == client {
		delete(h.clients, clientID)
	}
	h.mu.Unlock()
	client.close()
	h.metrics.DecrementWebSocketConnections()
	log.Info(log.Fields{"client_id": clientID}, "websocket client disconnected")
}

func (h *Hub) readPump(client *wsClient) {
	defer client.conn.Close()

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		var msg WebSocketMessage
		if err := client.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.metrics.IncrementWebSocketErrors()
				log.Warn(log.Fields{"client_id": client.clientID, "error": err.Error()}, "websocket read error")
			}
			return
		}

		var reply WebSocketMessage
		switch msg.Type {
		case MessagePing:
			reply = WebSocketMessage{Type: MessagePong}
		case MessageLatest:
			reply = WebSocketMessage{Type: MessageResult, Payload: h.store.Latest()}
		default:
			log.Debug(log.Fields{"client_id": client.clientID, "type": msg.Type}, "unknown websocket message")
			continue
		}
		reply.ClientID = client.clientID
		reply.Timestamp = time.Now().Unix()

		client.enqueue(reply)
	}
}

func (h *Hub) writePump(client *wsClient, results <-chan models.DetectionResult) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	write := func(msg WebSocketMessage) bool {
		client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.conn.WriteJSON(msg); err != nil {
			h.metrics.IncrementWebSocketErrors()
			return false
		}
		h.metrics.IncrementWebSocketMessages()
		return true
	}

	for {
		select {
		case <-client.done:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			client.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-client.send:
			if !write(msg) {
				return
			}

		case res, ok := <-results:
			if !ok {
				client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !write(WebSocketMessage{
				Type:      MessageResult,
				ClientID:  client.clientID,
				Timestamp: time.Now().Unix(),
				Payload:   res,
			}) {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for clientID, client := range h.clients {
		client.close()
		client.conn.Close()
		log.Debug(log.Fields{"client_id": clientID}, "closed websocket connection")
	}
	h.clients = make(map[string]*wsClient)
}
