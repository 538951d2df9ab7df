package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// WebSocket Upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AllAssets subscribes a connection to events of every asset.
const AllAssets = "*"

// Connection information
type Connection struct {
	ID       string          `json:"id"`
	Asset    string          `json:"asset"` // asset filter, AllAssets for everything
	Conn     *websocket.Conn `json:"-"`
	Send     chan []byte     `json:"-"`
	LastPing time.Time       `json:"last_ping"`
}

// PushMessage is the frame sent to websocket subscribers.
type PushMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	Asset     string      `json:"asset,omitempty"`
	Data      interface{} `json:"data"`
}

// WebSocketPushService pushes bridge events to websocket subscribers. It is an EventPublisher.
type WebSocketPushService struct {
	connections map[string]*Connection   // key: connectionID
	assetConns  map[string][]*Connection // key: asset filter
	hub         chan PushMessage
	register    chan *Connection
	unregister  chan *Connection
	stopChan    chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
}

// NewWebSocketPushService 创建 WebSocket 推送服务
func NewWebSocketPushService() *WebSocketPushService {
	service := &WebSocketPushService{
		connections: make(map[string]*Connection),
		assetConns:  make(map[string][]*Connection),
		hub:         make(chan PushMessage, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		stopChan:    make(chan struct{}),
	}

	go service.run()
	return service
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case <-s.stopChan:
			return

		case conn := <-s.register:
			s.handleRegister(conn)

		case conn := <-s.unregister:
			s.handleUnregister(conn)

		case message := <-s.hub:
			s.handleBroadcast(message)
		}
	}
}

// Stop 停止推送循环
func (s *WebSocketPushService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// RegisterConnection registers a connection with the push service
func (s *WebSocketPushService) RegisterConnection(conn *Connection) {
	select {
	case s.register <- conn:
	case <-s.stopChan:
	}
}

// UnregisterConnection unregisters a connection from the push service
func (s *WebSocketPushService) UnregisterConnection(conn *Connection) {
	select {
	case s.unregister <- conn:
	case <-s.stopChan:
	}
}

func (s *WebSocketPushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if conn.Asset == "" {
		conn.Asset = AllAssets
	}
	s.connections[conn.ID] = conn
	s.assetConns[conn.Asset] = append(s.assetConns[conn.Asset], conn)

	log.Printf("📱 WebSocket connection registered: asset=%s, connID=%s", conn.Asset, conn.ID)

	if conn.Send != nil {
		s.sendToConnection(conn, PushMessage{
			Type:      "connection_established",
			Timestamp: time.Now().Format(time.RFC3339),
			MessageID: uuid.New().String(),
			Asset:     conn.Asset,
			Data: map[string]interface{}{
				"connection_id": conn.ID,
				"message":       "Bridge event stream connected",
			},
		})
	}
}

func (s *WebSocketPushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.connections[conn.ID]; !exists {
		return
	}
	delete(s.connections, conn.ID)

	if conns, exists := s.assetConns[conn.Asset]; exists {
		for i, c := range conns {
			if c.ID == conn.ID {
				s.assetConns[conn.Asset] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(s.assetConns[conn.Asset]) == 0 {
			delete(s.assetConns, conn.Asset)
		}
	}

	if conn.Send != nil {
		close(conn.Send)
	}
	if conn.Conn != nil {
		conn.Conn.Close()
	}

	log.Printf("📱 WebSocket connection unregistered: asset=%s, connID=%s", conn.Asset, conn.ID)
}

func (s *WebSocketPushService) handleBroadcast(message PushMessage) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	targets := append([]*Connection{}, s.assetConns[AllAssets]...)
	if message.Asset != "" && message.Asset != AllAssets {
		targets = append(targets, s.assetConns[message.Asset]...)
	}
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ Failed to marshal message: %v", err)
		return
	}

	failed := 0
	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			failed++
			log.Printf("⚠️ [WebSocketPush] Failed to send to connection: %s (channel full or closed)", conn.ID)
		}
	}
	log.Printf("📤 [WebSocketPush] %s delivered: sent=%d, failed=%d", message.Type, len(targets)-failed, failed)
}

func (s *WebSocketPushService) sendToConnection(conn *Connection, message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ Failed to marshal message: %v", err)
		return
	}
	select {
	case conn.Send <- data:
	default:
		log.Printf("⚠️ [WebSocketPush] Connection %s send buffer full", conn.ID)
	}
}

// Publish queues event for every subscriber of its asset and every unfiltered subscriber.
func (s *WebSocketPushService) Publish(ctx context.Context, event BridgeEvent) {
	message := PushMessage{
		Type:      event.Type,
		Timestamp: event.Timestamp.Format(time.RFC3339),
		MessageID: uuid.New().String(),
		Asset:     event.Asset,
		Data:      event.Data,
	}
	select {
	case s.hub <- message:
	case <-s.stopChan:
	default:
		log.Printf("⚠️ [WebSocketPush] Hub full, dropping %s event", event.Type)
	}
}

// HandleWebSocket upgrades the request and streams events filtered by asset.
func (s *WebSocketPushService) HandleWebSocket(w http.ResponseWriter, r *http.Request, asset string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	connection := &Connection{
		ID:       uuid.New().String(),
		Asset:    asset,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		LastPing: time.Now(),
	}

	s.RegisterConnection(connection)

	go s.handleConnectionWrite(connection)
	go s.handleConnectionRead(connection)
}

func (s *WebSocketPushService) handleConnectionWrite(conn *Connection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("❌ Write message failed: %v", err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketPushService) handleConnectionRead(conn *Connection) {
	defer s.UnregisterConnection(conn)

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.LastPing = time.Now()
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket read error: %v", err)
			}
			return
		}
	}
}

// GetActiveConnections 获取活跃连接数
func (s *WebSocketPushService) GetActiveConnections() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.connections)
}
