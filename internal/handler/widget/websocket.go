package widget

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/yesno-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/yesno-chat/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// 客户端消息类型
const (
	TypeStart = "start"
	TypeAsk   = "ask"
	TypeDraft = "draft"
)

// 服务端消息类型
const (
	TypeSnapshot = "snapshot"
	TypeEvent    = "event"
	TypeAck      = "ack"
	TypeError    = "error"
)

// WebSocketHandler 为聊天组件提供双向通道：接收输入，推送会话变化。
type WebSocketHandler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器。allowedOrigins 含 "*" 时接受任意来源。
func NewWebSocketHandler(chatSvc *chatservice.Service, allowedOrigins []string) *WebSocketHandler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// SnapshotData 连接建立时推送的完整状态。
type SnapshotData struct {
	Started  bool           `json:"started"`
	Draft    string         `json:"draft"`
	Messages []chat.Message `json:"messages"`
}

// AckData 确认一次客户端操作。
type AckData struct {
	Type           string `json:"type"`
	AwaitingAnswer bool   `json:"awaitingAnswer,omitempty"`
}

// connection 串行化写入，gorilla 连接不允许并发写。
type connection struct {
	conn      *websocket.Conn
	sessionID string
	writeMu   sync.Mutex
}

func (c *connection) send(msgType string, data interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *connection) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (c *connection) sendError(message string) {
	if err := c.send(TypeError, map[string]string{"message": message}); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	controller, err := h.chatSvc.Controller(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)
	conn := &connection{conn: ws, sessionID: sessionID}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := controller.Session()
	events, unsubscribe := session.Subscribe()
	defer unsubscribe()

	if err := conn.send(TypeSnapshot, SnapshotData{
		Started:  session.Started(),
		Draft:    controller.Draft(),
		Messages: session.Messages(),
	}); err != nil {
		log.Printf("[websocket] write snapshot failed: %v", err)
		return
	}

	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// 推送失败时结束读循环并移除订阅，避免后续事件堆积在失效的订阅上。
	stop := func() {
		cancel()
		unsubscribe()
		_ = ws.Close()
	}
	go h.forwardEvents(ctx, conn, events, stop)

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, conn, controller, msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *connection, controller *chatservice.Controller, msg inboundMessage) {
	ack := AckData{Type: msg.Type}

	switch msg.Type {
	case TypeStart:
		controller.Initialize()
	case TypeDraft:
		controller.SetDraft(msg.Text)
	case TypeAsk:
		ack.AwaitingAnswer = controller.AskQuestion(ctx, msg.Text)
	default:
		conn.sendError("unsupported message type: " + msg.Type)
		return
	}

	if err := conn.send(TypeAck, ack); err != nil {
		log.Printf("[websocket] write ack failed: %v", err)
	}
}

// forwardEvents 推送会话变化并定期发送ping。写入失败时调用 stop。
func (h *WebSocketHandler) forwardEvents(ctx context.Context, conn *connection, events <-chan chat.Event, stop func()) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.send(TypeEvent, event); err != nil {
				log.Printf("[websocket] write event failed: %v", err)
				return
			}
		}
	}
}

