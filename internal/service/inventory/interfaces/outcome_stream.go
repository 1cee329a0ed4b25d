// internal/service/inventory/interfaces/outcome_stream.go
package interfaces

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"

	"stockflow/internal/service/inventory/port"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 256
)

// OutcomeHub 维护所有 websocket 连接，并把结果主题上的消息广播给它们
type OutcomeHub struct {
	clients    map[string]*streamClient
	register   chan *streamClient
	unregister chan *streamClient
	broadcast  chan []byte
	done       chan struct{} // Run 退出后关闭
	lock       sync.RWMutex
	upgrader   websocket.Upgrader
}

func NewOutcomeHub() *OutcomeHub {
	return &OutcomeHub{
		clients:    make(map[string]*streamClient),
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
		broadcast:  make(chan []byte, clientSendSize),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes 注册 websocket 入口
func (h *OutcomeHub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/outcomes", h.ServeWS)
}

// Run 是 hub 的事件循环，ctx 结束时断开所有客户端
func (h *OutcomeHub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client.id] = client
			h.lock.Unlock()
			zlog.Info().Str("client_id", client.id).Msg("Outcome stream client registered")
		case client := <-h.unregister:
			h.remove(client)
		case payload := <-h.broadcast:
			h.lock.RLock()
			var slow []*streamClient
			for _, client := range h.clients {
				select {
				case client.send <- payload:
				default:
					slow = append(slow, client)
				}
			}
			h.lock.RUnlock()
			// 发送缓冲已满的客户端直接断开
			for _, client := range slow {
				h.remove(client)
			}
		case <-ctx.Done():
			h.lock.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.lock.Unlock()
			return nil
		}
	}
}

func (h *OutcomeHub) remove(client *streamClient) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
		zlog.Info().Str("client_id", client.id).Msg("Outcome stream client unregistered")
	}
}

// ClientCount 返回当前连接数
func (h *OutcomeHub) ClientCount() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// Pump 把订阅到的结果消息送入广播队列，直到 ctx 取消或订阅关闭
func (h *OutcomeHub) Pump(ctx context.Context, sub port.Subscription) error {
	defer sub.Close()
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, port.ErrSubscriptionClosed) || ctx.Err() != nil {
				return nil
			}
			zlog.Error().Err(err).Msg("outcome stream could not read message")
			continue
		}
		select {
		case h.broadcast <- msg.Payload:
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		}
		if err := sub.Ack(ctx, msg); err != nil {
			zlog.Error().Err(err).Msg("outcome stream failed to ack message")
		}
	}
}

// ServeWS 把 HTTP 连接升级为 websocket 并注册到 hub
func (h *OutcomeHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &streamClient{hub: h, conn: conn, send: make(chan []byte, clientSendSize), id: uuid.NewString()}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// streamClient 是一个 websocket 连接的代表
type streamClient struct {
	hub  *OutcomeHub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// writePump 把 send 中的消息写入连接，并定期发送 ping
func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				zlog.Debug().Err(err).Str("client_id", c.id).Msg("outcome stream connection broken")
				return
			}
			if !ok {
				// hub 已关闭该客户端
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					zlog.Debug().Err(err).Str("client_id", c.id).Msg("failed to send close frame")
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				zlog.Debug().Err(err).Str("client_id", c.id).Msg("failed to write outcome to client")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				zlog.Debug().Err(err).Str("client_id", c.id).Msg("outcome stream connection broken")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				zlog.Debug().Err(err).Str("client_id", c.id).Msg("failed to ping client")
				return
			}
		}
	}
}

// readPump 只处理 pong 和关闭，客户端发来的数据被忽略
func (c *streamClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		zlog.Debug().Err(err).Str("client_id", c.id).Msg("outcome stream connection broken")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
