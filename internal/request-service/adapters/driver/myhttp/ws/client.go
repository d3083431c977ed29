package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	websocketdto "blood-link/internal/request-service/core/domain/websocket_dto"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	egressSize = 32
)

var (
	errNotAuth   = errors.New("first message must be an auth event")
	errWrongUser = errors.New("token does not belong to this user")
)

type Client struct {
	ctx    context.Context
	conn   *websocket.Conn
	dis    *Dispatcher
	egress chan websocketdto.Event
	userId string

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(ctx context.Context, conn *websocket.Conn, dis *Dispatcher, userId string) *Client {
	return &Client{
		ctx:    ctx,
		conn:   conn,
		dis:    dis,
		egress: make(chan websocketdto.Event, egressSize),
		userId: userId,
		done:   make(chan struct{}),
	}
}

// send never blocks the caller; a client that cannot keep up loses the event.
func (c *Client) send(e websocketdto.Event) {
	select {
	case <-c.done:
	case c.egress <- e:
	default:
		c.dis.log.Warn("websocket client is slow, event dropped", "user_id", c.userId, "type", e.Type)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// ReadMessage only keeps the connection alive; clients push nothing after auth.
func (c *Client) ReadMessage() {
	defer c.dis.RemoveClient(c)

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.dis.log.Warn("websocket closed unexpectedly", "user_id", c.userId, "reason", err.Error())
			}
			return
		}
	}
}

func (c *Client) WriteMessage() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.dis.RemoveClient(c)
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-c.done:
			return
		case event := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
