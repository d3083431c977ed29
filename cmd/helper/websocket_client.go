package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type WebSocketClient struct {
	conn   *websocket.Conn
	ctx    context.Context
	logger *Logger
}

func NewWebSocketClient(ctx context.Context, logger *Logger) *WebSocketClient {
	return &WebSocketClient{
		ctx:    ctx,
		logger: logger,
	}
}

// Connect dials url and sends the auth frame the server expects first.
func (w *WebSocketClient) Connect(url, token string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(w.ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connecting to websocket: %w", err)
	}
	w.conn = conn

	data, err := json.Marshal(map[string]string{"token": "Bearer " + token})
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(Event{Type: "auth", Data: data}); err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}
	w.logger.WebSocket("connected to %s", url)
	return nil
}

func (w *WebSocketClient) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

func (w *WebSocketClient) ReadMessages(handler func(e Event)) error {
	go func() {
		<-w.ctx.Done()
		_ = w.Close()
	}()
	for {
		var e Event
		if err := w.conn.ReadJSON(&e); err != nil {
			if w.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading message: %w", err)
		}
		handler(e)
	}
}
