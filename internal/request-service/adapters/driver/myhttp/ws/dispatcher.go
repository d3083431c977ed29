package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"blood-link/internal/mylogger"
	websocketdto "blood-link/internal/request-service/core/domain/websocket_dto"
	"blood-link/internal/request-service/core/ports"

	"github.com/gorilla/websocket"
)

const (
	authTimeout = 5 * time.Second

	// websocket type
	authEvent   = "auth"
	authOkEvent = "auth_ok"
)

// websocketUpgrader is used to upgrade incoming HTTP requests into a persistent websocket connection
var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientList is a map used to help manage a map of clients
type ClientList map[*Client]bool

// TokenParser returns the user id a bearer token belongs to.
type TokenParser func(token string) (string, error)

// Dispatcher keeps the authenticated connections of every user and fans events out to them.
type Dispatcher struct {
	ctx     context.Context
	clients map[string]ClientList
	sync.RWMutex
	log   mylogger.Logger
	parse TokenParser
}

var _ ports.INotifyWebsocket = (*Dispatcher)(nil)

func NewDispatcher(ctx context.Context, log mylogger.Logger, parse TokenParser) *Dispatcher {
	return &Dispatcher{
		ctx:     ctx,
		clients: make(map[string]ClientList),
		log:     log,
		parse:   parse,
	}
}

// WsHandler serves /ws/users/{user_id}. The first frame must be an auth event whose
// token belongs to the user in the path.
func (d *Dispatcher) WsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := d.log.Action("WsHandler")
		userId := r.PathValue("user_id")
		if userId == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		conn, err := websocketUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("cannot upgrade", err)
			return
		}

		if err := d.authenticate(conn, userId); err != nil {
			log.Warn("websocket auth failed", "user_id", userId, "reason", err.Error())
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}

		client := NewClient(d.ctx, conn, d, userId)
		d.AddClient(client)
		log.Info("websocket connected", "user_id", userId)

		go client.ReadMessage()
		go client.WriteMessage()

		data, _ := json.Marshal(map[string]string{"user_id": userId})
		client.send(websocketdto.Event{Type: authOkEvent, Data: data})
	}
}

func (d *Dispatcher) authenticate(conn *websocket.Conn, userId string) error {
	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var e websocketdto.Event
	if err := conn.ReadJSON(&e); err != nil {
		return err
	}
	if e.Type != authEvent {
		return errNotAuth
	}
	var msg websocketdto.AuthMessage
	if err := json.Unmarshal(e.Data, &msg); err != nil {
		return err
	}
	tokenUser, err := d.parse(msg.Token)
	if err != nil {
		return err
	}
	if tokenUser != userId {
		return errWrongUser
	}
	return nil
}

// WriteToUser queues msg on every open connection of the user. Offline users are skipped.
func (d *Dispatcher) WriteToUser(userId string, msg websocketdto.Event) {
	d.RLock()
	defer d.RUnlock()
	for c := range d.clients[userId] {
		c.send(msg)
	}
}

func (d *Dispatcher) AddClient(client *Client) {
	d.Lock()
	defer d.Unlock()

	if d.clients[client.userId] == nil {
		d.clients[client.userId] = make(ClientList)
	}
	d.clients[client.userId][client] = true
}

func (d *Dispatcher) RemoveClient(client *Client) {
	d.Lock()
	defer d.Unlock()

	list, ok := d.clients[client.userId]
	if !ok || !list[client] {
		return
	}
	delete(list, client)
	if len(list) == 0 {
		delete(d.clients, client.userId)
	}
	client.close()
}

// Connected reports how many open connections userId has.
func (d *Dispatcher) Connected(userId string) int {
	d.RLock()
	defer d.RUnlock()
	return len(d.clients[userId])
}

// Close drops every connection.
func (d *Dispatcher) Close() {
	d.Lock()
	defer d.Unlock()
	for _, list := range d.clients {
		for c := range list {
			c.close()
		}
	}
	d.clients = make(map[string]ClientList)
}
