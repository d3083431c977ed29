package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/model"
	messagebrokerdto "blood-link/internal/request-service/core/domain/message_broker_dto"
	websocketdto "blood-link/internal/request-service/core/domain/websocket_dto"
	"blood-link/internal/request-service/core/ports"

	"github.com/google/uuid"
)

const (
	// websocket type
	notificationEvent = "notification"
)

// Notification records a push in the user's history, then fans it out to the
// user's websocket and to notify.<user_id> on the broker. Any of the three may be nil.
type Notification struct {
	log        mylogger.Logger
	history    ports.INotificationRepo
	dispatcher ports.INotifyWebsocket
	publisher  ports.IEventPublisher
	now        func() time.Time
}

var _ ports.INotifier = (*Notification)(nil)

func New(log mylogger.Logger, history ports.INotificationRepo, dispatcher ports.INotifyWebsocket, publisher ports.IEventPublisher) *Notification {
	return &Notification{
		log:        log,
		history:    history,
		dispatcher: dispatcher,
		publisher:  publisher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (n *Notification) Notify(ctx context.Context, userID, title, body string, data map[string]string) error {
	log := n.log.Action("Notify").With("user_id", userID)
	if userID == "" {
		return errors.New("empty user id")
	}

	entry := model.Notification{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   data,
		SentAt: n.now(),
	}
	var historyErr error
	if n.history != nil {
		// a lost history entry must not stop delivery
		if historyErr = n.history.AppendNotification(ctx, entry); historyErr != nil {
			log.Error("cannot record notification", historyErr)
		}
	}

	if n.dispatcher != nil {
		payload, err := json.Marshal(websocketdto.Notification{ID: entry.ID, Title: title, Body: body, Data: data})
		if err != nil {
			return err
		}
		n.dispatcher.WriteToUser(userID, websocketdto.Event{Type: notificationEvent, Data: payload})
	}

	if n.publisher == nil {
		return historyErr
	}
	msg := messagebrokerdto.Notification{
		UserID:    userID,
		Title:     title,
		Body:      body,
		Data:      data,
		Timestamp: entry.SentAt.Format(time.RFC3339),
	}
	if err := n.publisher.PushNotification(ctx, msg); err != nil {
		log.Error("cannot publish notification", err)
		return errors.Join(historyErr, err)
	}
	log.Debug("notification sent", "title", title)
	return historyErr
}
