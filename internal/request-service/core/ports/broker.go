package ports

import (
	"context"

	messagebrokerdto "blood-link/internal/request-service/core/domain/message_broker_dto"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	LocationUpdates = "location.*"
)

// IEventPublisher is the event-emission hook the services write to.
type IEventPublisher interface {
	PushRequestCreated(ctx context.Context, msg messagebrokerdto.RequestCreated) error
	PushRequestStatus(ctx context.Context, msg messagebrokerdto.RequestStatus) error
	PushNotification(ctx context.Context, msg messagebrokerdto.Notification) error
}

type IRequestBroker interface {
	IEventPublisher
	Close() error
	IsAlive() bool

	ConsumeLocations(ctx context.Context, queue string) (<-chan amqp.Delivery, error)
}
