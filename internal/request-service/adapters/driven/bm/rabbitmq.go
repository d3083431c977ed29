package bm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"blood-link/internal/config"
	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/ports"

	messagebrokerdto "blood-link/internal/request-service/core/domain/message_broker_dto"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange       = "blood_topic"
	reconnInterval = 10
)

var ErrConnClosed = errors.New("connection is closed")

type RabbitMQ struct {
	ctx          context.Context
	cfg          config.RabbitMqconfig
	mylog        mylogger.Logger
	conn         *amqp.Connection
	ch           *amqp.Channel
	reconnecting bool
	mu           *sync.Mutex
}

// New dials RabbitMQ and declares the topic exchange every event goes through.
func New(ctx context.Context, rabbitmqCfg config.RabbitMqconfig, mylog mylogger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{
		ctx:   ctx,
		cfg:   rabbitmqCfg,
		mylog: mylog,
		mu:    &sync.Mutex{},
	}
	if err := r.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	return r, nil
}

var _ ports.IRequestBroker = (*RabbitMQ)(nil)

// PushRequestCreated fans a new request out on request.created.<group> so workers
// subscribed to a donor group only see requests that group can serve.
func (r *RabbitMQ) PushRequestCreated(ctx context.Context, msg messagebrokerdto.RequestCreated) error {
	routingKey := fmt.Sprintf("request.created.%s", model.BloodGroup(msg.BloodGroup).TopicKey())
	priority := uint8(0)
	if msg.Urgency == string(model.Critical) {
		priority = 9
	}
	return r.publish(ctx, routingKey, msg.CorrelationID, priority, msg)
}

func (r *RabbitMQ) PushRequestStatus(ctx context.Context, msg messagebrokerdto.RequestStatus) error {
	return r.publish(ctx, msg.Event, msg.CorrelationID, 0, msg)
}

func (r *RabbitMQ) PushNotification(ctx context.Context, msg messagebrokerdto.Notification) error {
	return r.publish(ctx, "notify."+msg.UserID, "", 0, msg)
}

func (r *RabbitMQ) publish(ctx context.Context, routingKey, correlationID string, priority uint8, message any) error {
	mylog := r.mylog.Action("pushMessage")

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	r.mu.Lock()
	conn, ch := r.conn, r.ch
	r.mu.Unlock()
	if conn == nil || conn.IsClosed() || ch == nil || ch.IsClosed() {
		mylog.Error("connection between rabbitmq is closed", ErrConnClosed, "routing-key", routingKey)
		go r.reconnect(r.ctx)
		return ErrConnClosed
	}

	return ch.PublishWithContext(ctx, Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Priority:      priority,
		CorrelationId: correlationID,
		Timestamp:     time.Now(),
		Body:          body,
	})
}

// ConsumeLocations declares a durable queue bound to location.* and starts consuming it
// with manual acks.
func (r *RabbitMQ) ConsumeLocations(ctx context.Context, queue string) (<-chan amqp.Delivery, error) {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()
	if ch == nil || ch.IsClosed() {
		return nil, ErrConnClosed
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(q.Name, ports.LocationUpdates, Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}
	return ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
}

func (r *RabbitMQ) IsAlive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return false
	}
	if r.ch == nil || r.ch.IsClosed() {
		return false
	}
	return true
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(dsn(r.cfg))
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return err
	}

	r.mu.Lock()
	r.conn = conn
	r.ch = ch
	r.mu.Unlock()
	return nil
}

func (r *RabbitMQ) reconnect(ctx context.Context) {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	t := time.NewTicker(time.Second * reconnInterval)
	defer t.Stop()
	mylog := r.mylog.Action("mb_reconnecting")

	for {
		select {
		case <-t.C:
			if err := r.connect(); err == nil {
				mylog.Action("mb_reconnection_completed").Info("Successfully reconnected!")
				return
			}
			mylog.Info("rabbitmq failed to reconnect")
		case <-ctx.Done():
			return
		}
	}
}

func dsn(cfg config.RabbitMqconfig) string {
	return fmt.Sprintf("amqp://%v:%v@%v:%v/%v", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.VHost)
}
