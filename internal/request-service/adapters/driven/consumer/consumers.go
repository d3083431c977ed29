package consumer

import (
	"context"
	"encoding/json"
	"sync"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"
	"blood-link/internal/request-service/core/ports"

	messagebrokerdto "blood-link/internal/request-service/core/domain/message_broker_dto"

	"github.com/rabbitmq/amqp091-go"
)

// LocationQueue collects location.<request_id> messages published by donor devices.
const LocationQueue = "donor_locations"

// ILocationSource is the consuming half of the broker.
type ILocationSource interface {
	ConsumeLocations(ctx context.Context, queue string) (<-chan amqp091.Delivery, error)
}

// acknowledger is the part of amqp091.Delivery the handlers need.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type Locations struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	log      mylogger.Logger
	source   ILocationSource
	tracking ports.ITrackingService
}

func New(
	ctx context.Context,
	wg *sync.WaitGroup,
	log mylogger.Logger,
	source ILocationSource,
	tracking ports.ITrackingService,
) *Locations {
	return &Locations{
		ctx:      ctx,
		wg:       wg,
		log:      log,
		source:   source,
		tracking: tracking,
	}
}

func (l *Locations) Run() error {
	ch, err := l.source.ConsumeLocations(l.ctx, LocationQueue)
	if err != nil {
		return err
	}

	l.wg.Add(1)
	go l.work(l.ctx, ch)
	return nil
}

func (l *Locations) work(ctx context.Context, ch <-chan amqp091.Delivery) {
	log := l.log.Action("work")
	defer func() {
		log.Info("location worker is done")
		l.wg.Done()
	}()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.LocationUpdate(ctx, msg.Body, msg.Redelivered, msg)
		case <-ctx.Done():
			return
		}
	}
}

// LocationUpdate applies one donor position. Domain rejections are dropped without
// requeue; infrastructure failures are requeued once.
func (l *Locations) LocationUpdate(ctx context.Context, body []byte, redelivered bool, ack acknowledger) {
	log := l.log.Action("LocationUpdate")

	m := messagebrokerdto.LocationUpdate{}
	if err := json.Unmarshal(body, &m); err != nil {
		log.Error("cannot unmarshal", err)
		ack.Nack(false, false)
		return
	}

	loc := model.Location{Lat: m.Location.Lat, Lng: m.Location.Lng}
	update, err := l.tracking.ReportLocation(ctx, m.RequestID, m.DonorID, loc)
	if err != nil {
		if myerrors.KindOf(err) != "" {
			log.Warn("location rejected", "request-id", m.RequestID, "donor-id", m.DonorID, "reason", err.Error())
			ack.Nack(false, false)
			return
		}
		log.Error("cannot report location", err, "request-id", m.RequestID, "donor-id", m.DonorID)
		ack.Nack(false, !redelivered)
		return
	}
	log.Debug("location applied", "request-id", m.RequestID, "donor-id", m.DonorID, "arrived", update.Arrived)
	ack.Ack(false)
}
