package consumer

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"

	"github.com/rabbitmq/amqp091-go"
)

type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(bool) error {
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(_ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

type fakeTracking struct {
	err  error
	got  []model.Location
	seen []string
}

func (f *fakeTracking) ReportLocation(_ context.Context, requestID, donorID string, loc model.Location) (dto.TrackingUpdate, error) {
	f.got = append(f.got, loc)
	f.seen = append(f.seen, requestID+"/"+donorID)
	return dto.TrackingUpdate{RequestID: requestID, DonorID: donorID}, f.err
}

func (f *fakeTracking) OnArrivalConfirmed(context.Context, string, string) (model.Request, error) {
	return model.Request{}, nil
}

func (f *fakeTracking) OnArrivalDenied(context.Context, string, string) (dto.FinalCallDto, error) {
	return dto.FinalCallDto{}, nil
}

func (f *fakeTracking) OnDeadlineElapsed(context.Context, string) (int, error) { return 0, nil }

func (f *fakeTracking) CheckDeadlines(context.Context) (int, error) { return 0, nil }

type chanSource struct{ ch chan amqp091.Delivery }

func (c chanSource) ConsumeLocations(context.Context, string) (<-chan amqp091.Delivery, error) {
	return c.ch, nil
}

func newLocations(tracking *fakeTracking, source ILocationSource) (*Locations, *sync.WaitGroup, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	log := mylogger.NewWithWriter(mylogger.LevelError, io.Discard)
	return New(ctx, wg, log, source, tracking), wg, cancel
}

const body = `{"donor_id":"d1","request_id":"r1","location":{"lat":40.1,"lng":29.2},"timestamp":"2024-05-01T12:00:00Z"}`

func TestLocationUpdateAcks(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		err         error
		redelivered bool
		wantAck     bool
		wantRequeue bool
	}{
		{name: "applied", body: body, wantAck: true},
		{name: "bad json", body: "{", wantAck: false},
		{name: "domain rejection", body: body, err: myerrors.New(myerrors.KindInvalidState, "closed")},
		{name: "store down", body: body, err: errors.New("db down"), wantRequeue: true},
		{name: "store down again", body: body, err: errors.New("db down"), redelivered: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracking := &fakeTracking{err: tc.err}
			l, _, cancel := newLocations(tracking, nil)
			defer cancel()

			ack := &ackRecorder{}
			l.LocationUpdate(context.Background(), []byte(tc.body), tc.redelivered, ack)
			if ack.acked != tc.wantAck || ack.nacked == tc.wantAck {
				t.Fatalf("acked=%v nacked=%v", ack.acked, ack.nacked)
			}
			if ack.requeue != tc.wantRequeue {
				t.Fatalf("requeue=%v want %v", ack.requeue, tc.wantRequeue)
			}
		})
	}
}

func TestLocationUpdatePassesCoordinates(t *testing.T) {
	tracking := &fakeTracking{}
	l, _, cancel := newLocations(tracking, nil)
	defer cancel()

	l.LocationUpdate(context.Background(), []byte(body), false, &ackRecorder{})
	if len(tracking.got) != 1 || tracking.got[0] != (model.Location{Lat: 40.1, Lng: 29.2}) || tracking.seen[0] != "r1/d1" {
		t.Fatalf("unexpected call %+v %v", tracking.got, tracking.seen)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	source := chanSource{ch: make(chan amqp091.Delivery)}
	l, wg, cancel := newLocations(&fakeTracking{}, source)
	if err := l.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	cancel()
	wg.Wait()
}
