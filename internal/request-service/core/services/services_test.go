package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/adapters/driven/memory"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/domain/model"
	messagebrokerdto "blood-link/internal/request-service/core/domain/message_broker_dto"
	websocketdto "blood-link/internal/request-service/core/domain/websocket_dto"
	"blood-link/internal/request-service/core/myerrors"
)

var (
	t0          = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cityHosp    = model.Location{Lat: 40.0, Lng: 29.0}
	farHosp     = model.Location{Lat: 41.0, Lng: 29.0}
	errOffline  = errors.New("offline")
	nearbyPoint = model.Location{Lat: 40.05, Lng: 29.0}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentNotification struct {
	userID string
	title  string
	data   map[string]string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	fail bool
}

func (f *fakeNotifier) Notify(_ context.Context, userID, title, _ string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errOffline
	}
	f.sent = append(f.sent, sentNotification{userID: userID, title: title, data: data})
	return nil
}

func (f *fakeNotifier) count(userID, eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.userID == userID && s.data["type"] == eventType {
			n++
		}
	}
	return n
}

type fakeGeocoder struct{}

func (fakeGeocoder) ResolveAddress(_ context.Context, text string) (model.Hospital, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "city hospital":
		loc := cityHosp
		return model.Hospital{Name: "City Hospital", Address: "1 Main St", Location: &loc}, nil
	case "far hospital":
		loc := farHosp
		return model.Hospital{Name: "Far Hospital", Address: "9 North Rd", Location: &loc}, nil
	case "field clinic":
		return model.Hospital{Name: "Field Clinic", Address: "unknown"}, nil
	}
	return model.Hospital{}, myerrors.New(myerrors.KindNotFound, "no hospital matches %q", text)
}

func (fakeGeocoder) ReverseGeocode(_ context.Context, loc model.Location) (string, error) {
	if model.HaversineKm(loc, cityHosp) < 1 {
		return "City Hospital", nil
	}
	return "", nil
}

type fakePublisher struct {
	mu      sync.Mutex
	created []messagebrokerdto.RequestCreated
	status  []messagebrokerdto.RequestStatus
}

func (p *fakePublisher) PushRequestCreated(_ context.Context, msg messagebrokerdto.RequestCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, msg)
	return nil
}

func (p *fakePublisher) PushRequestStatus(_ context.Context, msg messagebrokerdto.RequestStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = append(p.status, msg)
	return nil
}

func (p *fakePublisher) PushNotification(context.Context, messagebrokerdto.Notification) error {
	return nil
}

func (p *fakePublisher) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.status))
	for _, s := range p.status {
		out = append(out, s.Event)
	}
	return out
}

type fakeArchive struct {
	mu   sync.Mutex
	objs map[string][]byte
	fail bool
}

func (a *fakeArchive) Put(_ context.Context, key string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errOffline
	}
	if a.objs == nil {
		a.objs = make(map[string][]byte)
	}
	a.objs[key] = body
	return nil
}

type fakeSocket struct {
	mu     sync.Mutex
	events map[string][]websocketdto.Event
}

func (f *fakeSocket) WriteToUser(userID string, msg websocketdto.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		f.events = make(map[string][]websocketdto.Event)
	}
	f.events[userID] = append(f.events[userID], msg)
}

type env struct {
	store    *memory.Store
	clock    *clock
	notes    *fakeNotifier
	pub      *fakePublisher
	archive  *fakeArchive
	socket   *fakeSocket
	requests *RequestService
	matching *MatchingService
	tracking *TrackingService
	profiles *ProfileService
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	e := &env{
		store:   memory.New(),
		clock:   &clock{now: t0},
		notes:   &fakeNotifier{},
		pub:     &fakePublisher{},
		archive: &fakeArchive{},
		socket:  &fakeSocket{},
	}
	opts.Now = e.clock.Now
	log := mylogger.NewWithWriter(mylogger.LevelError, io.Discard)

	e.requests = NewRequestService(log, e.store, e.pub, e.notes, fakeGeocoder{}, e.archive, nil, opts)
	e.matching = NewMatchingService(log, e.store, e.pub, e.notes, nil, opts)
	e.tracking = NewTrackingService(log, e.store, e.requests, e.pub, e.notes, fakeGeocoder{}, e.socket, nil, opts)
	e.profiles = NewProfileService(log, e.store, opts)
	return e
}

func (e *env) profile(t *testing.T, userID, group string, home *model.Location) {
	t.Helper()
	_, err := e.profiles.UpsertProfile(context.Background(), userID, dto.ProfileDto{
		Name:         "user " + userID,
		Phone:        "+1-555-" + userID,
		BloodGroup:   group,
		HomeLocation: home,
		IsAvailable:  true,
	})
	if err != nil {
		t.Fatalf("upsert profile %s: %v", userID, err)
	}
}

func (e *env) create(t *testing.T, requester, group string, units int, urgency, hospital string) model.Request {
	t.Helper()
	r, err := e.requests.CreateRequest(context.Background(), dto.CreateRequestDto{
		RequesterID: requester,
		BloodGroup:  group,
		UnitsNeeded: units,
		Urgency:     urgency,
		Hospital:    hospital,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return r
}

func assertKind(t *testing.T, err error, kind myerrors.Kind) {
	t.Helper()
	if got := myerrors.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %v (%s)", kind, err, got)
	}
}

func assertRequestInvariants(t *testing.T, r model.Request) {
	t.Helper()
	if r.UnitsFulfilled < 0 || r.UnitsFulfilled > r.UnitsNeeded {
		t.Fatalf("units fulfilled %d out of range [0,%d]", r.UnitsFulfilled, r.UnitsNeeded)
	}
	if len(r.Donors) != r.UnitsFulfilled {
		t.Fatalf("donors %d != units fulfilled %d", len(r.Donors), r.UnitsFulfilled)
	}
	seen := map[string]bool{}
	for _, d := range r.Donors {
		if seen[d.DonorID] {
			t.Fatalf("donor %s appears twice", d.DonorID)
		}
		seen[d.DonorID] = true
	}
}

func TestWithConflictRetry(t *testing.T) {
	calls := 0
	err := withConflictRetry(func() error {
		calls++
		if calls == 1 {
			return myerrors.New(myerrors.KindConflict, "busy")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected one retry, calls=%d err=%v", calls, err)
	}

	calls = 0
	err = withConflictRetry(func() error {
		calls++
		return myerrors.New(myerrors.KindConflict, "busy")
	})
	if !errors.Is(err, myerrors.ErrConflict) || calls != 2 {
		t.Fatalf("expected conflict after two calls, calls=%d err=%v", calls, err)
	}

	calls = 0
	_ = withConflictRetry(func() error {
		calls++
		return myerrors.New(myerrors.KindFulfilled, "full")
	})
	if calls != 1 {
		t.Fatalf("non conflict errors are not retried, calls=%d", calls)
	}
}
