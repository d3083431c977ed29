package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"blood-link/internal/mylogger"
	"blood-link/internal/observability"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/domain/model"
	websocketdto "blood-link/internal/request-service/core/domain/websocket_dto"
	"blood-link/internal/request-service/core/myerrors"
	"blood-link/internal/request-service/core/ports"
)

const arrivalPromptTitle = "Has the donor arrived?"

type TrackingService struct {
	mylog     mylogger.Logger
	requests  ports.IRequestRepo
	sessions  ports.ITrackingRepo
	profiles  ports.IProfileRepo
	lifecycle ports.IRequestService
	events    ports.IEventPublisher
	geocoder  ports.IGeocoder
	ws        ports.INotifyWebsocket
	notify    notifier
	metrics   *observability.Collector
	opts      Options
}

// NewTrackingService builds the tracking coordinator. ws streams live donor positions to
// the requester and may be nil, as may geocoder, which only labels those positions.
func NewTrackingService(
	log mylogger.Logger,
	store ports.IStore,
	lifecycle ports.IRequestService,
	events ports.IEventPublisher,
	notifyTarget ports.INotifier,
	geocoder ports.IGeocoder,
	ws ports.INotifyWebsocket,
	metrics *observability.Collector,
	opts Options,
) *TrackingService {
	return &TrackingService{
		mylog:     log,
		requests:  store,
		sessions:  store,
		profiles:  store,
		lifecycle: lifecycle,
		events:    events,
		geocoder:  geocoder,
		ws:        ws,
		notify:    notifier{log: log, target: notifyTarget, metrics: metrics},
		metrics:   metrics,
		opts:      opts.withDefaults(),
	}
}

var _ ports.ITrackingService = (*TrackingService)(nil)

// ReportLocation applies a donor position with last-write-wins semantics. The tracking
// deadline is fixed by the first ETA of the session and never moves afterwards.
func (ts *TrackingService) ReportLocation(ctx context.Context, requestID, donorID string, loc model.Location) (_ dto.TrackingUpdate, err error) {
	ctx, span := startSpan(ctx, "TrackingService.ReportLocation")
	defer func() { endSpan(span, err) }()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	log := ts.mylog.Action("ReportLocation").With("request-id", requestID, "donor-id", donorID)

	if err := loc.Validate(); err != nil {
		return dto.TrackingUpdate{}, myerrors.Wrap(myerrors.KindValidation, err, "invalid location")
	}

	r, err := ts.requests.Get(ctx, requestID)
	if err != nil {
		return dto.TrackingUpdate{}, err
	}
	if !r.HasDonor(donorID) {
		return dto.TrackingUpdate{}, myerrors.New(myerrors.KindPermission, "you have not accepted this request")
	}
	if r.Status != model.StatusAccepted {
		return dto.TrackingUpdate{}, myerrors.New(myerrors.KindInvalidState, "request is %s, tracking has ended", r.Status)
	}

	now := ts.opts.Now()
	update := dto.TrackingUpdate{RequestID: requestID, DonorID: donorID}

	session, err := ts.sessions.UpdateSession(ctx, requestID, donorID, func(s *model.TrackingSession) error {
		if !s.Open() {
			return myerrors.New(myerrors.KindInvalidState, "tracking session is %s", s.Status)
		}
		if s.StartedAt.IsZero() {
			s.StartedAt = now
		}
		l := loc
		s.LastLocation = &l
		s.LastReportedAt = &now

		if r.HospitalLocation == nil {
			return nil
		}
		d := model.HaversineKm(loc, *r.HospitalLocation)
		eta := model.EtaMinutes(d)
		s.DistanceKm = &d
		s.EtaMinutes = &eta
		if s.TrackingDeadline == nil {
			deadline := now.Add(time.Duration(eta*float64(time.Minute)) + model.TrackingDeadlineBuffer)
			s.TrackingDeadline = &deadline
		}
		if d < model.ArrivalThresholdKm {
			s.Status = model.SessionArrived
			s.EndedAt = &now
			if s.PromptedAt == nil {
				s.PromptedAt = &now
			}
			update.Arrived = true
		}
		return nil
	})
	if err != nil {
		if myerrors.KindOf(err) == "" {
			log.Error("cannot update tracking session", err)
		}
		return dto.TrackingUpdate{}, err
	}
	ts.metrics.LocationReported()

	update.DistanceKm = session.DistanceKm
	update.EtaMinutes = session.EtaMinutes
	update.TrackingDeadline = session.TrackingDeadline

	if _, err := ts.requests.Update(ctx, requestID, func(req *model.Request) error {
		i := req.DonorIndex(donorID)
		if i < 0 {
			return errSkip
		}
		l := loc
		req.Donors[i].LastKnownLocation = &l
		return nil
	}); err != nil && !errors.Is(err, errSkip) {
		log.Error("cannot store last known location", err)
	}

	ts.streamLocation(ctx, r.RequesterID, update, loc)

	if update.Arrived {
		log.Info("donor within arrival radius", "distance-km", *session.DistanceKm)
		ts.promptArrival(ctx, r, donorID, "proximity")
	}
	return update, nil
}

func (ts *TrackingService) streamLocation(ctx context.Context, requesterID string, update dto.TrackingUpdate, loc model.Location) {
	if ts.ws == nil {
		return
	}
	msg := websocketdto.DonorLocationUpdate{
		RequestID:     update.RequestID,
		DonorID:       update.DonorID,
		DonorLocation: websocketdto.Location{Lat: loc.Lat, Lng: loc.Lng},
		DistanceKm:    update.DistanceKm,
		EtaMinutes:    update.EtaMinutes,
	}
	if ts.geocoder != nil {
		// label only; lookup failures leave it empty
		if place, err := ts.geocoder.ReverseGeocode(ctx, loc); err == nil {
			msg.NearPlace = place
		}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ts.ws.WriteToUser(requesterID, websocketdto.Event{Type: model.EventLocationUpdate, Data: data})
}

func (ts *TrackingService) promptArrival(ctx context.Context, r model.Request, donorID, trigger string) {
	ts.metrics.ArrivalPrompt(trigger)
	body := fmt.Sprintf("Please confirm whether the donor has arrived at %s.", r.HospitalName)
	if donor, err := ts.profiles.GetProfile(ctx, donorID); err == nil && donor.Name != "" {
		body = fmt.Sprintf("Please confirm whether %s has arrived at %s.", donor.Name, r.HospitalName)
	}
	ts.notify.send(ctx, r.RequesterID, arrivalPromptTitle, body, map[string]string{
		"type":       model.EventArrivalPrompt,
		"request_id": r.ID,
		"donor_id":   donorID,
		"trigger":    trigger,
	})
	publishStatus(ctx, ts.mylog, ts.events, ts.metrics, r, model.EventArrivalPrompt, donorID, ts.opts.Now())
}

func (ts *TrackingService) OnArrivalConfirmed(ctx context.Context, requestID, byUserID string) (model.Request, error) {
	return ts.lifecycle.CompleteRequest(ctx, requestID, byUserID)
}

// OnArrivalDenied opens the final call path: the requester gets every accepted donor's
// phone number. The request itself is left as it is.
func (ts *TrackingService) OnArrivalDenied(ctx context.Context, requestID, byUserID string) (_ dto.FinalCallDto, err error) {
	ctx, span := startSpan(ctx, "TrackingService.OnArrivalDenied")
	defer func() { endSpan(span, err) }()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	log := ts.mylog.Action("OnArrivalDenied").With("request-id", requestID)

	r, err := ts.requests.Get(ctx, requestID)
	if err != nil {
		return dto.FinalCallDto{}, err
	}
	if r.RequesterID != byUserID {
		return dto.FinalCallDto{}, myerrors.New(myerrors.KindPermission, "only the requester can answer the arrival prompt")
	}
	if r.Status != model.StatusAccepted {
		return dto.FinalCallDto{}, myerrors.New(myerrors.KindInvalidState, "request is %s", r.Status)
	}

	out := dto.FinalCallDto{RequestID: r.ID, Donors: make([]dto.DonorContactDto, 0, len(r.Donors))}
	for _, d := range r.Donors {
		if _, err := ts.sessions.UpdateSession(ctx, r.ID, d.DonorID, func(s *model.TrackingSession) error {
			s.FinalCall = true
			return nil
		}); err != nil {
			log.Error("cannot mark final call", err, "donor-id", d.DonorID)
		}

		contact := dto.DonorContactDto{DonorID: d.DonorID}
		if p, err := ts.profiles.GetProfile(ctx, d.DonorID); err == nil {
			contact.Name = p.Name
			contact.Phone = p.Phone
		} else {
			log.Error("cannot load donor contact", err, "donor-id", d.DonorID)
		}
		out.Donors = append(out.Donors, contact)

		ts.notify.send(ctx, d.DonorID, "The requester is looking for you",
			fmt.Sprintf("The requester at %s has not seen you arrive yet and may call you.", r.HospitalName),
			map[string]string{"type": model.EventFinalCall, "request_id": r.ID})
	}
	log.Info("final call opened", "donors", len(out.Donors))
	publishStatus(ctx, ts.mylog, ts.events, ts.metrics, r, model.EventFinalCall, byUserID, ts.opts.Now())
	return out, nil
}

// OnDeadlineElapsed prompts the requester once for every session whose deadline passed
// without an arrival. It returns how many prompts fired.
func (ts *TrackingService) OnDeadlineElapsed(ctx context.Context, requestID string) (_ int, err error) {
	ctx, span := startSpan(ctx, "TrackingService.OnDeadlineElapsed")
	defer func() { endSpan(span, err) }()

	log := ts.mylog.Action("OnDeadlineElapsed").With("request-id", requestID)

	r, err := ts.requests.Get(ctx, requestID)
	if err != nil {
		return 0, err
	}
	if r.Status != model.StatusAccepted {
		return 0, nil
	}

	list, err := ts.sessions.ListSessions(ctx, requestID)
	if err != nil {
		return 0, err
	}

	now := ts.opts.Now()
	prompted := 0
	for _, s := range list {
		if !s.DeadlineElapsed(now) || s.PromptedAt != nil {
			continue
		}
		_, err := ts.sessions.UpdateSession(ctx, requestID, s.DonorID, func(cur *model.TrackingSession) error {
			if !cur.DeadlineElapsed(now) || cur.PromptedAt != nil {
				return errSkip
			}
			cur.PromptedAt = &now
			return nil
		})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			log.Error("cannot mark session prompted", err, "donor-id", s.DonorID)
			continue
		}
		prompted++
		log.Info("tracking deadline elapsed", "donor-id", s.DonorID, "deadline", s.TrackingDeadline)
		ts.promptArrival(ctx, r, s.DonorID, "deadline")
	}
	return prompted, nil
}

// CheckDeadlines is the sweeper entry: it fires the deadline prompt for every request
// that has a due session.
func (ts *TrackingService) CheckDeadlines(ctx context.Context) (int, error) {
	start := time.Now()
	due, err := ts.sessions.ListDueSessions(ctx, ts.opts.Now())
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool)
	var (
		total    int
		failures []error
	)
	for _, s := range due {
		if seen[s.RequestID] {
			continue
		}
		seen[s.RequestID] = true
		n, err := ts.OnDeadlineElapsed(ctx, s.RequestID)
		if err != nil && !errors.Is(err, myerrors.ErrNotFound) {
			failures = append(failures, fmt.Errorf("deadline %s: %w", s.RequestID, err))
		}
		total += n
	}
	ts.metrics.ObserveSweep("tracking", time.Since(start), total)
	return total, errors.Join(failures...)
}
