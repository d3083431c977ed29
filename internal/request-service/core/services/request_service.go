package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"blood-link/internal/mylogger"
	"blood-link/internal/observability"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"
	"blood-link/internal/request-service/core/ports"

	messagebrokerdto "blood-link/internal/request-service/core/domain/message_broker_dto"

	"github.com/google/uuid"
)

type RequestService struct {
	mylog    mylogger.Logger
	requests ports.IRequestRepo
	sessions ports.ITrackingRepo
	profiles ports.IProfileRepo
	stats    ports.IStatsRepo
	events   ports.IEventPublisher
	geocoder ports.IGeocoder
	archive  ports.IArchive
	notify   notifier
	metrics  *observability.Collector
	opts     Options
}

// NewRequestService wires the lifecycle manager. events and archive may be nil.
func NewRequestService(
	log mylogger.Logger,
	store ports.IStore,
	events ports.IEventPublisher,
	notifyTarget ports.INotifier,
	geocoder ports.IGeocoder,
	archive ports.IArchive,
	metrics *observability.Collector,
	opts Options,
) *RequestService {
	return &RequestService{
		mylog:    log,
		requests: store,
		sessions: store,
		profiles: store,
		stats:    store,
		events:   events,
		geocoder: geocoder,
		archive:  archive,
		notify:   notifier{log: log, target: notifyTarget, metrics: metrics},
		metrics:  metrics,
		opts:     opts.withDefaults(),
	}
}

var _ ports.IRequestService = (*RequestService)(nil)

func (rs *RequestService) CreateRequest(ctx context.Context, req dto.CreateRequestDto) (_ model.Request, err error) {
	ctx, span := startSpan(ctx, "RequestService.CreateRequest")
	defer func() { endSpan(span, err) }()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	log := rs.mylog.Action("CreateRequest").With("requester-id", req.RequesterID)

	if strings.TrimSpace(req.RequesterID) == "" {
		return model.Request{}, myerrors.New(myerrors.KindValidation, "requester id is required")
	}

	profile, err := rs.profiles.GetProfile(ctx, req.RequesterID)
	if err != nil && !errors.Is(err, myerrors.ErrNotFound) {
		log.Error("cannot load requester profile", err)
		return model.Request{}, err
	}
	if err != nil || !profile.Complete() {
		return model.Request{}, myerrors.New(myerrors.KindValidation, "complete your profile (name, phone number, blood group) before posting a request")
	}

	group, err := model.ParseBloodGroup(req.BloodGroup)
	if err != nil {
		return model.Request{}, myerrors.Wrap(myerrors.KindValidation, err, "invalid blood group")
	}
	if req.UnitsNeeded < model.MinUnits || req.UnitsNeeded > model.MaxUnits {
		return model.Request{}, myerrors.New(myerrors.KindValidation, "units needed must be between %d and %d", model.MinUnits, model.MaxUnits)
	}
	urgency, err := model.ParseUrgency(req.Urgency)
	if err != nil {
		return model.Request{}, myerrors.Wrap(myerrors.KindValidation, err, "invalid urgency")
	}
	if req.PatientAge < 0 || req.PatientAge > 150 {
		return model.Request{}, myerrors.New(myerrors.KindValidation, "patient age must be between 0 and 150")
	}
	if strings.TrimSpace(req.Hospital) == "" {
		return model.Request{}, myerrors.New(myerrors.KindValidation, "hospital is required")
	}

	hospital, err := rs.geocoder.ResolveAddress(ctx, req.Hospital)
	if err != nil {
		if errors.Is(err, myerrors.ErrNotFound) {
			return model.Request{}, myerrors.Wrap(myerrors.KindValidation, err, "hospital %q is not a known location", req.Hospital)
		}
		log.Error("cannot resolve hospital", err)
		return model.Request{}, fmt.Errorf("resolve hospital: %w", err)
	}

	contact := strings.TrimSpace(req.ContactNumber)
	if contact == "" {
		contact = profile.Phone
	}

	now := rs.opts.Now()
	r := model.Request{
		ID:               uuid.NewString(),
		RequesterID:      req.RequesterID,
		BloodGroup:       group,
		UnitsNeeded:      req.UnitsNeeded,
		Urgency:          urgency,
		HospitalName:     hospital.Name,
		HospitalAddress:  hospital.Address,
		HospitalLocation: hospital.Location,
		ContactNumber:    contact,
		PatientName:      strings.TrimSpace(req.PatientName),
		PatientAge:       req.PatientAge,
		Status:           model.StatusActive,
		Donors:           []model.DonorAcceptance{},
		Flagged:          model.ShouldFlag(urgency, req.UnitsNeeded),
		CreatedAt:        now,
		ExpiresAt:        now.Add(urgency.Duration()),
	}

	if err := rs.requests.Create(ctx, r, rs.opts.MaxActivePerRequester); err != nil {
		if myerrors.KindOf(err) == myerrors.KindRateLimit {
			log.Warn("active request limit reached")
			return model.Request{}, myerrors.New(myerrors.KindRateLimit, "you already have %d active requests", rs.opts.MaxActivePerRequester)
		}
		log.Error("cannot create request", err)
		return model.Request{}, err
	}

	rs.metrics.RequestCreated(string(r.BloodGroup), string(r.Urgency), r.Flagged)
	log.Info("request created", "request-id", r.ID, "blood-group", r.BloodGroup, "urgency", r.Urgency, "units", r.UnitsNeeded, "flagged", r.Flagged)

	rs.publishCreated(ctx, r)
	if r.Flagged {
		log.Warn("request flagged for moderation", "request-id", r.ID)
		rs.publishStatus(ctx, r, model.EventRequestFlagged, r.RequesterID)
	}
	return r, nil
}

func (rs *RequestService) GetRequest(ctx context.Context, requestID string) (model.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return rs.requests.Get(ctx, requestID)
}

// ListMine returns the requester's own requests, newest first. An empty status means all.
func (rs *RequestService) ListMine(ctx context.Context, requesterID, status string) ([]model.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var want model.Status
	if status != "" {
		st, err := model.ParseStatus(status)
		if err != nil {
			return nil, myerrors.Wrap(myerrors.KindValidation, err, "invalid status filter")
		}
		want = st
	}
	list, err := rs.requests.ListByRequester(ctx, requesterID)
	if err != nil {
		rs.mylog.Action("ListMine").Error("cannot list requester requests", err, "requester-id", requesterID)
		return nil, err
	}
	if want == "" {
		return list, nil
	}
	out := list[:0]
	for _, r := range list {
		if r.Status == want {
			out = append(out, r)
		}
	}
	return out, nil
}

func (rs *RequestService) CancelRequest(ctx context.Context, requestID, byUserID string) (_ model.Request, err error) {
	ctx, span := startSpan(ctx, "RequestService.CancelRequest")
	defer func() { endSpan(span, err) }()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	log := rs.mylog.Action("CancelRequest").With("request-id", requestID)

	var updated model.Request
	err = withConflictRetry(func() error {
		var uerr error
		updated, uerr = rs.requests.Update(ctx, requestID, func(r *model.Request) error {
			if r.RequesterID != byUserID {
				return myerrors.New(myerrors.KindPermission, "only the requester can cancel this request")
			}
			if !r.Status.Open() {
				return myerrors.New(myerrors.KindInvalidState, "request is already %s", r.Status)
			}
			now := rs.opts.Now()
			r.Status = model.StatusCancelled
			r.CancelledAt = &now
			return nil
		})
		return uerr
	})
	if err != nil {
		return model.Request{}, err
	}

	rs.metrics.Transition(string(model.StatusCancelled))
	log.Info("request cancelled")

	rs.closeSessions(ctx, updated.ID)
	for _, donorID := range updated.DonorIDs() {
		rs.notify.send(ctx, donorID, "Request cancelled",
			fmt.Sprintf("The %s request at %s was cancelled by the requester.", updated.BloodGroup, updated.HospitalName),
			map[string]string{"type": model.EventRequestCancelled, "request_id": updated.ID})
	}
	rs.publishStatus(ctx, updated, model.EventRequestCancelled, byUserID)
	return updated, nil
}

// CompleteRequest closes an accepted request regardless of how many units were fulfilled.
func (rs *RequestService) CompleteRequest(ctx context.Context, requestID, byUserID string) (_ model.Request, err error) {
	ctx, span := startSpan(ctx, "RequestService.CompleteRequest")
	defer func() { endSpan(span, err) }()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	log := rs.mylog.Action("CompleteRequest").With("request-id", requestID)

	var updated model.Request
	err = withConflictRetry(func() error {
		var uerr error
		updated, uerr = rs.requests.Update(ctx, requestID, func(r *model.Request) error {
			if r.RequesterID != byUserID {
				return myerrors.New(myerrors.KindPermission, "only the requester can complete this request")
			}
			if r.Status != model.StatusAccepted {
				return myerrors.New(myerrors.KindInvalidState, "only accepted requests can be completed, request is %s", r.Status)
			}
			now := rs.opts.Now()
			r.Status = model.StatusCompleted
			r.CompletedAt = &now
			return nil
		})
		return uerr
	})
	if err != nil {
		return model.Request{}, err
	}

	rs.metrics.Transition(string(model.StatusCompleted))
	log.Info("request completed", "units-fulfilled", updated.UnitsFulfilled, "units-needed", updated.UnitsNeeded)

	rs.closeSessions(ctx, updated.ID)
	for _, donorID := range updated.DonorIDs() {
		if err := rs.stats.IncrementDonationCount(ctx, donorID); err != nil {
			rs.metrics.CollaboratorFailed("stats")
			log.Error("cannot increment donation count", err, "donor-id", donorID)
		}
		rs.notify.send(ctx, donorID, "Thank you for donating",
			fmt.Sprintf("Your donation at %s was confirmed.", updated.HospitalName),
			map[string]string{"type": model.EventRequestCompleted, "request_id": updated.ID})
	}
	if err := rs.stats.IncrementGlobalStat(ctx, GlobalDonationsStat); err != nil {
		rs.metrics.CollaboratorFailed("stats")
		log.Error("cannot increment global donations", err)
	}
	rs.publishStatus(ctx, updated, model.EventRequestCompleted, byUserID)
	return updated, nil
}

// ExpireDue moves every active request whose deadline has passed to expired.
// Each record is re-checked inside its own update, so a request accepted after the
// scan is left alone. Per-record failures are collected and do not stop the sweep.
func (rs *RequestService) ExpireDue(ctx context.Context) (_ int, err error) {
	ctx, span := startSpan(ctx, "RequestService.ExpireDue")
	defer func() { endSpan(span, err) }()

	log := rs.mylog.Action("ExpireDue")
	start := time.Now()
	now := rs.opts.Now()

	candidates, err := rs.requests.ListByStatus(ctx, model.StatusActive)
	if err != nil {
		log.Error("cannot list active requests", err)
		return 0, err
	}

	var (
		expired  int
		failures []error
	)
	for _, c := range candidates {
		if !c.DueForExpiry(now) {
			continue
		}
		updated, err := rs.requests.Update(ctx, c.ID, func(r *model.Request) error {
			if !r.DueForExpiry(now) {
				return errSkip
			}
			r.Status = model.StatusExpired
			r.ExpiredAt = &now
			return nil
		})
		if errors.Is(err, errSkip) || errors.Is(err, myerrors.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Error("cannot expire request", err, "request-id", c.ID)
			failures = append(failures, fmt.Errorf("expire %s: %w", c.ID, err))
			continue
		}

		expired++
		rs.metrics.Transition(string(model.StatusExpired))
		log.Info("request expired", "request-id", updated.ID, "expires-at", updated.ExpiresAt)

		rs.notify.send(ctx, updated.RequesterID, "Request expired",
			fmt.Sprintf("Your %s request at %s expired without a donor.", updated.BloodGroup, updated.HospitalName),
			map[string]string{"type": model.EventRequestExpired, "request_id": updated.ID})
		rs.publishStatus(ctx, updated, model.EventRequestExpired, "")
		rs.reclaim(ctx, log, updated)
	}

	rs.metrics.ObserveSweep("expiry", time.Since(start), expired)
	return expired, errors.Join(failures...)
}

// reclaim archives an expired request and, when configured, deletes it. A request is
// never deleted unless its archive copy was written.
func (rs *RequestService) reclaim(ctx context.Context, log mylogger.Logger, r model.Request) {
	archived := rs.archive == nil
	if rs.archive != nil {
		body, err := json.Marshal(r)
		if err == nil {
			err = rs.archive.Put(ctx, archiveKey(r), body)
		}
		if err != nil {
			rs.metrics.CollaboratorFailed("archive")
			log.Error("cannot archive expired request", err, "request-id", r.ID)
		} else {
			archived = true
		}
	}
	if !rs.opts.DeleteExpired || !archived {
		return
	}
	if err := rs.requests.Delete(ctx, r.ID); err != nil && !errors.Is(err, myerrors.ErrNotFound) {
		log.Error("cannot delete expired request", err, "request-id", r.ID)
	}
}

func archiveKey(r model.Request) string {
	at := r.ExpiresAt.UTC()
	if r.ExpiredAt != nil {
		at = r.ExpiredAt.UTC()
	}
	return fmt.Sprintf("requests/expired/%s/%s.json", at.Format("2006/01/02"), r.ID)
}

func (rs *RequestService) closeSessions(ctx context.Context, requestID string) {
	closeTrackingSessions(ctx, rs.mylog, rs.sessions, requestID, rs.opts.Now())
}

func closeTrackingSessions(ctx context.Context, log mylogger.Logger, sessions ports.ITrackingRepo, requestID string, now time.Time) {
	list, err := sessions.ListSessions(ctx, requestID)
	if err != nil {
		log.Error("cannot list tracking sessions", err, "request-id", requestID)
		return
	}
	for _, ts := range list {
		if ts.Status == model.SessionClosed {
			continue
		}
		_, err := sessions.UpdateSession(ctx, requestID, ts.DonorID, func(s *model.TrackingSession) error {
			s.Status = model.SessionClosed
			if s.EndedAt == nil {
				s.EndedAt = &now
			}
			return nil
		})
		if err != nil {
			log.Error("cannot close tracking session", err, "request-id", requestID, "donor-id", ts.DonorID)
		}
	}
}

func (rs *RequestService) publishCreated(ctx context.Context, r model.Request) {
	if rs.events == nil {
		return
	}
	groups, _ := model.CompatibleDonorGroups(r.BloodGroup)
	donorGroups := make([]string, 0, len(groups))
	for _, g := range groups {
		donorGroups = append(donorGroups, string(g))
	}
	msg := messagebrokerdto.RequestCreated{
		RequestID:        r.ID,
		RequesterID:      r.RequesterID,
		BloodGroup:       string(r.BloodGroup),
		CompatibleDonors: donorGroups,
		UnitsNeeded:      r.UnitsNeeded,
		Urgency:          string(r.Urgency),
		HospitalName:     r.HospitalName,
		HospitalLocation: r.HospitalLocation,
		ExpiresAt:        r.ExpiresAt.Format(time.RFC3339),
		Flagged:          r.Flagged,
		CorrelationID:    generateCorrelationID(),
	}
	if err := rs.events.PushRequestCreated(ctx, msg); err != nil {
		rs.metrics.CollaboratorFailed("broker")
		rs.mylog.Action("publishCreated").Error("failed to publish message", err, "request-id", r.ID)
	}
}

func (rs *RequestService) publishStatus(ctx context.Context, r model.Request, event, actorID string) {
	publishStatus(ctx, rs.mylog, rs.events, rs.metrics, r, event, actorID, rs.opts.Now())
}

func publishStatus(ctx context.Context, log mylogger.Logger, events ports.IEventPublisher, metrics *observability.Collector, r model.Request, event, actorID string, now time.Time) {
	if events == nil {
		return
	}
	msg := messagebrokerdto.RequestStatus{
		Event:         event,
		RequestID:     r.ID,
		Status:        string(r.Status),
		ActorID:       actorID,
		Timestamp:     now.Format(time.RFC3339),
		CorrelationID: generateCorrelationID(),
	}
	if err := events.PushRequestStatus(ctx, msg); err != nil {
		metrics.CollaboratorFailed("broker")
		log.Action("publishStatus").Error("failed to publish message", err, "request-id", r.ID, "event", event)
	}
}
