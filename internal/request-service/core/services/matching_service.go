package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"blood-link/internal/mylogger"
	"blood-link/internal/observability"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"
	"blood-link/internal/request-service/core/ports"
)

type MatchingService struct {
	mylog    mylogger.Logger
	requests ports.IRequestRepo
	sessions ports.ITrackingRepo
	profiles ports.IProfileRepo
	events   ports.IEventPublisher
	notify   notifier
	metrics  *observability.Collector
	opts     Options
}

func NewMatchingService(
	log mylogger.Logger,
	store ports.IStore,
	events ports.IEventPublisher,
	notifyTarget ports.INotifier,
	metrics *observability.Collector,
	opts Options,
) *MatchingService {
	return &MatchingService{
		mylog:    log,
		requests: store,
		sessions: store,
		profiles: store,
		events:   events,
		notify:   notifier{log: log, target: notifyTarget, metrics: metrics},
		metrics:  metrics,
		opts:     opts.withDefaults(),
	}
}

var _ ports.IMatchingService = (*MatchingService)(nil)

// ListAvailable is the donor feed: open requests with units remaining that the donor can
// serve, critical first and newest first within a tier. A missing location on either side
// does not exclude a request.
func (ms *MatchingService) ListAvailable(ctx context.Context, donorID string, at *model.Location, maxDistanceKm float64) (_ []dto.AvailableRequestDto, err error) {
	ctx, span := startSpan(ctx, "MatchingService.ListAvailable")
	defer func() { endSpan(span, err) }()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if !finitePositive(maxDistanceKm) {
		maxDistanceKm = ms.opts.MaxDistanceKm
	}
	if at != nil {
		if err := at.Validate(); err != nil {
			return nil, myerrors.Wrap(myerrors.KindValidation, err, "invalid donor location")
		}
	}

	donor, err := ms.profiles.GetProfile(ctx, donorID)
	if err != nil {
		if errors.Is(err, myerrors.ErrNotFound) {
			return nil, myerrors.New(myerrors.KindNotFound, "profile %s not found", donorID)
		}
		return nil, err
	}
	if !donor.BloodGroup.Valid() {
		return nil, myerrors.New(myerrors.KindValidation, "set your blood group in your profile to see requests")
	}
	origin := at
	if origin == nil {
		origin = donor.HomeLocation
	}

	open, err := ms.requests.ListByStatus(ctx, model.StatusActive, model.StatusAccepted)
	if err != nil {
		ms.mylog.Action("ListAvailable").Error("cannot list open requests", err)
		return nil, err
	}

	result := make([]dto.AvailableRequestDto, 0, len(open))
	for _, r := range open {
		if r.RequesterID == donorID || r.Fulfilled() || r.HasDonor(donorID) {
			continue
		}
		ok, err := model.IsCompatible(donor.BloodGroup, r.BloodGroup)
		if err != nil || !ok {
			continue
		}
		item := dto.AvailableRequestDto{Request: r}
		if origin != nil && r.HospitalLocation != nil {
			d := model.HaversineKm(*origin, *r.HospitalLocation)
			if d > maxDistanceKm {
				continue
			}
			item.DistanceKm = &d
		}
		result = append(result, item)
	}

	sort.SliceStable(result, func(i, j int) bool {
		ri, rj := result[i].Urgency.Rank(), result[j].Urgency.Rank()
		if ri != rj {
			return ri > rj
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Accept commits one unit from donorID to the request. All precondition checks and the
// mutation run inside a single store update.
func (ms *MatchingService) Accept(ctx context.Context, requestID, donorID string, at *model.Location) (_ dto.AcceptResponseDto, err error) {
	ctx, span := startSpan(ctx, "MatchingService.Accept")
	defer func() { endSpan(span, err) }()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	log := ms.mylog.Action("Accept").With("request-id", requestID, "donor-id", donorID)

	if at != nil {
		if err := at.Validate(); err != nil {
			return dto.AcceptResponseDto{}, myerrors.Wrap(myerrors.KindValidation, err, "invalid donor location")
		}
	}

	donor, profileErr := ms.profiles.GetProfile(ctx, donorID)
	if profileErr != nil && !errors.Is(profileErr, myerrors.ErrNotFound) {
		log.Error("cannot load donor profile", profileErr)
		return dto.AcceptResponseDto{}, profileErr
	}

	var (
		updated    model.Request
		acceptance model.DonorAcceptance
	)
	err = withConflictRetry(func() error {
		var uerr error
		updated, uerr = ms.requests.Update(ctx, requestID, func(r *model.Request) error {
			if !r.Status.Open() {
				return myerrors.New(myerrors.KindInvalidState, "request is %s and no longer accepts donors", r.Status)
			}
			if r.HasDonor(donorID) {
				return myerrors.New(myerrors.KindAlreadyAccepted, "you have already accepted this request")
			}
			if r.Fulfilled() {
				return myerrors.New(myerrors.KindFulfilled, "all %d units are already committed", r.UnitsNeeded)
			}
			if profileErr != nil {
				return myerrors.New(myerrors.KindNotFound, "profile %s not found", donorID)
			}
			if !donor.BloodGroup.Valid() {
				return myerrors.New(myerrors.KindValidation, "set your blood group in your profile before accepting")
			}
			compatible, cerr := model.IsCompatible(donor.BloodGroup, r.BloodGroup)
			if cerr != nil {
				return myerrors.Wrap(myerrors.KindValidation, cerr, "invalid blood group")
			}
			if !compatible {
				return myerrors.New(myerrors.KindCompatibility, "%s blood cannot be given to a %s patient", donor.BloodGroup, r.BloodGroup)
			}
			now := ms.opts.Now()
			if remaining := donor.CooldownRemainingDays(now); remaining > 0 {
				return myerrors.Cooldown(remaining)
			}

			acceptance = model.DonorAcceptance{
				DonorID:                   donorID,
				UnitsCommitted:            1,
				AcceptedAt:                now,
				DonorLocationAtAcceptance: at,
				LastKnownLocation:         at,
			}
			r.Donors = append(r.Donors, acceptance)
			r.UnitsFulfilled++
			r.Status = model.StatusAccepted
			return nil
		})
		return uerr
	})
	if err != nil {
		ms.metrics.AcceptOutcome(outcomeOf(err))
		if kind := myerrors.KindOf(err); kind == "" {
			log.Error("accept failed", err)
		} else {
			log.Debug("accept rejected", "kind", kind, "reason", err.Error())
		}
		return dto.AcceptResponseDto{}, err
	}
	ms.metrics.AcceptOutcome("accepted")
	ms.metrics.Transition(string(model.StatusAccepted))
	log.Info("donor accepted request", "units-fulfilled", updated.UnitsFulfilled, "units-needed", updated.UnitsNeeded)

	if err := ms.profiles.RecordDonation(ctx, donorID, acceptance.AcceptedAt); err != nil {
		ms.metrics.CollaboratorFailed("profile")
		log.Error("cannot record donation date", err)
	}

	var eta *float64
	if at != nil && updated.HospitalLocation != nil {
		d := model.HaversineKm(*at, *updated.HospitalLocation)
		e := model.EtaMinutes(d)
		eta = &e
	}
	if _, err := ms.sessions.UpdateSession(ctx, requestID, donorID, func(ts *model.TrackingSession) error {
		ts.StartedAt = acceptance.AcceptedAt
		ts.LastLocation = at
		return nil
	}); err != nil {
		log.Error("cannot open tracking session", err)
	}

	ms.notify.send(ctx, updated.RequesterID, "Donor on the way", acceptedBody(donor, eta), map[string]string{
		"type":        model.EventRequestAccepted,
		"request_id":  updated.ID,
		"donor_id":    donorID,
		"donor_name":  donor.Name,
		"donor_phone": donor.Phone,
	})
	publishStatus(ctx, ms.mylog, ms.events, ms.metrics, updated, model.EventRequestAccepted, donorID, ms.opts.Now())

	return dto.AcceptResponseDto{
		RequestID:      updated.ID,
		Status:         updated.Status,
		UnitsFulfilled: updated.UnitsFulfilled,
		UnitsNeeded:    updated.UnitsNeeded,
		Acceptance:     acceptance,
		EtaMinutes:     eta,
	}, nil
}

func acceptedBody(donor model.Profile, eta *float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s accepted your request.", donor.Name)
	if donor.Phone != "" {
		fmt.Fprintf(&b, " Phone: %s.", donor.Phone)
	}
	if eta != nil {
		fmt.Fprintf(&b, " ETA %.0f min.", *eta)
	}
	return b.String()
}

func outcomeOf(err error) string {
	if kind := myerrors.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// ListAccepted returns the requests donorID has committed to that are still in progress,
// most recently accepted first.
func (ms *MatchingService) ListAccepted(ctx context.Context, donorID string) ([]model.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	list, err := ms.requests.ListByDonor(ctx, donorID)
	if err != nil {
		ms.mylog.Action("ListAccepted").Error("cannot list donor requests", err, "donor-id", donorID)
		return nil, err
	}
	out := make([]model.Request, 0, len(list))
	for _, r := range list {
		if r.Status == model.StatusAccepted {
			out = append(out, r)
		}
	}
	acceptedAt := func(r model.Request) time.Time { return r.Donors[r.DonorIndex(donorID)].AcceptedAt }
	sort.SliceStable(out, func(i, j int) bool { return acceptedAt(out[i]).After(acceptedAt(out[j])) })
	return out, nil
}

// FindEligibleDonors lists available donors who could accept the request right now,
// nearest to the hospital first.
func (ms *MatchingService) FindEligibleDonors(ctx context.Context, requestID, byUserID string, maxDistanceKm float64) (_ []dto.EligibleDonorDto, err error) {
	ctx, span := startSpan(ctx, "MatchingService.FindEligibleDonors")
	defer func() { endSpan(span, err) }()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if !finitePositive(maxDistanceKm) {
		maxDistanceKm = ms.opts.MaxDistanceKm
	}

	r, err := ms.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.RequesterID != byUserID {
		return nil, myerrors.New(myerrors.KindPermission, "only the requester can search donors for this request")
	}

	candidates, err := ms.profiles.ListAvailableDonors(ctx)
	if err != nil {
		ms.mylog.Action("FindEligibleDonors").Error("cannot list donors", err, "request-id", requestID)
		return nil, err
	}

	now := ms.opts.Now()
	type ranked struct {
		dto.EligibleDonorDto
		known bool
	}
	var found []ranked
	for _, p := range candidates {
		if p.UserID == r.RequesterID || r.HasDonor(p.UserID) || p.CooldownRemainingDays(now) > 0 {
			continue
		}
		ok, err := model.IsCompatible(p.BloodGroup, r.BloodGroup)
		if err != nil || !ok {
			continue
		}
		item := ranked{EligibleDonorDto: dto.EligibleDonorDto{UserID: p.UserID, Name: p.Name, BloodGroup: p.BloodGroup}}
		if p.HomeLocation != nil && r.HospitalLocation != nil {
			item.DistanceKm = model.HaversineKm(*p.HomeLocation, *r.HospitalLocation)
			if item.DistanceKm > maxDistanceKm {
				continue
			}
			item.known = true
		}
		found = append(found, item)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].known != found[j].known {
			return found[i].known
		}
		return found[i].DistanceKm < found[j].DistanceKm
	})
	if len(found) > ms.opts.MaxEligibleDonors {
		found = found[:ms.opts.MaxEligibleDonors]
	}

	out := make([]dto.EligibleDonorDto, 0, len(found))
	for _, f := range found {
		out = append(out, f.EligibleDonorDto)
	}
	return out, nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
