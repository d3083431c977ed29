package handle

import (
	"errors"
	"net/http"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/ports"
)

type MatchingHandler struct {
	matchingService ports.IMatchingService
	log             mylogger.Logger
}

func NewMatchingHandler(ms ports.IMatchingService, log mylogger.Logger) *MatchingHandler {
	return &MatchingHandler{
		matchingService: ms,
		log:             log,
	}
}

// ListAvailable reads the donor position from ?lat=&lng= and the radius from ?max_km=.
func (mh *MatchingHandler) ListAvailable() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, err := queryLocation(r)
		if err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}
		maxKm, err := queryFloat(r, "max_km")
		if err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		res, err := mh.matchingService.ListAvailable(r.Context(), userID(r), at, deref(maxKm))
		if err != nil {
			domainError(w, mh.log.Action("ListAvailable"), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}

func (mh *MatchingHandler) Accept() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.AcceptRequestDto{}
		if err := decode(w, r, &req, true); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		res, err := mh.matchingService.Accept(r.Context(), r.PathValue("request_id"), userID(r), req.Location)
		if err != nil {
			domainError(w, mh.log.Action("Accept"), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}

func (mh *MatchingHandler) EligibleDonors() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxKm, err := queryFloat(r, "max_km")
		if err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}
		res, err := mh.matchingService.FindEligibleDonors(r.Context(), r.PathValue("request_id"), userID(r), deref(maxKm))
		if err != nil {
			domainError(w, mh.log.Action("EligibleDonors"), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}

func queryLocation(r *http.Request) (*model.Location, error) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		return nil, err
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		return nil, err
	}
	switch {
	case lat == nil && lng == nil:
		return nil, nil
	case lat == nil || lng == nil:
		return nil, errors.New("lat and lng must be given together")
	}
	return &model.Location{Lat: *lat, Lng: *lng}, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (mh *MatchingHandler) ListAccepted() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := mh.matchingService.ListAccepted(r.Context(), userID(r))
		if err != nil {
			domainError(w, mh.log.Action("ListAccepted"), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}
