package handle

import (
	"errors"
	"net/http"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/ports"
)

type TrackingHandler struct {
	trackingService ports.ITrackingService
	log             mylogger.Logger
}

func NewTrackingHandler(ts ports.ITrackingService, log mylogger.Logger) *TrackingHandler {
	return &TrackingHandler{
		trackingService: ts,
		log:             log,
	}
}

func (th *TrackingHandler) ReportLocation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.LocationDto{}
		if err := decode(w, r, &req, false); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}
		if req.Lat == nil || req.Lng == nil {
			JsonError(w, http.StatusBadRequest, errors.New("lat and lng are required"))
			return
		}

		loc := model.Location{Lat: *req.Lat, Lng: *req.Lng}
		res, err := th.trackingService.ReportLocation(r.Context(), r.PathValue("request_id"), userID(r), loc)
		if err != nil {
			domainError(w, th.log.Action("ReportLocation"), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}

func (th *TrackingHandler) ConfirmArrival() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := th.trackingService.OnArrivalConfirmed(r.Context(), r.PathValue("request_id"), userID(r))
		if err != nil {
			domainError(w, th.log.Action("ConfirmArrival"), err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.StatusResponseDto{
			RequestID: res.ID,
			Status:    res.Status,
			Message:   "arrival confirmed, donation completed",
		})
	}
}

func (th *TrackingHandler) DenyArrival() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := th.trackingService.OnArrivalDenied(r.Context(), r.PathValue("request_id"), userID(r))
		if err != nil {
			domainError(w, th.log.Action("DenyArrival"), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}
