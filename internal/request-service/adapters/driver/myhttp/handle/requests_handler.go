package handle

import (
	"net/http"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/ports"
)

type RequestsHandler struct {
	requestService ports.IRequestService
	log            mylogger.Logger
}

func NewRequestsHandler(rs ports.IRequestService, log mylogger.Logger) *RequestsHandler {
	return &RequestsHandler{
		requestService: rs,
		log:            log,
	}
}

func (rh *RequestsHandler) CreateRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.CreateRequestDto{}
		if err := decode(w, r, &req, false); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}
		req.RequesterID = userID(r)

		res, err := rh.requestService.CreateRequest(r.Context(), req)
		if err != nil {
			domainError(w, rh.log.Action("CreateRequest"), err)
			return
		}

		jsonResponse(w, http.StatusCreated, dto.CreateRequestResponseDto{
			RequestID: res.ID,
			Status:    res.Status,
			ExpiresAt: res.ExpiresAt,
			Flagged:   res.Flagged,
		})
	}
}

func (rh *RequestsHandler) GetRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := rh.requestService.GetRequest(r.Context(), r.PathValue("request_id"))
		if err != nil {
			domainError(w, rh.log.Action("GetRequest"), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}

func (rh *RequestsHandler) CancelRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := rh.requestService.CancelRequest(r.Context(), r.PathValue("request_id"), userID(r))
		if err != nil {
			domainError(w, rh.log.Action("CancelRequest"), err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.StatusResponseDto{
			RequestID: res.ID,
			Status:    res.Status,
			Message:   "request cancelled",
		})
	}
}

func (rh *RequestsHandler) CompleteRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := rh.requestService.CompleteRequest(r.Context(), r.PathValue("request_id"), userID(r))
		if err != nil {
			domainError(w, rh.log.Action("CompleteRequest"), err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.StatusResponseDto{
			RequestID: res.ID,
			Status:    res.Status,
			Message:   "donation completed",
		})
	}
}

// ListMine serves the requester's own requests, optionally narrowed with ?status=.
func (rh *RequestsHandler) ListMine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := rh.requestService.ListMine(r.Context(), userID(r), r.URL.Query().Get("status"))
		if err != nil {
			domainError(w, rh.log.Action("ListMine"), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}
