package handle

import (
	"net/http"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/ports"
)

type ProfileHandler struct {
	profileService ports.IProfileService
	log            mylogger.Logger
}

func NewProfileHandler(ps ports.IProfileService, log mylogger.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileService: ps,
		log:            log,
	}
}

func (ph *ProfileHandler) UpsertProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.ProfileDto{}
		if err := decode(w, r, &req, false); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}
		res, err := ph.profileService.UpsertProfile(r.Context(), userID(r), req)
		if err != nil {
			domainError(w, ph.log.Action("UpsertProfile"), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}

func (ph *ProfileHandler) GetProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := ph.profileService.GetProfile(r.Context(), userID(r))
		if err != nil {
			domainError(w, ph.log.Action("GetProfile"), err)
			return
		}
		jsonResponse(w, http.StatusOK, res)
	}
}
