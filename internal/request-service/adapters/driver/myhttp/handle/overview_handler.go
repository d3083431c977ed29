package handle

import (
	"net/http"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/ports"
)

type OverviewHandler struct {
	overviewService ports.IOverviewService
	mylog           mylogger.Logger
}

func NewOverviewHandler(mylog mylogger.Logger, overviewService ports.IOverviewService) *OverviewHandler {
	return &OverviewHandler{
		overviewService: overviewService,
		mylog:           mylog,
	}
}

func (oh *OverviewHandler) GetSystemOverview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := oh.overviewService.GetSystemOverview(r.Context())
		if err != nil {
			domainError(w, oh.mylog.Action("GetSystemOverview"), err)
			return
		}
		jsonResponse(w, http.StatusOK, overview)
	}
}
