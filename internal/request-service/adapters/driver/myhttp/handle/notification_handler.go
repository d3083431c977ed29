package handle

import (
	"fmt"
	"net/http"
	"strconv"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/ports"
)

type NotificationHandler struct {
	notificationService ports.INotificationService
	log                 mylogger.Logger
}

func NewNotificationHandler(ns ports.INotificationService, log mylogger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: ns,
		log:                 log,
	}
}

// ListNotifications serves the caller's history, newest first, bounded by ?limit=.
func (nh *NotificationHandler) ListNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				JsonError(w, http.StatusBadRequest, fmt.Errorf("query limit: %q is not an integer", raw))
				return
			}
			limit = v
		}

		list, err := nh.notificationService.ListNotifications(r.Context(), userID(r), limit)
		if err != nil {
			domainError(w, nh.log.Action("ListNotifications"), err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.NotificationListDto{Notifications: list, Count: len(list)})
	}
}
