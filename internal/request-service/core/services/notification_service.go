package services

import (
	"context"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"
	"blood-link/internal/request-service/core/ports"
)

const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 200
)

// NotificationService reads the history the notifier records.
type NotificationService struct {
	mylog   mylogger.Logger
	history ports.INotificationRepo
}

var _ ports.INotificationService = (*NotificationService)(nil)

func NewNotificationService(log mylogger.Logger, history ports.INotificationRepo) *NotificationService {
	return &NotificationService{mylog: log, history: history}
}

// ListNotifications returns the user's newest notifications. A zero limit means the default.
func (ns *NotificationService) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	switch {
	case limit < 0 || limit > MaxNotificationLimit:
		return nil, myerrors.New(myerrors.KindValidation, "limit must be between 1 and %d", MaxNotificationLimit)
	case limit == 0:
		limit = DefaultNotificationLimit
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	list, err := ns.history.ListNotifications(ctx, userID, limit)
	if err != nil {
		ns.mylog.Action("ListNotifications").Error("cannot read notification history", err, "user-id", userID)
		return nil, err
	}
	return list, nil
}
