package dto

import "blood-link/internal/request-service/core/domain/model"

type NotificationListDto struct {
	Notifications []model.Notification `json:"notifications"`
	Count         int                  `json:"count"`
}
