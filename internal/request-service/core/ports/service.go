package ports

import (
	"context"

	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/domain/model"
)

type IRequestService interface {
	CreateRequest(ctx context.Context, req dto.CreateRequestDto) (model.Request, error)
	GetRequest(ctx context.Context, requestID string) (model.Request, error)
	CancelRequest(ctx context.Context, requestID, byUserID string) (model.Request, error)
	CompleteRequest(ctx context.Context, requestID, byUserID string) (model.Request, error)
	ListMine(ctx context.Context, requesterID, status string) ([]model.Request, error)
	ExpireDue(ctx context.Context) (int, error)
}

type IMatchingService interface {
	ListAvailable(ctx context.Context, donorID string, at *model.Location, maxDistanceKm float64) ([]dto.AvailableRequestDto, error)
	Accept(ctx context.Context, requestID, donorID string, at *model.Location) (dto.AcceptResponseDto, error)
	FindEligibleDonors(ctx context.Context, requestID, byUserID string, maxDistanceKm float64) ([]dto.EligibleDonorDto, error)
	ListAccepted(ctx context.Context, donorID string) ([]model.Request, error)
}

type ITrackingService interface {
	ReportLocation(ctx context.Context, requestID, donorID string, loc model.Location) (dto.TrackingUpdate, error)
	OnArrivalConfirmed(ctx context.Context, requestID, byUserID string) (model.Request, error)
	OnArrivalDenied(ctx context.Context, requestID, byUserID string) (dto.FinalCallDto, error)
	OnDeadlineElapsed(ctx context.Context, requestID string) (int, error)
	CheckDeadlines(ctx context.Context) (int, error)
}

type IProfileService interface {
	UpsertProfile(ctx context.Context, userID string, req dto.ProfileDto) (model.Profile, error)
	GetProfile(ctx context.Context, userID string) (model.Profile, error)
}

type IOverviewService interface {
	GetSystemOverview(ctx context.Context) (dto.SystemOverview, error)
}

type INotificationService interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
}
