package ports

import (
	"context"

	"blood-link/internal/request-service/core/domain/model"
	websocketdto "blood-link/internal/request-service/core/domain/websocket_dto"
)

type INotifyWebsocket interface {
	WriteToUser(userId string, msg websocketdto.Event)
}

// INotifier delivers push style notifications. Callers treat failures as best effort.
type INotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string) error
}

type IGeocoder interface {
	// ResolveAddress maps free text to a known hospital or returns a not found error.
	ResolveAddress(ctx context.Context, text string) (model.Hospital, error)
	// ReverseGeocode is display only; an empty string means nothing nearby.
	ReverseGeocode(ctx context.Context, loc model.Location) (string, error)
}

type IArchive interface {
	Put(ctx context.Context, key string, body []byte) error
}
