package websocketdto

import "encoding/json"

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type AuthMessage struct {
	Token string `json:"token"`
}

// To requester or donor - push style notification:
type Notification struct {
	ID    string            `json:"id,omitempty"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// To requester - donor location update:
type DonorLocationUpdate struct {
	RequestID     string   `json:"request_id"`
	DonorID       string   `json:"donor_id"`
	DonorLocation Location `json:"donor_location"`
	DistanceKm    *float64 `json:"distance_km,omitempty"`
	EtaMinutes    *float64 `json:"eta_minutes,omitempty"`
	NearPlace     string   `json:"near_place,omitempty"`
}
