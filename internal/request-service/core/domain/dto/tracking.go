package dto

import (
	"time"

	"blood-link/internal/request-service/core/domain/model"
)

type LocationDto struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// TrackingUpdate is what the donor gets back for each location report.
// Distance and ETA are absent when the request has no hospital location.
type TrackingUpdate struct {
	RequestID        string     `json:"request_id"`
	DonorID          string     `json:"donor_id"`
	DistanceKm       *float64   `json:"distance_km,omitempty"`
	EtaMinutes       *float64   `json:"eta_minutes,omitempty"`
	TrackingDeadline *time.Time `json:"tracking_deadline,omitempty"`
	Arrived          bool       `json:"arrived"`
}

type DonorContactDto struct {
	DonorID string `json:"donor_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
}

type FinalCallDto struct {
	RequestID string            `json:"request_id"`
	Donors    []DonorContactDto `json:"donors"`
}

type ProfileDto struct {
	Name         string          `json:"name"`
	Phone        string          `json:"phone"`
	BloodGroup   string          `json:"blood_group"`
	HomeLocation *model.Location `json:"home_location,omitempty"`
	IsAvailable  bool            `json:"is_available"`
}
