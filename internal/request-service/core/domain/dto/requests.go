package dto

import (
	"time"

	"blood-link/internal/request-service/core/domain/model"
)

// API Transfer data

type CreateRequestDto struct {
	RequesterID   string `json:"-"`
	BloodGroup    string `json:"blood_group"`
	UnitsNeeded   int    `json:"units_needed"`
	Urgency       string `json:"urgency"`
	Hospital      string `json:"hospital"`
	ContactNumber string `json:"contact_number"`
	PatientName   string `json:"patient_name"`
	PatientAge    int    `json:"patient_age"`
}

type CreateRequestResponseDto struct {
	RequestID string       `json:"request_id"`
	Status    model.Status `json:"status"`
	ExpiresAt time.Time    `json:"expires_at"`
	Flagged   bool         `json:"flagged"`
}

type StatusResponseDto struct {
	RequestID string       `json:"request_id"`
	Status    model.Status `json:"status"`
	Message   string       `json:"message"`
}

// AvailableRequestDto is one row of the donor's feed.
type AvailableRequestDto struct {
	model.Request
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

type AcceptRequestDto struct {
	Location *model.Location `json:"location,omitempty"`
}

type AcceptResponseDto struct {
	RequestID      string                `json:"request_id"`
	Status         model.Status          `json:"status"`
	UnitsFulfilled int                   `json:"units_fulfilled"`
	UnitsNeeded    int                   `json:"units_needed"`
	Acceptance     model.DonorAcceptance `json:"acceptance"`
	EtaMinutes     *float64              `json:"eta_minutes,omitempty"`
}

type EligibleDonorDto struct {
	UserID     string           `json:"user_id"`
	Name       string           `json:"name"`
	BloodGroup model.BloodGroup `json:"blood_group"`
	DistanceKm float64          `json:"distance_km"`
}
