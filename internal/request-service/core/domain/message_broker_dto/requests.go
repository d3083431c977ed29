package messagebrokerdto

import "blood-link/internal/request-service/core/domain/model"

// New request -> blood_topic exchange -> request.created.{blood_group}
type RequestCreated struct {
	RequestID        string          `json:"request_id"`
	RequesterID      string          `json:"requester_id"`
	BloodGroup       string          `json:"blood_group"`
	CompatibleDonors []string        `json:"compatible_donor_groups"`
	UnitsNeeded      int             `json:"units_needed"`
	Urgency          string          `json:"urgency"`
	HospitalName     string          `json:"hospital_name"`
	HospitalLocation *model.Location `json:"hospital_location,omitempty"`
	ExpiresAt        string          `json:"expires_at"`
	Flagged          bool            `json:"flagged"`
	CorrelationID    string          `json:"correlation_id"`
}

// Lifecycle change -> blood_topic exchange -> request.{accepted|cancelled|expired|completed|flagged}
type RequestStatus struct {
	Event         string `json:"event"`
	RequestID     string `json:"request_id"`
	Status        string `json:"status"`
	ActorID       string `json:"actor_id,omitempty"`
	Timestamp     string `json:"timestamp"`
	CorrelationID string `json:"correlation_id"`
}

// Push notification -> blood_topic exchange -> notify.{user_id}
type Notification struct {
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp string            `json:"timestamp"`
}
