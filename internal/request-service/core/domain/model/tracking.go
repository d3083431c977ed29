package model

import "time"

type SessionStatus string

const (
	SessionOpen    SessionStatus = "open"
	SessionArrived SessionStatus = "arrived"
	SessionClosed  SessionStatus = "closed"
)

// TrackingDeadlineBuffer is added to the first ETA when the deadline is fixed.
const TrackingDeadlineBuffer = 10 * time.Minute

// TrackingSession is keyed by (RequestID, DonorID).
type TrackingSession struct {
	RequestID        string        `json:"request_id"`
	DonorID          string        `json:"donor_id"`
	Status           SessionStatus `json:"status"`
	StartedAt        time.Time     `json:"started_at"`
	LastLocation     *Location     `json:"last_location,omitempty"`
	LastReportedAt   *time.Time    `json:"last_reported_at,omitempty"`
	DistanceKm       *float64      `json:"distance_km,omitempty"`
	EtaMinutes       *float64      `json:"eta_minutes,omitempty"`
	TrackingDeadline *time.Time    `json:"tracking_deadline,omitempty"`
	PromptedAt       *time.Time    `json:"prompted_at,omitempty"`
	FinalCall        bool          `json:"final_call"`
	EndedAt          *time.Time    `json:"ended_at,omitempty"`
}

func (s TrackingSession) Open() bool {
	return s.Status == SessionOpen
}

// DeadlineElapsed holds for an open session whose persisted deadline has been reached.
func (s TrackingSession) DeadlineElapsed(now time.Time) bool {
	return s.Open() && s.TrackingDeadline != nil && !now.Before(*s.TrackingDeadline)
}

func (s TrackingSession) Clone() TrackingSession {
	out := s
	out.LastLocation = cloneLocation(s.LastLocation)
	out.LastReportedAt = cloneTime(s.LastReportedAt)
	out.TrackingDeadline = cloneTime(s.TrackingDeadline)
	out.PromptedAt = cloneTime(s.PromptedAt)
	out.EndedAt = cloneTime(s.EndedAt)
	if s.DistanceKm != nil {
		d := *s.DistanceKm
		out.DistanceKm = &d
	}
	if s.EtaMinutes != nil {
		e := *s.EtaMinutes
		out.EtaMinutes = &e
	}
	return out
}

// Event types carried on the broker and the websocket stream.
const (
	EventRequestCreated   = "request.created"
	EventRequestFlagged   = "request.flagged"
	EventRequestAccepted  = "request.accepted"
	EventRequestCancelled = "request.cancelled"
	EventRequestExpired   = "request.expired"
	EventRequestCompleted = "request.completed"
	EventArrivalPrompt    = "tracking.arrival_prompt"
	EventFinalCall        = "tracking.final_call"
	EventLocationUpdate   = "tracking.location"
)
