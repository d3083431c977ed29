package model

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusAccepted, StatusCompleted, StatusCancelled, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal statuses permit no further mutation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Open statuses are the ones donors can still accept or requesters can cancel.
func (s Status) Open() bool {
	return s == StatusActive || s == StatusAccepted
}

const (
	MinUnits = 1
	MaxUnits = 10

	// FlagUnitsThreshold: a critical request asking for more units than this is flagged for moderation.
	FlagUnitsThreshold = 5
)

type Request struct {
	ID               string            `json:"id"`
	RequesterID      string            `json:"requester_id"`
	BloodGroup       BloodGroup        `json:"blood_group"`
	UnitsNeeded      int               `json:"units_needed"`
	UnitsFulfilled   int               `json:"units_fulfilled"`
	Urgency          Urgency           `json:"urgency"`
	HospitalName     string            `json:"hospital_name"`
	HospitalAddress  string            `json:"hospital_address"`
	HospitalLocation *Location         `json:"hospital_location,omitempty"`
	ContactNumber    string            `json:"contact_number"`
	PatientName      string            `json:"patient_name,omitempty"`
	PatientAge       int               `json:"patient_age,omitempty"`
	Status           Status            `json:"status"`
	Donors           []DonorAcceptance `json:"donors"`
	Flagged          bool              `json:"flagged"`
	CreatedAt        time.Time         `json:"created_at"`
	ExpiresAt        time.Time         `json:"expires_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	CancelledAt      *time.Time        `json:"cancelled_at,omitempty"`
	ExpiredAt        *time.Time        `json:"expired_at,omitempty"`
}

type DonorAcceptance struct {
	DonorID                   string    `json:"donor_id"`
	UnitsCommitted            int       `json:"units_committed"`
	AcceptedAt                time.Time `json:"accepted_at"`
	DonorLocationAtAcceptance *Location `json:"donor_location_at_acceptance,omitempty"`
	LastKnownLocation         *Location `json:"last_known_location,omitempty"`
}

// ShouldFlag is the abuse heuristic applied at creation.
func ShouldFlag(urgency Urgency, units int) bool {
	return urgency == Critical && units > FlagUnitsThreshold
}

func (r *Request) HasDonor(donorID string) bool {
	return r.DonorIndex(donorID) >= 0
}

func (r *Request) DonorIndex(donorID string) int {
	for i := range r.Donors {
		if r.Donors[i].DonorID == donorID {
			return i
		}
	}
	return -1
}

func (r *Request) Fulfilled() bool {
	return r.UnitsFulfilled >= r.UnitsNeeded
}

// DueForExpiry holds only for active requests whose deadline has strictly passed.
func (r *Request) DueForExpiry(now time.Time) bool {
	return r.Status == StatusActive && r.ExpiresAt.Before(now)
}

func (r *Request) DonorIDs() []string {
	ids := make([]string, 0, len(r.Donors))
	for _, d := range r.Donors {
		ids = append(ids, d.DonorID)
	}
	return ids
}

// Clone returns a deep copy so stores never hand out shared slices or pointers.
func (r Request) Clone() Request {
	out := r
	out.HospitalLocation = cloneLocation(r.HospitalLocation)
	out.CompletedAt = cloneTime(r.CompletedAt)
	out.CancelledAt = cloneTime(r.CancelledAt)
	out.ExpiredAt = cloneTime(r.ExpiredAt)
	if r.Donors != nil {
		out.Donors = make([]DonorAcceptance, len(r.Donors))
		for i, d := range r.Donors {
			d.DonorLocationAtAcceptance = cloneLocation(d.DonorLocationAtAcceptance)
			d.LastKnownLocation = cloneLocation(d.LastKnownLocation)
			out.Donors[i] = d
		}
	}
	return out
}

func cloneLocation(l *Location) *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
