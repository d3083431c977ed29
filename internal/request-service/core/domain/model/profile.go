package model

import (
	"strings"
	"time"
)

const CooldownDays = 90

// Profile is the user record owned by the profile collaborator. The engine reads it and
// only writes LastDonationDate and DonationCount.
type Profile struct {
	UserID           string     `json:"user_id"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone"`
	BloodGroup       BloodGroup `json:"blood_group"`
	HomeLocation     *Location  `json:"home_location,omitempty"`
	LastDonationDate *time.Time `json:"last_donation_date,omitempty"`
	IsAvailable      bool       `json:"is_available"`
	DonationCount    int        `json:"donation_count"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Complete reports whether the profile carries what a requester needs before posting.
func (p Profile) Complete() bool {
	return strings.TrimSpace(p.Name) != "" && strings.TrimSpace(p.Phone) != "" && p.BloodGroup.Valid()
}

// CooldownRemainingDays returns 0 when the donor may give again, else the whole days left.
func (p Profile) CooldownRemainingDays(now time.Time) int {
	if p.LastDonationDate == nil {
		return 0
	}
	elapsedDays := int(now.Sub(*p.LastDonationDate) / (24 * time.Hour))
	if elapsedDays < CooldownDays {
		return CooldownDays - elapsedDays
	}
	return 0
}

func (p Profile) Clone() Profile {
	out := p
	out.HomeLocation = cloneLocation(p.HomeLocation)
	out.LastDonationDate = cloneTime(p.LastDonationDate)
	return out
}
