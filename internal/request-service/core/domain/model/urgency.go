package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Urgency string

const (
	Critical  Urgency = "critical"
	Emergency Urgency = "emergency"
	Priority  Urgency = "priority"
	Routine   Urgency = "routine"
)

var ErrUnknownUrgency = errors.New("unknown urgency tier")

var urgencyDurations = map[Urgency]time.Duration{
	Critical:  30 * time.Minute,
	Emergency: time.Hour,
	Priority:  6 * time.Hour,
	Routine:   48 * time.Hour,
}

// higher rank sorts first
var urgencyRank = map[Urgency]int{
	Critical:  4,
	Emergency: 3,
	Priority:  2,
	Routine:   1,
}

func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := urgencyDurations[u]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUrgency, s)
	}
	return u, nil
}

func (u Urgency) Valid() bool {
	_, ok := urgencyDurations[u]
	return ok
}

// Duration is how long a request of this tier stays open.
func (u Urgency) Duration() time.Duration {
	return urgencyDurations[u]
}

func (u Urgency) Rank() int {
	return urgencyRank[u]
}
