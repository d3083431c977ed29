package main

import "time"

// ANSI color codes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

const (
	HTTPRequestDelay = 200 * time.Millisecond
	TokenTTL         = 2 * time.Hour
)

// API endpoints
const (
	RequestPath  = "/requests/%s"
	AcceptPath   = "/requests/%s/accept"
	LocationPath = "/requests/%s/location"
	WSUserPath   = "/ws/users/%s"
)

type Config struct {
	BaseURL    string
	DonorID    string
	RequestID  string
	Secret     string
	Start      Location
	SpeedKmh   float64
	StepPeriod time.Duration
}
