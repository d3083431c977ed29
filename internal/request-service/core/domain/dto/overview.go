package dto

import "blood-link/internal/request-service/core/domain/model"

type SystemOverview struct {
	Timestamp       string               `json:"timestamp"`
	TotalRequests   int                  `json:"total_requests"`
	ActiveRequests  int                  `json:"active_requests"`
	ByStatus        map[model.Status]int `json:"by_status"`
	Donations       int64                `json:"donations"`
	AvailableDonors int                  `json:"available_donors"`
}
