package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type HTTPClient struct {
	client *http.Client
	token  string
	logger *Logger
}

func NewHTTPClient(token string, logger *Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: 10 * time.Second},
		token:  token,
		logger: logger,
	}
}

// DoRequest sends body as JSON and decodes a 2xx reply into out. Other replies become errors
// carrying the server's error body.
func (h *HTTPClient) DoRequest(method, url string, body, out interface{}) error {
	time.Sleep(HTTPRequestDelay)

	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	h.logger.HTTP("%s %s -> %d", method, url, resp.StatusCode)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %d %s", method, url, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// Request/Response models
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type AcceptRequest struct {
	Location *Location `json:"location,omitempty"`
}

type RequestView struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	HospitalName     string    `json:"hospital_name"`
	HospitalLocation *Location `json:"hospital_location"`
}

type AcceptResponse struct {
	Status         string   `json:"status"`
	UnitsFulfilled int      `json:"units_fulfilled"`
	UnitsNeeded    int      `json:"units_needed"`
	EtaMinutes     *float64 `json:"eta_minutes"`
}

type TrackingResponse struct {
	DistanceKm       *float64   `json:"distance_km"`
	EtaMinutes       *float64   `json:"eta_minutes"`
	TrackingDeadline *time.Time `json:"tracking_deadline"`
	Arrived          bool       `json:"arrived"`
}
