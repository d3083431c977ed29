package messagebrokerdto

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Donor location <- blood_topic exchange <- location.{request_id}
type LocationUpdate struct {
	DonorID   string   `json:"donor_id"`
	RequestID string   `json:"request_id"`
	Location  Location `json:"location"`
	Timestamp string   `json:"timestamp"`
}
