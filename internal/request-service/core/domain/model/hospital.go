package model

// Hospital is a directory entry resolved once when a request is created.
// Location is nil when the directory has no coordinates for it.
type Hospital struct {
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Location *Location `json:"location,omitempty"`
}
