package model

import "time"

// Notification is one entry of a user's notification history.
type Notification struct {
	ID     string            `json:"id"`
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
	SentAt time.Time         `json:"sent_at"`
}

func (n Notification) Clone() Notification {
	out := n
	if n.Data != nil {
		out.Data = make(map[string]string, len(n.Data))
		for k, v := range n.Data {
			out.Data[k] = v
		}
	}
	return out
}
