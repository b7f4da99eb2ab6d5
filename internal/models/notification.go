package models

import "time"

// Notification is a feed entry kept per user so the in-app notifications
// page can show what was pushed, independent of delivery outcome.
type Notification struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
