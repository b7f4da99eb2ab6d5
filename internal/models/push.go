package models

import (
	"errors"
	"time"
)

// PushSubscription is one registered notification target: a push-service
// endpoint plus the client's encryption keys. Endpoint is globally unique;
// a user may own many subscriptions (one per device). UserID 0 means the
// subscription is anonymous.
type PushSubscription struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id,omitempty"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"keys_p256dh"` // Mapped from keys.p256dh
	Auth      string    `json:"keys_auth"`   // Mapped from keys.auth
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrMissingTitle    = errors.New("title is required")
	ErrMissingBody     = errors.New("body is required")
	ErrMissingEndpoint = errors.New("endpoint is required")
	ErrMissingKeys     = errors.New("subscription keys are required")
)

// NotificationPayload is the transient message pushed to subscribers.
// URL is the deep link opened when the notification is clicked.
type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

func (p *NotificationPayload) Validate() error {
	if p.Title == "" {
		return ErrMissingTitle
	}
	if p.Body == "" {
		return ErrMissingBody
	}
	return nil
}
