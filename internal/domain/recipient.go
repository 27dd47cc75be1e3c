// Package domain contains the core domain types shared across the application.
package domain

// Recipient is a registered chat destination for forwarded alerts.
type Recipient struct {
	// ChatID is the transport-assigned chat identity. Unique key.
	ChatID int64 `json:"chat_id"`
	// DisplayName is an optional human-readable label (chat username).
	DisplayName string `json:"display_name,omitempty"`
	// Subscribed reports whether the recipient currently receives
	// forwarded alerts. New recipients start unsubscribed.
	Subscribed bool `json:"subscribed"`
}
