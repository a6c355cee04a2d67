package models

import "time"

// UserProfile holds long-lived per-user data that survives across
// conversations until the session is closed.
type UserProfile struct {
	DisplayName        string    `json:"display_name,omitempty"`
	LanguagePreference string    `json:"language_preference,omitempty"`
	OnboardingPending  bool      `json:"onboarding_pending,omitempty"`
	LastActivityAt     time.Time `json:"last_activity_at"`
	NudgedAt           time.Time `json:"nudged_at,omitempty"`
}

// Origin tags where a conversation started from.
type Origin string

const (
	// OriginAd marks conversations started by tapping a paid ad.
	OriginAd Origin = "ad"
	// OriginGeneral marks organic conversations.
	OriginGeneral Origin = "general"
)

// AdAttribution is the record left by an ad-platform webhook callback before
// the user's first message arrives.
type AdAttribution struct {
	Platform    string    `json:"platform"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	ReceivedAt  time.Time `json:"received_at"`
}

// MessageOrigin is the resolved origin of an inbound message. For ad origins
// the product payload is carried along so the ad flow can greet with the
// advertised product.
type MessageOrigin struct {
	Origin      Origin `json:"origin"`
	Platform    string `json:"platform,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
}
