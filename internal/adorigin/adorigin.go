// Package adorigin resolves whether an inbound message belongs to an
// ad-initiated conversation or an organic one.
package adorigin

import (
	"log/slog"
	"strings"
	"time"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// AttributionTTL is how long an ad-attribution record stays usable after the
// webhook callback. A first message arriving later than this is treated as
// organic.
const AttributionTTL = 24 * time.Hour

// trackingTokens are the click-to-WhatsApp tracking markers ad platforms embed
// in the prefilled message body. A body carrying one of them is ad traffic
// even when the attribution callback never arrived.
var trackingTokens = []string{"fb_ad", "ig_ad"}

// AttributionSource is the subset of the session store the resolver needs.
type AttributionSource interface {
	GetAdAttribution(userID string) (*models.AdAttribution, error)
}

// Resolver maps inbound messages to an origin using the ad-attribution table.
type Resolver struct {
	source AttributionSource
	now    func() time.Time
}

// NewResolver creates a Resolver backed by the given attribution source.
func NewResolver(source AttributionSource) *Resolver {
	return &Resolver{source: source, now: time.Now}
}

// Resolve returns the message origin for userID. Without a usable attribution
// record the message body is scanned for ad-tracking tokens. Store failures
// degrade to the body check; origin resolution must never block message
// handling and never mutates state.
func (r *Resolver) Resolve(userID, body string) models.MessageOrigin {
	attr, err := r.source.GetAdAttribution(userID)
	if err != nil {
		slog.Error("Resolver attribution lookup failed", "error", err, "user", userID)
		return r.resolveFromBody(body)
	}
	if attr == nil {
		return r.resolveFromBody(body)
	}
	if r.now().Sub(attr.ReceivedAt) > AttributionTTL {
		slog.Debug("Resolver attribution expired", "user", userID, "received_at", attr.ReceivedAt)
		return r.resolveFromBody(body)
	}
	slog.Debug("Resolver ad origin matched", "user", userID, "platform", attr.Platform, "product", attr.ProductName)
	return models.MessageOrigin{
		Origin:      models.OriginAd,
		Platform:    attr.Platform,
		ProductID:   attr.ProductID,
		ProductName: attr.ProductName,
	}
}

// resolveFromBody is the fallback when no attribution record applies: a body
// carrying a tracking token is ad traffic from an unknown platform.
func (r *Resolver) resolveFromBody(body string) models.MessageOrigin {
	b := strings.ToLower(body)
	for _, token := range trackingTokens {
		if strings.Contains(b, token) {
			slog.Debug("Resolver ad origin from tracking token", "token", token)
			return models.MessageOrigin{Origin: models.OriginAd, Platform: "unknown"}
		}
	}
	return models.MessageOrigin{Origin: models.OriginGeneral}
}
