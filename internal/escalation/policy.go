// Package escalation decides when a conversation should be routed to a human
// agent. Two mechanisms exist: a content fast path that fires on complexity
// signals in a single message, and attrition thresholds that fire on
// accumulated failed attempts or unresolved interactions.
package escalation

import (
	"strings"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// Thresholds for the attrition mechanism.
const (
	// FailedAttemptsThreshold is the number of consecutive misunderstood
	// inputs after which the bot offers to escalate.
	FailedAttemptsThreshold = 2
	// InteractionCountThreshold is the number of interactions inside an ad
	// sub-flow after which the bot offers a transfer to a salesperson.
	InteractionCountThreshold = 3
	// FastPathInteractionThreshold is the interaction count that by itself
	// marks the conversation as complex.
	FastPathInteractionThreshold = 5
)

// complexKeywords mark a message as a complex query.
var complexKeywords = []string{
	"queja", "reclamo", "problema", "error", "defecto", "roto", "malo",
	"customización", "personalizado", "especial", "único", "diferente",
	"complicado", "difícil", "no entiendo", "confuso",
	"ayuda urgente", "emergencia", "crítico", "importante", "urgente",
}

// technicalPhrases mark a message as a technical query.
var technicalPhrases = []string{
	"cómo funciona", "instrucciones", "manual", "configuración",
}

// Policy is the escalation decision policy. It is stateless; counters live on
// the conversation context.
type Policy struct{}

// NewPolicy returns the standard escalation policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// DetectComplexQuery reports whether the message, combined with the current
// interaction count, should immediately escalate, and with which reason.
// Reasons are checked in priority order: complex content first, then the
// interaction count, then technical phrasing.
func (p *Policy) DetectComplexQuery(text string, interactionCount int) (string, bool) {
	lower := strings.ToLower(text)

	for _, k := range complexKeywords {
		if strings.Contains(lower, k) {
			return models.ReasonComplexQuery, true
		}
	}
	if interactionCount >= FastPathInteractionThreshold {
		return models.ReasonManyInteractions, true
	}
	for _, ph := range technicalPhrases {
		if strings.Contains(lower, ph) {
			return models.ReasonTechnicalQuery, true
		}
	}
	return "", false
}

// ShouldOfferEscalation reports whether accumulated failed attempts warrant
// offering a human handover.
func (p *Policy) ShouldOfferEscalation(failedAttempts int) bool {
	return failedAttempts >= FailedAttemptsThreshold
}

// ShouldOfferTransfer reports whether the interaction count inside an ad
// sub-flow warrants offering a transfer to a salesperson.
func (p *Policy) ShouldOfferTransfer(interactionCount int) bool {
	return interactionCount >= InteractionCountThreshold
}
