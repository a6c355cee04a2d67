// Package models defines the core data structures for ToysBot.
//
// It includes the per-user conversation context, the product filter record,
// and the payload types exchanged with the commerce backend. These types are
// shared across modules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Section is the coarse conversation track a user is on.
type Section string

const (
	// SectionGeneral is the default shopping track.
	SectionGeneral Section = "general"
	// SectionAdResponse is the track for users arriving from a paid ad.
	SectionAdResponse Section = "ad_response"
	// SectionStoreHandover is the human-handover track.
	SectionStoreHandover Section = "store_handover"
	// SectionClosing is the feedback/club closing track.
	SectionClosing Section = "closing"
)

// Step is the fine-grained state within a section. A step is only meaningful
// relative to its section; routing always keys on the (section, step) pair.
type Step string

// Steps within SectionGeneral.
const (
	StepWaitingChoice       Step = "waiting_choice"
	StepPriceInquiry        Step = "price_inquiry"
	StepProductSearch       Step = "product_search"
	StepAdvancedSearch      Step = "advanced_search"
	StepSearchResults       Step = "search_results"
	StepProductDetail       Step = "product_detail"
	StepPurchaseProcess     Step = "purchase_process"
	StepQuotationGeneration Step = "quotation_generation"
	StepCustomerInfo        Step = "customer_info"
)

// Steps within SectionAdResponse. StepWaitingChoice is shared with the
// general section.
const (
	StepPriceDetails       Step = "price_details"
	StepStockDetails       Step = "stock_details"
	StepDescriptionDetails Step = "description_details"
	StepOtherOptions       Step = "other_options"
	StepOfferTransfer      Step = "offer_transfer"
)

// Steps within SectionStoreHandover.
const (
	StepStoreHandover        Step = "store_handover"
	StepStoreSelection       Step = "store_selection"
	StepHandoverConfirmation Step = "handover_confirmation"
	StepAgentConversation    Step = "agent_conversation"
)

// Steps within SectionClosing.
const (
	StepClosingFeedback  Step = "closing_feedback"
	StepClubSubscription Step = "club_subscription"
)

// Handover reason tags recorded on the context when a conversation is routed
// to a human agent.
const (
	ReasonComplexQuery     = "consulta_compleja"
	ReasonManyInteractions = "muchas_interacciones"
	ReasonTechnicalQuery   = "consulta_tecnica"
	ReasonExplicitRequest  = "solicitud_explicita"
	ReasonFailedAttempts   = "intentos_fallidos"
	ReasonNegativeFeedback = "feedback_negativo"
	ReasonGeoLocation      = "ubicacion_geografica"
)

// CustomerInfo holds the intake fields collected during the purchase funnel.
type CustomerInfo struct {
	Name          string `json:"name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Store         string `json:"store,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

// CustomerField identifies which intake field the purchase funnel is waiting
// for. The sequence is fixed: name, phone, store, payment, order, final.
type CustomerField string

const (
	FieldCustomerName      CustomerField = "customer_name"
	FieldCustomerPhone     CustomerField = "customer_phone"
	FieldPreferredStore    CustomerField = "preferred_store"
	FieldPaymentMethod     CustomerField = "payment_method"
	FieldFinalConfirmation CustomerField = "final_confirmation"
)

// ConversationContext is the per-user conversation state. One instance exists
// per user; it is mutated exactly once per processed inbound message and
// deleted when the session closes.
type ConversationContext struct {
	Section Section `json:"section"`
	Step    Step    `json:"step"`

	// Ad-origin payload.
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`

	// Step-specific payload.
	ProductDetails  *ProductDetails `json:"product_details,omitempty"`
	Filters         *ProductFilter  `json:"filters,omitempty"`
	Results         []Product       `json:"results,omitempty"`
	SelectedProduct *Product        `json:"selected_product,omitempty"`
	CustomerInfo    CustomerInfo    `json:"customer_info,omitempty"`
	WaitingFor      CustomerField   `json:"waiting_for,omitempty"`
	Quotation       *Quotation      `json:"quotation,omitempty"`
	SaleOrder       *SaleOrder      `json:"sale_order,omitempty"`

	// Handover payload.
	SelectedStore  *StoreLocation `json:"selected_store,omitempty"`
	SelectedAgent  *SalesAgent    `json:"selected_agent,omitempty"`
	HandoverReason string         `json:"handover_reason,omitempty"`

	// Closing payload.
	FeedbackRating    int  `json:"feedback_rating,omitempty"`
	PurchaseCompleted bool `json:"purchase_completed,omitempty"`
	HandoverCompleted bool `json:"handover_completed,omitempty"`

	// OfferPending marks that the bot asked whether to hand over to a human
	// and is waiting for a yes/no before normal routing resumes.
	OfferPending bool `json:"offer_pending,omitempty"`

	// Counters. Monotone within a section, reset on section change.
	InteractionCount int `json:"interaction_count,omitempty"`
	FailedAttempts   int `json:"failed_attempts,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversationContext returns a fresh context positioned at the given
// section's entry step.
func NewConversationContext(section Section, step Step) *ConversationContext {
	now := time.Now()
	return &ConversationContext{
		Section:   section,
		Step:      step,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// State returns the (section, step) pair the router dispatches on.
func (c *ConversationContext) State() StateKey {
	return StateKey{Section: c.Section, Step: c.Step}
}

// Fingerprint identifies the context's current state for scheduled follow-ups.
// A follow-up recorded against a fingerprint must be a no-op if the user's
// context no longer matches it when the timer fires.
func (c *ConversationContext) Fingerprint() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%s/%s", c.Section, c.Step)
}

// StateKey is the dispatch key of the router's handler table.
type StateKey struct {
	Section Section
	Step    Step
}

func (k StateKey) String() string {
	return fmt.Sprintf("%s/%s", k.Section, k.Step)
}

// Sentinel errors shared across modules.
var (
	ErrNoContext      = errors.New("no conversation context for user")
	ErrNoData         = errors.New("commerce backend returned no data")
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
)
