// Package dialogue implements the conversation state machine.
//
// The Router owns message dispatch: every inbound message is routed through a
// per-user FIFO inbox to the handler registered for the user's current
// (section, step) state. Handlers mutate the conversation context exactly
// once per message; the router persists the result and delivers the replies.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/toysnicaragua/toysbot/internal/adorigin"
	"github.com/toysnicaragua/toysbot/internal/commerce"
	"github.com/toysnicaragua/toysbot/internal/escalation"
	"github.com/toysnicaragua/toysbot/internal/models"
	"github.com/toysnicaragua/toysbot/internal/session"
)

// Sender delivers outbound messages. messaging.Service satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// inboxDepth bounds each per-user queue. A full queue drops the newest
// message rather than stalling the dispatcher.
const inboxDepth = 64

// handlerFunc processes one turn for a specific (section, step) state.
type handlerFunc func(ctx context.Context, t *turn) error

// Router dispatches inbound messages to state handlers.
type Router struct {
	store    session.Store
	client   commerce.Client
	catalog  *commerce.CachedCatalog
	policy   *escalation.Policy
	resolver *adorigin.Resolver
	sender   Sender

	handlers map[models.StateKey]handlerFunc

	mu      sync.Mutex
	inboxes map[string]chan inboxItem
	wg      sync.WaitGroup
	stopped bool

	followUps *followUpRegistry
}

// NewRouter wires the router with its collaborators and builds the dispatch
// table.
func NewRouter(store session.Store, client commerce.Client, catalog *commerce.CachedCatalog, sender Sender) *Router {
	r := &Router{
		store:     store,
		client:    client,
		catalog:   catalog,
		policy:    escalation.NewPolicy(),
		resolver:  adorigin.NewResolver(store),
		sender:    sender,
		inboxes:   make(map[string]chan inboxItem),
		followUps: newFollowUpRegistry(),
	}
	r.handlers = map[models.StateKey]handlerFunc{
		{Section: models.SectionGeneral, Step: models.StepWaitingChoice}:       r.handleGeneralMenu,
		{Section: models.SectionGeneral, Step: models.StepPriceInquiry}:        r.handlePriceInquiry,
		{Section: models.SectionGeneral, Step: models.StepProductSearch}:       r.handleProductSearch,
		{Section: models.SectionGeneral, Step: models.StepAdvancedSearch}:      r.handleAdvancedSearch,
		{Section: models.SectionGeneral, Step: models.StepSearchResults}:       r.handleSearchResults,
		{Section: models.SectionGeneral, Step: models.StepProductDetail}:       r.handleProductDetail,
		{Section: models.SectionGeneral, Step: models.StepQuotationGeneration}: r.handleQuotation,
		{Section: models.SectionGeneral, Step: models.StepCustomerInfo}:        r.handleCustomerInfo,
		{Section: models.SectionGeneral, Step: models.StepPurchaseProcess}:     r.handlePurchaseConfirmation,

		{Section: models.SectionAdResponse, Step: models.StepWaitingChoice}:       r.handleAdMenu,
		{Section: models.SectionAdResponse, Step: models.StepPriceDetails}:        r.handleAdDetailActions,
		{Section: models.SectionAdResponse, Step: models.StepStockDetails}:        r.handleAdDetailActions,
		{Section: models.SectionAdResponse, Step: models.StepDescriptionDetails}:  r.handleAdDetailActions,
		{Section: models.SectionAdResponse, Step: models.StepOtherOptions}:        r.handleAdOtherOptions,
		{Section: models.SectionAdResponse, Step: models.StepOfferTransfer}:       r.handleOfferTransfer,

		{Section: models.SectionStoreHandover, Step: models.StepStoreHandover}:        r.handleHandoverChoice,
		{Section: models.SectionStoreHandover, Step: models.StepStoreSelection}:       r.handleStoreSelection,
		{Section: models.SectionStoreHandover, Step: models.StepHandoverConfirmation}: r.handleHandoverConfirmation,
		{Section: models.SectionStoreHandover, Step: models.StepAgentConversation}:    r.handleAgentConversation,

		{Section: models.SectionClosing, Step: models.StepClosingFeedback}:  r.handleFeedback,
		{Section: models.SectionClosing, Step: models.StepClubSubscription}: r.handleClubOffer,
	}
	return r
}

// inboxItem is one unit of work in a user's inbox: either an inbound message
// or a scheduled follow-up turn.
type inboxItem struct {
	response *models.Response
	followUp *followUpTurn
}

// Run consumes the messaging service channels until ctx is cancelled.
// Responses are fanned out to per-user inboxes; receipts are logged.
func (r *Router) Run(ctx context.Context, responses <-chan models.Response, receipts <-chan models.Receipt) error {
	slog.Info("Router started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp, ok := <-responses:
			if !ok {
				slog.Info("Router responses channel closed")
				return nil
			}
			rc := resp
			r.enqueue(ctx, resp.From, inboxItem{response: &rc})
		case receipt, ok := <-receipts:
			if !ok {
				receipts = nil
				continue
			}
			slog.Debug("Router receipt", "to", receipt.To, "status", receipt.Status)
		}
	}
}

// enqueue routes an item to the user's inbox, creating the inbox worker on
// first use. Messages for distinct users process concurrently; messages for
// the same user process strictly in arrival order.
func (r *Router) enqueue(ctx context.Context, userID string, item inboxItem) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	ch, ok := r.inboxes[userID]
	if !ok {
		ch = make(chan inboxItem, inboxDepth)
		r.inboxes[userID] = ch
		r.wg.Add(1)
		go r.worker(ctx, userID, ch)
	}
	r.mu.Unlock()

	select {
	case ch <- item:
	default:
		slog.Warn("Router inbox full, dropping item", "user", userID)
	}
}

func (r *Router) worker(ctx context.Context, userID string, ch chan inboxItem) {
	defer r.wg.Done()
	for item := range ch {
		if err := r.process(ctx, userID, item); err != nil {
			slog.Error("Router turn failed", "error", err, "user", userID)
		}
	}
}

// Stop closes all inboxes, waits for in-flight turns, and cancels pending
// follow-up timers.
func (r *Router) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	for _, ch := range r.inboxes {
		close(ch)
	}
	r.mu.Unlock()
	r.wg.Wait()
	r.followUps.cancelAll()
	slog.Info("Router stopped")
}

// turn carries the mutable state of one processed message through its
// handler.
type turn struct {
	userID  string
	body    string
	conv    *models.ConversationContext
	profile *models.UserProfile

	replies       []string
	deleteSession bool
	deleteContext bool
	// synthetic marks scheduled turns; they count as neither user activity
	// nor interactions.
	synthetic bool
	// countInteraction is cleared by re-prompt paths that must not advance
	// the interaction counter.
	countInteraction bool
}

func (t *turn) reply(msgs ...string) {
	t.replies = append(t.replies, msgs...)
}

// fail records a misunderstood input.
func (t *turn) fail() {
	t.conv.FailedAttempts++
}

// transitionTo moves the conversation to a new state. Crossing a section
// boundary resets both counters and the pending-offer flag.
func (t *turn) transitionTo(section models.Section, step models.Step) {
	if t.conv.Section != section {
		t.conv.InteractionCount = 0
		t.conv.FailedAttempts = 0
		t.conv.OfferPending = false
	}
	t.conv.Section = section
	t.conv.Step = step
}

// process runs a single inbox item through the state machine.
func (r *Router) process(ctx context.Context, userID string, item inboxItem) error {
	if item.followUp != nil {
		return r.processFollowUp(ctx, userID, item.followUp)
	}
	return r.processMessage(ctx, userID, item.response.Body)
}

func (r *Router) processMessage(ctx context.Context, userID, body string) error {
	if userID == "" {
		return models.ErrEmptyRecipient
	}
	body = strings.TrimSpace(body)
	slog.Debug("Router dispatch", "user", userID, "body_length", len(body))

	conv, err := r.store.GetContext(userID)
	if err != nil {
		return fmt.Errorf("failed to load context for %s: %w", userID, err)
	}
	profile, err := r.store.GetProfile(userID)
	if err != nil {
		return fmt.Errorf("failed to load profile for %s: %w", userID, err)
	}

	origin := r.resolver.Resolve(userID, body)
	if err := r.client.LogInteraction(ctx, userID, body, origin.Origin); err != nil {
		slog.Debug("Router interaction log failed", "error", err, "user", userID)
	}

	t := &turn{userID: userID, body: body, conv: conv, profile: profile, countInteraction: true}

	switch {
	case conv == nil:
		r.startConversation(ctx, t, origin)
	case isMenuCommand(body):
		r.resetToRootMenu(ctx, t, origin)
	case t.profile != nil && t.profile.OnboardingPending:
		r.captureName(t)
	case conv.OfferPending:
		r.handleEscalationOffer(ctx, t)
	default:
		if !r.fastPathEscalation(ctx, t) {
			handler, ok := r.handlers[conv.State()]
			if !ok {
				slog.Warn("Router unknown state, resetting", "user", userID, "state", conv.State().String())
				r.resetToRootMenu(ctx, t, origin)
			} else if err := handler(ctx, t); err != nil {
				return fmt.Errorf("handler for %s failed: %w", conv.State().String(), err)
			}
		}
	}

	return r.finishTurn(ctx, t)
}

// finishTurn persists the turn outcome and delivers replies. The context is
// written exactly once per message.
func (r *Router) finishTurn(ctx context.Context, t *turn) error {
	now := time.Now()

	if t.profile == nil {
		t.profile = &models.UserProfile{}
	}
	if !t.deleteSession {
		if !t.synthetic {
			t.profile.LastActivityAt = now
		}
		if err := r.store.SaveProfile(t.userID, t.profile); err != nil {
			slog.Error("Router profile save failed", "error", err, "user", t.userID)
		}
	}

	switch {
	case t.deleteSession:
		if err := r.store.DeleteContext(t.userID); err != nil {
			slog.Error("Router context delete failed", "error", err, "user", t.userID)
		}
		if err := r.store.DeleteProfile(t.userID); err != nil {
			slog.Error("Router profile delete failed", "error", err, "user", t.userID)
		}
	case t.deleteContext:
		if err := r.store.DeleteContext(t.userID); err != nil {
			slog.Error("Router context delete failed", "error", err, "user", t.userID)
		}
	case t.conv != nil:
		if t.countInteraction {
			t.conv.InteractionCount++
		}
		t.conv.UpdatedAt = now
		if err := r.store.SaveContext(t.userID, t.conv); err != nil {
			return fmt.Errorf("failed to save context for %s: %w", t.userID, err)
		}
	}

	for _, msg := range t.replies {
		if err := r.sender.SendMessage(ctx, t.userID, msg); err != nil {
			slog.Error("Router send failed", "error", err, "user", t.userID)
		}
	}
	return nil
}

// isMenuCommand reports whether the message is the universal menu interrupt.
func isMenuCommand(body string) bool {
	b := strings.ToLower(strings.TrimSpace(body))
	return b == "menú" || b == "menu"
}

// startConversation creates the context for a first message and greets
// according to origin.
func (r *Router) startConversation(ctx context.Context, t *turn, origin models.MessageOrigin) {
	slog.Debug("Router new conversation", "user", t.userID, "origin", origin.Origin)

	if origin.Origin == models.OriginAd {
		t.conv = models.NewConversationContext(models.SectionAdResponse, models.StepWaitingChoice)
		t.conv.ProductID = origin.ProductID
		t.conv.ProductName = origin.ProductName
		if t.profile == nil {
			t.profile = &models.UserProfile{LanguagePreference: "es"}
		}
		t.reply(adGreeting(origin.ProductName), adMenu(origin.ProductName))
		return
	}

	t.conv = models.NewConversationContext(models.SectionGeneral, models.StepWaitingChoice)
	if t.profile == nil || t.profile.DisplayName == "" {
		t.profile = &models.UserProfile{LanguagePreference: "es", OnboardingPending: true}
		t.reply(generalGreeting())
		return
	}
	t.reply(personalGreeting(t.profile.DisplayName), generalMenu())
}

// captureName completes one-time onboarding with the user's display name.
func (r *Router) captureName(t *turn) {
	name := strings.TrimSpace(t.body)
	if name == "" {
		t.reply(generalGreeting())
		return
	}
	t.profile.DisplayName = name
	t.profile.OnboardingPending = false
	if t.conv == nil {
		t.conv = models.NewConversationContext(models.SectionGeneral, models.StepWaitingChoice)
	}
	t.reply(personalGreeting(name), generalMenu())
}

// resetToRootMenu implements the universal menu interrupt: the old context is
// discarded and a fresh one is created at the origin's root menu.
func (r *Router) resetToRootMenu(ctx context.Context, t *turn, origin models.MessageOrigin) {
	slog.Debug("Router menu interrupt", "user", t.userID, "origin", origin.Origin)

	if origin.Origin == models.OriginAd {
		t.conv = models.NewConversationContext(models.SectionAdResponse, models.StepWaitingChoice)
		t.conv.ProductID = origin.ProductID
		t.conv.ProductName = origin.ProductName
		t.reply(adMenu(origin.ProductName))
		return
	}
	t.conv = models.NewConversationContext(models.SectionGeneral, models.StepWaitingChoice)
	t.reply(generalMenu())
}

// fastPathEscalation checks the content fast path and, when it fires,
// performs the escalation before any state handler runs. Conversations
// already in the handover or closing sections are exempt.
func (r *Router) fastPathEscalation(ctx context.Context, t *turn) bool {
	if t.conv.Section == models.SectionStoreHandover || t.conv.Section == models.SectionClosing {
		return false
	}
	reason, ok := r.policy.DetectComplexQuery(t.body, t.conv.InteractionCount)
	if !ok {
		return false
	}
	slog.Info("Router escalation fast path", "user", t.userID, "reason", reason)
	r.escalate(ctx, t, reason)
	return true
}

// escalate creates the CRM trail and moves the conversation to the handover
// entry state.
func (r *Router) escalate(ctx context.Context, t *turn, reason string) {
	summary, err := r.client.GenerateChatSummary(ctx, t.userID)
	if err != nil {
		slog.Debug("Router chat summary unavailable", "error", err, "user", t.userID)
	}
	if err := r.client.EscalateQuery(ctx, t.userID, reason); err != nil {
		slog.Debug("Router escalate query failed", "error", err, "user", t.userID)
	}
	ticket, err := r.client.CreateHandoverTicket(ctx, t.userID, reason, summary, "")
	if err != nil {
		ticket = commerce.LocalTicket(reason, summary)
		slog.Debug("Router using local ticket", "user", t.userID, "ticket", ticket.ID)
	}

	t.conv.HandoverReason = reason
	t.transitionTo(models.SectionStoreHandover, models.StepStoreHandover)
	t.reply(escalationIntro(), handoverChoicePrompt())
}
