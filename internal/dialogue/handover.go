package dialogue

import (
	"context"
	"log/slog"

	"github.com/toysnicaragua/toysbot/internal/commerce"
	"github.com/toysnicaragua/toysbot/internal/models"
)

// defaultAgent is the standing fallback when no store agent was selected.
func (r *Router) defaultAgent() models.SalesAgent {
	return commerce.DefaultNearestStore().Agent
}

// handleHandoverChoice resolves how an escalated user wants to be attended:
// contacted here by an agent, or attended at a branch.
func (r *Router) handleHandoverChoice(ctx context.Context, t *turn) error {
	n, ok := parseSelection(t.body)
	if !ok {
		t.countInteraction = false
		t.reply(handoverChoicePrompt())
		return nil
	}

	switch n {
	case 1:
		agent := r.defaultAgent()
		t.conv.SelectedAgent = &agent
		r.completeHandover(ctx, t, agent)
	case 2:
		t.conv.Step = models.StepStoreSelection
		t.reply(storeSelectionPrompt(r.storeDirectory(ctx)))
	default:
		t.countInteraction = false
		t.reply(outOfRange(2))
	}
	return nil
}

// handleStoreSelection picks a branch by number or by free-text location.
func (r *Router) handleStoreSelection(ctx context.Context, t *turn) error {
	stores := r.storeDirectory(ctx)

	if n, ok := parseSelection(t.body); ok {
		if n < 1 || n > len(stores) {
			t.countInteraction = false
			t.reply(outOfRange(len(stores)))
			return nil
		}
		store := stores[n-1]
		agent := r.defaultAgent()
		if len(store.Agents) > 0 {
			agent = store.Agents[0]
		}
		t.conv.SelectedStore = &store
		t.conv.SelectedAgent = &agent
		t.conv.Step = models.StepHandoverConfirmation
		t.reply(handoverConfirmationPrompt(store, agent))
		return nil
	}

	// Free text is a location; find the closest branch.
	nearest, err := r.client.FindNearestStore(ctx, t.body)
	if err != nil {
		slog.Debug("Router nearest store unavailable, using default", "error", err, "user", t.userID)
		nearest = commerce.DefaultNearestStore()
		t.conv.HandoverReason = models.ReasonGeoLocation
	}
	t.conv.SelectedStore = &nearest.Store
	t.conv.SelectedAgent = &nearest.Agent
	t.conv.Step = models.StepHandoverConfirmation
	t.reply(handoverConfirmationPrompt(nearest.Store, nearest.Agent))
	return nil
}

// handleHandoverConfirmation finalizes the handover on confirmation.
func (r *Router) handleHandoverConfirmation(ctx context.Context, t *turn) error {
	switch {
	case isYes(t.body):
		agent := r.defaultAgent()
		if t.conv.SelectedAgent != nil {
			agent = *t.conv.SelectedAgent
		}
		r.completeHandover(ctx, t, agent)
	case isNo(t.body):
		t.transitionTo(models.SectionGeneral, models.StepWaitingChoice)
		t.reply(generalMenu())
	default:
		t.countInteraction = false
		t.reply("Responde *sí* para confirmar o *no* para volver al menú.")
	}
	return nil
}

// completeHandover creates the CRM trail and opens the agent conversation.
func (r *Router) completeHandover(ctx context.Context, t *turn, agent models.SalesAgent) {
	reason := t.conv.HandoverReason
	if reason == "" {
		reason = models.ReasonExplicitRequest
	}

	summary, err := r.client.GenerateChatSummary(ctx, t.userID)
	if err != nil {
		slog.Debug("Router chat summary unavailable", "error", err, "user", t.userID)
	}
	if _, err := r.client.CreateHandoverTicket(ctx, t.userID, reason, summary, agent.ID); err != nil {
		ticket := commerce.LocalTicket(reason, summary)
		slog.Debug("Router using local ticket", "user", t.userID, "ticket", ticket.ID)
	}

	t.conv.SelectedAgent = &agent
	t.conv.HandoverCompleted = true
	t.conv.Step = models.StepAgentConversation
	t.reply(handoverDone(agent))
	r.scheduleAgentGreeting(t, agent)
}

// handleAgentConversation relays user messages to the assigned agent. When
// routing fails the conversation falls back to the feedback close.
func (r *Router) handleAgentConversation(ctx context.Context, t *turn) error {
	agent := r.defaultAgent()
	if t.conv.SelectedAgent != nil {
		agent = *t.conv.SelectedAgent
	}

	result, err := r.client.RouteMessage(ctx, t.userID, agent.ID, t.body)
	if err != nil || !result.Delivered {
		slog.Warn("Router agent routing failed, closing with feedback", "error", err, "user", t.userID, "agent", agent.ID)
		t.transitionTo(models.SectionClosing, models.StepClosingFeedback)
		t.reply(agentUnavailable(), askRating())
		return nil
	}
	slog.Debug("Router message relayed to agent", "user", t.userID, "agent", agent.ID)
	return nil
}
