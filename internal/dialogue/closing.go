package dialogue

import (
	"context"
	"log/slog"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// handleFeedback processes the 1-5 rating. Low ratings route back to a human;
// high ratings lead to the club offer.
func (r *Router) handleFeedback(ctx context.Context, t *turn) error {
	rating, ok := parseSelection(t.body)
	if !ok || rating < 1 || rating > 5 {
		t.countInteraction = false
		t.reply(invalidRating())
		return nil
	}

	t.conv.FeedbackRating = rating
	if err := r.client.RecordFeedback(ctx, t.userID, rating); err != nil {
		slog.Debug("Router feedback record failed", "error", err, "user", t.userID)
	}

	if rating <= 3 {
		slog.Info("Router negative feedback, reopening handover", "user", t.userID, "rating", rating)
		t.conv.HandoverReason = models.ReasonNegativeFeedback
		t.transitionTo(models.SectionStoreHandover, models.StepStoreHandover)
		t.reply(negativeFeedbackReply(), handoverChoicePrompt())
		return nil
	}

	t.conv.Step = models.StepClubSubscription
	t.reply(positiveFeedbackReply())
	r.scheduleClubOffer(t)
	return nil
}

// handleClubOffer resolves the loyalty-club invitation. Either way the
// session ends and both the context and the profile are removed.
func (r *Router) handleClubOffer(ctx context.Context, t *turn) error {
	if isYes(t.body) {
		if _, err := r.client.SubscribeToClub(ctx, t.userID); err != nil {
			slog.Debug("Router club subscription failed", "error", err, "user", t.userID)
		}
		t.reply(clubWelcome())
	} else {
		t.reply(goodbye())
	}
	t.deleteSession = true
	return nil
}
