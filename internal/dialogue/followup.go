package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// Delays for scheduled follow-up turns.
const (
	// AgentGreetingDelay is how long after a completed handover the agent's
	// first message is simulated.
	AgentGreetingDelay = 8 * time.Second
	// RatingRequestDelay is how long after a completed purchase or
	// reservation the rating request is sent.
	RatingRequestDelay = 45 * time.Second
	// ClubOfferDelay is how long after a positive rating the club
	// invitation is sent.
	ClubOfferDelay = 20 * time.Second
	// InactivityHorizon is how long a conversation may sit quiet before the
	// nudge sweep picks it up.
	InactivityHorizon = 5 * time.Minute
	// EvictionHorizon is the default age past which an idle conversation
	// context is dropped to bound store growth.
	EvictionHorizon = 24 * time.Hour
)

// followUpTurn is a synthetic turn injected through the user's inbox. The
// fingerprint pins it to the (section, step) state recorded when it was
// scheduled; an empty fingerprint matches any live context.
type followUpTurn struct {
	fingerprint string
	run         func(ctx context.Context, t *turn)
}

// followUpRegistry tracks pending timers so Stop can cancel them.
type followUpRegistry struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	nextID int64
}

func newFollowUpRegistry() *followUpRegistry {
	return &followUpRegistry{timers: make(map[string]*time.Timer)}
}

func (f *followUpRegistry) schedule(delay time.Duration, fn func()) string {
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("followup_%d", f.nextID)
	f.mu.Unlock()

	timer := time.AfterFunc(delay, func() {
		f.mu.Lock()
		delete(f.timers, id)
		f.mu.Unlock()
		fn()
	})

	f.mu.Lock()
	f.timers[id] = timer
	f.mu.Unlock()
	slog.Debug("FollowUp scheduled", "id", id, "delay", delay)
	return id
}

func (f *followUpRegistry) cancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, timer := range f.timers {
		timer.Stop()
		delete(f.timers, id)
	}
}

// scheduleFollowUp queues a synthetic turn after the delay, pinned to the
// state the conversation will be saved in at the end of the current turn.
func (r *Router) scheduleFollowUp(t *turn, delay time.Duration, run func(ctx context.Context, t *turn)) {
	userID := t.userID
	fingerprint := t.conv.Fingerprint()
	r.followUps.schedule(delay, func() {
		r.enqueue(context.Background(), userID, inboxItem{followUp: &followUpTurn{fingerprint: fingerprint, run: run}})
	})
}

// processFollowUp runs a scheduled turn. It is a no-op when the conversation
// moved on (or ended) since the follow-up was scheduled.
func (r *Router) processFollowUp(ctx context.Context, userID string, fu *followUpTurn) error {
	conv, err := r.store.GetContext(userID)
	if err != nil {
		return fmt.Errorf("failed to load context for %s: %w", userID, err)
	}
	if conv == nil {
		slog.Debug("FollowUp skipped, no context", "user", userID)
		return nil
	}
	if fu.fingerprint != "" && conv.Fingerprint() != fu.fingerprint {
		slog.Debug("FollowUp skipped, state changed", "user", userID,
			"expected", fu.fingerprint, "actual", conv.Fingerprint())
		return nil
	}
	profile, err := r.store.GetProfile(userID)
	if err != nil {
		return fmt.Errorf("failed to load profile for %s: %w", userID, err)
	}

	t := &turn{userID: userID, conv: conv, profile: profile, synthetic: true}
	fu.run(ctx, t)
	return r.finishTurn(ctx, t)
}

// scheduleRatingRequest asks for a 1-5 rating after the purchase settles.
func (r *Router) scheduleRatingRequest(t *turn) {
	r.scheduleFollowUp(t, RatingRequestDelay, func(ctx context.Context, ft *turn) {
		ft.transitionTo(models.SectionClosing, models.StepClosingFeedback)
		ft.reply(askRating())
	})
}

// scheduleClubOffer sends the club invitation a moment after the thank-you.
func (r *Router) scheduleClubOffer(t *turn) {
	r.scheduleFollowUp(t, ClubOfferDelay, func(ctx context.Context, ft *turn) {
		ft.reply(clubOffer())
	})
}

// scheduleAgentGreeting simulates the agent's first message after handover.
func (r *Router) scheduleAgentGreeting(t *turn, agent models.SalesAgent) {
	r.scheduleFollowUp(t, AgentGreetingDelay, func(ctx context.Context, ft *turn) {
		ft.reply(agentGreeting(agent))
	})
}

// EvictIdleSessions drops conversation contexts idle past the horizon. The
// profile survives eviction; only the conversation state is reclaimed. Each
// delete is routed through the user's inbox so it serializes with any turn in
// flight, and idleness is re-checked when the turn runs in case the user came
// back while the eviction was queued.
func (r *Router) EvictIdleSessions(ctx context.Context, horizon time.Duration) {
	cutoff := time.Now().Add(-horizon)
	ids, err := r.store.IdleUsers(cutoff)
	if err != nil {
		slog.Error("Router eviction sweep failed", "error", err)
		return
	}
	for _, userID := range ids {
		uid := userID
		r.enqueue(ctx, uid, inboxItem{followUp: &followUpTurn{run: func(ctx context.Context, ft *turn) {
			if ft.profile != nil && ft.profile.LastActivityAt.After(cutoff) {
				return
			}
			slog.Info("Router evicting idle session", "user", uid)
			ft.deleteContext = true
		}}})
	}
}

// NudgeIdleUsers is the background inactivity sweep. It injects a "still
// there?" turn for every conversation quiet past the horizon, at most once
// per quiet period.
func (r *Router) NudgeIdleUsers(ctx context.Context) {
	cutoff := time.Now().Add(-InactivityHorizon)
	ids, err := r.store.IdleUsers(cutoff)
	if err != nil {
		slog.Error("Router idle sweep failed", "error", err)
		return
	}
	for _, userID := range ids {
		profile, err := r.store.GetProfile(userID)
		if err != nil {
			slog.Error("Router idle sweep profile load failed", "error", err, "user", userID)
			continue
		}
		if profile != nil && profile.NudgedAt.After(profile.LastActivityAt) {
			continue
		}
		slog.Debug("Router nudging idle user", "user", userID)
		uid := userID
		r.enqueue(ctx, uid, inboxItem{followUp: &followUpTurn{run: func(ctx context.Context, ft *turn) {
			if err := r.client.LogInactivity(ctx, uid); err != nil {
				slog.Debug("Router inactivity log failed", "error", err, "user", uid)
			}
			if ft.profile != nil {
				ft.profile.NudgedAt = time.Now()
			}
			ft.reply(stillTherePrompt())
		}}})
	}
}
