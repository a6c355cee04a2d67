package dialogue

import (
	"context"
	"testing"
	"time"

	"github.com/toysnicaragua/toysbot/internal/models"
)

func TestPurchaseFunnelEndToEnd(t *testing.T) {
	client := &fakeClient{}
	r, store, sender := newTestRouter(client)
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepProductDetail)
	conv.SelectedProduct = &models.Product{ID: "b", Name: "Robot", Price: 350}
	seedContext(t, store, testUser, conv)

	// 1 = comprar: quotation built locally when the backend has none.
	say(t, r, testUser, "1")
	got := mustContext(t, store, testUser)
	if got.Step != models.StepQuotationGeneration {
		t.Fatalf("step = %s, want quotation_generation", got.Step)
	}
	if got.Quotation == nil || got.Quotation.Total != 350 {
		t.Fatalf("quotation = %+v", got.Quotation)
	}
	if got.Quotation.ID == "" {
		t.Error("local quotation has no reference")
	}

	say(t, r, testUser, "sí")
	got = mustContext(t, store, testUser)
	if got.Step != models.StepCustomerInfo || got.WaitingFor != models.FieldCustomerName {
		t.Fatalf("step = %s waiting = %s", got.Step, got.WaitingFor)
	}

	say(t, r, testUser, "Ana López")
	got = mustContext(t, store, testUser)
	if got.CustomerInfo.Name != "Ana López" || got.WaitingFor != models.FieldCustomerPhone {
		t.Fatalf("intake after name = %+v waiting = %s", got.CustomerInfo, got.WaitingFor)
	}

	say(t, r, testUser, "8888-7777")
	got = mustContext(t, store, testUser)
	if got.WaitingFor != models.FieldPreferredStore {
		t.Fatalf("waiting = %s, want preferred_store", got.WaitingFor)
	}

	// Store pick by number over the default directory.
	say(t, r, testUser, "1")
	got = mustContext(t, store, testUser)
	if got.CustomerInfo.Store == "" || got.WaitingFor != models.FieldPaymentMethod {
		t.Fatalf("intake after store = %+v waiting = %s", got.CustomerInfo, got.WaitingFor)
	}

	say(t, r, testUser, "2")
	got = mustContext(t, store, testUser)
	if got.Step != models.StepPurchaseProcess || got.WaitingFor != models.FieldFinalConfirmation {
		t.Fatalf("step = %s waiting = %s", got.Step, got.WaitingFor)
	}
	if !sender.contains("¿Confirmas la compra?") {
		t.Errorf("expected order summary, got %v", sender.all())
	}

	say(t, r, testUser, "sí")
	got = mustContext(t, store, testUser)
	if got.SaleOrder == nil || got.SaleOrder.Reference != "PED-001" {
		t.Fatalf("sale order = %+v", got.SaleOrder)
	}
	if !got.PurchaseCompleted {
		t.Error("purchase not marked completed")
	}
	if !sender.contains("PED-001") {
		t.Errorf("expected order confirmation, got %v", sender.all())
	}
}

func TestPurchaseCancelDiscardsIntake(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepCustomerInfo)
	conv.SelectedProduct = &models.Product{ID: "b", Name: "Robot", Price: 350}
	conv.WaitingFor = models.FieldCustomerPhone
	conv.CustomerInfo = models.CustomerInfo{Name: "Ana"}
	conv.Quotation = &models.Quotation{ID: "COT-1", Total: 350}
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "cancelar")

	got := mustContext(t, store, testUser)
	if got.Step != models.StepProductDetail {
		t.Errorf("step = %s, want product_detail", got.Step)
	}
	if got.CustomerInfo != (models.CustomerInfo{}) || got.WaitingFor != "" || got.Quotation != nil {
		t.Errorf("intake not discarded: %+v waiting=%s quotation=%+v", got.CustomerInfo, got.WaitingFor, got.Quotation)
	}
	if !sender.contains("cancelé el proceso de compra") {
		t.Errorf("expected cancellation reply, got %v", sender.all())
	}
}

func TestOutOfRangeStorePickRepromptsWithoutAdvancing(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepCustomerInfo)
	conv.WaitingFor = models.FieldPreferredStore
	conv.InteractionCount = 1
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "99")

	got := mustContext(t, store, testUser)
	if got.WaitingFor != models.FieldPreferredStore {
		t.Errorf("waiting = %s, want preferred_store", got.WaitingFor)
	}
	if got.InteractionCount != 1 {
		t.Errorf("interaction count = %d, want unchanged 1", got.InteractionCount)
	}
	if !sender.contains("no está en la lista") {
		t.Errorf("expected out-of-range reprompt, got %v", sender.all())
	}
}

func TestReservationConfirmsWithCode(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepProductDetail)
	conv.SelectedProduct = &models.Product{ID: "b", Name: "Robot", Price: 350}
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "2")

	got := mustContext(t, store, testUser)
	if !got.PurchaseCompleted {
		t.Error("reservation did not mark purchase completed")
	}
	if !sender.contains("RES-TEST") {
		t.Errorf("expected reservation code, got %v", sender.all())
	}
}

func TestAdMenuPriceWithUpsell(t *testing.T) {
	client := &fakeClient{details: map[string]*models.ProductDetails{
		"p42": {
			Product: models.Product{ID: "p42", Name: "Dino Bot", Price: 899, Stock: 3},
			Upsell:  &models.Product{Name: "Pilas recargables", Price: 120},
		},
	}}
	r, store, sender := newTestRouter(client)
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionAdResponse, models.StepWaitingChoice)
	conv.ProductID = "p42"
	conv.ProductName = "Dino Bot"
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "1")

	got := mustContext(t, store, testUser)
	if got.Step != models.StepPriceDetails {
		t.Errorf("step = %s", got.Step)
	}
	if !sender.contains("899.00") || !sender.contains("Pilas recargables") {
		t.Errorf("expected price with upsell, got %v", sender.all())
	}
}

func TestAdMenuPriceFetchesUpsellWhenDetailsOmitIt(t *testing.T) {
	client := &fakeClient{
		details: map[string]*models.ProductDetails{
			"p42": {Product: models.Product{ID: "p42", Name: "Dino Bot", Price: 899, Stock: 3}},
		},
		upsell: &models.Product{Name: "Cueva del dinosaurio", Price: 450},
	}
	r, store, sender := newTestRouter(client)
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionAdResponse, models.StepWaitingChoice)
	conv.ProductID = "p42"
	conv.ProductName = "Dino Bot"
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "1")

	if !sender.contains("Cueva del dinosaurio") {
		t.Errorf("expected upsell from the catalog endpoint, got %v", sender.all())
	}
}

func TestAdStockExhaustedOffersAlternatives(t *testing.T) {
	client := &fakeClient{
		details: map[string]*models.ProductDetails{
			"p42": {Product: models.Product{ID: "p42", Name: "Dino Bot", Price: 899}},
		},
		stock:        []models.StoreStock{{StoreName: "Metrocentro", Quantity: 0}},
		alternatives: []models.Product{{ID: "x", Name: "Robo Rex", Price: 750}, {ID: "y", Name: "T-Rex XL", Price: 990}},
	}
	r, store, sender := newTestRouter(client)
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionAdResponse, models.StepWaitingChoice)
	conv.ProductID = "p42"
	conv.ProductName = "Dino Bot"
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "2")

	got := mustContext(t, store, testUser)
	if got.Section != models.SectionAdResponse || got.Step != models.StepOtherOptions {
		t.Fatalf("state = %s, want ad alternatives", got.State().String())
	}
	if len(got.Results) != 2 {
		t.Fatalf("results = %+v", got.Results)
	}
	if !sender.contains("Robo Rex") {
		t.Errorf("expected alternatives list, got %v", sender.all())
	}

	// Picking an alternative converges into the shared shopping funnel.
	say(t, r, testUser, "1")
	got = mustContext(t, store, testUser)
	if got.Section != models.SectionGeneral || got.Step != models.StepProductDetail {
		t.Errorf("state = %s, want general product detail", got.State().String())
	}
	if got.SelectedProduct == nil || got.SelectedProduct.ID != "x" {
		t.Errorf("selected = %+v", got.SelectedProduct)
	}
}

func TestAdFlowOffersTransferAfterThreeInteractions(t *testing.T) {
	client := &fakeClient{details: map[string]*models.ProductDetails{
		"p42": {Product: models.Product{ID: "p42", Name: "Dino Bot", Price: 899, Stock: 3}},
	}}
	r, store, sender := newTestRouter(client)
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionAdResponse, models.StepWaitingChoice)
	conv.ProductID = "p42"
	conv.InteractionCount = 2
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "1")

	got := mustContext(t, store, testUser)
	if got.Step != models.StepOfferTransfer {
		t.Fatalf("step = %s, want offer_transfer", got.Step)
	}
	if !sender.contains("vendedor te atienda directamente") {
		t.Errorf("expected transfer offer, got %v", sender.all())
	}

	// Declining resets the counters and returns to the ad menu.
	say(t, r, testUser, "no")
	got = mustContext(t, store, testUser)
	if got.Step != models.StepWaitingChoice {
		t.Errorf("step = %s, want waiting_choice", got.Step)
	}
	if got.FailedAttempts != 0 {
		t.Errorf("failed attempts = %d, want 0", got.FailedAttempts)
	}
}

func TestTransferAcceptRoutesToAgent(t *testing.T) {
	client := &fakeClient{transfer: &models.TransferResult{Delivered: true, AgentName: "Lucía Mora"}}
	r, store, sender := newTestRouter(client)
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionAdResponse, models.StepOfferTransfer)
	conv.ProductID = "p42"
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "sí")

	got := mustContext(t, store, testUser)
	if got.Section != models.SectionStoreHandover || got.Step != models.StepAgentConversation {
		t.Errorf("state = %s", got.State().String())
	}
	if !got.HandoverCompleted {
		t.Error("handover not marked completed")
	}
	if got.SelectedAgent == nil || got.SelectedAgent.Name != "Lucía Mora" {
		t.Errorf("agent = %+v", got.SelectedAgent)
	}
	if !sender.contains("Lucía Mora") {
		t.Errorf("expected agent confirmation, got %v", sender.all())
	}
}

func TestTransferFailureEscalatesInstead(t *testing.T) {
	client := &fakeClient{transferErr: models.ErrNoData}
	r, store, _ := newTestRouter(client)
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionAdResponse, models.StepOfferTransfer)
	conv.ProductID = "p42"
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "sí")

	got := mustContext(t, store, testUser)
	if got.Section != models.SectionStoreHandover || got.Step != models.StepStoreHandover {
		t.Errorf("state = %s, want handover entry", got.State().String())
	}
	if got.HandoverReason != models.ReasonManyInteractions {
		t.Errorf("reason = %q", got.HandoverReason)
	}
}

func TestHandoverStoreSelectionByNumber(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionStoreHandover, models.StepStoreSelection)
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "1")

	got := mustContext(t, store, testUser)
	if got.Step != models.StepHandoverConfirmation {
		t.Fatalf("step = %s", got.Step)
	}
	if got.SelectedStore == nil || got.SelectedAgent == nil {
		t.Fatalf("store/agent not selected: %+v %+v", got.SelectedStore, got.SelectedAgent)
	}
	if !sender.contains("¿Confirmas?") {
		t.Errorf("expected confirmation prompt, got %v", sender.all())
	}

	say(t, r, testUser, "sí")
	got = mustContext(t, store, testUser)
	if got.Step != models.StepAgentConversation || !got.HandoverCompleted {
		t.Errorf("state = %s completed=%v", got.State().String(), got.HandoverCompleted)
	}
}

func TestHandoverFreeTextLocationUsesNearestStore(t *testing.T) {
	r, store, _ := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionStoreHandover, models.StepStoreSelection)
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "vivo por Altamira")

	got := mustContext(t, store, testUser)
	if got.Step != models.StepHandoverConfirmation {
		t.Fatalf("step = %s", got.Step)
	}
	// The backend has no geo lookup; the default branch takes over.
	if got.SelectedStore == nil || got.SelectedStore.Name == "" {
		t.Errorf("store = %+v", got.SelectedStore)
	}
	if got.HandoverReason != models.ReasonGeoLocation {
		t.Errorf("reason = %q", got.HandoverReason)
	}
}

func TestAgentRoutingFailureFallsBackToFeedback(t *testing.T) {
	client := &fakeClient{route: &models.TransferResult{Delivered: false}}
	r, store, sender := newTestRouter(client)
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionStoreHandover, models.StepAgentConversation)
	agent := models.SalesAgent{ID: "10", Name: "Jorge Silva"}
	conv.SelectedAgent = &agent
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "¿sigue disponible?")

	got := mustContext(t, store, testUser)
	if got.Section != models.SectionClosing || got.Step != models.StepClosingFeedback {
		t.Errorf("state = %s", got.State().String())
	}
	if !sender.contains("del 1 al 5") {
		t.Errorf("expected rating request, got %v", sender.all())
	}
}

func TestLowRatingReopensHandover(t *testing.T) {
	client := &fakeClient{}
	r, store, sender := newTestRouter(client)
	defer r.Stop()

	seedContext(t, store, testUser, models.NewConversationContext(models.SectionClosing, models.StepClosingFeedback))

	say(t, r, testUser, "2")

	got := mustContext(t, store, testUser)
	if got.Section != models.SectionStoreHandover || got.Step != models.StepStoreHandover {
		t.Errorf("state = %s", got.State().String())
	}
	if got.HandoverReason != models.ReasonNegativeFeedback {
		t.Errorf("reason = %q", got.HandoverReason)
	}
	if len(client.feedback) != 1 || client.feedback[0] != 2 {
		t.Errorf("feedback = %v", client.feedback)
	}
	if !sender.contains("no fuera la mejor") {
		t.Errorf("expected apology, got %v", sender.all())
	}
}

func TestHighRatingLeadsToClubOffer(t *testing.T) {
	r, store, _ := newTestRouter(&fakeClient{})
	defer r.Stop()

	seedContext(t, store, testUser, models.NewConversationContext(models.SectionClosing, models.StepClosingFeedback))

	say(t, r, testUser, "5")

	got := mustContext(t, store, testUser)
	if got.Step != models.StepClubSubscription {
		t.Errorf("step = %s", got.Step)
	}
	if got.FeedbackRating != 5 {
		t.Errorf("rating = %d", got.FeedbackRating)
	}
}

func TestInvalidRatingRepromptsWithoutCounting(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionClosing, models.StepClosingFeedback)
	conv.InteractionCount = 1
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "9")

	got := mustContext(t, store, testUser)
	if got.Step != models.StepClosingFeedback {
		t.Errorf("step = %s", got.Step)
	}
	if got.InteractionCount != 1 {
		t.Errorf("interaction count = %d, want unchanged 1", got.InteractionCount)
	}
	if !sender.contains("del 1 al 5") {
		t.Errorf("expected rating reprompt, got %v", sender.all())
	}
}

func TestClubResolutionEndsSession(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		subscribed int
		wantReply  string
	}{
		{"accept", "sí", 1, "Bienvenido al Club"},
		{"decline", "no", 0, "Gracias por escribirnos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			r, store, sender := newTestRouter(client)
			defer r.Stop()

			seedContext(t, store, testUser, models.NewConversationContext(models.SectionClosing, models.StepClubSubscription))

			say(t, r, testUser, tt.body)

			if conv, _ := store.GetContext(testUser); conv != nil {
				t.Errorf("context still present: %+v", conv)
			}
			if profile, _ := store.GetProfile(testUser); profile != nil {
				t.Errorf("profile still present: %+v", profile)
			}
			if client.subscriptions != tt.subscribed {
				t.Errorf("subscriptions = %d, want %d", client.subscriptions, tt.subscribed)
			}
			if !sender.contains(tt.wantReply) {
				t.Errorf("expected %q, got %v", tt.wantReply, sender.all())
			}
		})
	}
}

func TestFollowUpSkippedWhenStateMoved(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepProductSearch)
	seedContext(t, store, testUser, conv)

	fired := false
	fu := &followUpTurn{
		fingerprint: "general/waiting_choice",
		run: func(ctx context.Context, ft *turn) {
			fired = true
		},
	}
	if err := r.processFollowUp(context.Background(), testUser, fu); err != nil {
		t.Fatalf("processFollowUp failed: %v", err)
	}
	if fired {
		t.Error("stale follow-up ran despite state change")
	}
	if len(sender.all()) != 0 {
		t.Errorf("stale follow-up produced replies: %v", sender.all())
	}
}

func TestFollowUpSkippedWhenSessionEnded(t *testing.T) {
	r, _, _ := newTestRouter(&fakeClient{})
	defer r.Stop()

	fired := false
	fu := &followUpTurn{run: func(ctx context.Context, ft *turn) { fired = true }}
	if err := r.processFollowUp(context.Background(), testUser, fu); err != nil {
		t.Fatalf("processFollowUp failed: %v", err)
	}
	if fired {
		t.Error("follow-up ran without a live context")
	}
}

func TestFollowUpRunsOnMatchingFingerprint(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionClosing, models.StepClubSubscription)
	seedContext(t, store, testUser, conv)
	oldActivity := time.Now().Add(-time.Hour)
	if err := store.SaveProfile(testUser, &models.UserProfile{DisplayName: "Cliente", LastActivityAt: oldActivity}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	fu := &followUpTurn{
		fingerprint: "closing/club_subscription",
		run: func(ctx context.Context, ft *turn) {
			ft.reply(clubOffer())
		},
	}
	if err := r.processFollowUp(context.Background(), testUser, fu); err != nil {
		t.Fatalf("processFollowUp failed: %v", err)
	}
	if !sender.contains("Club de Juguetes") {
		t.Errorf("expected club offer, got %v", sender.all())
	}

	// Synthetic turns are not user activity.
	profile, _ := store.GetProfile(testUser)
	if !profile.LastActivityAt.Equal(oldActivity) {
		t.Errorf("LastActivityAt changed by synthetic turn: %v", profile.LastActivityAt)
	}
	conv = mustContext(t, store, testUser)
	if conv.InteractionCount != 0 {
		t.Errorf("interaction count = %d, want 0 after synthetic turn", conv.InteractionCount)
	}
}

func TestEvictIdleSessionsDropsOnlyStaleContexts(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})

	stale := testUser
	active := "50577776666"
	for _, u := range []string{stale, active} {
		if err := store.SaveContext(u, models.NewConversationContext(models.SectionGeneral, models.StepProductSearch)); err != nil {
			t.Fatalf("SaveContext failed: %v", err)
		}
	}
	if err := store.SaveProfile(stale, &models.UserProfile{DisplayName: "Cliente", LastActivityAt: time.Now().Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	if err := store.SaveProfile(active, &models.UserProfile{DisplayName: "Cliente", LastActivityAt: time.Now()}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	r.EvictIdleSessions(context.Background(), 24*time.Hour)

	deadline := time.Now().Add(2 * time.Second)
	for {
		conv, _ := store.GetContext(stale)
		if conv == nil {
			break
		}
		if time.Now().After(deadline) {
			r.Stop()
			t.Fatal("stale context was not evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}
	r.Stop()

	if conv, _ := store.GetContext(active); conv == nil {
		t.Error("active context evicted")
	}
	if profile, _ := store.GetProfile(stale); profile == nil {
		t.Error("eviction removed the profile, want context only")
	}
	if len(sender.all()) != 0 {
		t.Errorf("eviction sent messages: %v", sender.all())
	}
}

func TestNudgeIdleUsersOncePerQuietPeriod(t *testing.T) {
	client := &fakeClient{}
	r, store, sender := newTestRouter(client)

	conv := models.NewConversationContext(models.SectionGeneral, models.StepProductSearch)
	if err := store.SaveContext(testUser, conv); err != nil {
		t.Fatalf("SaveContext failed: %v", err)
	}
	if err := store.SaveProfile(testUser, &models.UserProfile{LastActivityAt: time.Now().Add(-10 * time.Minute)}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	r.NudgeIdleUsers(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for !sender.contains("¿Sigues ahí?") {
		if time.Now().After(deadline) {
			r.Stop()
			t.Fatalf("nudge never delivered, got %v", sender.all())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if client.inactivityCount() != 1 {
		t.Errorf("inactivity logs = %d, want 1", client.inactivityCount())
	}

	// A second sweep inside the same quiet period must not nudge again.
	sender.reset()
	r.NudgeIdleUsers(context.Background())
	time.Sleep(100 * time.Millisecond)
	if sender.contains("¿Sigues ahí?") {
		t.Error("user nudged twice in the same quiet period")
	}
	r.Stop()
}
