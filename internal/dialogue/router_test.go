package dialogue

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/toysnicaragua/toysbot/internal/commerce"
	"github.com/toysnicaragua/toysbot/internal/models"
	"github.com/toysnicaragua/toysbot/internal/session"
)

// fakeClient is a scriptable commerce backend. Unset fields behave as "no
// data" so routing falls back the same way it does against a dead backend.
type fakeClient struct {
	mu sync.Mutex

	products      []models.Product
	promotions    []models.Promotion
	details       map[string]*models.ProductDetails
	stock         []models.StoreStock
	alternatives  []models.Product
	searchResults []models.Product
	searchErr     error
	quotation     *models.Quotation
	upsell        *models.Product
	transfer      *models.TransferResult
	transferErr   error
	route         *models.TransferResult
	routeErr      error

	feedback      []int
	subscriptions int
	searchLeads   int
	inactivityLog int
	escalations   []string
}

func (c *fakeClient) ListProducts(ctx context.Context) ([]models.Product, error) {
	return c.products, nil
}

func (c *fakeClient) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	return c.promotions, nil
}

func (c *fakeClient) ProductQuery(ctx context.Context, productID string) (*models.ProductDetails, error) {
	if d, ok := c.details[productID]; ok {
		return d, nil
	}
	return nil, models.ErrNoData
}

func (c *fakeClient) StockByStore(ctx context.Context, productID string) ([]models.StoreStock, error) {
	if c.stock == nil {
		return nil, models.ErrNoData
	}
	return c.stock, nil
}

func (c *fakeClient) Alternatives(ctx context.Context, productID string) ([]models.Product, error) {
	if c.alternatives == nil {
		return nil, models.ErrNoData
	}
	return c.alternatives, nil
}

func (c *fakeClient) Upsell(ctx context.Context, productID string) (*models.Product, error) {
	if c.upsell == nil {
		return nil, models.ErrNoData
	}
	return c.upsell, nil
}

func (c *fakeClient) SearchFiltered(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	return c.searchResults, nil
}

func (c *fakeClient) SearchSuggestions(ctx context.Context, f models.ProductFilter) ([]models.SearchSuggestion, error) {
	return nil, models.ErrNoData
}

func (c *fakeClient) PromotionsByCategory(ctx context.Context, category string) ([]models.Promotion, error) {
	return c.promotions, nil
}

func (c *fakeClient) ReserveProduct(ctx context.Context, userID, productID string) (*models.Reservation, error) {
	return &models.Reservation{Code: "RES-TEST", ProductID: productID}, nil
}

func (c *fakeClient) GenerateQuotation(ctx context.Context, userID string, p models.Product) (*models.Quotation, error) {
	if c.quotation == nil {
		return nil, models.ErrNoData
	}
	return c.quotation, nil
}

func (c *fakeClient) CreateSaleOrder(ctx context.Context, userID string, info models.CustomerInfo, p models.Product) (*models.SaleOrder, error) {
	return &models.SaleOrder{ID: "SO-1", Reference: "PED-001", Total: p.Price}, nil
}

func (c *fakeClient) PaymentOptions(ctx context.Context) ([]models.PaymentOption, error) {
	return nil, models.ErrNoData
}

func (c *fakeClient) StoreLocations(ctx context.Context) ([]models.StoreLocation, error) {
	return nil, models.ErrNoData
}

func (c *fakeClient) FindNearestStore(ctx context.Context, location string) (*models.NearestStore, error) {
	return nil, models.ErrNoData
}

func (c *fakeClient) TransferToSales(ctx context.Context, userID, productID string) (*models.TransferResult, error) {
	if c.transferErr != nil {
		return nil, c.transferErr
	}
	if c.transfer != nil {
		return c.transfer, nil
	}
	return &models.TransferResult{Delivered: true, AgentName: "Carlos Ruiz"}, nil
}

func (c *fakeClient) CreateHandoverTicket(ctx context.Context, userID, reason, summary, agentID string) (*models.HandoverTicket, error) {
	return &models.HandoverTicket{ID: "TKT-TEST", Reason: reason}, nil
}

func (c *fakeClient) GenerateChatSummary(ctx context.Context, userID string) (string, error) {
	return "resumen de la conversación", nil
}

func (c *fakeClient) RouteMessage(ctx context.Context, userID, agentID, body string) (*models.TransferResult, error) {
	if c.routeErr != nil {
		return nil, c.routeErr
	}
	if c.route != nil {
		return c.route, nil
	}
	return &models.TransferResult{Delivered: true}, nil
}

func (c *fakeClient) EscalateQuery(ctx context.Context, userID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.escalations = append(c.escalations, reason)
	return nil
}

func (c *fakeClient) RecordFeedback(ctx context.Context, userID string, rating int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feedback = append(c.feedback, rating)
	return nil
}

func (c *fakeClient) SubscribeToClub(ctx context.Context, userID string) (*models.ClubSubscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions++
	return &models.ClubSubscription{MemberID: "m1", Joined: true}, nil
}

func (c *fakeClient) LogInteraction(ctx context.Context, userID, body string, origin models.Origin) error {
	return nil
}

func (c *fakeClient) LogSearchLead(ctx context.Context, userID string, f models.ProductFilter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchLeads++
	return nil
}

func (c *fakeClient) LogInactivity(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inactivityLog++
	return nil
}

func (c *fakeClient) inactivityCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inactivityLog
}

// captureSender records outbound messages.
type captureSender struct {
	mu   sync.Mutex
	msgs []string
}

func (s *captureSender) SendMessage(ctx context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, body)
	return nil
}

func (s *captureSender) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *captureSender) contains(sub string) bool {
	for _, m := range s.all() {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

func (s *captureSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
}

func newTestRouter(client *fakeClient) (*Router, *session.InMemoryStore, *captureSender) {
	store := session.NewInMemoryStore()
	sender := &captureSender{}
	r := NewRouter(store, client, commerce.NewCachedCatalog(client), sender)
	return r, store, sender
}

func say(t *testing.T, r *Router, userID, body string) {
	t.Helper()
	if err := r.processMessage(context.Background(), userID, body); err != nil {
		t.Fatalf("processMessage(%q) failed: %v", body, err)
	}
}

func mustContext(t *testing.T, store *session.InMemoryStore, userID string) *models.ConversationContext {
	t.Helper()
	conv, err := store.GetContext(userID)
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if conv == nil {
		t.Fatal("expected a conversation context")
	}
	return conv
}

func seedContext(t *testing.T, store *session.InMemoryStore, userID string, conv *models.ConversationContext) {
	t.Helper()
	if err := store.SaveContext(userID, conv); err != nil {
		t.Fatalf("SaveContext failed: %v", err)
	}
	if err := store.SaveProfile(userID, &models.UserProfile{DisplayName: "Cliente", LastActivityAt: time.Now()}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
}

const testUser = "50588881234"

func TestFirstMessageStartsOnboarding(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	say(t, r, testUser, "hola")

	if !sender.contains("cómo te llamas") {
		t.Errorf("expected name prompt, got %v", sender.all())
	}
	conv := mustContext(t, store, testUser)
	if conv.Section != models.SectionGeneral || conv.Step != models.StepWaitingChoice {
		t.Errorf("state = %s", conv.State().String())
	}
	profile, _ := store.GetProfile(testUser)
	if profile == nil || !profile.OnboardingPending {
		t.Fatalf("expected pending onboarding, got %+v", profile)
	}

	say(t, r, testUser, "María")

	profile, _ = store.GetProfile(testUser)
	if profile.DisplayName != "María" || profile.OnboardingPending {
		t.Errorf("profile after onboarding = %+v", profile)
	}
	if !sender.contains("Mucho gusto, María") {
		t.Errorf("expected personal greeting, got %v", sender.all())
	}
	if !sender.contains("¿En qué te puedo ayudar hoy?") {
		t.Errorf("expected root menu, got %v", sender.all())
	}
}

func TestFirstMessageFromAdUsesAdFlow(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	attr := &models.AdAttribution{Platform: "meta", ProductID: "p42", ProductName: "Dino Bot", ReceivedAt: time.Now()}
	if err := store.SaveAdAttribution(testUser, attr); err != nil {
		t.Fatalf("SaveAdAttribution failed: %v", err)
	}

	say(t, r, testUser, "hola, vi su anuncio")

	conv := mustContext(t, store, testUser)
	if conv.Section != models.SectionAdResponse || conv.Step != models.StepWaitingChoice {
		t.Errorf("state = %s", conv.State().String())
	}
	if conv.ProductID != "p42" || conv.ProductName != "Dino Bot" {
		t.Errorf("ad payload = %q %q", conv.ProductID, conv.ProductName)
	}
	if !sender.contains("Dino Bot") {
		t.Errorf("expected greeting naming the advertised product, got %v", sender.all())
	}
}

func TestTrackingTokenStartsAdFlowWithoutAttribution(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	say(t, r, testUser, "hola fb_ad")

	conv := mustContext(t, store, testUser)
	if conv.Section != models.SectionAdResponse || conv.Step != models.StepWaitingChoice {
		t.Errorf("state = %s, want ad flow", conv.State().String())
	}
	if conv.ProductID != "" {
		t.Errorf("product id = %q, want empty for a token-only origin", conv.ProductID)
	}
	if !sender.contains("este producto") {
		t.Errorf("expected the generic ad menu, got %v", sender.all())
	}
}

func TestExpiredAttributionFallsBackToGeneral(t *testing.T) {
	r, store, _ := newTestRouter(&fakeClient{})
	defer r.Stop()

	attr := &models.AdAttribution{Platform: "meta", ProductID: "p42", ReceivedAt: time.Now().Add(-25 * time.Hour)}
	if err := store.SaveAdAttribution(testUser, attr); err != nil {
		t.Fatalf("SaveAdAttribution failed: %v", err)
	}

	say(t, r, testUser, "hola")

	conv := mustContext(t, store, testUser)
	if conv.Section != models.SectionGeneral {
		t.Errorf("section = %s, want general", conv.Section)
	}
}

func TestMenuInterruptResetsMidFunnel(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepCustomerInfo)
	conv.WaitingFor = models.FieldCustomerPhone
	conv.CustomerInfo = models.CustomerInfo{Name: "Ana"}
	conv.InteractionCount = 4
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "menú")

	got := mustContext(t, store, testUser)
	if got.Section != models.SectionGeneral || got.Step != models.StepWaitingChoice {
		t.Errorf("state = %s", got.State().String())
	}
	if got.CustomerInfo.Name != "" || got.WaitingFor != "" {
		t.Errorf("expected discarded intake, got %+v", got.CustomerInfo)
	}
	if !sender.contains("¿En qué te puedo ayudar hoy?") {
		t.Errorf("expected root menu, got %v", sender.all())
	}
}

func TestMenuInterruptFromAnyState(t *testing.T) {
	tests := []struct {
		name        string
		section     models.Section
		step        models.Step
		attributed  bool
		wantSection models.Section
		wantText    string
	}{
		{"product detail", models.SectionGeneral, models.StepProductDetail, false,
			models.SectionGeneral, "¿En qué te puedo ayudar hoy?"},
		{"ad price details", models.SectionAdResponse, models.StepPriceDetails, true,
			models.SectionAdResponse, "¿Qué te gustaría saber sobre Dino Bot?"},
		{"agent conversation", models.SectionStoreHandover, models.StepAgentConversation, false,
			models.SectionGeneral, "¿En qué te puedo ayudar hoy?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store, sender := newTestRouter(&fakeClient{})
			defer r.Stop()

			if tt.attributed {
				attr := &models.AdAttribution{Platform: "meta", ProductID: "p42", ProductName: "Dino Bot", ReceivedAt: time.Now()}
				if err := store.SaveAdAttribution(testUser, attr); err != nil {
					t.Fatalf("SaveAdAttribution failed: %v", err)
				}
			}
			conv := models.NewConversationContext(tt.section, tt.step)
			conv.InteractionCount = 3
			conv.FailedAttempts = 1
			seedContext(t, store, testUser, conv)

			say(t, r, testUser, "menú")

			got := mustContext(t, store, testUser)
			if got.Section != tt.wantSection || got.Step != models.StepWaitingChoice {
				t.Errorf("state = %s, want %s root menu", got.State().String(), tt.wantSection)
			}
			if got.FailedAttempts != 0 {
				t.Errorf("failed attempts = %d, want reset", got.FailedAttempts)
			}
			if !sender.contains(tt.wantText) {
				t.Errorf("expected %q, got %v", tt.wantText, sender.all())
			}
		})
	}
}

func TestMenuCommandCaseInsensitiveAndUnaccented(t *testing.T) {
	for _, cmd := range []string{"menú", "menu", "MENU", " Menú "} {
		if !isMenuCommand(cmd) {
			t.Errorf("isMenuCommand(%q) = false", cmd)
		}
	}
	if isMenuCommand("ver menú del día") {
		t.Error("substring must not trigger the menu interrupt")
	}
}

func TestGeneralMenuExplicitHandoverRequest(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	seedContext(t, store, testUser, models.NewConversationContext(models.SectionGeneral, models.StepWaitingChoice))

	say(t, r, testUser, "7")

	conv := mustContext(t, store, testUser)
	if conv.Section != models.SectionStoreHandover || conv.Step != models.StepStoreSelection {
		t.Errorf("state = %s", conv.State().String())
	}
	if conv.HandoverReason != models.ReasonExplicitRequest {
		t.Errorf("reason = %q", conv.HandoverReason)
	}
	if !sender.contains("número de la tienda") {
		t.Errorf("expected store selection prompt, got %v", sender.all())
	}
}

func TestOutOfRangeMenuSelectionDoesNotMutate(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepSearchResults)
	conv.Results = []models.Product{{ID: "a", Name: "Oso"}, {ID: "b", Name: "Robot"}}
	conv.InteractionCount = 2
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "9")

	got := mustContext(t, store, testUser)
	if got.Step != models.StepSearchResults {
		t.Errorf("step = %s, want search_results", got.Step)
	}
	if len(got.Results) != 2 {
		t.Errorf("results len = %d, want 2", len(got.Results))
	}
	if got.InteractionCount != 2 {
		t.Errorf("interaction count = %d, want unchanged 2", got.InteractionCount)
	}
	if !sender.contains("no está en la lista") {
		t.Errorf("expected out-of-range reprompt, got %v", sender.all())
	}
}

func TestSearchResultSelectionShowsDetail(t *testing.T) {
	client := &fakeClient{details: map[string]*models.ProductDetails{
		"b": {Product: models.Product{ID: "b", Name: "Robot", Price: 350, Stock: 4}},
	}}
	r, store, sender := newTestRouter(client)
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepSearchResults)
	conv.Results = []models.Product{{ID: "a", Name: "Oso"}, {ID: "b", Name: "Robot", Price: 350}}
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "2")

	got := mustContext(t, store, testUser)
	if got.Step != models.StepProductDetail {
		t.Errorf("step = %s", got.Step)
	}
	if got.SelectedProduct == nil || got.SelectedProduct.ID != "b" {
		t.Errorf("selected product = %+v", got.SelectedProduct)
	}
	if !sender.contains("Robot") || !sender.contains("350.00") {
		t.Errorf("expected product detail, got %v", sender.all())
	}
}

func TestComplexKeywordEscalatesImmediately(t *testing.T) {
	client := &fakeClient{}
	r, store, sender := newTestRouter(client)
	defer r.Stop()

	seedContext(t, store, testUser, models.NewConversationContext(models.SectionGeneral, models.StepWaitingChoice))

	say(t, r, testUser, "tengo una queja del producto")

	conv := mustContext(t, store, testUser)
	if conv.Section != models.SectionStoreHandover || conv.Step != models.StepStoreHandover {
		t.Errorf("state = %s", conv.State().String())
	}
	if conv.HandoverReason != models.ReasonComplexQuery {
		t.Errorf("reason = %q, want %q", conv.HandoverReason, models.ReasonComplexQuery)
	}
	if len(client.escalations) != 1 || client.escalations[0] != models.ReasonComplexQuery {
		t.Errorf("escalations = %v", client.escalations)
	}
	if !sender.contains("atención personalizada") {
		t.Errorf("expected escalation intro, got %v", sender.all())
	}
}

func TestInteractionCountEscalatesNeutralMessage(t *testing.T) {
	r, store, _ := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepProductSearch)
	conv.InteractionCount = 5
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "mmm no sé")

	got := mustContext(t, store, testUser)
	if got.HandoverReason != models.ReasonManyInteractions {
		t.Errorf("reason = %q, want %q", got.HandoverReason, models.ReasonManyInteractions)
	}
}

func TestComplexKeywordOutranksInteractionCount(t *testing.T) {
	r, store, _ := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepProductSearch)
	conv.InteractionCount = 7
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "esto es un problema")

	got := mustContext(t, store, testUser)
	if got.HandoverReason != models.ReasonComplexQuery {
		t.Errorf("reason = %q, want %q", got.HandoverReason, models.ReasonComplexQuery)
	}
}

func TestFastPathExemptInHandoverSection(t *testing.T) {
	r, store, _ := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionStoreHandover, models.StepAgentConversation)
	agent := models.SalesAgent{ID: "10", Name: "Jorge Silva"}
	conv.SelectedAgent = &agent
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "tengo un problema con el pedido")

	got := mustContext(t, store, testUser)
	if got.Section != models.SectionStoreHandover || got.Step != models.StepAgentConversation {
		t.Errorf("state = %s, want agent conversation untouched", got.State().String())
	}
}

func TestRepeatedFailuresOfferEscalation(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	seedContext(t, store, testUser, models.NewConversationContext(models.SectionGeneral, models.StepWaitingChoice))

	say(t, r, testUser, "qwerty")
	conv := mustContext(t, store, testUser)
	if conv.FailedAttempts != 1 || conv.OfferPending {
		t.Fatalf("after first failure: attempts=%d pending=%v", conv.FailedAttempts, conv.OfferPending)
	}

	say(t, r, testUser, "asdfgh")
	conv = mustContext(t, store, testUser)
	if conv.FailedAttempts != 2 || !conv.OfferPending {
		t.Fatalf("after second failure: attempts=%d pending=%v", conv.FailedAttempts, conv.OfferPending)
	}
	if !sender.contains("¿Quieres que te atienda una persona") {
		t.Errorf("expected escalation offer, got %v", sender.all())
	}
}

func TestEscalationOfferDeclineResetsCounters(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepWaitingChoice)
	conv.FailedAttempts = 2
	conv.InteractionCount = 2
	conv.OfferPending = true
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "no")

	got := mustContext(t, store, testUser)
	if got.OfferPending {
		t.Error("offer still pending after decline")
	}
	if got.FailedAttempts != 0 {
		t.Errorf("failed attempts = %d, want 0", got.FailedAttempts)
	}
	if !sender.contains("seguimos por aquí") {
		t.Errorf("expected decline acknowledgement, got %v", sender.all())
	}
}

func TestEscalationOfferAcceptHandsOver(t *testing.T) {
	client := &fakeClient{}
	r, store, _ := newTestRouter(client)
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, models.StepWaitingChoice)
	conv.FailedAttempts = 2
	conv.OfferPending = true
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "sí")

	got := mustContext(t, store, testUser)
	if got.Section != models.SectionStoreHandover || got.Step != models.StepStoreHandover {
		t.Errorf("state = %s", got.State().String())
	}
	if got.HandoverReason != models.ReasonFailedAttempts {
		t.Errorf("reason = %q", got.HandoverReason)
	}
	if got.OfferPending {
		t.Error("offer still pending after section change")
	}
}

func TestUnknownStateResetsToRootMenu(t *testing.T) {
	r, store, sender := newTestRouter(&fakeClient{})
	defer r.Stop()

	conv := models.NewConversationContext(models.SectionGeneral, "no_such_step")
	seedContext(t, store, testUser, conv)

	say(t, r, testUser, "hola")

	got := mustContext(t, store, testUser)
	if got.Section != models.SectionGeneral || got.Step != models.StepWaitingChoice {
		t.Errorf("state = %s, want reset to root menu", got.State().String())
	}
	if !sender.contains("¿En qué te puedo ayudar hoy?") {
		t.Errorf("expected root menu, got %v", sender.all())
	}
}

func TestRunStopsWhenResponsesClose(t *testing.T) {
	r, _, _ := newTestRouter(&fakeClient{})
	defer r.Stop()

	responses := make(chan models.Response)
	receipts := make(chan models.Receipt)
	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), responses, receipts)
	}()

	close(responses)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after responses channel closed")
	}
}

func TestPerUserOrderingThroughInbox(t *testing.T) {
	r, store, _ := newTestRouter(&fakeClient{})

	responses := make(chan models.Response)
	receipts := make(chan models.Receipt)
	go r.Run(context.Background(), responses, receipts)

	responses <- models.Response{From: testUser, Body: "hola", Time: time.Now().Unix()}
	responses <- models.Response{From: testUser, Body: "María", Time: time.Now().Unix()}
	close(responses)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		profile, _ := store.GetProfile(testUser)
		if profile != nil && profile.DisplayName == "María" {
			r.Stop()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	r.Stop()
	profile, _ := store.GetProfile(testUser)
	t.Fatalf("onboarding did not complete in order, profile = %+v", profile)
}
