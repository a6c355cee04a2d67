package dialogue

import (
	"context"
	"log/slog"
	"strings"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// handleAdMenu is the root menu of ad-initiated conversations. The product
// the user tapped on is carried on the context.
func (r *Router) handleAdMenu(ctx context.Context, t *turn) error {
	n, ok := parseSelection(t.body)
	if !ok {
		r.failOrOffer(t, invalidOption(4))
		return nil
	}

	switch n {
	case 1:
		r.showAdPrice(ctx, t)
	case 2:
		r.showAdStock(ctx, t)
	case 3:
		r.showAdDescription(ctx, t)
	case 4:
		r.showAdOtherOptions(ctx, t)
	default:
		t.countInteraction = false
		t.reply(outOfRange(4))
	}
	return nil
}

func (r *Router) showAdPrice(ctx context.Context, t *turn) {
	details := r.adProductDetails(ctx, t)
	if details == nil {
		t.reply(apologyNoData())
		return
	}
	if details.Upsell == nil {
		if up, err := r.client.Upsell(ctx, details.ID); err == nil && up != nil {
			details.Upsell = up
		}
	}

	msg := "💰 *" + details.Name + "* cuesta C$" + formatPrice(details.Price) + "."
	if details.Upsell != nil {
		msg += "\n💡 Combínalo con *" + details.Upsell.Name + "* por C$" + formatPrice(details.Upsell.Price) + " más."
	}
	t.conv.Step = models.StepPriceDetails
	t.reply(msg, adDetailActions())
	r.maybeOfferTransfer(t)
}

func (r *Router) showAdStock(ctx context.Context, t *turn) {
	details := r.adProductDetails(ctx, t)
	if details == nil {
		t.reply(apologyNoData())
		return
	}

	stock, err := r.client.StockByStore(ctx, details.ID)
	if err != nil {
		slog.Debug("Router stock by store unavailable", "error", err, "product", details.ID)
		stock = details.StoreStock
	}

	t.conv.Step = models.StepStockDetails
	t.reply(stockByStore(details.Name, stock))

	if totalStock(stock) == 0 {
		if alts, err := r.client.Alternatives(ctx, details.ID); err == nil && len(alts) > 0 {
			t.reply(alternativesIntro())
			r.showAlternatives(t, alts)
			return
		}
	}
	t.reply(adDetailActions())
	r.maybeOfferTransfer(t)
}

// showAlternatives lists alternative products for numbered selection while
// staying in the ad flow.
func (r *Router) showAlternatives(t *turn, alts []models.Product) {
	if len(alts) > maxListedResults {
		alts = alts[:maxListedResults]
	}
	t.conv.Results = alts
	t.conv.Step = models.StepOtherOptions
	t.reply(resultsList(alts))
}

func (r *Router) showAdDescription(ctx context.Context, t *turn) {
	details := r.adProductDetails(ctx, t)
	if details == nil {
		t.reply(apologyNoData())
		return
	}
	t.conv.Step = models.StepDescriptionDetails
	t.reply(productDetail(details), adDetailActions())
	r.maybeOfferTransfer(t)
}

func (r *Router) showAdOtherOptions(ctx context.Context, t *turn) {
	alts, err := r.client.Alternatives(ctx, t.conv.ProductID)
	if err != nil || len(alts) == 0 {
		slog.Debug("Router alternatives unavailable, using catalog", "error", err)
		alts = r.searchCatalog(ctx, "")
	}
	if len(alts) == 0 {
		t.reply(apologyNoData())
		return
	}
	t.reply("Estas opciones también te pueden gustar:")
	r.showAlternatives(t, alts)
}

// adProductDetails loads the advertised product, caching the result on the
// context for the rest of the conversation.
func (r *Router) adProductDetails(ctx context.Context, t *turn) *models.ProductDetails {
	if t.conv.ProductDetails != nil {
		return t.conv.ProductDetails
	}
	if t.conv.ProductID == "" {
		return nil
	}
	details, err := r.client.ProductQuery(ctx, t.conv.ProductID)
	if err != nil {
		slog.Debug("Router ad product query unavailable", "error", err, "product", t.conv.ProductID)
		if t.conv.ProductName == "" {
			return nil
		}
		details = &models.ProductDetails{Product: models.Product{ID: t.conv.ProductID, Name: t.conv.ProductName}}
	}
	t.conv.ProductDetails = details
	return details
}

// handleAdDetailActions processes comprar/reservar/volver under any of the
// ad detail views.
func (r *Router) handleAdDetailActions(ctx context.Context, t *turn) error {
	switch strings.ToLower(strings.TrimSpace(t.body)) {
	case "comprar":
		r.startPurchase(ctx, t)
	case "reservar":
		r.reserveSelected(ctx, t)
	case "volver":
		t.conv.Step = models.StepWaitingChoice
		t.reply(adMenu(t.conv.ProductName))
	default:
		r.failOrOffer(t, adDetailActions())
		r.maybeOfferTransfer(t)
	}
	return nil
}

// handleAdOtherOptions resolves a numbered selection over the alternatives
// list. A valid pick converges into the shared shopping funnel.
func (r *Router) handleAdOtherOptions(ctx context.Context, t *turn) error {
	n, ok := parseSelection(t.body)
	if !ok {
		r.failOrOffer(t, "Responde con el número del producto que te interesa, o escribe *menú* para volver al inicio.")
		r.maybeOfferTransfer(t)
		return nil
	}
	if n < 1 || n > len(t.conv.Results) {
		t.countInteraction = false
		t.reply(outOfRange(len(t.conv.Results)))
		return nil
	}

	t.transitionTo(models.SectionGeneral, models.StepSearchResults)
	return r.handleSearchResults(ctx, t)
}

// maybeOfferTransfer proposes a salesperson once the ad sub-flow has run
// long enough without a purchase. The check counts the turn in flight.
func (r *Router) maybeOfferTransfer(t *turn) {
	if t.conv.Section != models.SectionAdResponse || t.conv.Step == models.StepOfferTransfer {
		return
	}
	if !r.policy.ShouldOfferTransfer(t.conv.InteractionCount + 1) {
		return
	}
	t.conv.Step = models.StepOfferTransfer
	t.reply(offerTransfer())
}

// handleOfferTransfer resolves the salesperson offer. Accept and decline
// both reset the attrition counters.
func (r *Router) handleOfferTransfer(ctx context.Context, t *turn) error {
	switch {
	case isYes(t.body):
		t.reply(transferAccepted())
		result, err := r.client.TransferToSales(ctx, t.userID, t.conv.ProductID)
		if err != nil {
			slog.Debug("Router transfer to sales failed, escalating", "error", err, "user", t.userID)
			r.escalate(ctx, t, models.ReasonManyInteractions)
			return nil
		}
		agent := models.SalesAgent{Name: result.AgentName}
		if agent.Name == "" {
			agent = r.defaultAgent()
		}
		t.conv.SelectedAgent = &agent
		t.conv.HandoverReason = models.ReasonManyInteractions
		t.conv.HandoverCompleted = true
		t.transitionTo(models.SectionStoreHandover, models.StepAgentConversation)
		t.reply(handoverDone(agent))
		r.scheduleAgentGreeting(t, agent)
	case isNo(t.body):
		t.conv.InteractionCount = 0
		t.conv.FailedAttempts = 0
		t.conv.Step = models.StepWaitingChoice
		t.reply(transferDeclined(), adMenu(t.conv.ProductName))
	default:
		t.countInteraction = false
		t.reply("Responde *sí* para hablar con un vendedor o *no* para seguir por aquí.")
	}
	return nil
}

func totalStock(stock []models.StoreStock) int {
	total := 0
	for _, s := range stock {
		total += s.Quantity
	}
	return total
}
