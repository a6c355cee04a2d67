package dialogue

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/toysnicaragua/toysbot/internal/commerce"
	"github.com/toysnicaragua/toysbot/internal/filter"
	"github.com/toysnicaragua/toysbot/internal/models"
	"github.com/toysnicaragua/toysbot/internal/util"
)

// maxListedResults caps how many search hits are offered for selection.
const maxListedResults = 5

// parseSelection parses a 1-based numeric menu selection.
func parseSelection(body string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil {
		return 0, false
	}
	return n, true
}

func isYes(body string) bool {
	b := strings.ToLower(strings.TrimSpace(body))
	return b == "sí" || b == "si" || b == "yes"
}

func isNo(body string) bool {
	return strings.ToLower(strings.TrimSpace(body)) == "no"
}

func isCancel(body string) bool {
	return strings.ToLower(strings.TrimSpace(body)) == "cancelar"
}

// failOrOffer records a misunderstood input and either re-prompts or, once
// the attrition threshold is crossed, offers a human handover.
func (r *Router) failOrOffer(t *turn, reprompt string) {
	t.fail()
	if r.policy.ShouldOfferEscalation(t.conv.FailedAttempts) {
		t.conv.OfferPending = true
		t.reply(offerEscalation())
		return
	}
	t.reply(reprompt)
}

// handleEscalationOffer resolves a pending yes/no handover offer. Both
// outcomes reset the attrition counters.
func (r *Router) handleEscalationOffer(ctx context.Context, t *turn) {
	switch {
	case isYes(t.body):
		t.reply(transferAccepted())
		r.escalate(ctx, t, models.ReasonFailedAttempts)
	case isNo(t.body):
		t.conv.OfferPending = false
		t.conv.FailedAttempts = 0
		t.conv.InteractionCount = 0
		t.reply(transferDeclined(), generalMenu())
	default:
		t.countInteraction = false
		t.reply("Responde *sí* para hablar con una persona o *no* para continuar aquí.")
	}
}

// handleGeneralMenu is the root menu of organic conversations.
func (r *Router) handleGeneralMenu(ctx context.Context, t *turn) error {
	n, ok := parseSelection(t.body)
	if !ok {
		r.failOrOffer(t, invalidOption(7))
		return nil
	}

	switch n {
	case 1:
		t.conv.Step = models.StepPriceInquiry
		t.reply(priceInquiryPrompt())
	case 2:
		t.conv.Step = models.StepProductSearch
		t.reply(productSearchPrompt())
	case 3:
		promos, err := r.catalog.Promotions(ctx)
		if err != nil || len(promos) == 0 {
			t.reply(apologyNoData())
			return nil
		}
		t.reply(promotionsList(promos, false), "Escribe *menú* para ver más opciones.")
	case 4:
		t.reply(storesList(r.storeDirectory(ctx)))
	case 5:
		link := commerce.BuildWebLink(models.ProductFilter{})
		if t.conv.Filters != nil {
			link = commerce.BuildWebLink(*t.conv.Filters)
		}
		t.reply(webLinkReply(link))
	case 6:
		t.conv.Step = models.StepAdvancedSearch
		t.reply(advancedSearchPrompt())
	case 7:
		t.conv.HandoverReason = models.ReasonExplicitRequest
		t.transitionTo(models.SectionStoreHandover, models.StepStoreSelection)
		t.reply(storeSelectionPrompt(r.storeDirectory(ctx)))
	default:
		t.countInteraction = false
		t.reply(outOfRange(7))
	}
	return nil
}

// handlePriceInquiry routes a product or category keyword to results.
func (r *Router) handlePriceInquiry(ctx context.Context, t *turn) error {
	f := filter.Parse(t.body)
	if f.Category != "" || f.Brand != "" {
		products, err := r.client.SearchFiltered(ctx, f)
		if err != nil {
			slog.Debug("Router filtered search unavailable", "error", err, "user", t.userID)
			products = r.searchCatalog(ctx, t.body)
		}
		r.showResults(ctx, t, products, &f)
		return nil
	}

	products := r.searchCatalog(ctx, t.body)
	r.showResults(ctx, t, products, nil)
	return nil
}

// handleProductSearch runs a free-text search.
func (r *Router) handleProductSearch(ctx context.Context, t *turn) error {
	f := filter.Parse(t.body)

	var products []models.Product
	var err error
	if f.IsEmpty() {
		products = r.searchCatalog(ctx, t.body)
	} else {
		products, err = r.client.SearchFiltered(ctx, f)
		if err != nil {
			slog.Debug("Router filtered search unavailable", "error", err, "user", t.userID)
			products = r.searchCatalog(ctx, t.body)
		}
	}

	r.showResults(ctx, t, products, &f)
	return nil
}

// handleAdvancedSearch parses a structured filter request, logs the lead,
// and searches with the filter.
func (r *Router) handleAdvancedSearch(ctx context.Context, t *turn) error {
	f := filter.Parse(t.body)
	if f.IsEmpty() {
		r.failOrOffer(t, noFilterRecognized())
		return nil
	}

	if err := r.client.LogSearchLead(ctx, t.userID, f); err != nil {
		slog.Debug("Router search lead log failed", "error", err, "user", t.userID)
	}

	products, err := r.client.SearchFiltered(ctx, f)
	if err != nil {
		slog.Debug("Router filtered search unavailable", "error", err, "user", t.userID)
		t.reply(apologyNoData())
		return nil
	}

	if f.HasDiscounts && f.Category != "" {
		if promos, err := r.client.PromotionsByCategory(ctx, f.Category); err == nil && len(promos) > 0 {
			t.reply(promotionsList(promos, true))
		}
	}

	r.showResults(ctx, t, products, &f)
	return nil
}

// handleSearchResults resolves a numbered selection from the last result
// list. Out-of-range numbers re-prompt without touching step, counters, or
// the stored results.
func (r *Router) handleSearchResults(ctx context.Context, t *turn) error {
	n, ok := parseSelection(t.body)
	if !ok {
		r.failOrOffer(t, "Responde con el número del producto que te interesa, o escribe *menú* para volver al inicio.")
		return nil
	}
	if n < 1 || n > len(t.conv.Results) {
		t.countInteraction = false
		t.reply(outOfRange(len(t.conv.Results)))
		return nil
	}

	selected := t.conv.Results[n-1]
	t.conv.SelectedProduct = &selected
	r.showProductDetail(ctx, t, selected)
	return nil
}

// showProductDetail fetches full details for the product, falling back to
// the summary row when the backend has no data.
func (r *Router) showProductDetail(ctx context.Context, t *turn, p models.Product) {
	details, err := r.client.ProductQuery(ctx, p.ID)
	if err != nil {
		slog.Debug("Router product query unavailable", "error", err, "product", p.ID)
		details = &models.ProductDetails{Product: p}
	}
	t.conv.ProductDetails = details
	t.conv.Step = models.StepProductDetail
	t.reply(productDetail(details), productActions())
}

// showResults stores the hit list on the context and prompts for selection.
func (r *Router) showResults(ctx context.Context, t *turn, products []models.Product, f *models.ProductFilter) {
	if len(products) == 0 {
		msgs := []string{noResults()}
		if f != nil && !f.IsEmpty() {
			if suggestions, err := r.client.SearchSuggestions(ctx, *f); err == nil && len(suggestions) > 0 {
				msgs = append(msgs, suggestionsList(suggestions))
			}
		}
		t.fail()
		t.reply(msgs...)
		return
	}

	if len(products) > maxListedResults {
		products = products[:maxListedResults]
	}
	t.conv.Filters = f
	t.conv.Results = products
	t.conv.Step = models.StepSearchResults
	t.reply(resultsList(products))
}

// searchCatalog does a name match over the cached catalog.
func (r *Router) searchCatalog(ctx context.Context, query string) []models.Product {
	products, err := r.catalog.Products(ctx)
	if err != nil {
		slog.Debug("Router catalog unavailable", "error", err)
		return nil
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var hits []models.Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Category), q) ||
			strings.Contains(strings.ToLower(p.Brand), q) {
			hits = append(hits, p)
		}
	}
	return hits
}

// storeDirectory returns the live store list or the default directory.
func (r *Router) storeDirectory(ctx context.Context) []models.StoreLocation {
	stores, err := r.client.StoreLocations(ctx)
	if err != nil || len(stores) == 0 {
		slog.Debug("Router using default store directory", "error", err)
		return commerce.DefaultStoreLocations()
	}
	return stores
}

// handleProductDetail resolves the action menu under a product detail view.
func (r *Router) handleProductDetail(ctx context.Context, t *turn) error {
	n, ok := parseSelection(t.body)
	if !ok {
		r.failOrOffer(t, productActions())
		return nil
	}

	switch n {
	case 1:
		r.startPurchase(ctx, t)
	case 2:
		r.reserveSelected(ctx, t)
	case 3:
		if len(t.conv.Results) == 0 {
			t.conv.Step = models.StepProductSearch
			t.reply(productSearchPrompt())
			return nil
		}
		t.conv.Step = models.StepSearchResults
		t.reply(resultsList(t.conv.Results))
	case 4:
		t.conv.Step = models.StepProductSearch
		t.reply(productSearchPrompt())
	default:
		t.countInteraction = false
		t.reply(outOfRange(4))
	}
	return nil
}

// startPurchase generates a quotation for the selected product.
func (r *Router) startPurchase(ctx context.Context, t *turn) {
	p := t.selectedProduct()
	if p == nil {
		t.reply(apologyNoData())
		return
	}

	q, err := r.client.GenerateQuotation(ctx, t.userID, *p)
	if err != nil {
		slog.Debug("Router quotation unavailable, building local quote", "error", err, "user", t.userID)
		q = &models.Quotation{ID: util.GenerateQuotationReference(), ProductID: p.ID, ProductName: p.Name, UnitPrice: p.Price, Quantity: 1, Total: p.Price}
	}
	t.conv.Quotation = q
	t.transitionTo(models.SectionGeneral, models.StepQuotationGeneration)
	t.reply(quotationReply(q))
}

// reserveSelected places an in-store reservation and hands off to closing.
func (r *Router) reserveSelected(ctx context.Context, t *turn) {
	p := t.selectedProduct()
	if p == nil {
		t.reply(apologyNoData())
		return
	}

	res, err := r.client.ReserveProduct(ctx, t.userID, p.ID)
	if err != nil {
		slog.Debug("Router reservation unavailable, issuing local code", "error", err, "user", t.userID)
		res = commerce.LocalReservation(p.ID, p.Name)
	}
	t.conv.PurchaseCompleted = true
	t.reply(reservationConfirmed(res))
	r.scheduleRatingRequest(t)
}

// selectedProduct returns the product the conversation is focused on.
func (t *turn) selectedProduct() *models.Product {
	if t.conv.SelectedProduct != nil {
		return t.conv.SelectedProduct
	}
	if t.conv.ProductDetails != nil {
		p := t.conv.ProductDetails.Product
		return &p
	}
	if t.conv.ProductID != "" {
		return &models.Product{ID: t.conv.ProductID, Name: t.conv.ProductName}
	}
	return nil
}

// handleQuotation resolves the proceed-with-purchase question.
func (r *Router) handleQuotation(ctx context.Context, t *turn) error {
	switch {
	case isCancel(t.body) || isNo(t.body):
		t.conv.Quotation = nil
		t.conv.Step = models.StepProductDetail
		t.reply(purchaseCancelled(), productActions())
	case isYes(t.body):
		t.conv.Step = models.StepCustomerInfo
		t.conv.WaitingFor = models.FieldCustomerName
		t.reply(askCustomerName())
	default:
		r.failOrOffer(t, "¿Procedo con la compra? Responde *sí*, *no* o *cancelar*.")
	}
	return nil
}

// handleCustomerInfo walks the sequential purchase intake. "cancelar"
// reverts to the product view with no partial order.
func (r *Router) handleCustomerInfo(ctx context.Context, t *turn) error {
	if isCancel(t.body) {
		r.cancelPurchase(t)
		return nil
	}

	switch t.conv.WaitingFor {
	case models.FieldCustomerName:
		t.conv.CustomerInfo.Name = strings.TrimSpace(t.body)
		t.conv.WaitingFor = models.FieldCustomerPhone
		t.reply(askCustomerPhone())

	case models.FieldCustomerPhone:
		t.conv.CustomerInfo.Phone = strings.TrimSpace(t.body)
		t.conv.WaitingFor = models.FieldPreferredStore
		t.reply(askPreferredStore(r.storeDirectory(ctx)))

	case models.FieldPreferredStore:
		stores := r.storeDirectory(ctx)
		n, ok := parseSelection(t.body)
		if !ok || n < 1 || n > len(stores) {
			t.countInteraction = false
			t.reply(outOfRange(len(stores)))
			return nil
		}
		t.conv.CustomerInfo.Store = stores[n-1].Name
		t.conv.WaitingFor = models.FieldPaymentMethod
		t.reply(askPaymentMethod(r.paymentOptions(ctx)))

	case models.FieldPaymentMethod:
		options := r.paymentOptions(ctx)
		n, ok := parseSelection(t.body)
		if !ok || n < 1 || n > len(options) {
			t.countInteraction = false
			t.reply(outOfRange(len(options)))
			return nil
		}
		t.conv.CustomerInfo.PaymentMethod = options[n-1].Name
		t.conv.WaitingFor = models.FieldFinalConfirmation
		t.conv.Step = models.StepPurchaseProcess
		t.reply(orderSummary(t.conv.CustomerInfo, t.conv.Quotation))

	default:
		t.conv.WaitingFor = models.FieldCustomerName
		t.reply(askCustomerName())
	}
	return nil
}

// handlePurchaseConfirmation creates the sale order on final confirmation.
func (r *Router) handlePurchaseConfirmation(ctx context.Context, t *turn) error {
	switch {
	case isCancel(t.body) || isNo(t.body):
		r.cancelPurchase(t)
	case isYes(t.body):
		p := t.selectedProduct()
		if p == nil {
			t.reply(apologyNoData())
			return nil
		}
		order, err := r.client.CreateSaleOrder(ctx, t.userID, t.conv.CustomerInfo, *p)
		if err != nil {
			slog.Error("Router sale order failed", "error", err, "user", t.userID)
			t.reply(apologyNoData())
			return nil
		}
		if _, err := r.client.ReserveProduct(ctx, t.userID, p.ID); err != nil {
			slog.Debug("Router inventory reserve failed", "error", err, "user", t.userID)
		}
		t.conv.SaleOrder = order
		t.conv.PurchaseCompleted = true
		t.reply(orderConfirmed(order))
		r.scheduleRatingRequest(t)
	default:
		r.failOrOffer(t, "¿Confirmas la compra? Responde *sí*, *no* o *cancelar*.")
	}
	return nil
}

// cancelPurchase reverts to the product view discarding partial intake.
func (r *Router) cancelPurchase(t *turn) {
	t.conv.CustomerInfo = models.CustomerInfo{}
	t.conv.WaitingFor = ""
	t.conv.Quotation = nil
	t.conv.Step = models.StepProductDetail
	t.reply(purchaseCancelled(), productActions())
}

// paymentOptions returns the live payment methods or the defaults.
func (r *Router) paymentOptions(ctx context.Context) []models.PaymentOption {
	options, err := r.client.PaymentOptions(ctx)
	if err != nil || len(options) == 0 {
		slog.Debug("Router using default payment options", "error", err)
		return commerce.DefaultPaymentOptions()
	}
	return options
}
