// Package commerce talks to the retail backend (catalog, stock, orders, CRM).
//
// Every operation is best-effort from the caller's point of view: transport
// errors, timeouts, and backend failure envelopes all surface as a non-nil
// error that routing code treats as "no data", falling back to cached or
// default values. Backend failures never propagate to the user as errors.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// Client is the commerce backend capability used by the dialogue router.
type Client interface {
	// Catalog.
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListPromotions(ctx context.Context) ([]models.Promotion, error)
	ProductQuery(ctx context.Context, productID string) (*models.ProductDetails, error)
	StockByStore(ctx context.Context, productID string) ([]models.StoreStock, error)
	Alternatives(ctx context.Context, productID string) ([]models.Product, error)
	Upsell(ctx context.Context, productID string) (*models.Product, error)
	SearchFiltered(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	SearchSuggestions(ctx context.Context, f models.ProductFilter) ([]models.SearchSuggestion, error)
	PromotionsByCategory(ctx context.Context, category string) ([]models.Promotion, error)

	// Orders.
	ReserveProduct(ctx context.Context, userID, productID string) (*models.Reservation, error)
	GenerateQuotation(ctx context.Context, userID string, p models.Product) (*models.Quotation, error)
	CreateSaleOrder(ctx context.Context, userID string, info models.CustomerInfo, p models.Product) (*models.SaleOrder, error)
	PaymentOptions(ctx context.Context) ([]models.PaymentOption, error)

	// Stores and handover.
	StoreLocations(ctx context.Context) ([]models.StoreLocation, error)
	FindNearestStore(ctx context.Context, location string) (*models.NearestStore, error)
	TransferToSales(ctx context.Context, userID, productID string) (*models.TransferResult, error)
	CreateHandoverTicket(ctx context.Context, userID, reason, summary, agentID string) (*models.HandoverTicket, error)
	GenerateChatSummary(ctx context.Context, userID string) (string, error)
	RouteMessage(ctx context.Context, userID, agentID, body string) (*models.TransferResult, error)
	EscalateQuery(ctx context.Context, userID, reason string) error

	// CRM.
	RecordFeedback(ctx context.Context, userID string, rating int) error
	SubscribeToClub(ctx context.Context, userID string) (*models.ClubSubscription, error)
	LogInteraction(ctx context.Context, userID, body string, origin models.Origin) error
	LogSearchLead(ctx context.Context, userID string, f models.ProductFilter) error
	LogInactivity(ctx context.Context, userID string) error
}

// Opts holds configuration options for the HTTP client.
type Opts struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Option defines a configuration option for the HTTP client.
type Option func(*Opts)

// WithBaseURL sets the backend base URL.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithAPIKey sets the bearer token sent on every request.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 10 * time.Second

// HTTPClient talks to an Odoo-style JSON API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a commerce client from options.
func NewHTTPClient(opts ...Option) (*HTTPClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("commerce base URL not set")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	slog.Debug("NewHTTPClient created", "base_url", cfg.BaseURL, "timeout", timeout)
	return &HTTPClient{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, client: client}, nil
}

// envelope is the backend response wrapper. A response with Success false is
// an error even when the HTTP status is 200.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

// post sends a JSON request and decodes the data payload into out. Passing a
// nil out discards the payload.
func (h *HTTPClient) post(ctx context.Context, endpoint string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", endpoint, err)
	}

	url := h.baseURL + "/api/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		slog.Debug("HTTPClient request failed", "endpoint", endpoint, "error", err)
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Debug("HTTPClient non-OK status", "endpoint", endpoint, "status", resp.StatusCode)
		return fmt.Errorf("%s returned status %d: %w", endpoint, resp.StatusCode, models.ErrNoData)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	if !env.Success {
		slog.Debug("HTTPClient backend failure", "endpoint", endpoint, "backend_error", env.Error)
		return fmt.Errorf("%s backend failure %q: %w", endpoint, env.Error, models.ErrNoData)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", endpoint, err)
		}
	}
	return nil
}

func (h *HTTPClient) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := h.post(ctx, "products/list", map[string]string{}, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (h *HTTPClient) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	if err := h.post(ctx, "promotions/list", map[string]string{}, &promos); err != nil {
		return nil, err
	}
	return promos, nil
}

func (h *HTTPClient) ProductQuery(ctx context.Context, productID string) (*models.ProductDetails, error) {
	var details models.ProductDetails
	if err := h.post(ctx, "whatsapp/product_query", map[string]string{"product_id": productID}, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (h *HTTPClient) StockByStore(ctx context.Context, productID string) ([]models.StoreStock, error) {
	var stock []models.StoreStock
	if err := h.post(ctx, "whatsapp/stock_by_store", map[string]string{"product_id": productID}, &stock); err != nil {
		return nil, err
	}
	return stock, nil
}

func (h *HTTPClient) Alternatives(ctx context.Context, productID string) ([]models.Product, error) {
	var products []models.Product
	if err := h.post(ctx, "whatsapp/alternatives", map[string]string{"product_id": productID}, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (h *HTTPClient) Upsell(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	if err := h.post(ctx, "whatsapp/upsell", map[string]string{"product_id": productID}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *HTTPClient) SearchFiltered(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	var products []models.Product
	if err := h.post(ctx, "whatsapp/search_filtered", map[string]interface{}{"filters": f}, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (h *HTTPClient) SearchSuggestions(ctx context.Context, f models.ProductFilter) ([]models.SearchSuggestion, error) {
	var suggestions []models.SearchSuggestion
	if err := h.post(ctx, "whatsapp/search_suggestions", map[string]interface{}{"filters": f}, &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

func (h *HTTPClient) PromotionsByCategory(ctx context.Context, category string) ([]models.Promotion, error) {
	var promos []models.Promotion
	if err := h.post(ctx, "whatsapp/promotions_by_category", map[string]string{"category": category}, &promos); err != nil {
		return nil, err
	}
	return promos, nil
}

func (h *HTTPClient) ReserveProduct(ctx context.Context, userID, productID string) (*models.Reservation, error) {
	var r models.Reservation
	payload := map[string]string{"user_id": userID, "product_id": productID}
	if err := h.post(ctx, "whatsapp/reserve_product", payload, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (h *HTTPClient) GenerateQuotation(ctx context.Context, userID string, p models.Product) (*models.Quotation, error) {
	var q models.Quotation
	payload := map[string]interface{}{"user_id": userID, "product_id": p.ID, "product_name": p.Name, "price": p.Price}
	if err := h.post(ctx, "whatsapp/generate_quotation", payload, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (h *HTTPClient) CreateSaleOrder(ctx context.Context, userID string, info models.CustomerInfo, p models.Product) (*models.SaleOrder, error) {
	var o models.SaleOrder
	payload := map[string]interface{}{"user_id": userID, "customer": info, "product_id": p.ID, "price": p.Price}
	if err := h.post(ctx, "whatsapp/create_sale_order", payload, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (h *HTTPClient) PaymentOptions(ctx context.Context) ([]models.PaymentOption, error) {
	var options []models.PaymentOption
	if err := h.post(ctx, "whatsapp/payment_options", map[string]string{}, &options); err != nil {
		return nil, err
	}
	return options, nil
}

func (h *HTTPClient) StoreLocations(ctx context.Context) ([]models.StoreLocation, error) {
	var stores []models.StoreLocation
	if err := h.post(ctx, "whatsapp/store_locations", map[string]string{}, &stores); err != nil {
		return nil, err
	}
	return stores, nil
}

func (h *HTTPClient) FindNearestStore(ctx context.Context, location string) (*models.NearestStore, error) {
	var n models.NearestStore
	if err := h.post(ctx, "whatsapp/find_nearest_store", map[string]string{"location": location}, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (h *HTTPClient) TransferToSales(ctx context.Context, userID, productID string) (*models.TransferResult, error) {
	var t models.TransferResult
	payload := map[string]string{"user_id": userID, "product_id": productID}
	if err := h.post(ctx, "whatsapp/transfer_to_sales", payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *HTTPClient) CreateHandoverTicket(ctx context.Context, userID, reason, summary, agentID string) (*models.HandoverTicket, error) {
	var t models.HandoverTicket
	payload := map[string]string{"user_id": userID, "reason": reason, "summary": summary, "agent_id": agentID}
	if err := h.post(ctx, "whatsapp/create_handover_ticket", payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *HTTPClient) GenerateChatSummary(ctx context.Context, userID string) (string, error) {
	var result struct {
		Summary string `json:"summary"`
	}
	if err := h.post(ctx, "whatsapp/generate_chat_summary", map[string]string{"user_id": userID}, &result); err != nil {
		return "", err
	}
	return result.Summary, nil
}

func (h *HTTPClient) RouteMessage(ctx context.Context, userID, agentID, body string) (*models.TransferResult, error) {
	var t models.TransferResult
	payload := map[string]string{"user_id": userID, "agent_id": agentID, "body": body}
	if err := h.post(ctx, "whatsapp/route_message", payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *HTTPClient) EscalateQuery(ctx context.Context, userID, reason string) error {
	return h.post(ctx, "whatsapp/escalate_query", map[string]string{"user_id": userID, "reason": reason}, nil)
}

func (h *HTTPClient) RecordFeedback(ctx context.Context, userID string, rating int) error {
	payload := map[string]interface{}{"user_id": userID, "rating": rating}
	return h.post(ctx, "whatsapp/record_feedback", payload, nil)
}

func (h *HTTPClient) SubscribeToClub(ctx context.Context, userID string) (*models.ClubSubscription, error) {
	var sub models.ClubSubscription
	if err := h.post(ctx, "whatsapp/subscribe_to_club", map[string]string{"user_id": userID}, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (h *HTTPClient) LogInteraction(ctx context.Context, userID, body string, origin models.Origin) error {
	payload := map[string]string{"user_id": userID, "body": body, "origin": string(origin)}
	return h.post(ctx, "interaction/log", payload, nil)
}

func (h *HTTPClient) LogSearchLead(ctx context.Context, userID string, f models.ProductFilter) error {
	payload := map[string]interface{}{"user_id": userID, "filters": f}
	return h.post(ctx, "whatsapp/log_search_lead", payload, nil)
}

func (h *HTTPClient) LogInactivity(ctx context.Context, userID string) error {
	return h.post(ctx, "whatsapp/log_inactivity", map[string]string{"user_id": userID}, nil)
}
