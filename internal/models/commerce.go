package models

// Product is a catalog entry as returned by the commerce backend.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category,omitempty"`
	Brand       string  `json:"brand,omitempty"`
	AgeRange    string  `json:"age_range,omitempty"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	WebURL      string  `json:"web_url,omitempty"`
}

// ProductDetails is the full detail record for a single product, including
// the upsell suggestion the backend computes for it.
type ProductDetails struct {
	Product
	Features      []string     `json:"features,omitempty"`
	StoreStock    []StoreStock `json:"store_stock,omitempty"`
	Upsell        *Product     `json:"upsell,omitempty"`
	BundleOptions []Product    `json:"bundle_options,omitempty"`
}

// StoreStock is per-branch availability for a product.
type StoreStock struct {
	StoreName string `json:"store_name"`
	Quantity  int    `json:"quantity"`
}

// Promotion is an active promotion, optionally carrying a redeemable code.
type Promotion struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Discount    float64 `json:"discount,omitempty"`
	Code        string  `json:"code,omitempty"`
}

// Quotation is a generated price quote for a single product.
type Quotation struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	Total       float64 `json:"total"`
	PDFURL      string  `json:"pdf_url,omitempty"`
}

// SaleOrder is a confirmed order created at the end of the purchase funnel.
type SaleOrder struct {
	ID        string  `json:"id"`
	Reference string  `json:"reference"`
	Total     float64 `json:"total"`
	Status    string  `json:"status,omitempty"`
}

// Reservation holds a product aside for in-store pickup.
type Reservation struct {
	Code        string `json:"code"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	StoreName   string `json:"store_name,omitempty"`
	ValidHours  int    `json:"valid_hours,omitempty"`
}

// PaymentOption is an accepted payment method.
type PaymentOption struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// StoreLocation is a physical branch with its assigned sales agents.
type StoreLocation struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Address string       `json:"address,omitempty"`
	Phone   string       `json:"phone,omitempty"`
	Hours   string       `json:"hours,omitempty"`
	Agents  []SalesAgent `json:"agents,omitempty"`
}

// SalesAgent is a human agent a conversation can be handed over to.
type SalesAgent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// NearestStore is the result of a free-text location lookup.
type NearestStore struct {
	Store StoreLocation `json:"store"`
	Agent SalesAgent    `json:"agent"`
}

// HandoverTicket is the CRM ticket created when a conversation escalates to a
// human agent.
type HandoverTicket struct {
	ID      string `json:"id"`
	Reason  string `json:"reason"`
	Summary string `json:"summary,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
}

// TransferResult is the outcome of routing a message to a live agent.
type TransferResult struct {
	Delivered bool   `json:"delivered"`
	AgentName string `json:"agent_name,omitempty"`
}

// SearchSuggestion is an alternative query offered when a filtered search
// returns nothing.
type SearchSuggestion struct {
	Label string `json:"label"`
	Query string `json:"query,omitempty"`
}

// ClubSubscription is the result of enrolling a user in the loyalty club.
type ClubSubscription struct {
	MemberID string `json:"member_id"`
	Joined   bool   `json:"joined"`
}
