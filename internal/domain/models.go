package domain

import "time"

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CatalogItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Unit       string `json:"unit,omitempty"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents"`
	Stock      int    `json:"stock"`
	Active     bool   `json:"active"`
}

// PriceTier is a quantity break for a catalog item: buying at least MinQty
// units gets the tier price instead of the item's base price. Tiers reference
// the item by display name, the way older exports serialize them.
type PriceTier struct {
	ID         string `json:"id"`
	ItemName   string `json:"item_name"`
	MinQty     int    `json:"min_qty"`
	PriceCents int64  `json:"price_cents"`
}

type InventoryMovement struct {
	ID         string    `json:"id"`
	ItemName   string    `json:"item_name"`
	Kind       string    `json:"kind"`
	Qty        int       `json:"qty"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type TransactionLine struct {
	ItemName       string `json:"item_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Transaction struct {
	ID           string            `json:"id"`
	CustomerName string            `json:"customer_name,omitempty"`
	Status       string            `json:"status"`
	TotalCents   int64             `json:"total_cents"`
	PaidCents    int64             `json:"paid_cents"`
	ChangeCents  int64             `json:"change_cents"`
	CreatedAt    time.Time         `json:"created_at"`
	Lines        []TransactionLine `json:"lines,omitempty"`
}

// ShopProfile is the single shop configuration record. At most one exists.
type ShopProfile struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Address        string  `json:"address,omitempty"`
	Phone          string  `json:"phone,omitempty"`
	Currency       string  `json:"currency,omitempty"`
	TaxRatePercent float64 `json:"tax_rate_percent"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	MovementIn     = "in"
	MovementOut    = "out"
	MovementAdjust = "adjust"
)

const (
	TxStatusPaid     = "paid"
	TxStatusVoided   = "voided"
	TxStatusRefunded = "refunded"
)
