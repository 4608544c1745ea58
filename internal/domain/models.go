package domain

import "time"

type Product struct {
	ID             int64   `json:"id"`
	DisplayName    string  `json:"display_name"`
	ListPrice      float64 `json:"lst_price"`
	Barcode        string  `json:"barcode"`
	DefaultCode    string  `json:"default_code"`
	AvailableInPOS bool    `json:"available_in_pos"`
}

type CustomerRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type TicketLine struct {
	ProductID    int64    `json:"product_id"`
	ProductName  string   `json:"product_name"`
	Qty          float64  `json:"qty"`
	RemainingQty *float64 `json:"remaining_qty,omitempty"`
	PriceUnit    float64  `json:"price_unit"`
}

type Ticket struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	TicketRef   string       `json:"ticket_ref"`
	CustomerID  int64        `json:"customer_id"`
	Date        time.Time    `json:"date"`
	AmountTotal float64      `json:"amount_total"`
	Lines       []TicketLine `json:"lines"`
}

type ProductLookupRequest struct {
	SessionID int64  `json:"session_id"`
	Barcode   string `json:"barcode"`
	ConfigID  int64  `json:"config_id"`
}

type ProductLookupResponse struct {
	Products []Product `json:"products"`
}

type PartnerTicketsResponse struct {
	Tickets []Ticket `json:"tickets"`
}

type ReturnLine struct {
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	PriceUnit float64 `json:"price_unit"`
}

type CreateReturnRequest struct {
	SessionID  int64        `json:"session_id"`
	TicketRef  string       `json:"ticket_ref"`
	ReturnMode string       `json:"return_mode"`
	TicketID   int64        `json:"ticket_id,omitempty"`
	CustomerID int64        `json:"customer_id,omitempty"`
	Lines      []ReturnLine `json:"lines"`
}

type CreateReturnResult struct {
	Success     bool    `json:"success"`
	PickingName string  `json:"picking_name,omitempty"`
	TotalAmount float64 `json:"total_amount,omitempty"`
	Message     string  `json:"message,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// ReturnRecord is the persisted return, one per confirmed draft.
type ReturnRecord struct {
	ID          string       `json:"id"`
	SessionID   int64        `json:"session_id"`
	TicketRef   string       `json:"ticket_ref"`
	ReturnMode  string       `json:"return_mode"`
	TicketID    int64        `json:"ticket_id,omitempty"`
	CustomerID  int64        `json:"customer_id,omitempty"`
	TotalAmount float64      `json:"total_amount"`
	PickingName string       `json:"picking_name"`
	ProcessedBy string       `json:"processed_by"`
	CreatedAt   time.Time    `json:"created_at"`
	Lines       []ReturnLine `json:"lines"`
}

// StockMovement is the inbound receipt move created for each returned line.
type StockMovement struct {
	ID          string    `json:"id"`
	PickingName string    `json:"picking_name"`
	Origin      string    `json:"origin"`
	ProductID   int64     `json:"product_id"`
	Qty         float64   `json:"qty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CashOut is the negative cash statement entry paired with a return.
type CashOut struct {
	ID        string    `json:"id"`
	SessionID int64     `json:"session_id"`
	Amount    float64   `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
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

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
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
	ReturnModeTicket   = "odoo_ticket"
	ReturnModeExternal = "external_ticket"
	ReturnModeNone     = "no_ticket"
)
