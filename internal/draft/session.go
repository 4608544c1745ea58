// Package draft implements the in-memory return-drafting workflow: one
// Session per open return dialog, holding the selected ticket reference,
// customer, and line items until the operator confirms or abandons it.
package draft

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"balikin/backend/internal/catalog"
	"balikin/backend/internal/domain"
)

// Notifier surfaces operator-facing notices. The presentation layer decides
// how they are shown; the workflow only decides when.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
}

// LogNotifier writes notices to the process log. Used as the default and in
// headless runs.
type LogNotifier struct{}

func (LogNotifier) Info(msg string) { log.Printf("[draft] %s", msg) }
func (LogNotifier) Warn(msg string) { log.Printf("[draft] WARN: %s", msg) }

// Backend is the remote collaborator contract the workflow consumes: product
// lookup fallback, prior-ticket retrieval and return creation.
type Backend interface {
	FindProductByBarcode(ctx context.Context, code string) (*domain.Product, error)
	GetPartnerTickets(ctx context.Context, customerID int64) ([]domain.Ticket, error)
	CreateReturn(ctx context.Context, req domain.CreateReturnRequest) (domain.CreateReturnResult, error)
}

// LineItem is one product-quantity-price entry within the draft.
// MaxQuantity is set only for items seeded from a known prior ticket and
// caps the returnable quantity.
type LineItem struct {
	ProductID   int64
	Name        string
	Quantity    float64
	PriceUnit   float64
	MaxQuantity *float64
}

// Session is the mutable draft state. It is owned by a single UI goroutine:
// mutations are not synchronized. The one exception is Confirm, which is
// guarded so a double-triggered confirmation cannot submit twice.
type Session struct {
	catalog   *catalog.Index
	backend   Backend
	notifier  Notifier
	sessionID int64

	mode           string
	externalRef    string
	customer       *domain.CustomerRef
	priorTickets   []domain.Ticket
	selectedTicket *domain.Ticket
	items          []LineItem
	searchQuery    string
	scanning       bool

	submitting atomic.Bool
	closed     bool
	receipt    string
}

func NewSession(idx *catalog.Index, backend Backend, notifier Notifier, sessionID int64) *Session {
	if idx == nil {
		idx = catalog.NewIndex()
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Session{
		catalog:   idx,
		backend:   backend,
		notifier:  notifier,
		sessionID: sessionID,
		mode:      domain.ReturnModeExternal,
	}
}

func (s *Session) Mode() string                      { return s.mode }
func (s *Session) ExternalReference() string         { return s.externalRef }
func (s *Session) Customer() *domain.CustomerRef     { return s.customer }
func (s *Session) PriorTickets() []domain.Ticket     { return s.priorTickets }
func (s *Session) SelectedTicket() *domain.Ticket    { return s.selectedTicket }
func (s *Session) SearchQuery() string               { return s.searchQuery }
func (s *Session) Scanning() bool                    { return s.scanning }
func (s *Session) Closed() bool                      { return s.closed }
func (s *Session) Receipt() string                   { return s.receipt }

// LineItems returns a copy of the draft lines in display order.
func (s *Session) LineItems() []LineItem {
	items := make([]LineItem, len(s.items))
	copy(items, s.items)
	return items
}

// SetReturnMode switches the provenance path. Switching clears every
// mode-dependent field so no data leaks across modes.
func (s *Session) SetReturnMode(mode string) {
	if mode == s.mode {
		return
	}
	s.mode = mode
	s.items = nil
	s.externalRef = ""
	s.searchQuery = ""
	s.selectedTicket = nil
}

func (s *Session) SetExternalReference(ref string) {
	s.externalRef = ref
}

func (s *Session) SetSearchQuery(query string) {
	s.searchQuery = query
}

func (s *Session) SetScanning(scanning bool) {
	s.scanning = scanning
}

// SetCustomer records a customer selection. Re-selecting the current
// customer (same id) is a no-op; a genuine identity change resets all
// ticket-related state first and, in ticket mode, reloads the customer's
// prior tickets.
func (s *Session) SetCustomer(ctx context.Context, customer *domain.CustomerRef) {
	if sameCustomer(s.customer, customer) {
		return
	}

	s.customer = customer
	s.priorTickets = nil
	s.selectedTicket = nil

	if s.mode == domain.ReturnModeTicket && customer != nil {
		s.LoadTickets(ctx)
	}
}

// AddLineItem merges the product into the draft: a product already present
// has its quantity incremented, a new one is appended. Product identity is
// unique within the draft.
func (s *Session) AddLineItem(product domain.Product, qty float64) {
	if qty <= 0 {
		return
	}
	for i := range s.items {
		if s.items[i].ProductID == product.ID {
			s.items[i].Quantity += qty
			return
		}
	}
	s.items = append(s.items, LineItem{
		ProductID: product.ID,
		Name:      product.DisplayName,
		Quantity:  qty,
		PriceUnit: product.ListPrice,
	})
}

// UpdateQuantity sets the entered quantity as-is. A value at or below zero
// removes the line; a value above the line's ceiling is kept (not clamped)
// so the operator sees their input while validity blocks submission.
func (s *Session) UpdateQuantity(productID int64, qty float64) {
	if qty <= 0 {
		s.RemoveLineItem(productID)
		return
	}
	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items[i].Quantity = qty
			return
		}
	}
}

func (s *Session) RemoveLineItem(productID int64) {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// LoadTickets fetches the current customer's prior tickets. It fails soft:
// a transport error logs, empties the cached list and surfaces a warning.
// The response is tagged with the customer id it was issued for and thrown
// away if a newer customer selection landed meanwhile.
func (s *Session) LoadTickets(ctx context.Context) {
	if s.customer == nil {
		s.priorTickets = nil
		return
	}
	requestedID := s.customer.ID

	tickets, err := s.backend.GetPartnerTickets(ctx, requestedID)
	if s.customer == nil || s.customer.ID != requestedID {
		// Stale response; a newer customer selection owns the state now.
		return
	}
	if err != nil {
		log.Printf("[draft] ticket retrieval for customer %d failed: %v", requestedID, err)
		s.priorTickets = nil
		s.notifier.Warn("could not load previous tickets")
		return
	}
	s.priorTickets = tickets
}

// PickTicket seeds the draft from one of the customer's cached prior
// tickets: the external reference is taken from the ticket and the line
// items are replaced wholesale, one per returnable ticket line, with both
// quantity and ceiling set to the remaining returnable quantity (falling
// back to the originally sold quantity when no remaining figure is known).
func (s *Session) PickTicket(ticket domain.Ticket) {
	if len(s.priorTickets) == 0 {
		s.notifier.Warn("this customer has no previous tickets")
		return
	}

	picked := ticket
	s.selectedTicket = &picked
	if ticket.TicketRef != "" {
		s.externalRef = ticket.TicketRef
	} else {
		s.externalRef = ticket.Name
	}

	s.items = s.items[:0]
	for _, line := range ticket.Lines {
		qty := line.Qty
		if line.RemainingQty != nil {
			qty = *line.RemainingQty
		}
		if qty <= 0 {
			continue
		}
		max := qty
		s.items = append(s.items, LineItem{
			ProductID:   line.ProductID,
			Name:        line.ProductName,
			Quantity:    qty,
			PriceUnit:   line.PriceUnit,
			MaxQuantity: &max,
		})
	}
}

// TotalAmount is recomputed from the current lines on every call; it is
// never stored.
func (s *Session) TotalAmount() float64 {
	total := 0.0
	for _, item := range s.items {
		total += item.Quantity * item.PriceUnit
	}
	return total
}

// IsValid reports whether the draft can be submitted: a non-empty reference,
// at least one line, a positive total, and every capped line within its
// ceiling.
func (s *Session) IsValid() bool {
	return s.validationMessage() == ""
}

// validationMessage names the first violated constraint, or returns "" for
// a valid draft.
func (s *Session) validationMessage() string {
	if strings.TrimSpace(s.externalRef) == "" {
		return "a ticket number or return reason is required"
	}
	if len(s.items) == 0 {
		return "select at least one product to return"
	}
	if s.TotalAmount() <= 0 {
		return "the return total must be greater than zero"
	}
	for _, item := range s.items {
		if item.MaxQuantity != nil && item.Quantity > *item.MaxQuantity {
			return fmt.Sprintf("quantity of %s exceeds the returnable %.2f", item.Name, *item.MaxQuantity)
		}
	}
	return ""
}

func sameCustomer(a *domain.CustomerRef, b *domain.CustomerRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}
