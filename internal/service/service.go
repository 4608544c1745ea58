package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"balikin/backend/internal/cache"
	"balikin/backend/internal/domain"
	"balikin/backend/internal/store"
	"balikin/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo        store.Repository
	lookupCache cache.ProductCache
	lookupTTL   time.Duration
	sessionID   int64
}

func New(repo store.Repository, lookupCache cache.ProductCache, lookupTTL time.Duration, sessionID int64) *Service {
	if lookupCache == nil {
		lookupCache = cache.NoopProductCache{}
	}
	if lookupTTL <= 0 {
		lookupTTL = 5 * time.Minute
	}
	if sessionID == 0 {
		sessionID = 1
	}

	return &Service{
		repo:        repo,
		lookupCache: lookupCache,
		lookupTTL:   lookupTTL,
		sessionID:   sessionID,
	}
}

// FindProductByBarcode resolves an identifier the POS client could not find
// in its local cache. Exact barcode match first, then exact internal
// reference, both restricted to POS-available products. The response carries
// zero or one products; absence is not an error.
func (s *Service) FindProductByBarcode(ctx context.Context, req domain.ProductLookupRequest) (domain.ProductLookupResponse, error) {
	code := strings.TrimSpace(req.Barcode)
	if code == "" {
		return domain.ProductLookupResponse{}, store.ErrInvalidReturn
	}

	if cached, found, err := s.lookupCache.Get(ctx, code); err == nil && found {
		return domain.ProductLookupResponse{Products: []domain.Product{*cached}}, nil
	} else if err != nil {
		log.Printf("[service] WARN: product lookup cache get %q: %v", code, err)
	}

	product, err := s.repo.GetProductByBarcode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		product, err = s.repo.GetProductByDefaultCode(ctx, code)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ProductLookupResponse{Products: []domain.Product{}}, nil
		}
		return domain.ProductLookupResponse{}, err
	}

	if err := s.lookupCache.Set(ctx, code, product, s.lookupTTL); err != nil {
		log.Printf("[service] WARN: product lookup cache set %q: %v", code, err)
	}

	return domain.ProductLookupResponse{Products: []domain.Product{*product}}, nil
}

// GetPartnerTickets returns a customer's prior tickets, newest first, with
// each line's remaining returnable quantity reconciled against previously
// confirmed returns.
func (s *Service) GetPartnerTickets(ctx context.Context, customerID int64) ([]domain.Ticket, error) {
	if customerID < 1 {
		return nil, store.ErrInvalidReturn
	}

	tickets, err := s.repo.ListPartnerTickets(ctx, customerID)
	if err != nil {
		return nil, err
	}

	for i := range tickets {
		returned, err := s.repo.GetReturnedQtyByTicket(ctx, tickets[i].ID)
		if err != nil {
			return nil, err
		}
		for j := range tickets[i].Lines {
			line := &tickets[i].Lines[j]
			remaining := line.Qty - returned[line.ProductID]
			if remaining < 0 {
				remaining = 0
			}
			line.RemainingQty = &remaining
		}
	}

	return tickets, nil
}

// CreateReturn validates and records a complete return: one stock receipt
// movement per line plus a single cash-out for the total. Business-rule
// violations come back as a structured {success:false, error} result rather
// than an error so the POS client can surface them verbatim.
func (s *Service) CreateReturn(ctx context.Context, req domain.CreateReturnRequest) (domain.CreateReturnResult, error) {
	ticketRef := strings.TrimSpace(req.TicketRef)
	log.Printf("[service] creating return for ticket %q (%d lines)", ticketRef, len(req.Lines))

	if ticketRef == "" {
		return failResult("ticket reference is required"), nil
	}
	if len(req.Lines) == 0 {
		return failResult("at least one product is required for a return"), nil
	}

	totalAmount := 0.0
	for _, line := range req.Lines {
		if line.ProductID < 1 || line.Quantity <= 0 {
			return failResult(fmt.Sprintf("invalid quantity for product %d", line.ProductID)), nil
		}
		totalAmount += line.Quantity * line.PriceUnit
	}
	if totalAmount <= 0 {
		return failResult("return total must be greater than zero"), nil
	}

	ids := make([]int64, 0, len(req.Lines))
	for _, line := range req.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return domain.CreateReturnResult{}, err
	}
	for _, line := range req.Lines {
		if _, exists := products[line.ProductID]; !exists {
			return failResult(fmt.Sprintf("product not found: %d", line.ProductID)), nil
		}
	}

	if req.TicketID != 0 {
		if result, ok, err := s.checkRemainingQty(ctx, req, products); err != nil {
			return domain.CreateReturnResult{}, err
		} else if !ok {
			return result, nil
		}
	}

	mode := strings.TrimSpace(req.ReturnMode)
	if mode == "" {
		mode = domain.ReturnModeNone
	}

	actor, _ := ActorFromContext(ctx)
	sessionID := req.SessionID
	if sessionID == 0 {
		sessionID = s.sessionID
	}
	now := time.Now().UTC()

	ret := domain.ReturnRecord{
		ID:          xid.New("ret"),
		SessionID:   sessionID,
		TicketRef:   ticketRef,
		ReturnMode:  mode,
		TicketID:    req.TicketID,
		CustomerID:  req.CustomerID,
		TotalAmount: totalAmount,
		PickingName: pickingName(now),
		ProcessedBy: actor.Username,
		CreatedAt:   now,
		Lines:       req.Lines,
	}

	movements := make([]domain.StockMovement, 0, len(req.Lines))
	for _, line := range req.Lines {
		movements = append(movements, domain.StockMovement{
			ID:          xid.New("move"),
			PickingName: ret.PickingName,
			Origin:      ticketRef,
			ProductID:   line.ProductID,
			Qty:         line.Quantity,
			CreatedAt:   now,
		})
	}
	cashOut := domain.CashOut{
		ID:        xid.New("cash"),
		SessionID: sessionID,
		Amount:    totalAmount,
		Reason:    fmt.Sprintf("Devolucion ticket: %s", ticketRef),
		CreatedAt: now,
	}

	created, err := s.repo.CreateReturn(ctx, ret, movements, cashOut)
	if err != nil {
		log.Printf("[service] ERROR: creating return for ticket %q: %v", ticketRef, err)
		return failResult("could not record the return"), nil
	}

	log.Printf("[service] created return %s picking %s total %.2f", created.ID, created.PickingName, created.TotalAmount)

	return domain.CreateReturnResult{
		Success:     true,
		PickingName: created.PickingName,
		TotalAmount: created.TotalAmount,
		Message:     "return created successfully",
	}, nil
}

func (s *Service) ListReturns(ctx context.Context, sessionID int64, limit int) ([]domain.ReturnRecord, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListReturns(ctx, sessionID, limit)
}

// checkRemainingQty enforces the per-line returnable ceiling when the return
// is linked to a known ticket. Quantities already returned against that
// ticket count toward the ceiling.
func (s *Service) checkRemainingQty(ctx context.Context, req domain.CreateReturnRequest, products map[int64]domain.Product) (domain.CreateReturnResult, bool, error) {
	ticket, err := s.repo.GetTicketByID(ctx, req.TicketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failResult(fmt.Sprintf("ticket not found: %d", req.TicketID)), false, nil
		}
		return domain.CreateReturnResult{}, false, err
	}

	returned, err := s.repo.GetReturnedQtyByTicket(ctx, ticket.ID)
	if err != nil {
		return domain.CreateReturnResult{}, false, err
	}

	soldByProduct := make(map[int64]float64, len(ticket.Lines))
	for _, line := range ticket.Lines {
		soldByProduct[line.ProductID] += line.Qty
	}

	for _, line := range req.Lines {
		sold, onTicket := soldByProduct[line.ProductID]
		if !onTicket {
			return failResult(fmt.Sprintf("product %s is not on ticket %s", products[line.ProductID].DisplayName, ticket.TicketRef)), false, nil
		}
		remaining := sold - returned[line.ProductID]
		if line.Quantity > remaining {
			return failResult(fmt.Sprintf("quantity %.2f of %s exceeds the returnable %.2f", line.Quantity, products[line.ProductID].DisplayName, remaining)), false, nil
		}
	}

	return domain.CreateReturnResult{}, true, nil
}

func failResult(msg string) domain.CreateReturnResult {
	return domain.CreateReturnResult{Success: false, Error: msg}
}

func pickingName(at time.Time) string {
	return fmt.Sprintf("RET/IN/%s-%s", at.Format("20060102"), strings.ToUpper(xid.Short()))
}
