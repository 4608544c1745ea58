package draft

import (
	"context"
	"fmt"
	"log"
	"strings"

	"balikin/backend/internal/domain"
)

// Confirm validates the draft and submits it as a single return-creation
// call. Re-entry while a confirmation is in flight is dropped, not queued.
// On success the session closes with the receipt name; every failure leaves
// the draft untouched so the operator can correct and retry.
func (s *Session) Confirm(ctx context.Context) bool {
	if !s.submitting.CompareAndSwap(false, true) {
		return false
	}
	defer s.submitting.Store(false)

	if s.closed {
		return false
	}

	if msg := s.validationMessage(); msg != "" {
		s.notifier.Warn(msg)
		return false
	}

	// Ceiling re-check between the validity gate and the network call;
	// names the offending item.
	for _, item := range s.items {
		if item.MaxQuantity != nil && item.Quantity > *item.MaxQuantity {
			s.notifier.Warn(fmt.Sprintf("quantity of %s exceeds the returnable %.2f", item.Name, *item.MaxQuantity))
			return false
		}
	}

	req := domain.CreateReturnRequest{
		SessionID:  s.sessionID,
		TicketRef:  strings.TrimSpace(s.externalRef),
		ReturnMode: s.mode,
		Lines:      make([]domain.ReturnLine, 0, len(s.items)),
	}
	if s.customer != nil {
		req.CustomerID = s.customer.ID
	}
	if s.selectedTicket != nil {
		req.TicketID = s.selectedTicket.ID
	}
	for _, item := range s.items {
		req.Lines = append(req.Lines, domain.ReturnLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			PriceUnit: item.PriceUnit,
		})
	}

	result, err := s.backend.CreateReturn(ctx, req)
	if err != nil {
		log.Printf("[draft] return submission failed: %v", err)
		msg := err.Error()
		if msg == "" {
			msg = "could not reach the server, please try again"
		}
		s.notifier.Warn(msg)
		return false
	}

	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "the return could not be created"
		}
		s.notifier.Warn(msg)
		return false
	}

	s.receipt = result.PickingName
	s.closed = true
	s.notifier.Info(fmt.Sprintf("return created: %s", result.PickingName))
	return true
}
