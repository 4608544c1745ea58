package draft

import (
	"context"
	"fmt"
	"log"

	"balikin/backend/internal/domain"
)

// filteredProductLimit caps the free-text search projection.
const filteredProductLimit = 20

// Resolve maps a scanned or typed identifier to a catalog product and merges
// it into the draft with quantity +1. Resolution order: exact barcode match
// on the local cache, exact internal-reference match, then a single remote
// lookup. A transport failure on the remote step is reported as not found,
// same as a genuine miss.
func (s *Session) Resolve(ctx context.Context, identifier string) bool {
	if identifier == "" {
		return false
	}

	product, found := s.catalog.LookupBarcode(identifier)
	if !found {
		product, found = s.catalog.LookupCode(identifier)
	}
	if !found {
		remote, err := s.backend.FindProductByBarcode(ctx, identifier)
		if err != nil {
			log.Printf("[draft] remote lookup for %q failed: %v", identifier, err)
		} else if remote != nil {
			product = *remote
			found = true
			s.catalog.Put(product)
		}
	}

	if !found {
		s.notifier.Warn(fmt.Sprintf("product not found: %s", identifier))
		return false
	}

	s.AddLineItem(product, 1)
	s.searchQuery = ""
	return true
}

// FilteredProducts is the read-only search projection over the local
// catalog: POS-available products matching the current query, capped at 20.
// It never mutates the draft.
func (s *Session) FilteredProducts() []domain.Product {
	return s.catalog.Search(s.searchQuery, filteredProductLimit)
}
