// Package catalog holds the POS client's local product cache: the products
// preloaded into the terminal, indexed for exact barcode and internal
// reference lookups plus a bounded free-text search.
package catalog

import (
	"sort"
	"strings"
	"sync"

	"balikin/backend/internal/domain"
)

type Index struct {
	mu        sync.RWMutex
	byID      map[int64]domain.Product
	byBarcode map[string]int64
	byCode    map[string]int64
}

func NewIndex(products ...domain.Product) *Index {
	idx := &Index{
		byID:      make(map[int64]domain.Product, len(products)),
		byBarcode: make(map[string]int64, len(products)),
		byCode:    make(map[string]int64, len(products)),
	}
	idx.Put(products...)
	return idx
}

func (idx *Index) Put(products ...domain.Product) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, p := range products {
		if p.ID == 0 {
			continue
		}
		idx.byID[p.ID] = p
		if p.Barcode != "" {
			idx.byBarcode[p.Barcode] = p.ID
		}
		if p.DefaultCode != "" {
			idx.byCode[p.DefaultCode] = p.ID
		}
	}
}

func (idx *Index) LookupBarcode(barcode string) (domain.Product, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	id, ok := idx.byBarcode[barcode]
	if !ok {
		return domain.Product{}, false
	}
	return idx.byID[id], true
}

func (idx *Index) LookupCode(code string) (domain.Product, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	id, ok := idx.byCode[code]
	if !ok {
		return domain.Product{}, false
	}
	return idx.byID[id], true
}

// Search is a read-only projection over the POS-available products whose
// display name, barcode or internal reference contains the query,
// case-insensitively. Results are name-ordered and capped at limit.
func (idx *Index) Search(query string, limit int) []domain.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || limit < 1 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]domain.Product, 0, limit)
	for _, p := range idx.byID {
		if !p.AvailableInPOS {
			continue
		}
		if strings.Contains(strings.ToLower(p.DisplayName), query) ||
			strings.Contains(strings.ToLower(p.Barcode), query) ||
			strings.Contains(strings.ToLower(p.DefaultCode), query) {
			matches = append(matches, p)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DisplayName < matches[j].DisplayName
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
