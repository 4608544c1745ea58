package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"balikin/backend/internal/domain"
	"balikin/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	productsByID    map[int64]domain.Product
	ticketsByID     map[int64]domain.Ticket
	returnsByID     map[string]domain.ReturnRecord
	movementsByID   map[string]domain.StockMovement
	cashOutsByID    map[string]domain.CashOut
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{ID: 1, DisplayName: "Mie Goreng Instan", ListPrice: 3500, Barcode: "8991002101234", DefaultCode: "MIE-01", AvailableInPOS: true},
		{ID: 2, DisplayName: "Telur 10 Butir", ListPrice: 26500, Barcode: "8991002102345", DefaultCode: "TELUR-01", AvailableInPOS: true},
		{ID: 3, DisplayName: "Susu UHT 1L", ListPrice: 18900, Barcode: "8991002103456", DefaultCode: "SUSU-01", AvailableInPOS: true},
		{ID: 4, DisplayName: "Roti Tawar", ListPrice: 17800, Barcode: "8991002104567", DefaultCode: "ROTI-01", AvailableInPOS: true},
		{ID: 5, DisplayName: "Kopi Sachet", ListPrice: 2600, Barcode: "8991002105678", DefaultCode: "KOPI-01", AvailableInPOS: true},
		{ID: 6, DisplayName: "Gula 1kg", ListPrice: 17400, Barcode: "8991002106789", DefaultCode: "GULA-01", AvailableInPOS: true},
		{ID: 7, DisplayName: "Teh Celup", ListPrice: 9800, Barcode: "8991002107890", DefaultCode: "TEH-01", AvailableInPOS: true},
		{ID: 8, DisplayName: "Air Mineral 600ml", ListPrice: 3900, Barcode: "8991002108901", DefaultCode: "AIR-01", AvailableInPOS: true},
		{ID: 9, DisplayName: "Galon Isi Ulang", ListPrice: 21000, Barcode: "8991002109012", DefaultCode: "GALON-01", AvailableInPOS: false},
	}

	tickets := []domain.Ticket{
		{
			ID:          101,
			Name:        "Order 00001-001-0001",
			TicketRef:   "T-1001",
			CustomerID:  11,
			Date:        time.Date(2026, 8, 21, 10, 15, 0, 0, time.UTC),
			AmountTotal: 33500,
			Lines: []domain.TicketLine{
				{ProductID: 1, ProductName: "Mie Goreng Instan", Qty: 2, PriceUnit: 3500},
				{ProductID: 2, ProductName: "Telur 10 Butir", Qty: 1, PriceUnit: 26500},
			},
		},
		{
			ID:          102,
			Name:        "Order 00001-001-0002",
			TicketRef:   "T-1002",
			CustomerID:  11,
			Date:        time.Date(2026, 8, 24, 16, 40, 0, 0, time.UTC),
			AmountTotal: 28700,
			Lines: []domain.TicketLine{
				{ProductID: 3, ProductName: "Susu UHT 1L", Qty: 1, PriceUnit: 18900},
				{ProductID: 7, ProductName: "Teh Celup", Qty: 1, PriceUnit: 9800},
			},
		},
		{
			ID:          103,
			Name:        "Order 00001-001-0003",
			TicketRef:   "T-2001",
			CustomerID:  12,
			Date:        time.Date(2026, 8, 28, 9, 5, 0, 0, time.UTC),
			AmountTotal: 35600,
			Lines: []domain.TicketLine{
				{ProductID: 4, ProductName: "Roti Tawar", Qty: 2, PriceUnit: 17800},
			},
		},
	}

	productMap := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	ticketMap := make(map[int64]domain.Ticket, len(tickets))
	for _, t := range tickets {
		ticketMap[t.ID] = t
	}

	return &Store{
		productsByID:    productMap,
		ticketsByID:     ticketMap,
		returnsByID:     make(map[string]domain.ReturnRecord),
		movementsByID:   make(map[string]domain.StockMovement),
		cashOutsByID:    make(map[string]domain.CashOut),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.productsByID {
		if p.AvailableInPOS && p.Barcode != "" && p.Barcode == barcode {
			found := p
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetProductByDefaultCode(_ context.Context, code string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.productsByID {
		if p.AvailableInPOS && p.DefaultCode != "" && p.DefaultCode == code {
			found := p
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		if p, exists := s.productsByID[id]; exists {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) ListPartnerTickets(_ context.Context, customerID int64) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickets := make([]domain.Ticket, 0, 8)
	for _, t := range s.ticketsByID {
		if t.CustomerID == customerID {
			tickets = append(tickets, copyTicket(t))
		}
	}

	slices.SortFunc(tickets, func(a, b domain.Ticket) int {
		return b.Date.Compare(a.Date)
	})

	return tickets, nil
}

func (s *Store) GetTicketByID(_ context.Context, ticketID int64) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.ticketsByID[ticketID]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := copyTicket(t)
	return &found, nil
}

func (s *Store) GetReturnedQtyByTicket(_ context.Context, ticketID int64) (map[int64]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	returned := make(map[int64]float64)
	for _, ret := range s.returnsByID {
		if ret.TicketID != ticketID {
			continue
		}
		for _, line := range ret.Lines {
			returned[line.ProductID] += line.Quantity
		}
	}
	return returned, nil
}

func (s *Store) CreateReturn(_ context.Context, ret domain.ReturnRecord, movements []domain.StockMovement, cashOut domain.CashOut) (*domain.ReturnRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ret.ID == "" || ret.TicketRef == "" || len(ret.Lines) == 0 {
		return nil, store.ErrInvalidReturn
	}
	if _, exists := s.returnsByID[ret.ID]; exists {
		return nil, store.ErrInvalidReturn
	}

	s.returnsByID[ret.ID] = ret
	for _, move := range movements {
		s.movementsByID[move.ID] = move
	}
	s.cashOutsByID[cashOut.ID] = cashOut

	created := ret
	return &created, nil
}

func (s *Store) ListReturns(_ context.Context, sessionID int64, limit int) ([]domain.ReturnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}

	returns := make([]domain.ReturnRecord, 0, 16)
	for _, ret := range s.returnsByID {
		if sessionID != 0 && ret.SessionID != sessionID {
			continue
		}
		returns = append(returns, ret)
	}

	slices.SortFunc(returns, func(a, b domain.ReturnRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(returns) > limit {
		returns = returns[:limit]
	}

	return returns, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.TrimSpace(user.Username)
	if username == "" || user.Password == "" {
		return store.ErrInvalidReturn
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidReturn
	}

	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func copyTicket(t domain.Ticket) domain.Ticket {
	copied := t
	copied.Lines = make([]domain.TicketLine, len(t.Lines))
	copy(copied.Lines, t.Lines)
	return copied
}
