package store

import (
	"context"
	"errors"

	"balikin/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidReturn = errors.New("invalid return")
)

type Repository interface {
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	GetProductByDefaultCode(ctx context.Context, code string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	ListPartnerTickets(ctx context.Context, customerID int64) ([]domain.Ticket, error)
	GetTicketByID(ctx context.Context, ticketID int64) (*domain.Ticket, error)
	GetReturnedQtyByTicket(ctx context.Context, ticketID int64) (map[int64]float64, error)
	CreateReturn(ctx context.Context, ret domain.ReturnRecord, movements []domain.StockMovement, cashOut domain.CashOut) (*domain.ReturnRecord, error)
	ListReturns(ctx context.Context, sessionID int64, limit int) ([]domain.ReturnRecord, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
