package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"balikin/backend/internal/domain"
	"balikin/backend/internal/store"
	"balikin/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return s.findProduct(ctx, "barcode", barcode)
}

func (s *Store) GetProductByDefaultCode(ctx context.Context, code string) (*domain.Product, error) {
	return s.findProduct(ctx, "default_code", code)
}

func (s *Store) findProduct(ctx context.Context, column string, value string) (*domain.Product, error) {
	if column != "barcode" && column != "default_code" {
		return nil, errors.New("unsupported lookup column")
	}

	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, list_price, COALESCE(barcode,''), COALESCE(default_code,''), available_in_pos
		FROM products
		WHERE available_in_pos = true AND `+column+` = $1
		ORDER BY id ASC
		LIMIT 1
	`, value).Scan(&product.ID, &product.DisplayName, &product.ListPrice, &product.Barcode, &product.DefaultCode, &product.AvailableInPOS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, list_price, COALESCE(barcode,''), COALESCE(default_code,''), available_in_pos
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.ListPrice, &p.Barcode, &p.DefaultCode, &p.AvailableInPOS); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) ListPartnerTickets(ctx context.Context, customerID int64) ([]domain.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, ticket_ref, customer_id, date, amount_total
		FROM pos_tickets
		WHERE customer_id = $1
		ORDER BY date DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]domain.Ticket, 0, 16)
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(&ticket.ID, &ticket.Name, &ticket.TicketRef, &ticket.CustomerID, &ticket.Date, &ticket.AmountTotal); err != nil {
			return nil, err
		}
		ticket.Date = ticket.Date.UTC()
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tickets {
		lines, err := s.ticketLines(ctx, tickets[i].ID)
		if err != nil {
			return nil, err
		}
		tickets[i].Lines = lines
	}

	return tickets, nil
}

func (s *Store) GetTicketByID(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, ticket_ref, customer_id, date, amount_total
		FROM pos_tickets
		WHERE id = $1
	`, ticketID).Scan(&ticket.ID, &ticket.Name, &ticket.TicketRef, &ticket.CustomerID, &ticket.Date, &ticket.AmountTotal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	ticket.Date = ticket.Date.UTC()

	lines, err := s.ticketLines(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.Lines = lines

	return &ticket, nil
}

func (s *Store) ticketLines(ctx context.Context, ticketID int64) ([]domain.TicketLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, qty, price_unit
		FROM pos_ticket_lines
		WHERE ticket_id = $1
		ORDER BY id ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.TicketLine, 0, 8)
	for rows.Next() {
		var line domain.TicketLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Qty, &line.PriceUnit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) GetReturnedQtyByTicket(ctx context.Context, ticketID int64) (map[int64]float64, error) {
	result := make(map[int64]float64)
	rows, err := s.db.QueryContext(ctx, `
		SELECT rl.product_id, COALESCE(SUM(rl.quantity), 0)
		FROM returns r
		JOIN return_lines rl ON rl.return_id = r.id
		WHERE r.ticket_id = $1
		GROUP BY rl.product_id
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var qty float64
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		result[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateReturn(ctx context.Context, ret domain.ReturnRecord, movements []domain.StockMovement, cashOut domain.CashOut) (*domain.ReturnRecord, error) {
	if ret.ID == "" {
		ret.ID = xid.New("ret")
	}
	if ret.CreatedAt.IsZero() {
		ret.CreatedAt = time.Now().UTC()
	}
	if strings.TrimSpace(ret.TicketRef) == "" || len(ret.Lines) == 0 {
		return nil, store.ErrInvalidReturn
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO returns (
			id, session_id, ticket_ref, return_mode, ticket_id, customer_id,
			total_amount, picking_name, processed_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, ret.ID, ret.SessionID, ret.TicketRef, ret.ReturnMode, nullInt64(ret.TicketID), nullInt64(ret.CustomerID),
		ret.TotalAmount, ret.PickingName, ret.ProcessedBy, ret.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidReturn
		}
		return nil, err
	}

	for _, line := range ret.Lines {
		if line.ProductID < 1 || line.Quantity <= 0 {
			return nil, store.ErrInvalidReturn
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO return_lines (return_id, product_id, quantity, price_unit)
			VALUES ($1,$2,$3,$4)
		`, ret.ID, line.ProductID, line.Quantity, line.PriceUnit)
		if err != nil {
			return nil, err
		}
	}

	for _, move := range movements {
		if move.ID == "" {
			move.ID = xid.New("move")
		}
		if move.CreatedAt.IsZero() {
			move.CreatedAt = ret.CreatedAt
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_movements (id, picking_name, origin, product_id, qty, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, move.ID, move.PickingName, move.Origin, move.ProductID, move.Qty, move.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	if cashOut.ID == "" {
		cashOut.ID = xid.New("cash")
	}
	if cashOut.CreatedAt.IsZero() {
		cashOut.CreatedAt = ret.CreatedAt
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cash_outs (id, session_id, amount, reason, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, cashOut.ID, cashOut.SessionID, cashOut.Amount, cashOut.Reason, cashOut.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := ret
	return &created, nil
}

func (s *Store) ListReturns(ctx context.Context, sessionID int64, limit int) ([]domain.ReturnRecord, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, ticket_ref, return_mode, COALESCE(ticket_id, 0), COALESCE(customer_id, 0),
			total_amount, picking_name, processed_by, created_at
		FROM returns
		WHERE ($1 = 0 OR session_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	returns := make([]domain.ReturnRecord, 0, limit)
	for rows.Next() {
		var ret domain.ReturnRecord
		if err := rows.Scan(&ret.ID, &ret.SessionID, &ret.TicketRef, &ret.ReturnMode, &ret.TicketID, &ret.CustomerID,
			&ret.TotalAmount, &ret.PickingName, &ret.ProcessedBy, &ret.CreatedAt); err != nil {
			return nil, err
		}
		ret.CreatedAt = ret.CreatedAt.UTC()
		returns = append(returns, ret)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range returns {
		lineRows, err := s.db.QueryContext(ctx, `
			SELECT product_id, quantity, price_unit
			FROM return_lines
			WHERE return_id = $1
			ORDER BY id ASC
		`, returns[i].ID)
		if err != nil {
			return nil, err
		}
		lines := make([]domain.ReturnLine, 0, 4)
		for lineRows.Next() {
			var line domain.ReturnLine
			if err := lineRows.Scan(&line.ProductID, &line.Quantity, &line.PriceUnit); err != nil {
				_ = lineRows.Close()
				return nil, err
			}
			lines = append(lines, line)
		}
		if err := lineRows.Err(); err != nil {
			_ = lineRows.Close()
			return nil, err
		}
		_ = lineRows.Close()
		returns[i].Lines = lines
	}

	return returns, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidReturn
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
