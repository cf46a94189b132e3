package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sms-desk/internal/domain"
)

// TicketRepository encapsulates ticket persistence. Implementations must make
// CreateWithMessage and AppendMessage atomic: concurrent appends to the same
// ticket both survive, and concurrent creates for the same customer number
// let exactly one succeed while the rest see domain.ErrDuplicateNumber.
type TicketRepository interface {
	CreateWithMessage(ctx context.Context, customerNumber string, msg *domain.TicketMessage) (*domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, customerNumber string) (*domain.Ticket, error)
	AppendMessage(ctx context.Context, ticketID string, msg *domain.TicketMessage, reopen bool) error
	ListMessages(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	SetOpen(ctx context.Context, ticketID string, open bool) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const uniqueViolation = "23505"

func (r *ticketRepository) CreateWithMessage(ctx context.Context, customerNumber string, msg *domain.TicketMessage) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ticket := &domain.Ticket{CustomerNumber: customerNumber, Open: true}
	const insertTicket = `
        INSERT INTO tickets (customer_number, open)
        VALUES ($1, TRUE)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, insertTicket, customerNumber).Scan(
		&ticket.ID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrDuplicateNumber
		}
		return nil, err
	}

	msg.TicketID = ticket.ID
	if err := insertMessage(ctx, tx, msg); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	// A malformed identifier can never match a ticket; report it the same
	// way as an unknown one instead of letting the cast fail the query.
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrTicketNotFound
	}
	const query = `
        SELECT id, customer_number, open, created_at, updated_at
        FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, customerNumber string) (*domain.Ticket, error) {
	// ORDER BY created_at keeps the choice deterministic even if duplicates
	// ever slipped past the unique constraint.
	const query = `
        SELECT id, customer_number, open, created_at, updated_at
        FROM tickets WHERE customer_number=$1
        ORDER BY created_at ASC LIMIT 1`
	return r.fetchSingle(ctx, query, customerNumber)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.CustomerNumber,
		&ticket.Open,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) AppendMessage(ctx context.Context, ticketID string, msg *domain.TicketMessage, reopen bool) error {
	if _, err := uuid.Parse(ticketID); err != nil {
		return domain.ErrTicketNotFound
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `UPDATE tickets SET updated_at=NOW() WHERE id=$1`
	if reopen {
		query = `UPDATE tickets SET open=TRUE, updated_at=NOW() WHERE id=$1`
	}
	cmd, err := tx.Exec(ctx, query, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}

	msg.TicketID = ticketID
	if err := insertMessage(ctx, tx, msg); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ticketRepository) ListMessages(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, direction, content, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.Direction,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	const query = `
        SELECT id, customer_number, open, created_at, updated_at
        FROM tickets WHERE open ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.CustomerNumber,
			&ticket.Open,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) SetOpen(ctx context.Context, ticketID string, open bool) error {
	if _, err := uuid.Parse(ticketID); err != nil {
		return domain.ErrTicketNotFound
	}
	const query = `UPDATE tickets SET open=$2, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, ticketID, open)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, direction, content)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return tx.QueryRow(ctx, query,
		msg.TicketID,
		msg.Direction,
		msg.Content,
	).Scan(&msg.ID, &msg.CreatedAt)
}
