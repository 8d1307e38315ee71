package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresLedger persists bookings in the bookings table. A unique index on
// user_id enforces one booking per user.
type PostgresLedger struct {
	db pgQuerier
}

// NewPostgresLedger creates a ledger backed by pgx pool.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresLedger{db: pool}
}

// newPostgresLedgerWithQuerier allows injecting mocks for tests.
func newPostgresLedgerWithQuerier(db pgQuerier) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const bookingColumns = `id, user_id, staff_id, staff_name, category, service, slot_date, slot_time, event_id, created_at`

func (l *PostgresLedger) Create(ctx context.Context, b Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO NOTHING
	`
	tag, err := l.db.Exec(ctx, query,
		toPGUUID(b.ID), b.UserID, b.StaffID, b.StaffName, b.Category, b.Service,
		b.Date, b.Time, b.EventID, toPGTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("booking: insert booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyBooked
	}
	return nil
}

func (l *PostgresLedger) GetByUser(ctx context.Context, userID string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1`
	b, err := scanBooking(l.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("booking: load booking for %s: %w", userID, err)
	}
	return b, nil
}

func (l *PostgresLedger) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := l.db.Exec(ctx, `DELETE FROM bookings WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("booking: delete booking for %s: %w", userID, err)
	}
	return nil
}

func (l *PostgresLedger) ListByDate(ctx context.Context, date string) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE slot_date = $1 ORDER BY slot_time, staff_id`
	rows, err := l.db.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("booking: list bookings: %w", err)
	}
	defer rows.Close()

	out := make([]Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan booking: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate bookings: %w", err)
	}
	return out, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b         Booking
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &b.UserID, &b.StaffID, &b.StaffName, &b.Category, &b.Service,
		&b.Date, &b.Time, &b.EventID, &createdAt); err != nil {
		return nil, err
	}
	if id.Valid {
		b.ID = uuid.UUID(id.Bytes)
	}
	if createdAt.Valid {
		b.CreatedAt = createdAt.Time
	}
	return &b, nil
}

func toPGUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: [16]byte(id), Valid: true}
}

func toPGTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		t = time.Now()
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

var _ Ledger = (*PostgresLedger)(nil)
