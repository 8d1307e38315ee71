package slots

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRegistry keeps reservations in slot_reservations. The table's
// primary key on (staff_id, slot_date, slot_time) makes the insert the lock.
type PostgresRegistry struct {
	db     pgQuerier
	tracer trace.Tracer
}

// NewPostgresRegistry creates a registry backed by a pgx pool.
func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	if pool == nil {
		panic("slots: pgx pool required")
	}
	return newPostgresRegistry(pool)
}

func newPostgresRegistry(db pgQuerier) *PostgresRegistry {
	if db == nil {
		panic("slots: querier required")
	}
	return &PostgresRegistry{db: db, tracer: otel.Tracer("salon.internal.slots")}
}

func (r *PostgresRegistry) IsStaffFree(ctx context.Context, staffID string, slot Key) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "slots.pg.is_staff_free")
	defer span.End()

	query := `SELECT 1 FROM slot_reservations WHERE staff_id = $1 AND slot_date = $2 AND slot_time = $3`
	var one int
	if err := r.db.QueryRow(ctx, query, staffID, slot.Date, slot.Time).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("slots: check staff %s: %w", staffID, err)
	}
	return false, nil
}

func (r *PostgresRegistry) Reserve(ctx context.Context, staffID string, slot Key, userID string) error {
	if err := validate(staffID, slot); err != nil {
		return err
	}
	ctx, span := r.tracer.Start(ctx, "slots.pg.reserve")
	defer span.End()

	insert := `
		INSERT INTO slot_reservations (staff_id, slot_date, slot_time, user_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (staff_id, slot_date, slot_time) DO NOTHING
	`
	holderQuery := `SELECT user_id FROM slot_reservations WHERE staff_id = $1 AND slot_date = $2 AND slot_time = $3`

	for attempt := 0; attempt < 2; attempt++ {
		tag, err := r.db.Exec(ctx, insert, staffID, slot.Date, slot.Time, userID)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("slots: insert reservation: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
		var holder string
		err = r.db.QueryRow(ctx, holderQuery, staffID, slot.Date, slot.Time).Scan(&holder)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("slots: read holder: %w", err)
		}
		if holder == userID {
			return nil
		}
		return ErrSlotTaken
	}
	return ErrSlotTaken
}

func (r *PostgresRegistry) Release(ctx context.Context, staffID string, slot Key) error {
	ctx, span := r.tracer.Start(ctx, "slots.pg.release")
	defer span.End()

	query := `DELETE FROM slot_reservations WHERE staff_id = $1 AND slot_date = $2 AND slot_time = $3`
	if _, err := r.db.Exec(ctx, query, staffID, slot.Date, slot.Time); err != nil {
		span.RecordError(err)
		return fmt.Errorf("slots: release staff %s: %w", staffID, err)
	}
	return nil
}

func (r *PostgresRegistry) ListAvailableStaff(ctx context.Context, candidates []string, slot Key) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "slots.pg.list_available_staff")
	defer span.End()

	if len(candidates) == 0 {
		return []string{}, nil
	}
	query := `
		SELECT staff_id FROM slot_reservations
		WHERE slot_date = $1 AND slot_time = $2 AND staff_id = ANY($3)
	`
	rows, err := r.db.Query(ctx, query, slot.Date, slot.Time, candidates)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("slots: list busy staff: %w", err)
	}
	defer rows.Close()

	busy := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("slots: scan busy staff: %w", err)
		}
		busy[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("slots: iterate busy staff: %w", err)
	}
	return filterFree(candidates, func(id string) bool {
		_, taken := busy[id]
		return taken
	}), nil
}

var _ Registry = (*PostgresRegistry)(nil)
