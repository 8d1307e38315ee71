package bootstrap

import (
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/salon-booking-assistant/internal/audit"
	"github.com/wolfman30/salon-booking-assistant/internal/booking"
	appconfig "github.com/wolfman30/salon-booking-assistant/internal/config"
	"github.com/wolfman30/salon-booking-assistant/internal/conversation"
	"github.com/wolfman30/salon-booking-assistant/internal/events"
	"github.com/wolfman30/salon-booking-assistant/internal/slots"
)

// Backends holds the shared connections stores are built on. Either may be nil.
type Backends struct {
	Redis    *redis.Client
	Postgres *pgxpool.Pool
}

// BuildSlotRegistry picks the slot registry named by SLOT_STORE.
func BuildSlotRegistry(cfg *appconfig.Config, b Backends) (slots.Registry, error) {
	switch cfg.SlotStore {
	case "", "memory":
		return slots.NewMemoryRegistry(), nil
	case "redis":
		if b.Redis == nil {
			return nil, fmt.Errorf("bootstrap: SLOT_STORE=redis requires REDIS_ADDR")
		}
		return slots.NewRedisRegistry(b.Redis, cfg.Location()), nil
	case "postgres":
		if b.Postgres == nil {
			return nil, fmt.Errorf("bootstrap: SLOT_STORE=postgres requires DATABASE_URL")
		}
		return slots.NewPostgresRegistry(b.Postgres), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown SLOT_STORE %q", cfg.SlotStore)
	}
}

// BuildConversationStore picks the conversation store named by CONVERSATION_STORE.
func BuildConversationStore(cfg *appconfig.Config, b Backends) (conversation.Store, error) {
	switch cfg.ConversationStore {
	case "", "memory":
		return conversation.NewMemoryStore(cfg.ConversationTTL), nil
	case "redis":
		if b.Redis == nil {
			return nil, fmt.Errorf("bootstrap: CONVERSATION_STORE=redis requires REDIS_ADDR")
		}
		return conversation.NewRedisStore(b.Redis, cfg.ConversationTTL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown CONVERSATION_STORE %q", cfg.ConversationStore)
	}
}

// BuildLocker picks the per-user lock named by LOCK_STORE.
func BuildLocker(cfg *appconfig.Config, b Backends) (conversation.Locker, error) {
	switch cfg.LockStore {
	case "", "memory":
		return conversation.NewKeyedMutex(), nil
	case "redis":
		if b.Redis == nil {
			return nil, fmt.Errorf("bootstrap: LOCK_STORE=redis requires REDIS_ADDR")
		}
		return conversation.NewRedisLocker(b.Redis, cfg.LockTTL, cfg.LockWait), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown LOCK_STORE %q", cfg.LockStore)
	}
}

// BuildLedger picks the booking ledger named by LEDGER_STORE.
func BuildLedger(cfg *appconfig.Config, b Backends) (booking.Ledger, error) {
	switch cfg.LedgerStore {
	case "", "memory":
		return booking.NewMemoryLedger(), nil
	case "postgres":
		if b.Postgres == nil {
			return nil, fmt.Errorf("bootstrap: LEDGER_STORE=postgres requires DATABASE_URL")
		}
		return booking.NewPostgresLedger(b.Postgres), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown LEDGER_STORE %q", cfg.LedgerStore)
	}
}

// BuildDeduper picks the webhook redelivery store named by DEDUP_STORE.
// "none" disables deduplication.
func BuildDeduper(cfg *appconfig.Config, b Backends) (events.Deduper, error) {
	switch cfg.DedupStore {
	case "", "memory":
		return events.NewMemoryDeduper(cfg.DedupTTL), nil
	case "redis":
		if b.Redis == nil {
			return nil, fmt.Errorf("bootstrap: DEDUP_STORE=redis requires REDIS_ADDR")
		}
		return events.NewRedisDeduper(b.Redis, cfg.DedupTTL), nil
	case "postgres":
		if b.Postgres == nil {
			return nil, fmt.Errorf("bootstrap: DEDUP_STORE=postgres requires DATABASE_URL")
		}
		return events.NewProcessedStore(b.Postgres), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown DEDUP_STORE %q", cfg.DedupStore)
	}
}

// BuildAuditLog picks the audit trail named by AUDIT_STORE. The postgres log
// runs database/sql over the shared pool; the returned *sql.DB is nil otherwise.
func BuildAuditLog(cfg *appconfig.Config, b Backends) (audit.Log, *sql.DB, error) {
	switch cfg.AuditStore {
	case "", "memory":
		return audit.NewMemoryLog(1000), nil, nil
	case "postgres":
		if b.Postgres == nil {
			return nil, nil, fmt.Errorf("bootstrap: AUDIT_STORE=postgres requires DATABASE_URL")
		}
		db := stdlib.OpenDBFromPool(b.Postgres)
		return audit.NewService(db), db, nil
	case "none":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown AUDIT_STORE %q", cfg.AuditStore)
	}
}
