// Package pgstore keeps subscription records in PostgreSQL.
package pgstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/tradedesk/pkg/pg"
	"github.com/dmitrymomot/tradedesk/pkg/subscription"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations holds the goose migrations for the subscriptions table.
var Migrations fs.FS = mustSub(migrationsFS, "migrations")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// DBTX is the subset of *pgxpool.Pool and pgx.Tx the store uses.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements subscription.Store.
type Store struct {
	db DBTX
}

var _ subscription.Store = (*Store)(nil)

// New panics if db is nil.
func New(db DBTX) *Store {
	if db == nil {
		panic("pgstore: db is required")
	}
	return &Store{db: db}
}

const selectColumns = `SELECT user_id::text, tier, status, expires_at, customer_id, provider_sub_id, provider, event_at, created_at, updated_at FROM subscriptions`

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*subscription.Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, selectColumns+` WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", userID, err)
	}
	return rec, nil
}

func (s *Store) GetByCustomerID(ctx context.Context, customerID string) (*subscription.Record, error) {
	if customerID == "" {
		return nil, subscription.ErrRecordNotFound
	}
	rec, err := scanRecord(s.db.QueryRow(ctx,
		selectColumns+` WHERE customer_id = $1 ORDER BY updated_at DESC LIMIT 1`, customerID))
	if err != nil {
		return nil, fmt.Errorf("get subscription by customer %s: %w", customerID, err)
	}
	return rec, nil
}

func (s *Store) Save(ctx context.Context, rec *subscription.Record) error {
	if rec == nil || rec.UserID == uuid.Nil {
		return subscription.ErrMissingUserReference
	}

	now := time.Now().UTC()
	createdAt, updatedAt := rec.CreatedAt, rec.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (user_id, tier, status, expires_at, customer_id, provider_sub_id, provider, event_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			expires_at = EXCLUDED.expires_at,
			customer_id = EXCLUDED.customer_id,
			provider_sub_id = EXCLUDED.provider_sub_id,
			provider = EXCLUDED.provider,
			event_at = EXCLUDED.event_at,
			updated_at = EXCLUDED.updated_at
		WHERE subscriptions.event_at IS NULL
			OR EXCLUDED.event_at IS NULL
			OR EXCLUDED.event_at >= subscriptions.event_at
	`,
		rec.UserID,
		string(rec.Tier),
		string(rec.Status),
		rec.ExpiresAt,
		rec.CustomerID,
		rec.ProviderSubID,
		rec.Provider,
		rec.EventAt,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("save subscription %s: %w", rec.UserID, err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*subscription.Record, error) {
	var (
		rec     subscription.Record
		userID  string
		tier    string
		status  string
		expires *time.Time
		eventAt *time.Time
	)
	err := row.Scan(
		&userID,
		&tier,
		&status,
		&expires,
		&rec.CustomerID,
		&rec.ProviderSubID,
		&rec.Provider,
		&eventAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", userID, err)
	}
	rec.UserID = id
	rec.Tier = subscription.Tier(tier)
	rec.Status = subscription.Status(status)
	rec.ExpiresAt = expires
	rec.EventAt = eventAt
	rec.Normalize()
	return &rec, nil
}
