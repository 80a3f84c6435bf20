package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// Entitlements grava benefícios por usuário. Cada pedido ativa no máximo uma vez.
type Entitlements struct {
	db    *sql.DB
	clock ports.Clock
}

func NewEntitlements(store *Store, clock ports.Clock) *Entitlements {
	if clock == nil {
		clock = ports.SystemClock
	}
	return &Entitlements{db: store.db, clock: clock}
}

func (e *Entitlements) Activate(ctx context.Context, userID string, plan domain.Plan, orderID string) (domain.EntitlementSnapshot, error) {
	now := e.clock.Now().UTC()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.EntitlementSnapshot{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO entitlement_activations (order_id, user_id, plan_id, activated_at)
		VALUES (?, ?, ?, ?)
	`, orderID, userID, plan.ID, now.UnixMilli())
	if err != nil {
		return domain.EntitlementSnapshot{}, fmt.Errorf("record activation %s: %w", orderID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return domain.EntitlementSnapshot{}, err
	}
	if inserted == 0 {
		snapshot, err := loadSnapshot(ctx, tx, userID, now)
		if err != nil {
			return domain.EntitlementSnapshot{}, err
		}
		return snapshot, tx.Commit()
	}

	current, err := loadSnapshot(ctx, tx, userID, now)
	if err != nil {
		return domain.EntitlementSnapshot{}, err
	}

	planID := current.PlanID
	expiresAt := current.ExpiresAt
	if plan.Duration > 0 {
		base := now
		if expiresAt != nil && expiresAt.After(now) {
			base = *expiresAt
		}
		next := base.Add(plan.Duration)
		expiresAt = &next
		planID = plan.ID
	}
	if planID == "" {
		planID = plan.ID
	}

	var expiresMillis sql.NullInt64
	if expiresAt != nil {
		expiresMillis = sql.NullInt64{Int64: expiresAt.UnixMilli(), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO entitlements (user_id, plan_id, expires_at, credits, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			plan_id = excluded.plan_id,
			expires_at = excluded.expires_at,
			credits = excluded.credits,
			updated_at = excluded.updated_at
	`, userID, planID, expiresMillis, current.Credits+plan.Credits, now.UnixMilli())
	if err != nil {
		return domain.EntitlementSnapshot{}, fmt.Errorf("grant entitlement to %s: %w", userID, err)
	}

	snapshot, err := loadSnapshot(ctx, tx, userID, now)
	if err != nil {
		return domain.EntitlementSnapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.EntitlementSnapshot{}, err
	}
	return snapshot, nil
}

func (e *Entitlements) Snapshot(ctx context.Context, userID string) (domain.EntitlementSnapshot, error) {
	return loadSnapshot(ctx, e.db, userID, e.clock.Now().UTC())
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadSnapshot(ctx context.Context, q queryer, userID string, now time.Time) (domain.EntitlementSnapshot, error) {
	var (
		planID    string
		expiresAt sql.NullInt64
		credits   int64
	)
	err := q.QueryRowContext(ctx, `SELECT plan_id, expires_at, credits FROM entitlements WHERE user_id = ?`, userID).
		Scan(&planID, &expiresAt, &credits)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EntitlementSnapshot{UserID: userID}, nil
	}
	if err != nil {
		return domain.EntitlementSnapshot{}, fmt.Errorf("load entitlement for %s: %w", userID, err)
	}

	snapshot := domain.EntitlementSnapshot{UserID: userID, PlanID: planID, Credits: credits}
	if expiresAt.Valid {
		at := time.UnixMilli(expiresAt.Int64).UTC()
		snapshot.ExpiresAt = &at
		snapshot.Active = at.After(now)
	}
	if credits > 0 {
		snapshot.Active = true
	}
	return snapshot, nil
}
