package kitchenperm

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists permissions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const permissionColumns = `id, user_id, granted_by_id, can_auto_approve, max_order_value, expires_at, is_active, COALESCE(notes, ''), created_at, updated_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var (
		p        Permission
		maxValue decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &p.UserID, &p.GrantedByID, &p.CanAutoApprove, &maxValue, &p.ExpiresAt, &p.IsActive, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	if maxValue.Valid {
		v := maxValue.Decimal
		p.MaxOrderValue = &v
	}
	return p, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// ListForUser returns every permission of a user in id order.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM kitchen_permissions WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns one permission.
func (r *Repository) Get(ctx context.Context, id int64) (Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM kitchen_permissions WHERE id=$1`, id))
}

// Insert stores a new permission and returns it with generated fields.
func (r *Repository) Insert(ctx context.Context, p Permission) (Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx, `INSERT INTO kitchen_permissions
(user_id, granted_by_id, can_auto_approve, max_order_value, expires_at, is_active, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8) RETURNING `+permissionColumns,
		p.UserID, p.GrantedByID, p.CanAutoApprove, nullDecimal(p.MaxOrderValue), p.ExpiresAt, p.IsActive, p.Notes, p.CreatedAt))
}

// Update overwrites the mutable fields of a permission.
func (r *Repository) Update(ctx context.Context, p Permission) (Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx, `UPDATE kitchen_permissions SET
can_auto_approve=$2, max_order_value=$3, expires_at=$4, is_active=$5, notes=$6, updated_at=$7
WHERE id=$1 RETURNING `+permissionColumns,
		p.ID, p.CanAutoApprove, nullDecimal(p.MaxOrderValue), p.ExpiresAt, p.IsActive, p.Notes, time.Now().UTC()))
}
