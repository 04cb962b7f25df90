package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/kitchen/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
// There is deliberately no way to modify or remove a ledger entry once appended.
type TxRepository interface {
	GetIngredientForUpdate(ctx context.Context, id int64) (Ingredient, error)
	UpdateStock(ctx context.Context, id int64, stock decimal.Decimal, at time.Time) error
	AppendTransaction(ctx context.Context, entry Transaction) (int64, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository binds inventory writes to a transaction owned by another module.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const ingredientColumns = `id, name, unit, current_stock, min_stock_level, cost_per_unit, COALESCE(category, ''), updated_at`

func scanIngredient(row pgx.Row) (Ingredient, error) {
	var ing Ingredient
	err := row.Scan(&ing.ID, &ing.Name, &ing.Unit, &ing.CurrentStock, &ing.MinStockLevel, &ing.CostPerUnit, &ing.Category, &ing.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ingredient{}, ErrIngredientNotFound
		}
		return Ingredient{}, err
	}
	return ing, nil
}

func (t *txRepo) GetIngredientForUpdate(ctx context.Context, id int64) (Ingredient, error) {
	return scanIngredient(t.tx.QueryRow(ctx, `SELECT `+ingredientColumns+` FROM ingredients WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) UpdateStock(ctx context.Context, id int64, stock decimal.Decimal, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE ingredients SET current_stock=$2, updated_at=$3 WHERE id=$1`, id, stock, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIngredientNotFound
	}
	return nil
}

func (t *txRepo) AppendTransaction(ctx context.Context, entry Transaction) (int64, error) {
	var unitPrice decimal.NullDecimal
	if entry.UnitPrice != nil {
		unitPrice = decimal.NullDecimal{Decimal: *entry.UnitPrice, Valid: true}
	}
	var refID *int64
	if entry.Reference.ID > 0 {
		refID = &entry.Reference.ID
	}
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO inventory_transactions
(ingredient_id, quantity, transaction_type, reference_type, reference_id, previous_quantity, new_quantity, unit_price, user_id, notes, transaction_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		entry.IngredientID, entry.Quantity, string(entry.Type), string(entry.Reference.Kind), refID,
		entry.PreviousQuantity, entry.NewQuantity, unitPrice, entry.UserID, entry.Notes, entry.TransactionDate).Scan(&id)
	return id, err
}

// GetIngredient returns one ingredient.
func (r *Repository) GetIngredient(ctx context.Context, id int64) (Ingredient, error) {
	return scanIngredient(r.pool.QueryRow(ctx, `SELECT `+ingredientColumns+` FROM ingredients WHERE id=$1`, id))
}

// ListLowStock returns ingredients at or below their reorder threshold.
func (r *Repository) ListLowStock(ctx context.Context, ids []int64) ([]Ingredient, error) {
	sql := `SELECT ` + ingredientColumns + ` FROM ingredients WHERE current_stock <= min_stock_level`
	args := []any{}
	if len(ids) > 0 {
		sql += ` AND id = ANY($1)`
		args = append(args, ids)
	}
	sql += ` ORDER BY name`
	return queryIngredients(ctx, r.pool, sql, args...)
}

// ListIngredientIDs returns every ingredient id in ascending order.
func (r *Repository) ListIngredientIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM ingredients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func queryIngredients(ctx context.Context, q querier, sql string, args ...any) ([]Ingredient, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ingredient
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

// ListTransactions returns the newest ledger entries for an ingredient.
func (r *Repository) ListTransactions(ctx context.Context, ingredientID int64, limit int) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, ingredient_id, quantity, transaction_type, reference_type, COALESCE(reference_id, 0),
previous_quantity, new_quantity, unit_price, user_id, COALESCE(notes, ''), transaction_date
FROM inventory_transactions WHERE ingredient_id=$1 ORDER BY transaction_date DESC, id DESC LIMIT $2`, ingredientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var (
			entry     Transaction
			txType    string
			refKind   string
			unitPrice decimal.NullDecimal
		)
		if err := rows.Scan(&entry.ID, &entry.IngredientID, &entry.Quantity, &txType, &refKind, &entry.Reference.ID,
			&entry.PreviousQuantity, &entry.NewQuantity, &unitPrice, &entry.UserID, &entry.Notes, &entry.TransactionDate); err != nil {
			return nil, err
		}
		entry.Type = TransactionType(txType)
		entry.Reference.Kind = RefKind(refKind)
		if unitPrice.Valid {
			price := unitPrice.Decimal
			entry.UnitPrice = &price
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// LedgerSnapshot reads an ingredient together with the aggregate of its ledger in one
// statement, so both come from the same snapshot. The opening row is the first one
// appended, by id, independent of the clock that stamped transaction_date.
func (r *Repository) LedgerSnapshot(ctx context.Context, ingredientID int64) (Ingredient, LedgerSummary, error) {
	var (
		ing     Ingredient
		summary LedgerSummary
		opening decimal.NullDecimal
	)
	err := r.pool.QueryRow(ctx, `SELECT i.id, i.name, i.unit, i.current_stock, i.min_stock_level, i.cost_per_unit,
COALESCE(i.category, ''), i.updated_at,
COUNT(t.id), COALESCE(SUM(t.quantity), 0),
(SELECT o.previous_quantity FROM inventory_transactions o WHERE o.ingredient_id = i.id ORDER BY o.id ASC LIMIT 1)
FROM ingredients i
LEFT JOIN inventory_transactions t ON t.ingredient_id = i.id
WHERE i.id = $1
GROUP BY i.id`, ingredientID).Scan(
		&ing.ID, &ing.Name, &ing.Unit, &ing.CurrentStock, &ing.MinStockLevel, &ing.CostPerUnit,
		&ing.Category, &ing.UpdatedAt, &summary.Entries, &summary.Sum, &opening)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ingredient{}, LedgerSummary{}, ErrIngredientNotFound
		}
		return Ingredient{}, LedgerSummary{}, err
	}
	if opening.Valid {
		summary.OpeningStock = opening.Decimal
	}
	return ing, summary, nil
}
