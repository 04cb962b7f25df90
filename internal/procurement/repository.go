package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/kitchen/internal/inventory"
	"github.com/odyssey-erp/kitchen/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	UpdateOrder(ctx context.Context, order PurchaseOrder) error
	DeleteOrder(ctx context.Context, id int64) error
	InsertItem(ctx context.Context, item Item) (int64, error)
	DeleteItems(ctx context.Context, orderID int64) error
	UpdateItemReceipt(ctx context.Context, item Item) error
	// Inventory binds stock writes to the same transaction.
	Inventory() inventory.TxRepository
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const orderColumns = `id, supplier_id, requester_id, approver_id, order_date, expected_delivery_date, actual_delivery_date,
status, total_amount, COALESCE(notes, ''), reject_reason, auto_approved, created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var (
		o      PurchaseOrder
		status string
	)
	err := row.Scan(&o.ID, &o.SupplierID, &o.RequesterID, &o.ApproverID, &o.OrderDate, &o.ExpectedDeliveryDate, &o.ActualDeliveryDate,
		&status, &o.TotalAmount, &o.Notes, &o.RejectReason, &o.AutoApproved, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	o.Status = Status(status)
	return o, nil
}

func loadItems(ctx context.Context, q querier, orderIDs ...int64) (map[int64][]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, purchase_order_id, ingredient_id, quantity, unit_price, total_price, received_quantity, status, COALESCE(notes, '')
FROM purchase_order_items WHERE purchase_order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var (
			it     Item
			status string
		)
		if err := rows.Scan(&it.ID, &it.PurchaseOrderID, &it.IngredientID, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.ReceivedQuantity, &status, &it.Notes); err != nil {
			return nil, err
		}
		it.Status = ItemStatus(status)
		items[it.PurchaseOrderID] = append(items[it.PurchaseOrderID], it)
	}
	return items, rows.Err()
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	items, err := loadItems(ctx, t.tx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Items = items[id]
	return order, nil
}

func (t *txRepo) InsertOrder(ctx context.Context, o PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(supplier_id, requester_id, approver_id, order_date, expected_delivery_date, status, total_amount, notes, auto_approved, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10) RETURNING id`,
		o.SupplierID, o.RequesterID, o.ApproverID, o.OrderDate, o.ExpectedDeliveryDate, string(o.Status), o.TotalAmount, o.Notes, o.AutoApproved, o.CreatedAt).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateOrder(ctx context.Context, o PurchaseOrder) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET
supplier_id=$2, approver_id=$3, expected_delivery_date=$4, actual_delivery_date=$5, status=$6,
total_amount=$7, notes=$8, reject_reason=$9, auto_approved=$10, updated_at=$11
WHERE id=$1`,
		o.ID, o.SupplierID, o.ApproverID, o.ExpectedDeliveryDate, o.ActualDeliveryDate, string(o.Status),
		o.TotalAmount, o.Notes, o.RejectReason, o.AutoApproved, o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertItem(ctx context.Context, it Item) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_items
(purchase_order_id, ingredient_id, quantity, unit_price, total_price, received_quantity, status, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		it.PurchaseOrderID, it.IngredientID, it.Quantity, it.UnitPrice, it.TotalPrice, it.ReceivedQuantity, string(it.Status), it.Notes).Scan(&id)
	return id, err
}

func (t *txRepo) DeleteItems(ctx context.Context, orderID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id=$1`, orderID)
	return err
}

func (t *txRepo) UpdateItemReceipt(ctx context.Context, it Item) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_order_items SET status=$2, received_quantity=$3 WHERE id=$1`, it.ID, string(it.Status), it.ReceivedQuantity)
	return err
}

func (t *txRepo) Inventory() inventory.TxRepository {
	return inventory.NewTxRepository(t.tx)
}

// GetOrder returns an order with its items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	items, err := loadItems(ctx, r.pool, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Items = items[id]
	return order, nil
}

// ListOrders returns orders matching filters, newest first, together with the total match count.
func (r *Repository) ListOrders(ctx context.Context, filters ListFilters) ([]PurchaseOrder, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filters.Status != "" {
		add("status = $%d", string(filters.Status))
	}
	if !filters.From.IsZero() {
		add("order_date >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("order_date <= $%d", filters.To)
	}
	if filters.SupplierID > 0 {
		add("supplier_id = $%d", filters.SupplierID)
	}
	if filters.RequesterID > 0 {
		add("requester_id = $%d", filters.RequesterID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, filters.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM purchase_orders%s ORDER BY order_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		orders []PurchaseOrder
		ids    []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return orders, total, nil
	}
	items, err := loadItems(ctx, r.pool, ids...)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, total, nil
}
