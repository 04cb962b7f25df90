package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

type memoryRepo struct {
	mu          sync.Mutex
	ingredients map[int64]Ingredient
	ledger      []Transaction
	nextID      int64
	failAppend  error
	// afterRead runs once GetIngredient has released the lock.
	afterRead func()
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo(ingredients ...Ingredient) *memoryRepo {
	r := &memoryRepo{ingredients: make(map[int64]Ingredient)}
	for _, ing := range ingredients {
		r.ingredients[ing.ID] = ing
	}
	return r
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[int64]Ingredient, len(r.ingredients))
	for k, v := range r.ingredients {
		snapshot[k] = v
	}
	ledgerLen := len(r.ledger)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.ingredients = snapshot
		r.ledger = r.ledger[:ledgerLen]
		return err
	}
	return nil
}

func (r *memoryRepo) GetIngredient(ctx context.Context, id int64) (Ingredient, error) {
	r.mu.Lock()
	ing, ok := r.ingredients[id]
	r.mu.Unlock()
	if r.afterRead != nil {
		r.afterRead()
	}
	if !ok {
		return Ingredient{}, ErrIngredientNotFound
	}
	return ing, nil
}

func (r *memoryRepo) ListLowStock(ctx context.Context, ids []int64) ([]Ingredient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Ingredient
	for _, ing := range r.ingredients {
		if len(ids) > 0 && !want[ing.ID] {
			continue
		}
		if ing.BelowReorder() {
			out = append(out, ing)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) ListIngredientIDs(ctx context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.ingredients))
	for id := range r.ingredients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *memoryRepo) ListTransactions(ctx context.Context, ingredientID int64, limit int) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Transaction
	for i := len(r.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if r.ledger[i].IngredientID == ingredientID {
			out = append(out, r.ledger[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) LedgerSnapshot(ctx context.Context, ingredientID int64) (Ingredient, LedgerSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ing, ok := r.ingredients[ingredientID]
	if !ok {
		return Ingredient{}, LedgerSummary{}, ErrIngredientNotFound
	}
	var (
		summary   LedgerSummary
		openingID int64
	)
	for _, entry := range r.ledger {
		if entry.IngredientID != ingredientID {
			continue
		}
		if summary.Entries == 0 || entry.ID < openingID {
			openingID = entry.ID
			summary.OpeningStock = entry.PreviousQuantity
		}
		summary.Entries++
		summary.Sum = summary.Sum.Add(entry.Quantity)
	}
	return ing, summary, nil
}

func (tx *memoryTx) GetIngredientForUpdate(ctx context.Context, id int64) (Ingredient, error) {
	ing, ok := tx.repo.ingredients[id]
	if !ok {
		return Ingredient{}, ErrIngredientNotFound
	}
	return ing, nil
}

func (tx *memoryTx) UpdateStock(ctx context.Context, id int64, stock decimal.Decimal, at time.Time) error {
	ing, ok := tx.repo.ingredients[id]
	if !ok {
		return ErrIngredientNotFound
	}
	ing.CurrentStock = stock
	ing.UpdatedAt = at
	tx.repo.ingredients[id] = ing
	return nil
}

func (tx *memoryTx) AppendTransaction(ctx context.Context, entry Transaction) (int64, error) {
	if tx.repo.failAppend != nil {
		return 0, tx.repo.failAppend
	}
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.ledger = append(tx.repo.ledger, entry)
	return entry.ID, nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var (
	kitchenActor = shared.Actor{ID: 11, Role: shared.RoleKitchen}
	staffActor   = shared.Actor{ID: 12, Role: shared.RoleOther}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tomatoes(stock string) Ingredient {
	return Ingredient{ID: 1, Name: "Tomatoes", Unit: "kg", CurrentStock: dec(stock), MinStockLevel: dec("5"), CostPerUnit: dec("2.5")}
}

func TestReceiveAppendsPurchaseEntry(t *testing.T) {
	repo := newMemoryRepo(tomatoes("4"))
	svc := NewService(repo, nil, nil)

	var entry Transaction
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = svc.Receive(ctx, tx, ReceiveInput{IngredientID: 1, Quantity: dec("10"), UnitPrice: dec("2.40"), OrderID: 77, ActorID: 3})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, TransactionPurchase, entry.Type)
	assert.Equal(t, PurchaseOrderRef(77), entry.Reference)
	assert.True(t, entry.PreviousQuantity.Equal(dec("4")))
	assert.True(t, entry.NewQuantity.Equal(dec("14")))
	require.NotNil(t, entry.UnitPrice)
	assert.True(t, entry.UnitPrice.Equal(dec("2.40")))
	assert.Equal(t, int64(3), entry.UserID)
	assert.True(t, repo.ingredients[1].CurrentStock.Equal(dec("14")))
}

func TestReceiveRejectsNonPositiveQuantity(t *testing.T) {
	repo := newMemoryRepo(tomatoes("4"))
	svc := NewService(repo, nil, nil)
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.Receive(ctx, tx, ReceiveInput{IngredientID: 1, Quantity: decimal.Zero, OrderID: 1})
		return err
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordMovementUsage(t *testing.T) {
	repo := newMemoryRepo(tomatoes("8"))
	audit := &memoryAudit{}
	svc := NewService(repo, audit, nil)

	entry, err := svc.RecordMovement(context.Background(), kitchenActor, MovementInput{IngredientID: 1, Quantity: dec("-3.5"), Type: TransactionUsage})
	require.NoError(t, err)
	assert.Equal(t, RefManual, entry.Reference.Kind)
	assert.True(t, entry.NewQuantity.Equal(dec("4.5")))
	assert.Len(t, audit.logs, 1)
	assert.Equal(t, "inventory:usage", audit.logs[0].Action)
}

func TestRecordMovementGuards(t *testing.T) {
	cases := []struct {
		name  string
		actor shared.Actor
		input MovementInput
		want  error
	}{
		{"staff forbidden", staffActor, MovementInput{IngredientID: 1, Quantity: dec("-1"), Type: TransactionUsage}, shared.ErrForbidden},
		{"purchase reserved", kitchenActor, MovementInput{IngredientID: 1, Quantity: dec("1"), Type: TransactionPurchase}, ErrInvalidType},
		{"waste must be negative", kitchenActor, MovementInput{IngredientID: 1, Quantity: dec("2"), Type: TransactionWaste}, ErrInvalidQuantity},
		{"zero adjustment", kitchenActor, MovementInput{IngredientID: 1, Quantity: decimal.Zero, Type: TransactionAdjustment}, ErrInvalidQuantity},
		{"po reference reserved", kitchenActor, MovementInput{IngredientID: 1, Quantity: dec("1"), Type: TransactionAdjustment, Reference: PurchaseOrderRef(3)}, ErrInvalidReference},
		{"negative stock", kitchenActor, MovementInput{IngredientID: 1, Quantity: dec("-9"), Type: TransactionUsage}, ErrNegativeStock},
		{"missing ingredient", kitchenActor, MovementInput{IngredientID: 99, Quantity: dec("-1"), Type: TransactionWaste}, ErrIngredientNotFound},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryRepo(tomatoes("8"))
			svc := NewService(repo, nil, nil)
			_, err := svc.RecordMovement(context.Background(), tc.actor, tc.input)
			require.ErrorIs(t, err, tc.want)
			assert.Empty(t, repo.ledger)
			assert.True(t, repo.ingredients[1].CurrentStock.Equal(dec("8")))
		})
	}
}

func TestFailedAppendRollsBackStock(t *testing.T) {
	repo := newMemoryRepo(tomatoes("8"))
	repo.failAppend = errors.New("disk full")
	svc := NewService(repo, nil, nil)

	_, err := svc.RecordMovement(context.Background(), kitchenActor, MovementInput{IngredientID: 1, Quantity: dec("2"), Type: TransactionAdjustment})
	require.Error(t, err)
	assert.True(t, repo.ingredients[1].CurrentStock.Equal(dec("8")))
}

func TestReconcileDetectsDrift(t *testing.T) {
	repo := newMemoryRepo(tomatoes("10"))
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	rec, err := svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
	assert.Equal(t, 0, rec.Entries)

	_, err = svc.RecordMovement(ctx, kitchenActor, MovementInput{IngredientID: 1, Quantity: dec("-4"), Type: TransactionUsage})
	require.NoError(t, err)
	_, err = svc.RecordMovement(ctx, kitchenActor, MovementInput{IngredientID: 1, Quantity: dec("1.25"), Type: TransactionAdjustment})
	require.NoError(t, err)

	rec, err = svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
	assert.True(t, rec.OpeningStock.Equal(dec("10")))
	assert.True(t, rec.LedgerSum.Equal(dec("-2.75")))

	ing := repo.ingredients[1]
	ing.CurrentStock = dec("50")
	repo.ingredients[1] = ing

	rec, err = svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.False(t, rec.Balanced)
}

func TestReconcileReadsStockAndLedgerTogether(t *testing.T) {
	repo := newMemoryRepo(tomatoes("10"))
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	repo.afterRead = func() {
		repo.afterRead = nil
		err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			_, err := svc.Receive(ctx, tx, ReceiveInput{IngredientID: 1, Quantity: dec("6"), UnitPrice: dec("2.40"), OrderID: 9, ActorID: 3})
			return err
		})
		require.NoError(t, err)
	}

	rec, err := svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
	assert.True(t, rec.CurrentStock.Equal(rec.OpeningStock.Add(rec.LedgerSum)))
}

func TestReconcileOpensFromFirstAppendedEntry(t *testing.T) {
	repo := newMemoryRepo(tomatoes("10"))
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, kitchenActor, MovementInput{IngredientID: 1, Quantity: dec("-4"), Type: TransactionUsage})
	require.NoError(t, err)
	_, err = svc.RecordMovement(ctx, kitchenActor, MovementInput{IngredientID: 1, Quantity: dec("-1"), Type: TransactionWaste})
	require.NoError(t, err)

	// The second entry was stamped by a clock running behind the first.
	repo.ledger[1].TransactionDate = repo.ledger[0].TransactionDate.Add(-time.Hour)

	rec, err := svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.OpeningStock.Equal(dec("10")))
	assert.True(t, rec.Balanced)
}

func TestReconcileUnknownIngredient(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.Reconcile(context.Background(), 42)
	require.ErrorIs(t, err, ErrIngredientNotFound)
}

func TestListLowStock(t *testing.T) {
	onions := Ingredient{ID: 2, Name: "Onions", CurrentStock: dec("50"), MinStockLevel: dec("10")}
	repo := newMemoryRepo(tomatoes("3"), onions)
	svc := NewService(repo, nil, nil)

	items, err := svc.ListLowStock(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Tomatoes", items[0].Name)

	items, err = svc.ListLowStock(context.Background(), []int64{2})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListTransactionsNewestFirst(t *testing.T) {
	repo := newMemoryRepo(tomatoes("10"))
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	for _, q := range []string{"-1", "-2"} {
		_, err := svc.RecordMovement(ctx, kitchenActor, MovementInput{IngredientID: 1, Quantity: dec(q), Type: TransactionWaste})
		require.NoError(t, err)
	}
	entries, err := svc.ListTransactions(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Quantity.Equal(dec("-2")))

	_, err = svc.ListTransactions(ctx, 42, 10)
	require.ErrorIs(t, err, ErrIngredientNotFound)
}
