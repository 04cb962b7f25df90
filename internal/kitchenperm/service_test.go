package kitchenperm

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

type memoryRepo struct {
	perms  map[int64]Permission
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{perms: make(map[int64]Permission)}
}

func (r *memoryRepo) ListForUser(ctx context.Context, userID int64) ([]Permission, error) {
	var out []Permission
	for _, p := range r.perms {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Permission, error) {
	p, ok := r.perms[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) Insert(ctx context.Context, p Permission) (Permission, error) {
	r.nextID++
	p.ID = r.nextID
	p.UpdatedAt = p.CreatedAt
	r.perms[p.ID] = p
	return p, nil
}

func (r *memoryRepo) Update(ctx context.Context, p Permission) (Permission, error) {
	if _, ok := r.perms[p.ID]; !ok {
		return Permission{}, ErrNotFound
	}
	r.perms[p.ID] = p
	return p, nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var (
	admin   = shared.Actor{ID: 1, Role: shared.RoleAdmin}
	kitchen = shared.Actor{ID: 2, Role: shared.RoleKitchen}
	fixedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

func newTestRegistry() (*Registry, *memoryRepo, *memoryAudit) {
	repo := newMemoryRepo()
	audit := &memoryAudit{}
	reg := NewRegistry(repo, audit, nil)
	reg.now = func() time.Time { return fixedAt }
	return reg, repo, audit
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestResolveAutoApprove(t *testing.T) {
	past := fixedAt.Add(-time.Hour)
	future := fixedAt.Add(time.Hour)

	cases := []struct {
		name   string
		perms  []Permission
		total  string
		expect bool
	}{
		{"no records", nil, "10", false},
		{"unlimited", []Permission{{CanAutoApprove: true, IsActive: true}}, "99999", true},
		{"within cap", []Permission{{CanAutoApprove: true, IsActive: true, MaxOrderValue: dec("500")}}, "500", true},
		{"above cap", []Permission{{CanAutoApprove: true, IsActive: true, MaxOrderValue: dec("500")}}, "500.01", false},
		{"zero cap admits zero total", []Permission{{CanAutoApprove: true, IsActive: true, MaxOrderValue: dec("0")}}, "0", true},
		{"expired", []Permission{{CanAutoApprove: true, IsActive: true, ExpiresAt: &past}}, "1", false},
		{"not yet expired", []Permission{{CanAutoApprove: true, IsActive: true, ExpiresAt: &future}}, "1", true},
		{"inactive", []Permission{{CanAutoApprove: true, IsActive: false}}, "1", false},
		{"flag off", []Permission{{CanAutoApprove: false, IsActive: true}}, "1", false},
		{"first eligible record decides", []Permission{
			{CanAutoApprove: false, IsActive: true},
			{CanAutoApprove: true, IsActive: true, MaxOrderValue: dec("100")},
			{CanAutoApprove: true, IsActive: true},
		}, "150", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			reg, repo, _ := newTestRegistry()
			for _, p := range tc.perms {
				p.UserID = 7
				_, err := repo.Insert(context.Background(), p)
				require.NoError(t, err)
			}
			res, err := reg.ResolveAutoApprove(context.Background(), 7, decimal.RequireFromString(tc.total))
			require.NoError(t, err)
			assert.Equal(t, tc.expect, res.Approved)
		})
	}
}

func TestResolveAutoApproveIgnoresOtherUsers(t *testing.T) {
	reg, repo, _ := newTestRegistry()
	_, _ = repo.Insert(context.Background(), Permission{UserID: 8, CanAutoApprove: true, IsActive: true})
	res, err := reg.ResolveAutoApprove(context.Background(), 7, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.False(t, res.Approved)
}

func TestGrantRequiresAdmin(t *testing.T) {
	reg, _, _ := newTestRegistry()
	_, err := reg.Grant(context.Background(), kitchen, GrantInput{UserID: 2, CanAutoApprove: true})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestGrantValidates(t *testing.T) {
	reg, _, _ := newTestRegistry()
	_, err := reg.Grant(context.Background(), admin, GrantInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = reg.Grant(context.Background(), admin, GrantInput{UserID: 2, MaxOrderValue: dec("-1")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGrantUpdateRevoke(t *testing.T) {
	reg, _, audit := newTestRegistry()
	ctx := context.Background()

	p, err := reg.Grant(ctx, admin, GrantInput{UserID: 2, CanAutoApprove: true, MaxOrderValue: dec("200")})
	require.NoError(t, err)
	assert.True(t, p.IsActive)
	assert.Equal(t, admin.ID, p.GrantedByID)

	res, err := reg.ResolveAutoApprove(ctx, 2, decimal.NewFromInt(150))
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, p.ID, res.PermissionID)

	p, err = reg.Update(ctx, admin, p.ID, UpdateInput{ClearMaxValue: true})
	require.NoError(t, err)
	assert.Nil(t, p.MaxOrderValue)

	p, err = reg.Revoke(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.False(t, p.IsActive)

	res, err = reg.ResolveAutoApprove(ctx, 2, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.False(t, res.Approved)

	require.Len(t, audit.logs, 3)
	assert.Equal(t, "KITCHEN_PERMISSION_GRANT", audit.logs[0].Action)

	_, err = reg.Update(ctx, admin, 999, UpdateInput{})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
