package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole(" ADMIN "))
	assert.Equal(t, RoleKitchen, ParseRole("kitchen"))
	assert.Equal(t, RoleOther, ParseRole("waiter"))
	assert.Equal(t, RoleOther, ParseRole(""))
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, IsAdmin(Actor{ID: 1, Role: RoleAdmin}))
	assert.False(t, IsAdmin(Actor{ID: 1, Role: RoleKitchen}))
	assert.False(t, IsAdmin(Actor{Role: RoleAdmin}))
}

func TestHasRole(t *testing.T) {
	kitchen := Actor{ID: 4, Role: RoleKitchen}
	assert.True(t, HasRole(kitchen, RoleAdmin, RoleKitchen))
	assert.False(t, HasRole(kitchen, RoleAdmin))
	assert.False(t, HasRole(Actor{}, RoleOther))
}

func TestActorContextRoundTrip(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithActor(context.Background(), Actor{ID: 9, Role: RoleKitchen})
	actor, ok := ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(9), actor.ID)
}
