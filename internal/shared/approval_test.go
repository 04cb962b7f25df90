package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApprovalRefIsStablePerEntity(t *testing.T) {
	a := ApprovalRef("procurement.order", 42)
	assert.Equal(t, a, ApprovalRef("procurement.order", 42))
	assert.NotEqual(t, a, ApprovalRef("procurement.order", 43))
	assert.NotEqual(t, a, ApprovalRef("kitchen.permission", 42))
}
