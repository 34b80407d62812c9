package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMode(t *testing.T) {
	assert.True(t, ModeSelfHosted.Valid())
	assert.True(t, ModeManaged.Valid())
	assert.True(t, ModeCloud.Valid())
	assert.False(t, Mode("on-prem").Valid())

	assert.True(t, ModeCloud.BillingBacked())
	assert.False(t, ModeSelfHosted.BillingBacked())
	assert.False(t, ModeManaged.BillingBacked())
}
