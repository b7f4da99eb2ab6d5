package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFromResultCode(t *testing.T) {
	assert.Equal(t, PaymentCompleted, StatusFromResultCode(0))
	assert.Equal(t, PaymentCancelled, StatusFromResultCode(1032))
	assert.Equal(t, PaymentFailed, StatusFromResultCode(1))
	assert.Equal(t, PaymentFailed, StatusFromResultCode(2001))
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentPending.Terminal())
	assert.True(t, PaymentCompleted.Terminal())
	assert.True(t, PaymentFailed.Terminal())
	assert.True(t, PaymentCancelled.Terminal())
}

func TestPaymentStatusTransitions(t *testing.T) {
	for _, next := range []PaymentStatus{PaymentCompleted, PaymentFailed, PaymentCancelled} {
		assert.True(t, PaymentPending.CanTransition(next), "pending -> %s", next)
	}

	// Terminal states never move again, not even back to pending.
	for _, from := range []PaymentStatus{PaymentCompleted, PaymentFailed, PaymentCancelled} {
		for _, next := range []PaymentStatus{PaymentPending, PaymentCompleted, PaymentFailed, PaymentCancelled} {
			assert.False(t, from.CanTransition(next), "%s -> %s", from, next)
		}
	}
}
