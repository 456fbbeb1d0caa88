package orderstatus

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================
// Normalize Tests
// ============================================

func TestNormalize_CanonicalVariants(t *testing.T) {
	for _, canonical := range All {
		words := strings.ToLower(strings.ReplaceAll(string(canonical), "_", " "))
		variants := []string{
			string(canonical),
			strings.ToLower(string(canonical)),
			words,
			strings.ReplaceAll(words, " ", "-"),
			"  " + strings.ReplaceAll(words, " ", " _ ") + "  ",
		}
		for _, v := range variants {
			assert.Equal(t, canonical, Normalize(v), "input %q", v)
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	assert.Equal(t, OrderPlaced, Normalize(""))
	assert.Equal(t, OrderPlaced, Normalize("   "))
	assert.Equal(t, OrderPlaced, Normalize("_-_"))
}

func TestNormalize_Synonyms(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"confirmed", Processing},
		{"paid", Processing},
		{"Packed", Processing},
		{"accepted", Processing},
		{"pending", OrderPlaced},
		{"new", OrderPlaced},
		{"created", OrderPlaced},
		{"dispatched", Shipped},
		{"in transit", Shipped},
		{"Out For Delivery", Shipped},
		{"delivered", Delivered},
		{"canceled", Cancelled},
		{"cancelled by customer", Cancelled},
		{"Return Accepted", ReturnAccepted},
		{"return-pickup-done", ReturnPickedUp},
		{"refunded", RefundCompleted},
		{"refund initiated after cancel", RefundCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_PriorityOrder(t *testing.T) {
	// return keywords beat the bare ACCEPT of the processing row
	assert.Equal(t, ReturnAccepted, Normalize("return_accepted"))
	// cancellation beats the placed row
	assert.Equal(t, Cancelled, Normalize("placed then cancelled"))
	// delivered beats shipped
	assert.Equal(t, Delivered, Normalize("shipped and delivered"))
}

func TestNormalize_UnknownPassesThrough(t *testing.T) {
	assert.Equal(t, Status("ON_HOLD"), Normalize("on hold"))
	assert.Equal(t, Status("AWAITING_STOCK"), Normalize("Awaiting--Stock"))
	assert.False(t, Normalize("on hold").IsCanonical())
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, raw := range []string{"Return Picked Up", "in transit", "weird status", ""} {
		once := Normalize(raw)
		assert.Equal(t, once, Normalize(string(once)), fmt.Sprintf("input %q", raw))
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, Cancelled.IsTerminal())
	assert.True(t, RefundCompleted.IsTerminal())
	assert.False(t, Delivered.IsTerminal())
	assert.False(t, Shipped.IsTerminal())
}
