package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReservationTransitions(t *testing.T) {
	assert.True(t, ReservationPending.CanTransition(ReservationApproved))
	assert.True(t, ReservationPending.CanTransition(ReservationDeclined))
	assert.True(t, ReservationPending.CanTransition(ReservationCancelled))
	assert.True(t, ReservationPending.CanTransition(ReservationExpired))

	// An approved reservation has claimed a copy; it can still end in
	// any way except being declined.
	assert.True(t, ReservationApproved.CanTransition(ReservationFulfilled))
	assert.True(t, ReservationApproved.CanTransition(ReservationCancelled))
	assert.True(t, ReservationApproved.CanTransition(ReservationExpired))
	assert.False(t, ReservationApproved.CanTransition(ReservationDeclined))

	// Terminal states go nowhere.
	for _, s := range []ReservationStatus{
		ReservationDeclined, ReservationFulfilled, ReservationCancelled, ReservationExpired,
	} {
		assert.False(t, s.CanTransition(ReservationApproved), "from %s", s)
		assert.False(t, s.CanTransition(ReservationPending), "from %s", s)
	}

	assert.False(t, ReservationPending.CanTransition(ReservationFulfilled),
		"fulfillment requires an approval in between")
}

func TestDamageTypeDestructive(t *testing.T) {
	assert.False(t, DamageNone.Destructive())
	assert.False(t, DamageTorn.Destructive())
	assert.False(t, DamageMissing.Destructive())
	assert.True(t, DamageGeneral.Destructive())
}

func TestDecodeDamageTypesDropsUnknown(t *testing.T) {
	assert.Nil(t, DecodeDamageTypes(""))
	assert.Equal(t,
		[]DamageType{DamageTorn, DamageMissing},
		DecodeDamageTypes("PAPER_TORN, PAGES_MISSING, SPILLED_COFFEE, NONE"))
}

func TestCopyStatusHeld(t *testing.T) {
	assert.True(t, CopyBorrowed.Held())
	assert.True(t, CopyReserved.Held())
	assert.False(t, CopyAvailable.Held())
	assert.False(t, CopyDamaged.Held())
	assert.False(t, CopyLost.Held())
	assert.False(t, CopyWithdrawn.Held())
}
