package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		allowed  bool
	}{
		{BookingStatusPending, BookingStatusAssigned, true},
		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusPending, BookingStatusInProgress, false},
		{BookingStatusPending, BookingStatusCompleted, false},
		{BookingStatusAssigned, BookingStatusInProgress, true},
		{BookingStatusAssigned, BookingStatusCancelled, true},
		{BookingStatusAssigned, BookingStatusPending, false},
		{BookingStatusInProgress, BookingStatusCompleted, true},
		{BookingStatusInProgress, BookingStatusCancelled, true},
		{BookingStatusInProgress, BookingStatusAssigned, false},
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatusCompleted, BookingStatusInProgress, false},
		{BookingStatusCancelled, BookingStatusPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, BookingStatusPending.IsTerminal())
	assert.False(t, BookingStatusAssigned.IsTerminal())
	assert.False(t, BookingStatusInProgress.IsTerminal())
	assert.True(t, BookingStatusCompleted.IsTerminal())
	assert.True(t, BookingStatusCancelled.IsTerminal())
}

func TestIsValid(t *testing.T) {
	for _, status := range GetAllBookingStatuses() {
		assert.True(t, status.IsValid())
	}
	assert.False(t, BookingStatus("paused").IsValid())
	assert.False(t, BookingStatus("").IsValid())
}

func TestMilestoneColumn(t *testing.T) {
	assert.Equal(t, "assigned_at", MilestoneColumn(BookingStatusAssigned))
	assert.Equal(t, "started_at", MilestoneColumn(BookingStatusInProgress))
	assert.Equal(t, "completed_at", MilestoneColumn(BookingStatusCompleted))
	assert.Equal(t, "cancelled_at", MilestoneColumn(BookingStatusCancelled))
	assert.Equal(t, "", MilestoneColumn(BookingStatusPending))
}
