package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	// One degree of latitude is roughly 111.19 km.
	assert.InDelta(t, 111.19, DistanceKm(0, 0, 1, 0), 0.1)

	// Dhaka to Chattogram, roughly 215 km.
	assert.InDelta(t, 215, DistanceKm(23.8103, 90.4125, 22.3569, 91.7832), 5)

	assert.Zero(t, DistanceKm(23.78, 90.40, 23.78, 90.40))

	// Symmetric.
	assert.InDelta(t,
		DistanceKm(23.78, 90.40, 22.35, 91.78),
		DistanceKm(22.35, 91.78, 23.78, 90.40), 1e-9)
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(0, 0))
	assert.True(t, ValidCoordinates(-90, 180))
	assert.True(t, ValidCoordinates(90, -180))
	assert.False(t, ValidCoordinates(90.1, 0))
	assert.False(t, ValidCoordinates(0, -180.5))
}
