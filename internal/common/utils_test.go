package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAnyFold(t *testing.T) {
	assert.True(t, HasAnyFold("Patchy Light Rain", "drizzle", "rain"))
	assert.True(t, HasAnyFold("THUNDER", "thunder"))
	assert.False(t, HasAnyFold("Sunny", "rain", "snow"))
	assert.False(t, HasAnyFold("Sunny"))
}
