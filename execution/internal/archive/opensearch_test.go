package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIndexForUsesUTCDay(t *testing.T) {
	ts := time.Date(2026, 3, 15, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	// 23:30 EST is already the next day in UTC.
	assert.Equal(t, "hass-fills-2026.03.16", indexFor(ts))
}

func TestIndexForMidnight(t *testing.T) {
	ts := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "hass-fills-2026.01.02", indexFor(ts))
}
