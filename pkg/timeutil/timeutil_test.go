package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationFor(t *testing.T) {
	t.Run("resolves IANA name", func(t *testing.T) {
		loc := LocationFor("Asia/Almaty")
		require.NotNil(t, loc)
		assert.Equal(t, "Asia/Almaty", loc.String())
	})

	t.Run("empty name falls back to UTC", func(t *testing.T) {
		assert.Equal(t, time.UTC, LocationFor(""))
	})

	t.Run("unknown name falls back to UTC", func(t *testing.T) {
		assert.Equal(t, time.UTC, LocationFor("Mars/Olympus_Mons"))
	})
}

func TestInZone(t *testing.T) {
	// 23:30 UTC is already the next calendar day in UTC+5.
	moment := time.Date(2024, time.January, 15, 23, 30, 0, 0, time.UTC)

	local := InZone(moment, "Asia/Almaty")
	y, m, d := local.Date()
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.January, m)
	assert.Equal(t, 16, d)

	// An unparseable zone keeps the UTC day.
	_, _, d = InZone(moment, "not-a-zone").Date()
	assert.Equal(t, 15, d)
}
