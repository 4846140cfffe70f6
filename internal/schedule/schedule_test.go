package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notsingle/pkg/models"
)

func TestHash(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"a", 97},
		{"ab", 3105},
		{"hello", 99162322},
		// wraps to math.MinInt32, whose absolute value needs 64 bits
		{"polygenelubricants", 2147483648},
	}
	for _, tt := range tests {
		if got := Hash(tt.in); got != tt.want {
			t.Errorf("Hash(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestInMainWindow(t *testing.T) {
	assert.True(t, InMainWindow(9, 17, 9))
	assert.True(t, InMainWindow(9, 17, 16))
	assert.False(t, InMainWindow(9, 17, 17))
	assert.False(t, InMainWindow(9, 17, 8))

	// wraps past midnight
	assert.True(t, InMainWindow(22, 3, 23))
	assert.True(t, InMainWindow(22, 3, 0))
	assert.True(t, InMainWindow(22, 3, 2))
	assert.False(t, InMainWindow(22, 3, 3))
	assert.False(t, InMainWindow(22, 3, 12))

	// empty window
	assert.False(t, InMainWindow(5, 5, 5))
}

func TestIsAwakeMatchesMainWindowOutsideSurpriseHours(t *testing.T) {
	const personaID = "0b7c6d3e-8f2a-4a51-9e0c-5d1f2a3b4c5d"
	day := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC) // Wednesday
	surprise := map[int]bool{}
	for _, h := range SurpriseHours(personaID, day, time.UTC) {
		surprise[h] = true
	}
	require.Len(t, SurpriseHours(personaID, day, time.UTC), 2)

	hours := models.ActiveHours{Start: 9, End: 17, Timezone: "UTC"}
	for hour := 0; hour < 24; hour++ {
		if surprise[hour] {
			continue
		}
		now := day.Add(time.Duration(hour)*time.Hour + 30*time.Minute)
		want := hour >= 9 && hour < 17
		assert.Equal(t, want, IsAwake(hours, personaID, now), "hour %d", hour)
	}
}

func TestSurpriseHoursAlwaysAwake(t *testing.T) {
	const personaID = "persona-x"
	now := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	hours := models.ActiveHours{Start: 0, End: 0, Timezone: "UTC"}
	for _, h := range SurpriseHours(personaID, now, time.UTC) {
		assert.True(t, IsAwake(hours, personaID, now.Add(time.Duration(h)*time.Hour)))
	}
}

func TestSurpriseHoursDeterministicAndWeekendCount(t *testing.T) {
	sat := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	later := time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)

	a := SurpriseHours("p1", sat, time.UTC)
	b := SurpriseHours("p1", later, time.UTC)
	assert.Len(t, a, 4)
	assert.Equal(t, a, b)

	sun := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	assert.Len(t, SurpriseHours("p1", sun, time.UTC), 4)

	mon := time.Date(2026, 3, 16, 1, 0, 0, 0, time.UTC)
	assert.Len(t, SurpriseHours("p1", mon, time.UTC), 2)

	for _, h := range a {
		assert.GreaterOrEqual(t, h, 0)
		assert.Less(t, h, 24)
	}
}

func TestSurpriseHoursUsePersonaLocalDate(t *testing.T) {
	// Friday 23:00 UTC is already Saturday in UTC+5
	now := time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC)
	loc, err := LoadLocation("UTC+5")
	require.NoError(t, err)
	assert.Len(t, SurpriseHours("p1", now, loc), 4)
	assert.Len(t, SurpriseHours("p1", now, time.UTC), 2)
}

func TestIsAwakeUsesPersonaTimezone(t *testing.T) {
	hours := models.ActiveHours{Start: 9, End: 10, Timezone: "Asia/Tokyo"}
	// 00:30 UTC is 09:30 in Tokyo
	now := time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC)
	awake, err := Evaluate(hours, "", now)
	require.NoError(t, err)
	assert.True(t, awake)

	awake, err = Evaluate(hours, "", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, awake)
}

func TestIsAwakeFailsOpen(t *testing.T) {
	now := time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)

	bad := models.ActiveHours{Start: 9, End: 17, Timezone: "Mars/Olympus_Mons"}
	_, err := Evaluate(bad, "p", now)
	assert.Error(t, err)
	assert.True(t, IsAwake(bad, "p", now))

	outOfRange := models.ActiveHours{Start: 25, End: 3, Timezone: "UTC"}
	assert.True(t, IsAwake(outOfRange, "p", now))
}

func TestLoadLocation(t *testing.T) {
	tests := []struct {
		name    string
		offset  int
		wantErr bool
	}{
		{"", 0, false},
		{"UTC", 0, false},
		{"UTC+5", 5 * 3600, false},
		{"UTC-3", -3 * 3600, false},
		{"UTC+05:30", 5*3600 + 30*60, false},
		{"GMT-0930", -(9*3600 + 30*60), false},
		{"UTC+20", 0, true},
		{"Nowhere/Special", 0, true},
	}
	ref := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		loc, err := LoadLocation(tt.name)
		if tt.wantErr {
			assert.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		_, off := ref.In(loc).Zone()
		assert.Equal(t, tt.offset, off, tt.name)
	}
}
