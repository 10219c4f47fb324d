package feeding

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestWindowBeforeStartOfDayUsesYesterday(t *testing.T) {
	loc := mustLoc(t, "America/Sao_Paulo")
	sod := StartOfDay{Hour: 7, Loc: loc}
	ref := time.Date(2024, 5, 10, 3, 0, 0, 0, loc)

	from, to := Window(ref, sod)
	assert.True(t, from.Equal(time.Date(2024, 5, 9, 7, 0, 0, 0, loc)), from)
	assert.True(t, to.Equal(time.Date(2024, 5, 10, 7, 0, 0, 0, loc)), to)
}

func TestWindowAfterStartOfDayUsesToday(t *testing.T) {
	loc := mustLoc(t, "America/Sao_Paulo")
	sod := StartOfDay{Hour: 7, Loc: loc}
	ref := time.Date(2024, 5, 10, 9, 0, 0, 0, loc)

	from, to := Window(ref, sod)
	assert.True(t, from.Equal(time.Date(2024, 5, 10, 7, 0, 0, 0, loc)), from)
	assert.True(t, to.Equal(time.Date(2024, 5, 11, 7, 0, 0, 0, loc)), to)
}

func TestWindowAtBoundaryStartsThere(t *testing.T) {
	loc := mustLoc(t, "Europe/Berlin")
	sod := StartOfDay{Hour: 6, Minute: 30, Loc: loc}
	ref := time.Date(2024, 1, 2, 6, 30, 0, 0, loc)

	from, _ := Window(ref, sod)
	assert.True(t, from.Equal(ref))

	prevFrom, prevTo := Window(from.Add(-time.Nanosecond), sod)
	assert.True(t, prevTo.Equal(from))
	assert.True(t, prevFrom.Equal(from.Add(-Day)))
}

func TestWindowProperties(t *testing.T) {
	zones := []string{"UTC", "America/Sao_Paulo", "Europe/Berlin", "America/New_York", "Asia/Kolkata"}
	rng := rand.New(rand.NewSource(42))
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2000; i++ {
		loc := mustLoc(t, zones[rng.Intn(len(zones))])
		sod := StartOfDay{Hour: rng.Intn(24), Minute: rng.Intn(60), Loc: loc}
		ref := base.Add(time.Duration(rng.Int63n(int64(2 * 365 * Day))))

		from, to := Window(ref, sod)
		require.Equal(t, Day, to.Sub(from), "ref=%s sod=%+v", ref, sod)
		require.False(t, ref.Before(from), "ref=%s from=%s", ref, from)
		require.True(t, ref.Before(to), "ref=%s to=%s", ref, to)
	}
}

func TestWindowAcrossDSTKeepsFixedLength(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	sod := StartOfDay{Hour: 7, Loc: loc}
	// 2024-11-03 is a 25h local day in New York.
	ref := time.Date(2024, 11, 4, 6, 30, 0, 0, loc)

	from, to := Window(ref, sod)
	assert.Equal(t, Day, to.Sub(from))
	assert.False(t, ref.Before(from))
	assert.True(t, ref.Before(to))
}

func TestParseDayStart(t *testing.T) {
	sod, err := ParseDayStart(modelDayStart("07:05", "America/Sao_Paulo"))
	require.NoError(t, err)
	assert.Equal(t, 7, sod.Hour)
	assert.Equal(t, 5, sod.Minute)

	_, err = ParseDayStart(modelDayStart("25:00", "UTC"))
	assert.ErrorIs(t, err, ErrInvalidClock)
	_, err = ParseDayStart(modelDayStart("07:00", "Mars/Olympus"))
	assert.Error(t, err)
	_, err = ParseDayStart(modelDayStart("07:00", ""))
	assert.Error(t, err)

	ds, err := NewDayStart("7:00", "")
	require.NoError(t, err)
	assert.Equal(t, "07:00", ds.Time)
	assert.Equal(t, DefaultTimezone, ds.Timezone)
}
