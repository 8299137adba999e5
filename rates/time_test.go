package rates_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rate-engine/rates"
)

func TestDate_ParseAndFormat(t *testing.T) {
	d, err := rates.ParseDate("2026-02-28")
	require.NoError(t, err)

	assert.Equal(t, "2026-02-28", d.String())
	assert.Equal(t, "2026-03-01", d.AddDays(1).String())
	assert.Equal(t, time.Saturday, d.Weekday())

	_, err = rates.ParseDate("28/02/2026")
	assert.Error(t, err)
}

func TestDate_DropsTimeOfDay(t *testing.T) {
	late := time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, rates.NewDate(2026, time.May, 1), rates.DateOf(late))
}

func TestDate_JSONMapKey(t *testing.T) {
	in := map[rates.Date]int{rates.MustParseDate("2026-05-01"): 3}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2026-05-01": 3}`, string(b))

	var out map[rates.Date]int
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestPeriod_Window(t *testing.T) {
	start := rates.MustParseDate("2026-12-30")
	w := rates.Window(start, 5)

	assert.Equal(t, "2027-01-03", w.End.String())
	assert.Equal(t, 5, w.Len())
	assert.Len(t, w.Days(), 5)
	assert.True(t, w.Contains(start))
	assert.False(t, w.Contains(w.End.AddDays(1)))
	assert.Equal(t, 365, rates.Window(start, rates.DefaultWindowDays).Len())
}
