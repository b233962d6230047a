package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/db"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

func fixAt(lat float64, ms int64) db.StoredFix {
	return db.StoredFix{Sample: movement.PositionSample{Latitude: lat, Longitude: 101.6, CapturedAtMs: ms}}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		fixes    []db.StoredFix
		segments int
		mean     float64
		max      float64
	}{
		{"empty", nil, 0, 0, 0},
		{"single fix", []db.StoredFix{fixAt(3.1, 0)}, 0, 0, 0},
		{
			"steady walk",
			[]db.StoredFix{fixAt(3.1, 0), fixAt(3.1001, 10_000), fixAt(3.1002, 20_000)},
			2, 1.112, 1.112,
		},
		{
			"duplicate timestamp skipped",
			[]db.StoredFix{fixAt(3.1, 0), fixAt(3.1001, 0), fixAt(3.1002, 10_000)},
			1, 1.112, 1.112,
		},
		{
			"walk then run",
			[]db.StoredFix{fixAt(3.1, 0), fixAt(3.1001, 10_000), fixAt(3.1004, 20_000)},
			2, 2.224, 3.336,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := summarize(tt.fixes)
			assert.Equal(t, len(tt.fixes), sum.Fixes)
			assert.Equal(t, tt.segments, sum.Segments)
			assert.InDelta(t, tt.mean, sum.MeanSpeed, 0.01)
			assert.InDelta(t, tt.max, sum.MaxSpeed, 0.01)
			assert.LessOrEqual(t, sum.P50Speed, sum.P85Speed)
			assert.LessOrEqual(t, sum.P85Speed, sum.P98Speed)
			assert.False(t, sum.StdDevSpeed < 0)
		})
	}
}

func TestSummaryConvert(t *testing.T) {
	sum := Summary{Distance: 1500, MeanSpeed: 10, MaxSpeed: 20}.convert("kmph", "km")
	assert.InDelta(t, 1.5, sum.Distance, 1e-9)
	assert.InDelta(t, 36, sum.MeanSpeed, 1e-9)
	assert.InDelta(t, 72, sum.MaxSpeed, 1e-9)
	assert.Equal(t, "kmph", sum.SpeedUnits)
	assert.Equal(t, "km", sum.DistanceUnits)
}
