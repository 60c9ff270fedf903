package gps

import (
	"context"
	"math"
	"time"
)

// MockFeed generates a smooth lap speed profile for bench testing without
// a receiver. The first NoFixFor of every run reports a void fix, like a
// receiver that is still looking for satellites.
type MockFeed struct {
	Interval time.Duration
	NoFixFor time.Duration
}

// NewMockFeed returns a feed emitting every interval.
func NewMockFeed(interval time.Duration) *MockFeed {
	return &MockFeed{Interval: interval, NoFixFor: 2 * time.Second}
}

func (m *MockFeed) Run(ctx context.Context, emit func(Fix)) error {
	start := time.Now()
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			emit(mockFix(t, t.Sub(start), m.NoFixFor))
		}
	}
}

func mockFix(now time.Time, elapsed, noFixFor time.Duration) Fix {
	fix := Fix{
		Time:     now.UTC().Format("15:04:05"),
		Date:     now.UTC().Format("02/01/06"),
		Validity: "V",
	}
	if elapsed < noFixFor {
		return fix
	}

	// 0..120 knots over a 40s "lap"
	secs := elapsed.Seconds()
	fix.Validity = "A"
	fix.SpeedKnots = 60 + 60*math.Sin(secs*2*math.Pi/40)
	fix.CourseDeg = math.Mod(secs*9, 360)
	fix.Latitude = 40.5008 + 0.001*math.Sin(secs/10)
	fix.Longitude = -74.4474 + 0.001*math.Cos(secs/10)
	return fix
}
