package hud

import (
	"math"
	"strconv"

	"github.com/relabs-tech/racehud/internal/gps"
)

// MPSToMPH converts meters per second to miles per hour.
const MPSToMPH = 2.23694

// FormatSpeed renders a reading as MPH with one decimal, or placeholder
// when there is no fix.
func FormatSpeed(r gps.Reading, placeholder string) string {
	if !r.HasFix || math.IsNaN(r.SpeedMPS) || math.IsInf(r.SpeedMPS, 0) {
		return placeholder
	}
	mph := math.Max(0, r.SpeedMPS*MPSToMPH)
	return strconv.FormatFloat(mph, 'f', 1, 64)
}
