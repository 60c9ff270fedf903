package gps

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "06/12/25"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void)
}

// KnotsToMPS converts knots to meters per second.
const KnotsToMPS = 0.514444

// Valid reports whether the receiver had a position fix.
func (f Fix) Valid() bool {
	return f.Validity == "A"
}

// SpeedMPS returns the speed over ground in meters per second.
func (f Fix) SpeedMPS() float64 {
	return f.SpeedKnots * KnotsToMPS
}

// Reading is delivered to listeners on every fix update.
// SpeedMPS is only meaningful when HasFix is true.
type Reading struct {
	Fix      Fix
	HasFix   bool
	SpeedMPS float64
}

// ReadingFromFix builds the listener payload for f.
func ReadingFromFix(f Fix) Reading {
	if !f.Valid() {
		return Reading{Fix: f}
	}
	return Reading{Fix: f, HasFix: true, SpeedMPS: f.SpeedMPS()}
}
