package gps

import (
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

const kphToKnots = 1 / 1.852

// ParseSentence parses one NMEA line and folds it into current.
// It returns true when the line completed a fix worth publishing (an RMC
// sentence). Noisy or partial lines are ignored.
func ParseSentence(line string, current *Fix) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return false, err
	}

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		current.Time = m.Time.String()
		current.Date = m.Date.String()
		current.Latitude = m.Latitude
		current.Longitude = m.Longitude
		current.SpeedKnots = m.Speed
		current.CourseDeg = m.Course
		current.Validity = m.Validity
		return true, nil

	case nmea.TypeVTG:
		// VTG arrives between RMCs on most receivers; it refreshes speed
		// without publishing on its own.
		m := sentence.(nmea.VTG)
		if m.GroundSpeedKnots > 0 {
			current.SpeedKnots = m.GroundSpeedKnots
		} else {
			current.SpeedKnots = m.GroundSpeedKPH * kphToKnots
		}
		current.CourseDeg = m.TrueTrack
		return false, nil

	default:
		// GGA, GSA, GSV... not needed for speed
		return false, nil
	}
}
