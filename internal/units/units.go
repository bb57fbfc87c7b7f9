// Package units provides shared constants and conversions for display
// units. Core computations are always metric; conversion happens only at
// the reporting edge.
package units

// System constants
const (
	Metric   = "metric"
	Imperial = "imperial"
)

// ValidSystems contains all valid unit system values
var ValidSystems = []string{Metric, Imperial}

// IsValid checks if the given unit system is in the list of valid systems
func IsValid(system string) bool {
	for _, valid := range ValidSystems {
		if system == valid {
			return true
		}
	}
	return false
}

// GetValidSystemsString returns a comma-separated string of valid systems
// for error messages
func GetValidSystemsString() string {
	return "metric, imperial"
}

// ConvertLength converts a length from metres to the target system.
func ConvertLength(metres float64, system string) float64 {
	if system == Imperial {
		return metres * 3.28084 // m to ft
	}
	return metres
}

// ConvertVolume converts a volume from cubic metres to the target system.
func ConvertVolume(m3 float64, system string) float64 {
	if system == Imperial {
		return m3 * 1.30795 // m3 to yd3
	}
	return m3
}

// LengthUnit returns the length unit label for the system.
func LengthUnit(system string) string {
	if system == Imperial {
		return "ft"
	}
	return "m"
}

// VolumeUnit returns the volume unit label for the system.
func VolumeUnit(system string) string {
	if system == Imperial {
		return "yd3"
	}
	return "m3"
}
