package analysis

// Health grades a reading against warning and critical thresholds
type Health int

const (
	HealthUnknown Health = iota
	HealthGood
	HealthWarning
	HealthCritical
)

func (h Health) String() string {
	switch h {
	case HealthGood:
		return "good"
	case HealthWarning:
		return "warning"
	case HealthCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Classify grades reading against the thresholds. A nil reading means
// the sensor reported nothing and grades Unknown rather than Good.
func Classify(reading *float64, warning, critical float64) Health {
	switch {
	case reading == nil:
		return HealthUnknown
	case *reading > critical:
		return HealthCritical
	case *reading > warning:
		return HealthWarning
	default:
		return HealthGood
	}
}
