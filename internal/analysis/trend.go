// Package analysis derives trend and health classifications from
// buffered telemetry readings. All functions are pure and operate on
// plain value slices, so they are independent of how the history is
// stored or which sensor produced it.
package analysis

// Trend classifies how a metric has moved over the recent window
type Trend int

const (
	TrendUnknown Trend = iota
	TrendStable
	TrendRising
	TrendFalling
)

func (t Trend) String() string {
	switch t {
	case TrendStable:
		return "stable"
	case TrendRising:
		return "rising"
	case TrendFalling:
		return "falling"
	default:
		return "unknown"
	}
}

// TrendConfig tunes the trend classifier. Window is the size of each
// of the two compared averaging windows, MinSamples the number of
// values required before a classification is attempted, and Threshold
// the relative change treated as movement rather than noise.
type TrendConfig struct {
	Window     int
	MinSamples int
	Threshold  float64
}

// DefaultTrendConfig compares two adjacent windows of five samples
// with a five percent noise band
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		Window:     5,
		MinSamples: 10,
		Threshold:  0.05,
	}
}

// TrendOf classifies the movement of values, oldest first. The most
// recent Window values are averaged against the Window values
// immediately before them; a relative difference beyond Threshold in
// either direction is Rising or Falling, anything else Stable. With
// fewer than MinSamples values (or fewer than two full windows) the
// trend is Unknown.
func TrendOf(values []float64, cfg TrendConfig) Trend {
	if len(values) < cfg.MinSamples || len(values) < 2*cfg.Window {
		return TrendUnknown
	}

	n := len(values)
	recent := mean(values[n-cfg.Window:])
	older := mean(values[n-2*cfg.Window : n-cfg.Window])

	switch {
	case recent > older*(1+cfg.Threshold):
		return TrendRising
	case recent < older*(1-cfg.Threshold):
		return TrendFalling
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}
