package analysis

// WindowStats summarizes every value currently buffered for a metric
type WindowStats struct {
	Average float64
	Peak    float64
	Minimum float64
}

// Stats folds values into average, peak and minimum. Ties go to the
// later value. An empty slice yields the zero stats.
func Stats(values []float64) WindowStats {
	if len(values) == 0 {
		return WindowStats{}
	}

	stats := WindowStats{
		Peak:    values[0],
		Minimum: values[0],
	}

	sum := 0.0
	for _, v := range values {
		sum += v
		if v >= stats.Peak {
			stats.Peak = v
		}
		if v <= stats.Minimum {
			stats.Minimum = v
		}
	}
	stats.Average = sum / float64(len(values))

	return stats
}
