package postgres

import "math"

// nullIfNaN maps an undefined statistic to SQL NULL.
func nullIfNaN(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// nanIfNull maps a NULL statistic back to NaN.
func nanIfNull(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
