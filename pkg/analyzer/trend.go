package analyzer

// Predictor estimates the next value of a series
type Predictor interface {
	Predict(values []float64) float64
}

// LinearTrend extrapolates one step ahead along the least-squares line of
// value against sample index. Predictions never go below zero.
type LinearTrend struct{}

// Predict returns last value + slope, clamped at 0.
// An empty series predicts 0 and a single value predicts itself.
func (LinearTrend) Predict(values []float64) float64 {
	switch len(values) {
	case 0:
		return 0.0
	case 1:
		return values[0]
	}

	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}

	slope := linearRegression(x, values)
	prediction := values[len(values)-1] + slope
	if prediction < 0 {
		return 0.0
	}
	return prediction
}

// linearRegression performs simple linear regression and returns the slope.
// Sums run left to right so results are reproducible for the same input.
func linearRegression(x, y []float64) (slope float64) {
	if len(x) == 0 {
		return 0
	}

	meanX := calculateAverage(x)
	meanY := calculateAverage(y)

	numerator := 0.0
	denominator := 0.0

	for i := 0; i < len(x); i++ {
		numerator += (x[i] - meanX) * (y[i] - meanY)
		denominator += (x[i] - meanX) * (x[i] - meanX)
	}

	if denominator == 0 {
		return 0
	}

	return numerator / denominator
}

func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
