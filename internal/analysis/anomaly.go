package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

type Direction string

const (
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
)

// AnomalyFlag marks a segment whose aggregate lies more than the configured
// number of standard deviations away from the mean of its pair.
type AnomalyFlag struct {
	ID             string        `json:"id"`
	Dimension      string        `json:"dimension"`
	DimensionValue string        `json:"dimension_value"`
	Metric         string        `json:"metric_name"`
	Function       AggregateFunc `json:"aggregate_function"`
	Observed       float64       `json:"observed_value"`
	Expected       float64       `json:"expected_value"`
	StdDev         float64       `json:"std_dev"`
	DeviationScore float64       `json:"deviation_score"`
	Direction      Direction     `json:"direction"`
	AggregateID    string        `json:"aggregate_id"`
}

// DetectAnomalies z-scores each aggregation's segment values against the
// population mean and standard deviation of that aggregation. Pairs with
// fewer than AnomalyMinGroups segments, or with zero spread, yield nothing.
func DetectAnomalies(aggs []Aggregation, opt Options) []AnomalyFlag {
	var out []AnomalyFlag
	for _, a := range aggs {
		out = append(out, scoreAggregation(a, opt)...)
	}
	return out
}

func scoreAggregation(a Aggregation, opt Options) []AnomalyFlag {
	if len(a.Rows) < opt.AnomalyMinGroups {
		return nil
	}
	values := make([]float64, len(a.Rows))
	for i, r := range a.Rows {
		values[i] = r.Value
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if zeroSpread(mean, std) {
		return nil
	}
	var flags []AnomalyFlag
	for _, r := range a.Rows {
		z := (r.Value - mean) / std
		if !finite(z) || math.Abs(z) <= opt.AnomalyZThreshold {
			continue
		}
		dir := DirectionLow
		if r.Value > mean {
			dir = DirectionHigh
		}
		flags = append(flags, AnomalyFlag{
			ID:             evidenceID("anomaly", r.Dimension, r.Metric, r.DimensionValue),
			Dimension:      r.Dimension,
			DimensionValue: r.DimensionValue,
			Metric:         r.Metric,
			Function:       r.Function,
			Observed:       r.Value,
			Expected:       mean,
			StdDev:         std,
			DeviationScore: z,
			Direction:      dir,
			AggregateID:    r.ID,
		})
	}
	return flags
}

// zeroSpread treats rounding noise around identical values, and a spread too
// large to represent, as no usable variance.
func zeroSpread(mean, std float64) bool {
	if std == 0 || !finite(mean, std) {
		return true
	}
	return std <= 1e-12*math.Max(1, math.Abs(mean))
}
