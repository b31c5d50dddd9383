package analysis

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Options controls every threshold of the pipeline. The zero value is not
// usable; start from DefaultOptions.
type Options struct {
	// Profiler
	TypeMatchRatio              float64 `json:"type_match_ratio" yaml:"type_match_ratio" validate:"gt=0,lte=1"`
	CategoricalMaxDistinctRatio float64 `json:"categorical_max_distinct_ratio" yaml:"categorical_max_distinct_ratio" validate:"gt=0,lte=1"`
	CategoricalMaxDistinctCount int     `json:"categorical_max_distinct_count" yaml:"categorical_max_distinct_count" validate:"gte=1"`
	TopCategories               int     `json:"top_categories" yaml:"top_categories" validate:"gte=0"`

	// Sufficiency
	MinRows            int     `json:"min_rows" yaml:"min_rows" validate:"gte=1"`
	MaxNullRatioMetric float64 `json:"max_null_ratio_metric" yaml:"max_null_ratio_metric" validate:"gt=0,lte=1"`

	// Aggregation
	RankBy  AggregateFunc `json:"rank_by" yaml:"rank_by" validate:"oneof=sum mean count"`
	TopK    int           `json:"top_k" yaml:"top_k" validate:"gte=0"`
	BottomK int           `json:"bottom_k" yaml:"bottom_k" validate:"gte=0"`

	// Anomalies
	AnomalyZThreshold float64 `json:"anomaly_z_threshold" yaml:"anomaly_z_threshold" validate:"gt=0"`
	AnomalyMinGroups  int     `json:"anomaly_min_groups" yaml:"anomaly_min_groups" validate:"gte=2"`
	IssueZThreshold   float64 `json:"issue_z_threshold" yaml:"issue_z_threshold" validate:"gt=0"`

	// KPIs
	KPIChange     ChangeThresholds `json:"kpi_change_thresholds" yaml:"kpi_change_thresholds"`
	MarketingKPIs bool             `json:"marketing_kpis" yaml:"marketing_kpis"`
}

// ChangeThresholds classifies period-over-period percent changes:
// change <= Issue is an issue, Issue < change < Improvement is an area for
// improvement, change >= Good is a good point.
type ChangeThresholds struct {
	Issue       float64 `json:"issue" yaml:"issue" validate:"ltfield=Improvement"`
	Improvement float64 `json:"improvement" yaml:"improvement" validate:"lte=0,ltfield=Good"`
	Good        float64 `json:"good" yaml:"good" validate:"gte=0"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		TypeMatchRatio:              0.9,
		CategoricalMaxDistinctRatio: 0.5,
		CategoricalMaxDistinctCount: 50,
		TopCategories:               5,
		MinRows:                     5,
		MaxNullRatioMetric:          0.5,
		RankBy:                      AggSum,
		TopK:                        3,
		BottomK:                     3,
		AnomalyZThreshold:           2.0,
		AnomalyMinGroups:            3,
		IssueZThreshold:             2.0,
		KPIChange: ChangeThresholds{
			Issue:       -20,
			Improvement: -5,
			Good:        5,
		},
		MarketingKPIs: true,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report options by their config key rather than the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate reports the first out-of-range option as a *ConfigurationError.
func (o Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate options: %w", err)
	}
	fe := verrs[0]
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return &ConfigurationError{
		Option: strings.TrimPrefix(fe.Namespace(), "Options."),
		Value:  fe.Value(),
		Rule:   rule,
	}
}

// Depth is a preset for how many top and bottom segments each aggregation
// reports.
type Depth string

const (
	DepthBasic    Depth = "basic"
	DepthModerate Depth = "moderate"
	DepthDetailed Depth = "detailed"
)

var depthSegments = map[Depth]int{DepthBasic: 1, DepthModerate: 3, DepthDetailed: 5}

// ParseDepth accepts a depth name in any case.
func ParseDepth(s string) (Depth, error) {
	d := Depth(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := depthSegments[d]; !ok {
		return "", &ConfigurationError{Option: "depth", Value: s, Rule: "oneof=basic moderate detailed"}
	}
	return d, nil
}

// WithDepth returns o with TopK and BottomK set by the preset. An unknown
// depth leaves o unchanged.
func (o Options) WithDepth(d Depth) Options {
	if n, ok := depthSegments[d]; ok {
		o.TopK, o.BottomK = n, n
	}
	return o
}
