package analysis

// Result is the outcome of one pipeline run. When Validation.Sufficient is
// false only Validation and Profiles are populated.
type Result struct {
	Validation   ValidationResult `json:"validation"`
	Profiles     []ColumnProfile  `json:"profiles"`
	Mapping      RoleMapping      `json:"mapping"`
	Aggregations []Aggregation    `json:"aggregations,omitempty"`
	Anomalies    []AnomalyFlag    `json:"anomalies,omitempty"`
	KPIs         []KPIRecord      `json:"kpis,omitempty"`
	Insights     []InsightRecord  `json:"insights,omitempty"`
}

// Sufficient reports whether the run got past validation.
func (r *Result) Sufficient() bool { return r != nil && r.Validation.Sufficient }

// Counts returns the number of insights per category.
func (r *Result) Counts() map[Category]int {
	out := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		out[c] = 0
	}
	for _, in := range r.Insights {
		out[in.Category]++
	}
	return out
}

// Profile checks the table and options and profiles every column.
func Profile(t *Table, opt Options) ([]ColumnProfile, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if err := t.Check(); err != nil {
		return nil, err
	}
	return ProfileColumns(t, opt), nil
}

// Run executes the whole pipeline over t. override may be nil; its entries
// replace the default role of the columns it names. Structural problems with
// the table or options are returned as errors. Insufficient data is not an
// error: the returned Result carries the failed ValidationResult and nothing
// downstream of it.
func Run(t *Table, override RoleMapping, opt Options) (*Result, error) {
	profiles, err := Profile(t, opt)
	if err != nil {
		return nil, err
	}
	v := Validate(profiles, override, opt)
	res := &Result{Validation: v, Profiles: profiles, Mapping: v.Mapping}
	if !v.Sufficient {
		return res, nil
	}
	res.Aggregations = Aggregate(t, profiles, v.Mapping, opt)
	res.KPIs = DeriveKPIs(t, profiles, v.Mapping, opt)
	res.Anomalies = DetectAnomalies(res.Aggregations, opt)
	res.Insights = Assemble(res.Aggregations, res.Anomalies, res.KPIs, opt)
	return res, nil
}
