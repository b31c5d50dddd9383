package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the part a column plays in the analysis.
type Role string

const (
	RoleMetric    Role = "metric"
	RoleDimension Role = "dimension"
	RoleDate      Role = "date"
	RoleIgnored   Role = "ignored"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMetric, RoleDimension, RoleDate, RoleIgnored:
		return true
	}
	return false
}

// ParseRole accepts a role name case-insensitively, plus a few aliases.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metric", "measure":
		return RoleMetric, true
	case "dimension", "dim", "category":
		return RoleDimension, true
	case "date", "time":
		return RoleDate, true
	case "ignored", "ignore", "skip":
		return RoleIgnored, true
	}
	return "", false
}

// RoleMapping assigns a role to each column name.
type RoleMapping map[string]Role

// ValidationResult is the outcome of the sufficiency check. Reasons and
// RequiredActions are parallel: RequiredActions[i] remedies Reasons[i].
type ValidationResult struct {
	Sufficient      bool        `json:"sufficient"`
	Reasons         []string    `json:"reasons"`
	RequiredActions []string    `json:"required_actions"`
	Mapping         RoleMapping `json:"mapping"`
}

func (v *ValidationResult) fail(reason, action string) {
	v.Sufficient = false
	v.Reasons = append(v.Reasons, reason)
	v.RequiredActions = append(v.RequiredActions, action)
}

func defaultRole(t ColumnType) Role {
	switch t {
	case TypeNumeric:
		return RoleMetric
	case TypeCategorical:
		return RoleDimension
	case TypeDate:
		return RoleDate
	}
	return RoleIgnored
}

// DefaultMapping derives a role for every profiled column from its type.
func DefaultMapping(profiles []ColumnProfile) RoleMapping {
	m := make(RoleMapping, len(profiles))
	for _, p := range profiles {
		m[p.Name] = defaultRole(p.Type)
	}
	return m
}

// Validate resolves the effective mapping (defaults with override applied on
// top) and checks that the mapped data can be analyzed.
func Validate(profiles []ColumnProfile, override RoleMapping, opt Options) ValidationResult {
	res := ValidationResult{Sufficient: true, Mapping: DefaultMapping(profiles)}

	known := make(map[string]struct{}, len(profiles))
	for _, p := range profiles {
		known[p.Name] = struct{}{}
	}
	names := make([]string, 0, len(override))
	for name := range override {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		role := override[name]
		if _, ok := known[name]; !ok {
			res.fail(fmt.Sprintf("role mapping names unknown column %q", name),
				fmt.Sprintf("remove %q from the mapping or check its spelling", name))
			continue
		}
		if !role.Valid() {
			res.fail(fmt.Sprintf("invalid role %q for column %q", role, name),
				"use one of: metric, dimension, date, ignored")
			continue
		}
		res.Mapping[name] = role
	}

	metrics := columnsWithRole(profiles, res.Mapping, RoleMetric)
	groupers := groupingColumns(profiles, res.Mapping)

	// 1. at least one metric
	if len(metrics) == 0 {
		res.fail("no metric column mapped", metricHint(profiles, res.Mapping))
	}
	// 2. something to group by
	if len(groupers) == 0 {
		res.fail("no dimension or date column mapped", dimensionHint(profiles, res.Mapping))
	}
	// 3. minimum size
	rows := 0
	if len(profiles) > 0 {
		rows = profiles[0].Rows
	}
	if rows < opt.MinRows {
		res.fail(fmt.Sprintf("table has %d rows; at least %d are needed", rows, opt.MinRows),
			fmt.Sprintf("provide a dataset with at least %d rows", opt.MinRows))
	}
	// 4. metric signal
	byName := profileIndex(profiles)
	for _, m := range metrics {
		p := byName[m]
		unusable := ratio(p.Rows-p.NumericCount, p.Rows)
		if p.Rows == 0 || unusable >= opt.MaxNullRatioMetric {
			res.fail(fmt.Sprintf("metric column %q is %.0f%% null or non-numeric", m, unusable*100),
				fmt.Sprintf("fill missing values in %q or map it as ignored", m))
		}
	}
	return res
}

func metricHint(profiles []ColumnProfile, m RoleMapping) string {
	best := ""
	bestN := 0
	for _, p := range profiles {
		if m[p.Name] != RoleIgnored && m[p.Name] != RoleDimension {
			continue
		}
		if p.NumericCount > bestN {
			best, bestN = p.Name, p.NumericCount
		}
	}
	if best != "" {
		return fmt.Sprintf("map column %q as metric", best)
	}
	return "add a numeric column and map it as metric"
}

func dimensionHint(profiles []ColumnProfile, m RoleMapping) string {
	best := ""
	bestD := 0
	for _, p := range profiles {
		if m[p.Name] != RoleIgnored || p.DistinctCount == 0 {
			continue
		}
		if best == "" || p.DistinctCount < bestD {
			best, bestD = p.Name, p.DistinctCount
		}
	}
	if best != "" {
		return fmt.Sprintf("map column %q as dimension", best)
	}
	return "add a categorical or date column and map it as dimension or date"
}

func profileIndex(profiles []ColumnProfile) map[string]ColumnProfile {
	idx := make(map[string]ColumnProfile, len(profiles))
	for _, p := range profiles {
		idx[p.Name] = p
	}
	return idx
}

// columnsWithRole lists mapped columns in table order.
func columnsWithRole(profiles []ColumnProfile, m RoleMapping, role Role) []string {
	var out []string
	for _, p := range profiles {
		if m[p.Name] == role {
			out = append(out, p.Name)
		}
	}
	return out
}

// groupingColumns lists dimension and date columns in table order.
func groupingColumns(profiles []ColumnProfile, m RoleMapping) []string {
	var out []string
	for _, p := range profiles {
		if r := m[p.Name]; r == RoleDimension || r == RoleDate {
			out = append(out, p.Name)
		}
	}
	return out
}
