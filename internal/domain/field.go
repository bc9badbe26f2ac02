package domain

import "time"

// AllowedField names a field contributing to a derived metric, with a
// per-field flow filter overriding the metric-level one.
type AllowedField struct {
	FieldID    string     `json:"fieldId"`
	FlowFilter FlowFilter `json:"flowFilter,omitempty"`
}

// MetricTarget is a goal the caller compares the raw aggregate against.
// The engine never holds it as state.
type MetricTarget struct {
	Value  float64    `json:"value"`
	Period TimeFilter `json:"period"`
}

// Metric describes how a derived field's value is computed.
type Metric struct {
	Source        MetricSource   `json:"source"`
	Aggregation   Aggregation    `json:"aggregation"`
	Scope         MetricScope    `json:"scope"`
	ScopeID       string         `json:"scopeId,omitempty"`
	TimeFilter    TimeFilter     `json:"timeFilter"`
	FlowFilter    FlowFilter     `json:"flowFilter,omitempty"`
	AllowedFields []AllowedField `json:"allowedFields,omitempty"`
	Target        *MetricTarget  `json:"target,omitempty"`
}

// Field is a named attribute definition. Input fields hold user-entered
// values on occurrence snapshots; derived fields are computed on read.
type Field struct {
	ID        string    `json:"id"`
	GridID    string    `json:"gridId"`
	Name      string    `json:"name"`
	Mode      FieldMode `json:"mode"`
	Options   []string  `json:"options,omitempty"`
	Metric    *Metric   `json:"metric,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FieldValue is a snapshot value for one field on one occurrence, with an
// optional flow tag deciding addition vs subtraction during aggregation.
type FieldValue struct {
	Value any  `json:"value"`
	Flow  Flow `json:"flow,omitempty"`
}

// Number reports the numeric value of v, or false when the value is
// missing or non-numeric. Absent values are excluded from sums, never
// treated as zero.
func (v FieldValue) Number() (float64, bool) {
	switch n := v.Value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Bool reports whether v holds boolean true.
func (v FieldValue) Bool() bool {
	b, ok := v.Value.(bool)
	return ok && b
}
