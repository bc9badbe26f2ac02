package domain

import "time"

// Iteration is the time/category axis deciding when an occurrence is
// visible: on every period, only a pinned period, or until a completion
// field flips true.
type Iteration struct {
	Mode       IterationMode `json:"mode"`
	TimeValue  string        `json:"timeValue,omitempty"`
	TimeFilter TimeFilter    `json:"timeFilter,omitempty"`
}

// Placement carries display coordinates within the parent scope.
type Placement struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Occurrence is the placement fact binding a target entity to a parent
// scope. One logical target may appear in many time-scoped contexts, one
// occurrence per context.
type Occurrence struct {
	ID            string                `json:"id"`
	TargetType    EntityKind            `json:"targetType"`
	TargetID      string                `json:"targetId"`
	Parent        ParentRef             `json:"parent"`
	Iteration     Iteration             `json:"iteration"`
	Placement     *Placement            `json:"placement,omitempty"`
	Fields        map[string]FieldValue `json:"fields,omitempty"`
	LinkedGroupID string                `json:"linkedGroupId,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// Clone returns a deep copy. Snapshots carried on transactions must not
// alias live cache state.
func (o *Occurrence) Clone() *Occurrence {
	if o == nil {
		return nil
	}
	c := *o
	if o.Placement != nil {
		p := *o.Placement
		c.Placement = &p
	}
	if o.Fields != nil {
		c.Fields = make(map[string]FieldValue, len(o.Fields))
		for k, v := range o.Fields {
			c.Fields[k] = v
		}
	}
	return &c
}

// VisibleOn reports whether the occurrence is visible for the given
// period key under the given time filter. Persistent occurrences show on
// every period; specific ones only on their pinned period; untilDone ones
// show until their completion field (doneField) holds true.
func (o *Occurrence) VisibleOn(period string, doneField string) bool {
	switch o.Iteration.Mode {
	case IterPersistent:
		return true
	case IterSpecific:
		return o.Iteration.TimeValue == period
	case IterUntilDone:
		if doneField == "" {
			return true
		}
		return !o.Fields[doneField].Bool()
	default:
		return false
	}
}
