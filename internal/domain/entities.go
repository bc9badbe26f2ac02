package domain

import "time"

// ParentRef names the scope an occurrence is placed under. Any of the
// four hierarchy kinds can own an ordered child list.
type ParentRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

// Grid is the top-level board. Its OccurrenceOrder is the sole source of
// display order for occurrences placed directly on the grid.
type Grid struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"ownerId"`
	Name            string         `json:"name"`
	Attrs           map[string]any `json:"attrs,omitempty"`
	OccurrenceOrder []string       `json:"occurrenceOrder,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Panel is a sub-board inside a grid.
type Panel struct {
	ID              string         `json:"id"`
	GridID          string         `json:"gridId"`
	Name            string         `json:"name"`
	Attrs           map[string]any `json:"attrs,omitempty"`
	OccurrenceOrder []string       `json:"occurrenceOrder,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Container is a list inside a panel or grid.
type Container struct {
	ID              string         `json:"id"`
	GridID          string         `json:"gridId"`
	Name            string         `json:"name"`
	Attrs           map[string]any `json:"attrs,omitempty"`
	OccurrenceOrder []string       `json:"occurrenceOrder,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Instance is a leaf item (habit, task, note).
type Instance struct {
	ID              string         `json:"id"`
	GridID          string         `json:"gridId"`
	Name            string         `json:"name"`
	Attrs           map[string]any `json:"attrs,omitempty"`
	OccurrenceOrder []string       `json:"occurrenceOrder,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (g *Grid) Ref() ParentRef      { return ParentRef{Kind: KindGrid, ID: g.ID} }
func (p *Panel) Ref() ParentRef     { return ParentRef{Kind: KindPanel, ID: p.ID} }
func (c *Container) Ref() ParentRef { return ParentRef{Kind: KindContainer, ID: c.ID} }
func (i *Instance) Ref() ParentRef  { return ParentRef{Kind: KindInstance, ID: i.ID} }
