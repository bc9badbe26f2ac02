package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/alexanderramin/gridboard/internal/domain"
)

// Grid options
type GridOption func(*domain.Grid)

func WithGridID(id string) GridOption {
	return func(g *domain.Grid) {
		g.ID = id
	}
}

func WithGridAttrs(attrs map[string]any) GridOption {
	return func(g *domain.Grid) {
		g.Attrs = attrs
	}
}

func NewTestGrid(ownerID, name string, opts ...GridOption) *domain.Grid {
	now := time.Now().UTC()
	g := &domain.Grid{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Panel options
type PanelOption func(*domain.Panel)

func WithPanelID(id string) PanelOption {
	return func(p *domain.Panel) {
		p.ID = id
	}
}

func NewTestPanel(gridID, name string, opts ...PanelOption) *domain.Panel {
	now := time.Now().UTC()
	p := &domain.Panel{
		ID:        uuid.New().String(),
		GridID:    gridID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Container options
type ContainerOption func(*domain.Container)

func WithContainerID(id string) ContainerOption {
	return func(c *domain.Container) {
		c.ID = id
	}
}

func NewTestContainer(gridID, name string, opts ...ContainerOption) *domain.Container {
	now := time.Now().UTC()
	c := &domain.Container{
		ID:        uuid.New().String(),
		GridID:    gridID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Instance options
type InstanceOption func(*domain.Instance)

func WithInstanceID(id string) InstanceOption {
	return func(i *domain.Instance) {
		i.ID = id
	}
}

func NewTestInstance(gridID, name string, opts ...InstanceOption) *domain.Instance {
	now := time.Now().UTC()
	i := &domain.Instance{
		ID:        uuid.New().String(),
		GridID:    gridID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Field options
type FieldOption func(*domain.Field)

func WithFieldMode(m domain.FieldMode) FieldOption {
	return func(f *domain.Field) {
		f.Mode = m
	}
}

func WithFieldOptions(opts []string) FieldOption {
	return func(f *domain.Field) {
		f.Options = opts
	}
}

func WithMetric(m *domain.Metric) FieldOption {
	return func(f *domain.Field) {
		f.Mode = domain.FieldDerived
		f.Metric = m
	}
}

func NewTestField(gridID, name string, opts ...FieldOption) *domain.Field {
	now := time.Now().UTC()
	f := &domain.Field{
		ID:        uuid.New().String(),
		GridID:    gridID,
		Name:      name,
		Mode:      domain.FieldInput,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Occurrence options
type OccurrenceOption func(*domain.Occurrence)

func WithOccurrenceID(id string) OccurrenceOption {
	return func(o *domain.Occurrence) {
		o.ID = id
	}
}

func WithIteration(it domain.Iteration) OccurrenceOption {
	return func(o *domain.Occurrence) {
		o.Iteration = it
	}
}

func WithPlacement(row, col int) OccurrenceOption {
	return func(o *domain.Occurrence) {
		o.Placement = &domain.Placement{Row: row, Col: col}
	}
}

func WithFieldValue(fieldID string, v domain.FieldValue) OccurrenceOption {
	return func(o *domain.Occurrence) {
		if o.Fields == nil {
			o.Fields = make(map[string]domain.FieldValue)
		}
		o.Fields[fieldID] = v
	}
}

func WithLinkedGroup(id string) OccurrenceOption {
	return func(o *domain.Occurrence) {
		o.LinkedGroupID = id
	}
}

func WithCreatedAt(t time.Time) OccurrenceOption {
	return func(o *domain.Occurrence) {
		o.CreatedAt = t
		o.UpdatedAt = t
	}
}

func NewTestOccurrence(targetType domain.EntityKind, targetID string, parent domain.ParentRef, opts ...OccurrenceOption) *domain.Occurrence {
	now := time.Now().UTC()
	o := &domain.Occurrence{
		ID:         uuid.New().String(),
		TargetType: targetType,
		TargetID:   targetID,
		Parent:     parent,
		Iteration:  domain.Iteration{Mode: domain.IterPersistent},
		Fields:     make(map[string]domain.FieldValue),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
