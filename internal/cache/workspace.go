// Package cache holds the per-user in-memory working set shared by all
// of a user's live connections.
package cache

import (
	"fmt"
	"sync"

	"github.com/alexanderramin/gridboard/internal/domain"
)

// Workspace is one user's entire board state: every entity indexed by id
// plus per-parent ordered occurrence-id lists. A single mutex serializes
// all access. Handlers that interleave storage I/O between a read and a
// write must re-check state after reacquiring the lock.
type Workspace struct {
	UserID string

	mu          sync.Mutex
	Grids       map[string]*domain.Grid
	Panels      map[string]*domain.Panel
	Containers  map[string]*domain.Container
	Instances   map[string]*domain.Instance
	Fields      map[string]*domain.Field
	Occurrences map[string]*domain.Occurrence
	Lists       map[domain.ParentRef][]string
}

// NewWorkspace creates an empty workspace for the user.
func NewWorkspace(userID string) *Workspace {
	return &Workspace{
		UserID:      userID,
		Grids:       make(map[string]*domain.Grid),
		Panels:      make(map[string]*domain.Panel),
		Containers:  make(map[string]*domain.Container),
		Instances:   make(map[string]*domain.Instance),
		Fields:      make(map[string]*domain.Field),
		Occurrences: make(map[string]*domain.Occurrence),
		Lists:       make(map[domain.ParentRef][]string),
	}
}

// With runs fn with the workspace lock held. Every handler mutation and
// every snapshot read goes through here so no connection ever observes a
// torn cross-entity state.
func (w *Workspace) With(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn()
}

// Order returns the parent's ordered occurrence-id list. The list is the
// sole source of child display order.
func (w *Workspace) Order(ref domain.ParentRef) []string {
	return w.Lists[ref]
}

// SetOrder replaces the parent's ordered list and mirrors it onto the
// owning entity so persistence sees the same view.
func (w *Workspace) SetOrder(ref domain.ParentRef, ids []string) {
	w.Lists[ref] = ids
	switch ref.Kind {
	case domain.KindGrid:
		if g, ok := w.Grids[ref.ID]; ok {
			g.OccurrenceOrder = ids
		}
	case domain.KindPanel:
		if p, ok := w.Panels[ref.ID]; ok {
			p.OccurrenceOrder = ids
		}
	case domain.KindContainer:
		if c, ok := w.Containers[ref.ID]; ok {
			c.OccurrenceOrder = ids
		}
	case domain.KindInstance:
		if i, ok := w.Instances[ref.ID]; ok {
			i.OccurrenceOrder = ids
		}
	}
}

// ParentExists reports whether the parent entity is present in the cache.
func (w *Workspace) ParentExists(ref domain.ParentRef) bool {
	switch ref.Kind {
	case domain.KindGrid:
		_, ok := w.Grids[ref.ID]
		return ok
	case domain.KindPanel:
		_, ok := w.Panels[ref.ID]
		return ok
	case domain.KindContainer:
		_, ok := w.Containers[ref.ID]
		return ok
	case domain.KindInstance:
		_, ok := w.Instances[ref.ID]
		return ok
	default:
		return false
	}
}

// TargetExists reports whether the target entity is present in the cache.
func (w *Workspace) TargetExists(kind domain.EntityKind, id string) bool {
	return w.ParentExists(domain.ParentRef{Kind: kind, ID: id})
}

// GridOf resolves which grid an entity belongs to. Grids belong to
// themselves.
func (w *Workspace) GridOf(kind domain.EntityKind, id string) (string, error) {
	switch kind {
	case domain.KindGrid:
		return id, nil
	case domain.KindPanel:
		if p, ok := w.Panels[id]; ok {
			return p.GridID, nil
		}
	case domain.KindContainer:
		if c, ok := w.Containers[id]; ok {
			return c.GridID, nil
		}
	case domain.KindInstance:
		if i, ok := w.Instances[id]; ok {
			return i.GridID, nil
		}
	case domain.KindField:
		if f, ok := w.Fields[id]; ok {
			return f.GridID, nil
		}
	}
	return "", fmt.Errorf("resolving grid of %s %s: %w", kind, id, domain.ErrNotFound)
}

// Memento is a deep copy of the mutable workspace state, taken before a
// multi-operation transaction so a partial failure can be rolled back to
// exactly the pre-attempt state.
type Memento struct {
	grids       map[string]*domain.Grid
	panels      map[string]*domain.Panel
	containers  map[string]*domain.Container
	instances   map[string]*domain.Instance
	fields      map[string]*domain.Field
	occurrences map[string]*domain.Occurrence
	lists       map[domain.ParentRef][]string
}

// Snapshot captures the current state. Caller must hold the lock (call
// inside With).
func (w *Workspace) Snapshot() *Memento {
	m := &Memento{
		grids:       make(map[string]*domain.Grid, len(w.Grids)),
		panels:      make(map[string]*domain.Panel, len(w.Panels)),
		containers:  make(map[string]*domain.Container, len(w.Containers)),
		instances:   make(map[string]*domain.Instance, len(w.Instances)),
		fields:      make(map[string]*domain.Field, len(w.Fields)),
		occurrences: make(map[string]*domain.Occurrence, len(w.Occurrences)),
		lists:       make(map[domain.ParentRef][]string, len(w.Lists)),
	}
	for id, g := range w.Grids {
		c := *g
		c.OccurrenceOrder = append([]string(nil), g.OccurrenceOrder...)
		m.grids[id] = &c
	}
	for id, p := range w.Panels {
		c := *p
		c.OccurrenceOrder = append([]string(nil), p.OccurrenceOrder...)
		m.panels[id] = &c
	}
	for id, ct := range w.Containers {
		c := *ct
		c.OccurrenceOrder = append([]string(nil), ct.OccurrenceOrder...)
		m.containers[id] = &c
	}
	for id, in := range w.Instances {
		c := *in
		c.OccurrenceOrder = append([]string(nil), in.OccurrenceOrder...)
		m.instances[id] = &c
	}
	for id, f := range w.Fields {
		c := *f
		m.fields[id] = &c
	}
	for id, o := range w.Occurrences {
		m.occurrences[id] = o.Clone()
	}
	for ref, ids := range w.Lists {
		m.lists[ref] = append([]string(nil), ids...)
	}
	return m
}

// Restore puts the workspace back to a previously captured state. Caller
// must hold the lock.
func (w *Workspace) Restore(m *Memento) {
	w.Grids = m.grids
	w.Panels = m.panels
	w.Containers = m.containers
	w.Instances = m.instances
	w.Fields = m.fields
	w.Occurrences = m.occurrences
	w.Lists = m.lists
}
