// Package integrity is the offline referential checker. Runtime
// operations never raise integrity errors; this tool is where broken
// references get found.
package integrity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/repository"
)

// Violation is one broken reference found in the store.
type Violation struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

const (
	ViolationDanglingTarget = "dangling_target"
	ViolationDanglingParent = "dangling_parent"
	ViolationOrphanListID   = "orphan_list_entry"
	ViolationUnlistedOcc    = "unlisted_occurrence"
)

// Checker scans durable state for referential symmetry: every occurrence
// must name an existing target and parent, every parent-list entry must
// name an existing occurrence, and every occurrence must appear in its
// parent's list.
type Checker struct {
	repos  *repository.Repos
	logger *slog.Logger
}

func NewChecker(repos *repository.Repos, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{repos: repos, logger: logger}
}

// Check scans the whole store and returns every violation found.
func (c *Checker) Check(ctx context.Context) ([]Violation, error) {
	idx, err := c.buildIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("indexing entities: %w", err)
	}

	occs, err := c.repos.Occurrences.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing occurrences: %w", err)
	}

	var out []Violation
	occByID := make(map[string]*domain.Occurrence, len(occs))
	for _, o := range occs {
		occByID[o.ID] = o
		if !idx.has(o.TargetType, o.TargetID) {
			out = append(out, Violation{
				Kind:    ViolationDanglingTarget,
				Subject: o.ID,
				Detail:  fmt.Sprintf("occurrence targets missing %s %s", o.TargetType, o.TargetID),
			})
		}
		if !idx.has(o.Parent.Kind, o.Parent.ID) {
			out = append(out, Violation{
				Kind:    ViolationDanglingParent,
				Subject: o.ID,
				Detail:  fmt.Sprintf("occurrence placed under missing %s %s", o.Parent.Kind, o.Parent.ID),
			})
		}
	}

	// Referential symmetry between parent lists and occurrence records.
	listed := make(map[string]domain.ParentRef)
	for ref, order := range idx.lists {
		for _, id := range order {
			listed[id] = ref
			if _, ok := occByID[id]; !ok {
				out = append(out, Violation{
					Kind:    ViolationOrphanListID,
					Subject: id,
					Detail:  fmt.Sprintf("%s %s lists missing occurrence %s", ref.Kind, ref.ID, id),
				})
			}
		}
	}
	for _, o := range occs {
		if ref, ok := listed[o.ID]; !ok {
			out = append(out, Violation{
				Kind:    ViolationUnlistedOcc,
				Subject: o.ID,
				Detail:  fmt.Sprintf("occurrence missing from %s %s order", o.Parent.Kind, o.Parent.ID),
			})
		} else if ref != o.Parent {
			out = append(out, Violation{
				Kind:    ViolationUnlistedOcc,
				Subject: o.ID,
				Detail: fmt.Sprintf("occurrence claims parent %s %s but is listed under %s %s",
					o.Parent.Kind, o.Parent.ID, ref.Kind, ref.ID),
			})
		}
	}

	if len(out) > 0 {
		return out, fmt.Errorf("%d violations: %w", len(out), domain.ErrIntegrity)
	}
	return nil, nil
}

type entityIndex struct {
	ids   map[domain.ParentRef]bool
	lists map[domain.ParentRef][]string
}

func (i *entityIndex) has(kind domain.EntityKind, id string) bool {
	return i.ids[domain.ParentRef{Kind: kind, ID: id}]
}

func (i *entityIndex) add(ref domain.ParentRef, order []string) {
	i.ids[ref] = true
	if len(order) > 0 {
		i.lists[ref] = order
	}
}

// buildIndex loads every entity id and ordered list, walking all grids
// and their children.
func (c *Checker) buildIndex(ctx context.Context) (*entityIndex, error) {
	idx := &entityIndex{
		ids:   make(map[domain.ParentRef]bool),
		lists: make(map[domain.ParentRef][]string),
	}

	grids, err := c.repos.Grids.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range grids {
		idx.add(g.Ref(), g.OccurrenceOrder)

		panels, err := c.repos.Panels.ListByGrid(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range panels {
			idx.add(p.Ref(), p.OccurrenceOrder)
		}

		containers, err := c.repos.Containers.ListByGrid(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, ct := range containers {
			idx.add(ct.Ref(), ct.OccurrenceOrder)
		}

		instances, err := c.repos.Instances.ListByGrid(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, in := range instances {
			idx.add(in.Ref(), in.OccurrenceOrder)
		}
	}
	return idx, nil
}
