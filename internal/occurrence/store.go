// Package occurrence maintains placement facts: which target entity
// appears under which parent scope, and each parent's ordered child list.
package occurrence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexanderramin/gridboard/internal/cache"
	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/repository"
)

// Store applies placement mutations to a workspace and persists them.
// All methods expect the workspace lock to be held by the caller; cache
// mutation and durable write happen as one unit under it, so readers see
// each change atomically.
type Store struct {
	occs  repository.OccurrenceRepo
	lists repository.ParentListRepo
}

// NewStore creates a Store over the given repositories.
func NewStore(occs repository.OccurrenceRepo, lists repository.ParentListRepo) *Store {
	return &Store{occs: occs, lists: lists}
}

// Patch carries the updatable parts of an occurrence.
type Patch struct {
	Iteration *domain.Iteration
	Placement *domain.Placement
	Fields    map[string]domain.FieldValue
}

// Create makes a new occurrence binding target to parent and appends it
// to the parent's ordered list. The occurrence is born together with the
// relationship edit that introduces it — it is never orphaned.
func (s *Store) Create(ctx context.Context, ws *cache.Workspace, targetType domain.EntityKind,
	targetID string, parent domain.ParentRef, iteration domain.Iteration,
	placement *domain.Placement) (*domain.Occurrence, error) {

	now := time.Now().UTC()
	o := &domain.Occurrence{
		ID:         uuid.New().String(),
		TargetType: targetType,
		TargetID:   targetID,
		Parent:     parent,
		Iteration:  iteration,
		Placement:  placement,
		Fields:     make(map[string]domain.FieldValue),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Insert(ctx, ws, o, len(ws.Order(parent))); err != nil {
		return nil, err
	}
	return o, nil
}

// Insert places an existing occurrence record (e.g. a snapshot being
// restored by undo) into the cache and its parent list at index.
func (s *Store) Insert(ctx context.Context, ws *cache.Workspace, o *domain.Occurrence, index int) error {
	ws.Occurrences[o.ID] = o
	order := insertAt(ws.Order(o.Parent), o.ID, index)
	ws.SetOrder(o.Parent, order)

	if err := s.occs.Upsert(ctx, o); err != nil {
		return fmt.Errorf("persisting occurrence %s: %w", o.ID, err)
	}
	if err := s.lists.SaveOrder(ctx, o.Parent, order); err != nil {
		return fmt.Errorf("persisting parent list: %w", err)
	}
	return nil
}

// Detach removes the occurrence id from the parent's ordered list but
// keeps the record. Returns the prior index for inversion.
func (s *Store) Detach(ctx context.Context, ws *cache.Workspace, id string, from domain.ParentRef) (int, error) {
	if _, ok := ws.Occurrences[id]; !ok {
		return 0, fmt.Errorf("occurrence %s: %w", id, domain.ErrNotFound)
	}
	index := indexOf(ws.Order(from), id)
	ws.SetOrder(from, removeID(ws.Order(from), id))
	if err := s.lists.SaveOrder(ctx, from, ws.Order(from)); err != nil {
		return 0, fmt.Errorf("persisting parent list: %w", err)
	}
	return index, nil
}

// Persist writes the occurrence's current state through to storage.
// Used by callers that mutate the record in place under the lock.
func (s *Store) Persist(ctx context.Context, o *domain.Occurrence) error {
	if err := s.occs.Upsert(ctx, o); err != nil {
		return fmt.Errorf("persisting occurrence %s: %w", o.ID, err)
	}
	return nil
}

// Update applies a patch to the occurrence.
func (s *Store) Update(ctx context.Context, ws *cache.Workspace, id string, patch Patch) (*domain.Occurrence, error) {
	o, ok := ws.Occurrences[id]
	if !ok {
		return nil, fmt.Errorf("occurrence %s: %w", id, domain.ErrNotFound)
	}
	if patch.Iteration != nil {
		o.Iteration = *patch.Iteration
	}
	if patch.Placement != nil {
		o.Placement = patch.Placement
	}
	for k, v := range patch.Fields {
		if o.Fields == nil {
			o.Fields = make(map[string]domain.FieldValue)
		}
		o.Fields[k] = v
	}
	o.UpdatedAt = time.Now().UTC()

	if err := s.occs.Upsert(ctx, o); err != nil {
		return nil, fmt.Errorf("persisting occurrence %s: %w", id, err)
	}
	return o, nil
}

// Delete removes the occurrence record and drops its id from the
// parent's ordered list. Returns the removed snapshot and its prior
// index for inversion.
func (s *Store) Delete(ctx context.Context, ws *cache.Workspace, id string) (*domain.Occurrence, int, error) {
	o, ok := ws.Occurrences[id]
	if !ok {
		return nil, 0, fmt.Errorf("occurrence %s: %w", id, domain.ErrNotFound)
	}
	snapshot := o.Clone()
	index := indexOf(ws.Order(o.Parent), id)

	delete(ws.Occurrences, id)
	ws.SetOrder(o.Parent, removeID(ws.Order(o.Parent), id))

	if err := s.occs.Delete(ctx, id); err != nil {
		return nil, 0, fmt.Errorf("deleting occurrence %s: %w", id, err)
	}
	if err := s.lists.SaveOrder(ctx, o.Parent, ws.Order(o.Parent)); err != nil {
		return nil, 0, fmt.Errorf("persisting parent list: %w", err)
	}
	return snapshot, index, nil
}

// Move detaches the occurrence from `from` and inserts it under `to` at
// index (out-of-range appends), carrying its field snapshot unchanged.
// Returns the occurrence's prior position in the source list for
// inversion.
func (s *Store) Move(ctx context.Context, ws *cache.Workspace, id string, from, to domain.ParentRef, index int) (int, error) {
	o, ok := ws.Occurrences[id]
	if !ok {
		return 0, fmt.Errorf("occurrence %s: %w", id, domain.ErrNotFound)
	}
	fromIndex := indexOf(ws.Order(from), id)
	ws.SetOrder(from, removeID(ws.Order(from), id))
	ws.SetOrder(to, insertAt(ws.Order(to), id, index))
	o.Parent = to
	o.UpdatedAt = time.Now().UTC()

	if err := s.occs.Upsert(ctx, o); err != nil {
		return 0, fmt.Errorf("persisting moved occurrence %s: %w", id, err)
	}
	if err := s.lists.SaveOrder(ctx, from, ws.Order(from)); err != nil {
		return 0, fmt.Errorf("persisting source list: %w", err)
	}
	if err := s.lists.SaveOrder(ctx, to, ws.Order(to)); err != nil {
		return 0, fmt.Errorf("persisting destination list: %w", err)
	}
	return fromIndex, nil
}

// Copy duplicates the occurrence under a new parent. Source and copy
// share a linked group id tracking lineage; values never propagate
// between them.
func (s *Store) Copy(ctx context.Context, ws *cache.Workspace, id string, to domain.ParentRef) (*domain.Occurrence, error) {
	src, ok := ws.Occurrences[id]
	if !ok {
		return nil, fmt.Errorf("occurrence %s: %w", id, domain.ErrNotFound)
	}
	if src.LinkedGroupID == "" {
		src.LinkedGroupID = uuid.New().String()
		if err := s.occs.Upsert(ctx, src); err != nil {
			return nil, fmt.Errorf("persisting linked group on %s: %w", id, err)
		}
	}
	dup := src.Clone()
	dup.ID = uuid.New().String()
	dup.Parent = to
	now := time.Now().UTC()
	dup.CreatedAt = now
	dup.UpdatedAt = now

	if err := s.Insert(ctx, ws, dup, len(ws.Order(to))); err != nil {
		return nil, err
	}
	return dup, nil
}

// Reorder replaces the parent's ordered list. Every id must already be a
// child of the parent; reordering never adds or drops placements.
func (s *Store) Reorder(ctx context.Context, ws *cache.Workspace, ref domain.ParentRef, ids []string) error {
	current := ws.Order(ref)
	if len(ids) != len(current) {
		return fmt.Errorf("reorder of %s %s: length mismatch: %w", ref.Kind, ref.ID, domain.ErrValidation)
	}
	seen := make(map[string]bool, len(current))
	for _, id := range current {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			return fmt.Errorf("reorder of %s %s: unknown occurrence %s: %w", ref.Kind, ref.ID, id, domain.ErrValidation)
		}
	}

	ws.SetOrder(ref, append([]string(nil), ids...))
	if err := s.lists.SaveOrder(ctx, ref, ids); err != nil {
		return fmt.Errorf("persisting reordered list: %w", err)
	}
	return nil
}

// ByParent returns the parent's children in display order. Ids in the
// list with no backing record are skipped, not errors — the offline
// checker owns flagging them.
func (s *Store) ByParent(ws *cache.Workspace, ref domain.ParentRef) []*domain.Occurrence {
	order := ws.Order(ref)
	out := make([]*domain.Occurrence, 0, len(order))
	for _, id := range order {
		if o, ok := ws.Occurrences[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// ByTarget returns every occurrence referencing the target, in no
// particular order.
func (s *Store) ByTarget(ws *cache.Workspace, targetType domain.EntityKind, targetID string) []*domain.Occurrence {
	var out []*domain.Occurrence
	for _, o := range ws.Occurrences {
		if o.TargetType == targetType && o.TargetID == targetID {
			out = append(out, o)
		}
	}
	return out
}

// Removed describes one occurrence dropped by a cascade, with enough
// context to restore it on undo.
type Removed struct {
	Snapshot *domain.Occurrence
	Index    int
}

// CascadeDeleteTarget removes every occurrence referencing the target
// and every occurrence placed beneath it, walking target references
// downward — the owning arrays alone are not authoritative for a
// two-level container. All removals happen under the workspace lock as
// one logical unit.
func (s *Store) CascadeDeleteTarget(ctx context.Context, ws *cache.Workspace,
	targetType domain.EntityKind, targetID string) ([]Removed, error) {

	visited := make(map[string]bool)
	return s.cascade(ctx, ws, targetType, targetID, visited)
}

func (s *Store) cascade(ctx context.Context, ws *cache.Workspace,
	targetType domain.EntityKind, targetID string, visited map[string]bool) ([]Removed, error) {

	key := string(targetType) + ":" + targetID
	if visited[key] {
		return nil, nil
	}
	visited[key] = true

	var removed []Removed

	// Children placed beneath the target go first, recursing into each
	// child's own target subtree.
	ref := domain.ParentRef{Kind: targetType, ID: targetID}
	for _, child := range s.ByParent(ws, ref) {
		sub, err := s.cascade(ctx, ws, child.TargetType, child.TargetID, visited)
		if err != nil {
			return removed, err
		}
		removed = append(removed, sub...)
	}

	// Then every placement of the target itself, wherever it appears.
	for _, o := range s.ByTarget(ws, targetType, targetID) {
		snapshot, index, err := s.Delete(ctx, ws, o.ID)
		if err != nil {
			return removed, err
		}
		removed = append(removed, Removed{Snapshot: snapshot, Index: index})
	}
	return removed, nil
}

func insertAt(ids []string, id string, index int) []string {
	if index < 0 || index > len(ids) {
		index = len(ids)
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:index]...)
	out = append(out, id)
	out = append(out, ids[index:]...)
	return out
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
