package txlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexanderramin/gridboard/internal/cache"
	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/occurrence"
	"github.com/alexanderramin/gridboard/internal/repository"
)

// applier executes operations through one database transaction's
// repositories, so a logical transaction's durable writes commit or roll
// back together.
type applier struct {
	repos *repository.Repos
	store *occurrence.Store
}

func newApplier(conn db.DBTX) *applier {
	repos := repository.NewRepos(conn)
	return &applier{
		repos: repos,
		store: occurrence.NewStore(repos.Occurrences, repos.ParentLists),
	}
}

// applyForward executes one operation's forward semantics against the
// workspace. Inversion metadata (snapshots, previous values, prior
// indexes) missing from the operation is stamped onto it here, so the
// persisted transaction always carries what undo needs.
func (a *applier) applyForward(ctx context.Context, ws *cache.Workspace, op domain.Operation) error {
	switch o := op.(type) {
	case *domain.OccurrenceListOp:
		return a.applyOccurrenceList(ctx, ws, o)
	case *domain.MeasureOp:
		return a.applyMeasure(ctx, ws, o)
	case *domain.EntityOp:
		return a.applyEntity(ctx, ws, o)
	case *domain.DocEditOp:
		return a.applyDocEdit(ctx, ws, o)
	default:
		return fmt.Errorf("unhandled operation kind %q", op.Kind())
	}
}

func (a *applier) applyOccurrenceList(ctx context.Context, ws *cache.Workspace, op *domain.OccurrenceListOp) error {
	switch op.Action {
	case domain.ListCreate:
		if op.Snapshot == nil {
			return fmt.Errorf("create without snapshot: %w", domain.ErrValidation)
		}
		return a.store.Insert(ctx, ws, op.Snapshot.Clone(), op.Index)

	case domain.ListDelete:
		snapshot, index, err := a.store.Delete(ctx, ws, op.OccurrenceID)
		if err != nil {
			return err
		}
		op.Snapshot = snapshot
		op.PrevIndex = index
		return nil

	case domain.ListAdd:
		if op.To == nil {
			return fmt.Errorf("add without destination: %w", domain.ErrValidation)
		}
		o, ok := ws.Occurrences[op.OccurrenceID]
		if !ok {
			if op.Snapshot == nil {
				return fmt.Errorf("occurrence %s: %w", op.OccurrenceID, domain.ErrNotFound)
			}
			o = op.Snapshot.Clone()
		}
		o.Parent = *op.To
		return a.store.Insert(ctx, ws, o, op.Index)

	case domain.ListRemove:
		if op.From == nil {
			return fmt.Errorf("remove without source: %w", domain.ErrValidation)
		}
		if snap, ok := ws.Occurrences[op.OccurrenceID]; ok && op.Snapshot == nil {
			op.Snapshot = snap.Clone()
		}
		index, err := a.store.Detach(ctx, ws, op.OccurrenceID, *op.From)
		if err != nil {
			return err
		}
		op.PrevIndex = index
		return nil

	case domain.ListMove:
		if op.From == nil || op.To == nil {
			return fmt.Errorf("move without endpoints: %w", domain.ErrValidation)
		}
		if snap, ok := ws.Occurrences[op.OccurrenceID]; ok && op.Snapshot == nil {
			// Field snapshot travels with the move for undo animation.
			op.Snapshot = snap.Clone()
		}
		index, err := a.store.Move(ctx, ws, op.OccurrenceID, *op.From, *op.To, op.Index)
		if err != nil {
			return err
		}
		// Source position, so the inverse move puts the occurrence back
		// among its siblings instead of appending.
		op.PrevIndex = index
		return nil

	case domain.ListCopy:
		if op.To == nil {
			return fmt.Errorf("copy without destination: %w", domain.ErrValidation)
		}
		if op.Snapshot != nil {
			// Redo path: restore the recorded copy, same id.
			return a.store.Insert(ctx, ws, op.Snapshot.Clone(), op.Index)
		}
		dup, err := a.store.Copy(ctx, ws, op.OccurrenceID, *op.To)
		if err != nil {
			return err
		}
		op.Snapshot = dup.Clone()
		op.Index = len(ws.Order(*op.To)) - 1
		return nil

	case domain.ListReorder:
		if op.To == nil {
			return fmt.Errorf("reorder without parent: %w", domain.ErrValidation)
		}
		if op.PrevOrder == nil {
			op.PrevOrder = append([]string(nil), ws.Order(*op.To)...)
		}
		return a.store.Reorder(ctx, ws, *op.To, op.Order)

	default:
		return fmt.Errorf("unhandled occurrence_list action %q: %w", op.Action, domain.ErrValidation)
	}
}

func (a *applier) applyMeasure(ctx context.Context, ws *cache.Workspace, op *domain.MeasureOp) error {
	o, ok := ws.Occurrences[op.OccurrenceID]
	if !ok {
		return fmt.Errorf("occurrence %s: %w", op.OccurrenceID, domain.ErrNotFound)
	}
	if op.PreviousValue == nil {
		if prev, had := o.Fields[op.FieldID]; had {
			pv := prev
			op.PreviousValue = &pv
		}
	}
	if o.Fields == nil {
		o.Fields = make(map[string]domain.FieldValue)
	}
	if op.Value == nil {
		delete(o.Fields, op.FieldID)
	} else {
		v := *op.Value
		if v.Flow == "" {
			v.Flow = op.Flow
		}
		o.Fields[op.FieldID] = v
	}
	o.UpdatedAt = time.Now().UTC()
	return a.store.Persist(ctx, o)
}

func (a *applier) applyDocEdit(ctx context.Context, ws *cache.Workspace, op *domain.DocEditOp) error {
	o, ok := ws.Occurrences[op.OccurrenceID]
	if !ok {
		return fmt.Errorf("occurrence %s: %w", op.OccurrenceID, domain.ErrNotFound)
	}
	if op.PreviousContent == nil {
		if prev, had := o.Fields[op.FieldID]; had {
			raw, err := json.Marshal(prev.Value)
			if err != nil {
				return fmt.Errorf("capturing previous content: %w", err)
			}
			op.PreviousContent = raw
		}
	}
	if o.Fields == nil {
		o.Fields = make(map[string]domain.FieldValue)
	}
	if len(op.Content) == 0 {
		delete(o.Fields, op.FieldID)
	} else {
		var v any
		if err := json.Unmarshal(op.Content, &v); err != nil {
			return fmt.Errorf("decoding doc content: %w", err)
		}
		o.Fields[op.FieldID] = domain.FieldValue{Value: v}
	}
	o.UpdatedAt = time.Now().UTC()
	return a.store.Persist(ctx, o)
}

func (a *applier) applyEntity(ctx context.Context, ws *cache.Workspace, op *domain.EntityOp) error {
	switch op.Action {
	case domain.EntityCreate:
		return a.entityPut(ctx, ws, op.EntityType, op.Data)

	case domain.EntityUpdate:
		if op.PreviousData == nil {
			prev, err := a.entityJSON(ws, op.EntityType, op.EntityID)
			if err != nil {
				return err
			}
			op.PreviousData = prev
		}
		return a.entityPut(ctx, ws, op.EntityType, op.Data)

	case domain.EntityDelete:
		if op.PreviousData == nil {
			prev, err := a.entityJSON(ws, op.EntityType, op.EntityID)
			if err != nil {
				return err
			}
			op.PreviousData = prev
		}
		return a.entityRemove(ctx, ws, op.EntityType, op.EntityID)

	default:
		return fmt.Errorf("unhandled entity action %q: %w", op.Action, domain.ErrValidation)
	}
}

// entityJSON captures the current state of a cached entity.
func (a *applier) entityJSON(ws *cache.Workspace, kind domain.EntityKind, id string) (json.RawMessage, error) {
	var v any
	var ok bool
	switch kind {
	case domain.KindGrid:
		v, ok = ws.Grids[id], ws.Grids[id] != nil
	case domain.KindPanel:
		v, ok = ws.Panels[id], ws.Panels[id] != nil
	case domain.KindContainer:
		v, ok = ws.Containers[id], ws.Containers[id] != nil
	case domain.KindInstance:
		v, ok = ws.Instances[id], ws.Instances[id] != nil
	case domain.KindField:
		v, ok = ws.Fields[id], ws.Fields[id] != nil
	default:
		return nil, fmt.Errorf("unhandled entity kind %q: %w", kind, domain.ErrValidation)
	}
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("capturing %s %s: %w", kind, id, err)
	}
	return raw, nil
}

// entityPut decodes data and installs the entity in cache and storage.
func (a *applier) entityPut(ctx context.Context, ws *cache.Workspace, kind domain.EntityKind, data json.RawMessage) error {
	switch kind {
	case domain.KindGrid:
		g := &domain.Grid{}
		if err := json.Unmarshal(data, g); err != nil {
			return fmt.Errorf("decoding grid: %w", err)
		}
		ws.Grids[g.ID] = g
		if _, ok := ws.Lists[g.Ref()]; !ok {
			ws.Lists[g.Ref()] = append([]string(nil), g.OccurrenceOrder...)
		}
		return a.repos.Grids.Upsert(ctx, g)
	case domain.KindPanel:
		p := &domain.Panel{}
		if err := json.Unmarshal(data, p); err != nil {
			return fmt.Errorf("decoding panel: %w", err)
		}
		ws.Panels[p.ID] = p
		if _, ok := ws.Lists[p.Ref()]; !ok {
			ws.Lists[p.Ref()] = append([]string(nil), p.OccurrenceOrder...)
		}
		return a.repos.Panels.Upsert(ctx, p)
	case domain.KindContainer:
		c := &domain.Container{}
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("decoding container: %w", err)
		}
		ws.Containers[c.ID] = c
		if _, ok := ws.Lists[c.Ref()]; !ok {
			ws.Lists[c.Ref()] = append([]string(nil), c.OccurrenceOrder...)
		}
		return a.repos.Containers.Upsert(ctx, c)
	case domain.KindInstance:
		in := &domain.Instance{}
		if err := json.Unmarshal(data, in); err != nil {
			return fmt.Errorf("decoding instance: %w", err)
		}
		ws.Instances[in.ID] = in
		if _, ok := ws.Lists[in.Ref()]; !ok {
			ws.Lists[in.Ref()] = append([]string(nil), in.OccurrenceOrder...)
		}
		return a.repos.Instances.Upsert(ctx, in)
	case domain.KindField:
		f := &domain.Field{}
		if err := json.Unmarshal(data, f); err != nil {
			return fmt.Errorf("decoding field: %w", err)
		}
		ws.Fields[f.ID] = f
		return a.repos.Fields.Upsert(ctx, f)
	default:
		return fmt.Errorf("unhandled entity kind %q: %w", kind, domain.ErrValidation)
	}
}

// entityRemove drops the entity from cache and storage. Cascading its
// occurrences is the caller's concern, recorded as sibling operations in
// the same transaction.
func (a *applier) entityRemove(ctx context.Context, ws *cache.Workspace, kind domain.EntityKind, id string) error {
	ref := domain.ParentRef{Kind: kind, ID: id}
	delete(ws.Lists, ref)
	switch kind {
	case domain.KindGrid:
		delete(ws.Grids, id)
		return a.repos.Grids.Delete(ctx, id)
	case domain.KindPanel:
		delete(ws.Panels, id)
		return a.repos.Panels.Delete(ctx, id)
	case domain.KindContainer:
		delete(ws.Containers, id)
		return a.repos.Containers.Delete(ctx, id)
	case domain.KindInstance:
		delete(ws.Instances, id)
		return a.repos.Instances.Delete(ctx, id)
	case domain.KindField:
		delete(ws.Fields, id)
		return a.repos.Fields.Delete(ctx, id)
	default:
		return fmt.Errorf("unhandled entity kind %q: %w", kind, domain.ErrValidation)
	}
}

// invert returns the semantic inverse of one operation: add↔remove,
// move swaps endpoints, create↔delete via snapshot, measure restores
// the previous value.
func invert(op domain.Operation) domain.Operation {
	switch o := op.(type) {
	case *domain.OccurrenceListOp:
		switch o.Action {
		case domain.ListAdd:
			return &domain.OccurrenceListOp{
				Action: domain.ListRemove, OccurrenceID: o.OccurrenceID,
				From: o.To, PrevIndex: o.Index, Snapshot: o.Snapshot,
			}
		case domain.ListRemove:
			return &domain.OccurrenceListOp{
				Action: domain.ListAdd, OccurrenceID: o.OccurrenceID,
				To: o.From, Index: o.PrevIndex, Snapshot: o.Snapshot,
			}
		case domain.ListMove:
			return &domain.OccurrenceListOp{
				Action: domain.ListMove, OccurrenceID: o.OccurrenceID,
				From: o.To, To: o.From, Index: o.PrevIndex, PrevIndex: o.Index,
				Snapshot: o.Snapshot,
			}
		case domain.ListCopy:
			id := o.OccurrenceID
			if o.Snapshot != nil {
				id = o.Snapshot.ID
			}
			return &domain.OccurrenceListOp{Action: domain.ListDelete, OccurrenceID: id}
		case domain.ListReorder:
			return &domain.OccurrenceListOp{
				Action: domain.ListReorder, To: o.To,
				Order: o.PrevOrder, PrevOrder: o.Order,
			}
		case domain.ListCreate:
			return &domain.OccurrenceListOp{
				Action: domain.ListDelete, OccurrenceID: o.Snapshot.ID,
				Snapshot: o.Snapshot, PrevIndex: o.Index,
			}
		case domain.ListDelete:
			return &domain.OccurrenceListOp{
				Action: domain.ListCreate, OccurrenceID: o.OccurrenceID,
				Snapshot: o.Snapshot, Index: o.PrevIndex,
			}
		}
		return o

	case *domain.MeasureOp:
		return &domain.MeasureOp{
			OccurrenceID: o.OccurrenceID, FieldID: o.FieldID,
			Value: o.PreviousValue, PreviousValue: o.Value, Flow: o.Flow,
		}

	case *domain.EntityOp:
		switch o.Action {
		case domain.EntityCreate:
			return &domain.EntityOp{
				Action: domain.EntityDelete, EntityType: o.EntityType,
				EntityID: o.EntityID, PreviousData: o.Data,
			}
		case domain.EntityDelete:
			return &domain.EntityOp{
				Action: domain.EntityCreate, EntityType: o.EntityType,
				EntityID: o.EntityID, Data: o.PreviousData,
			}
		case domain.EntityUpdate:
			return &domain.EntityOp{
				Action: domain.EntityUpdate, EntityType: o.EntityType,
				EntityID: o.EntityID, Data: o.PreviousData, PreviousData: o.Data,
			}
		}
		return o

	case *domain.DocEditOp:
		return &domain.DocEditOp{
			OccurrenceID: o.OccurrenceID, FieldID: o.FieldID,
			Content: o.PreviousContent, PreviousContent: o.Content,
		}

	default:
		return op
	}
}
