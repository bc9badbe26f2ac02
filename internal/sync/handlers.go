package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alexanderramin/gridboard/internal/cache"
	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/metric"
	"github.com/alexanderramin/gridboard/internal/occurrence"
	"github.com/alexanderramin/gridboard/internal/protocol"
	"github.com/alexanderramin/gridboard/internal/repository"
	"github.com/alexanderramin/gridboard/internal/txlog"
)

// Service dispatches decoded client messages: validate, mutate the
// shared workspace under its lock, persist, record the transaction, then
// broadcast the canonical delta to the user's other connections. The
// originator gets a direct reply instead of an echo.
type Service struct {
	repos   *repository.Repos
	store   *occurrence.Store
	txlog   *txlog.Engine
	metrics *metric.Engine
	hub     *Hub
	logger  *slog.Logger
}

// NewService wires the sync service.
func NewService(repos *repository.Repos, store *occurrence.Store, txEngine *txlog.Engine,
	metricEngine *metric.Engine, hub *Hub, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repos:   repos,
		store:   store,
		txlog:   txEngine,
		metrics: metricEngine,
		hub:     hub,
		logger:  logger,
	}
}

// Handle processes one message. Errors are reported to the originator
// only; the other connections never learn a mutation was attempted.
func (s *Service) Handle(ctx context.Context, c *Conn, env protocol.Envelope) {
	var err error
	switch env.Type {
	case protocol.TypeRequestFullState:
		err = s.handleFullState(ctx, c, env)
	case protocol.TypeSwitchGrid:
		err = s.handleSwitchGrid(c, env)
	case protocol.TypeCreateOccurrence:
		err = s.handleCreateOccurrence(ctx, c, env)
	case protocol.TypeUpdateOccurrence:
		err = s.handleUpdateOccurrence(ctx, c, env)
	case protocol.TypeDeleteOccurrence:
		err = s.handleDeleteOccurrence(ctx, c, env)
	case protocol.TypeMoveOccurrence:
		err = s.handleMoveOccurrence(ctx, c, env)
	case protocol.TypeCopyOccurrence:
		err = s.handleCopyOccurrence(ctx, c, env)
	case protocol.TypeReorderOccurrences:
		err = s.handleReorderOccurrences(ctx, c, env)
	case protocol.TypeSetMeasure:
		err = s.handleSetMeasure(ctx, c, env)
	case protocol.TypeEditDoc:
		err = s.handleEditDoc(ctx, c, env)
	case protocol.TypeGetUndoState:
		err = s.handleGetUndoState(ctx, c, env)
	case protocol.TypeUndoTransaction:
		err = s.handleUndo(ctx, c, env)
	case protocol.TypeRedoTransaction:
		err = s.handleRedo(ctx, c, env)
	case protocol.TypeGetTransactions:
		err = s.handleGetTransactions(ctx, c, env)
	case protocol.TypeGetDerivedValue:
		err = s.handleGetDerivedValue(ctx, c, env)
	default:
		if action, kind, ok := protocol.EntityMessage(env.Type); ok {
			err = s.handleEntity(ctx, c, env, action, kind)
		} else {
			err = errors.Join(domain.ErrValidation, errors.New("unknown message type "+string(env.Type)))
		}
	}
	if err != nil {
		s.logger.Warn("message failed", "type", env.Type, "conn_id", c.ID, "error", err)
		s.sendError(c, err)
	}
}

func (s *Service) reply(c *Conn, t protocol.MessageType, payload any) {
	env, err := protocol.NewEnvelope(t, "", payload)
	if err != nil {
		s.logger.Error("encoding reply", "type", t, "error", err)
		return
	}
	c.Send(env)
}

func (s *Service) broadcast(c *Conn, gridID string, t protocol.MessageType, payload any) {
	env, err := protocol.NewEnvelope(t, c.ID, payload)
	if err != nil {
		s.logger.Error("encoding broadcast", "type", t, "error", err)
		return
	}
	s.hub.Broadcast(c.UserID, gridID, env, c.ID)
}

func (s *Service) sendError(c *Conn, err error) {
	s.reply(c, protocol.TypeServerError, protocol.ServerError{
		Message: err.Error(),
		Code:    errorCode(err),
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrOutOfOrder):
		return "out_of_order"
	case errors.Is(err, domain.ErrStorage):
		return "storage"
	case errors.Is(err, domain.ErrIntegrity):
		return "integrity"
	default:
		return "internal"
	}
}

// handleFullState resolves the requested grid — creating a fresh empty
// one when the id is missing or unknown — then builds the snapshot in
// one pass under the lock and sends it as a single message.
func (s *Service) handleFullState(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.RequestFullState
	if err := env.Decode(&p); err != nil {
		return err
	}
	return c.ws.With(func() error {
		gridID := p.GridID
		if gridID == "" {
			gridID = uuid.New().String()
		}
		if _, ok := c.ws.Grids[gridID]; !ok {
			if err := s.createEmptyGrid(ctx, c, gridID); err != nil {
				return err
			}
		}
		state := snapshotState(c.ws)
		state.GridID = gridID
		state.Grid = c.ws.Grids[gridID]
		s.reply(c, protocol.TypeFullState, state)
		return nil
	})
}

// createEmptyGrid makes a new grid for the user, recorded as an entity
// transaction like any other mutation. Caller holds the workspace lock.
func (s *Service) createEmptyGrid(ctx context.Context, c *Conn, gridID string) error {
	now := time.Now().UTC()
	g := &domain.Grid{
		ID:        gridID,
		OwnerID:   c.UserID,
		Name:      "New board",
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding new grid: %w", err)
	}
	tx, err := s.txlog.Apply(ctx, c.ws, gridID, c.UserID, domain.Operations{
		&domain.EntityOp{Action: domain.EntityCreate, EntityType: domain.KindGrid, EntityID: gridID, Data: data},
	})
	if err != nil {
		return err
	}
	s.broadcast(c, gridID, protocol.EntityEventType(domain.EntityCreate, domain.KindGrid), protocol.EntityEvent{
		EntityType:    domain.KindGrid,
		EntityID:      gridID,
		Data:          data,
		TransactionID: tx.ID,
	})
	return nil
}

func snapshotState(ws *cache.Workspace) protocol.FullState {
	st := protocol.FullState{}
	for _, g := range ws.Grids {
		st.Grids = append(st.Grids, g)
	}
	for _, p := range ws.Panels {
		st.Panels = append(st.Panels, p)
	}
	for _, ct := range ws.Containers {
		st.Containers = append(st.Containers, ct)
	}
	for _, in := range ws.Instances {
		st.Instances = append(st.Instances, in)
	}
	for _, f := range ws.Fields {
		st.Fields = append(st.Fields, f)
	}
	for _, o := range ws.Occurrences {
		st.Occurrences = append(st.Occurrences, o)
	}
	for ref, order := range ws.Lists {
		st.Lists = append(st.Lists, protocol.ParentList{Parent: ref, Order: append([]string(nil), order...)})
	}
	sort.Slice(st.Grids, func(i, j int) bool { return st.Grids[i].ID < st.Grids[j].ID })
	sort.Slice(st.Panels, func(i, j int) bool { return st.Panels[i].ID < st.Panels[j].ID })
	sort.Slice(st.Containers, func(i, j int) bool { return st.Containers[i].ID < st.Containers[j].ID })
	sort.Slice(st.Instances, func(i, j int) bool { return st.Instances[i].ID < st.Instances[j].ID })
	sort.Slice(st.Fields, func(i, j int) bool { return st.Fields[i].ID < st.Fields[j].ID })
	sort.Slice(st.Occurrences, func(i, j int) bool { return st.Occurrences[i].ID < st.Occurrences[j].ID })
	sort.Slice(st.Lists, func(i, j int) bool {
		a, b := st.Lists[i].Parent, st.Lists[j].Parent
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
	return st
}

func (s *Service) handleSwitchGrid(c *Conn, env protocol.Envelope) error {
	var p protocol.SwitchGrid
	if err := env.Decode(&p); err != nil {
		return err
	}
	c.SetGrid(p.GridID)
	return nil
}

func (s *Service) handleEntity(ctx context.Context, c *Conn, env protocol.Envelope,
	action domain.EntityAction, kind domain.EntityKind) error {

	var p protocol.EntityPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	if action != domain.EntityDelete && len(p.Data) == 0 {
		return errors.Join(domain.ErrValidation, errors.New("entity data required"))
	}

	var tx *domain.Transaction
	err := c.ws.With(func() error {
		gridID, err := s.entityGrid(c.ws, kind, p)
		if err != nil {
			return err
		}

		var ops domain.Operations
		if action == domain.EntityDelete {
			// Deleting the entity removes every occurrence referencing it
			// and everything placed beneath it, each as its own
			// reversible list operation.
			for _, id := range collectCascade(c.ws, s.store, kind, p.EntityID) {
				ops = append(ops, &domain.OccurrenceListOp{Action: domain.ListDelete, OccurrenceID: id})
			}
		}
		ops = append(ops, &domain.EntityOp{
			Action:     action,
			EntityType: kind,
			EntityID:   p.EntityID,
			Data:       p.Data,
		})

		tx, err = s.txlog.Apply(ctx, c.ws, gridID, c.UserID, ops)
		if err != nil {
			return err
		}

		event := protocol.EntityEvent{
			EntityType:    kind,
			EntityID:      p.EntityID,
			Data:          p.Data,
			TransactionID: tx.ID,
		}
		t := protocol.EntityEventType(action, kind)
		s.reply(c, t, event)
		s.broadcast(c, gridID, t, event)
		return nil
	})
	return err
}

// entityGrid resolves which grid an entity mutation belongs to.
func (s *Service) entityGrid(ws *cache.Workspace, kind domain.EntityKind, p protocol.EntityPayload) (string, error) {
	if kind == domain.KindGrid {
		return p.EntityID, nil
	}
	if p.GridID != "" {
		return p.GridID, nil
	}
	return ws.GridOf(kind, p.EntityID)
}

// collectCascade lists, children first, every occurrence id a cascade
// delete of the target would remove. Read-only: the transaction's list
// operations do the removing.
func collectCascade(ws *cache.Workspace, store *occurrence.Store, kind domain.EntityKind, id string) []string {
	visited := make(map[domain.ParentRef]bool)
	var out []string
	var walk func(kind domain.EntityKind, id string)
	walk = func(kind domain.EntityKind, id string) {
		ref := domain.ParentRef{Kind: kind, ID: id}
		if visited[ref] {
			return
		}
		visited[ref] = true
		for _, child := range store.ByParent(ws, ref) {
			walk(child.TargetType, child.TargetID)
		}
		for _, o := range store.ByTarget(ws, kind, id) {
			out = append(out, o.ID)
		}
	}
	walk(kind, id)
	return out
}

func (s *Service) handleCreateOccurrence(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.CreateOccurrence
	if err := env.Decode(&p); err != nil {
		return err
	}

	return c.ws.With(func() error {
		if !c.ws.TargetExists(domain.EntityKind(p.TargetType), p.TargetID) {
			return errors.Join(domain.ErrNotFound, errors.New("target "+p.TargetID))
		}
		gridID, err := c.ws.GridOf(p.Parent.Kind, p.Parent.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		o := &domain.Occurrence{
			ID:         uuid.New().String(),
			TargetType: domain.EntityKind(p.TargetType),
			TargetID:   p.TargetID,
			Parent:     p.Parent,
			Iteration:  p.Iteration,
			Placement:  p.Placement,
			Fields:     make(map[string]domain.FieldValue),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		parent := p.Parent
		tx, err := s.txlog.Apply(ctx, c.ws, gridID, c.UserID, domain.Operations{
			&domain.OccurrenceListOp{
				Action:       domain.ListCreate,
				OccurrenceID: o.ID,
				To:           &parent,
				Index:        len(c.ws.Order(parent)),
				Snapshot:     o,
			},
		})
		if err != nil {
			return err
		}

		event := protocol.OccurrenceEvent{
			Occurrence:    c.ws.Occurrences[o.ID],
			OccurrenceID:  o.ID,
			To:            &parent,
			TransactionID: tx.ID,
		}
		s.reply(c, protocol.TypeOccurrenceCreated, event)
		s.broadcast(c, gridID, protocol.TypeOccurrenceCreated, event)
		return nil
	})
}

func (s *Service) handleUpdateOccurrence(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.UpdateOccurrence
	if err := env.Decode(&p); err != nil {
		return err
	}

	return c.ws.With(func() error {
		o, ok := c.ws.Occurrences[p.OccurrenceID]
		if !ok {
			return errors.Join(domain.ErrNotFound, errors.New("occurrence "+p.OccurrenceID))
		}
		gridID, err := c.ws.GridOf(o.Parent.Kind, o.Parent.ID)
		if err != nil {
			return err
		}

		var ops domain.Operations
		for fieldID, fv := range p.Fields {
			v := fv
			ops = append(ops, &domain.MeasureOp{OccurrenceID: o.ID, FieldID: fieldID, Value: &v, Flow: fv.Flow})
		}
		if p.Iteration != nil || p.Placement != nil {
			// Structural changes are recorded as delete+create of the
			// same id, so both directions of undo restore an exact
			// snapshot.
			snap := o.Clone()
			if p.Iteration != nil {
				snap.Iteration = *p.Iteration
			}
			if p.Placement != nil {
				snap.Placement = p.Placement
			}
			snap.UpdatedAt = time.Now().UTC()
			idx := slices.Index(c.ws.Order(o.Parent), o.ID)
			ops = append(ops,
				&domain.OccurrenceListOp{Action: domain.ListDelete, OccurrenceID: o.ID},
				&domain.OccurrenceListOp{Action: domain.ListCreate, OccurrenceID: o.ID, Snapshot: snap, Index: idx},
			)
		}
		if len(ops) == 0 {
			return errors.Join(domain.ErrValidation, errors.New("empty occurrence update"))
		}

		tx, err := s.txlog.Apply(ctx, c.ws, gridID, c.UserID, ops)
		if err != nil {
			return err
		}

		event := protocol.OccurrenceEvent{
			Occurrence:    c.ws.Occurrences[p.OccurrenceID],
			OccurrenceID:  p.OccurrenceID,
			TransactionID: tx.ID,
		}
		s.reply(c, protocol.TypeOccurrenceUpdated, event)
		s.broadcast(c, gridID, protocol.TypeOccurrenceUpdated, event)
		return nil
	})
}

func (s *Service) handleDeleteOccurrence(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.DeleteOccurrence
	if err := env.Decode(&p); err != nil {
		return err
	}

	return c.ws.With(func() error {
		o, ok := c.ws.Occurrences[p.OccurrenceID]
		if !ok {
			return errors.Join(domain.ErrNotFound, errors.New("occurrence "+p.OccurrenceID))
		}
		gridID, err := c.ws.GridOf(o.Parent.Kind, o.Parent.ID)
		if err != nil {
			return err
		}

		var ops domain.Operations
		if p.Cascade {
			for _, id := range collectCascade(c.ws, s.store, o.TargetType, o.TargetID) {
				ops = append(ops, &domain.OccurrenceListOp{Action: domain.ListDelete, OccurrenceID: id})
			}
		} else {
			ops = domain.Operations{&domain.OccurrenceListOp{Action: domain.ListDelete, OccurrenceID: o.ID}}
		}

		tx, err := s.txlog.Apply(ctx, c.ws, gridID, c.UserID, ops)
		if err != nil {
			return err
		}

		event := protocol.OccurrenceEvent{OccurrenceID: p.OccurrenceID, TransactionID: tx.ID}
		s.reply(c, protocol.TypeOccurrenceDeleted, event)
		s.broadcast(c, gridID, protocol.TypeOccurrenceDeleted, event)
		return nil
	})
}

func (s *Service) handleMoveOccurrence(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.MoveOccurrence
	if err := env.Decode(&p); err != nil {
		return err
	}

	return c.ws.With(func() error {
		gridID, err := c.ws.GridOf(p.To.Kind, p.To.ID)
		if err != nil {
			return err
		}
		from, to := p.From, p.To
		tx, err := s.txlog.Apply(ctx, c.ws, gridID, c.UserID, domain.Operations{
			&domain.OccurrenceListOp{
				Action:       domain.ListMove,
				OccurrenceID: p.OccurrenceID,
				From:         &from,
				To:           &to,
				Index:        len(c.ws.Order(to)),
			},
		})
		if err != nil {
			return err
		}

		event := protocol.OccurrenceEvent{
			OccurrenceID:  p.OccurrenceID,
			From:          &from,
			To:            &to,
			TransactionID: tx.ID,
		}
		s.reply(c, protocol.TypeOccurrenceMoved, event)
		s.broadcast(c, gridID, protocol.TypeOccurrenceMoved, event)
		return nil
	})
}

func (s *Service) handleCopyOccurrence(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.CopyOccurrence
	if err := env.Decode(&p); err != nil {
		return err
	}

	return c.ws.With(func() error {
		gridID, err := c.ws.GridOf(p.To.Kind, p.To.ID)
		if err != nil {
			return err
		}
		to := p.To
		op := &domain.OccurrenceListOp{Action: domain.ListCopy, OccurrenceID: p.OccurrenceID, To: &to}
		tx, err := s.txlog.Apply(ctx, c.ws, gridID, c.UserID, domain.Operations{op})
		if err != nil {
			return err
		}

		event := protocol.OccurrenceEvent{
			Occurrence:    c.ws.Occurrences[op.Snapshot.ID],
			OccurrenceID:  op.Snapshot.ID,
			From:          refOf(c.ws, p.OccurrenceID),
			To:            &to,
			TransactionID: tx.ID,
		}
		s.reply(c, protocol.TypeOccurrenceCopied, event)
		s.broadcast(c, gridID, protocol.TypeOccurrenceCopied, event)
		return nil
	})
}

func refOf(ws *cache.Workspace, occurrenceID string) *domain.ParentRef {
	if o, ok := ws.Occurrences[occurrenceID]; ok {
		ref := o.Parent
		return &ref
	}
	return nil
}

func (s *Service) handleReorderOccurrences(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.ReorderOccurrences
	if err := env.Decode(&p); err != nil {
		return err
	}

	return c.ws.With(func() error {
		gridID, err := c.ws.GridOf(p.Parent.Kind, p.Parent.ID)
		if err != nil {
			return err
		}
		parent := p.Parent
		tx, err := s.txlog.Apply(ctx, c.ws, gridID, c.UserID, domain.Operations{
			&domain.OccurrenceListOp{Action: domain.ListReorder, To: &parent, Order: p.Order},
		})
		if err != nil {
			return err
		}

		event := protocol.OccurrenceEvent{To: &parent, Order: p.Order, TransactionID: tx.ID}
		s.reply(c, protocol.TypeOccurrencesReorder, event)
		s.broadcast(c, gridID, protocol.TypeOccurrencesReorder, event)
		return nil
	})
}

func (s *Service) handleSetMeasure(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.SetMeasure
	if err := env.Decode(&p); err != nil {
		return err
	}

	return c.ws.With(func() error {
		o, ok := c.ws.Occurrences[p.OccurrenceID]
		if !ok {
			return errors.Join(domain.ErrNotFound, errors.New("occurrence "+p.OccurrenceID))
		}
		gridID, err := c.ws.GridOf(o.Parent.Kind, o.Parent.ID)
		if err != nil {
			return err
		}
		tx, err := s.txlog.Apply(ctx, c.ws, gridID, c.UserID, domain.Operations{
			&domain.MeasureOp{OccurrenceID: p.OccurrenceID, FieldID: p.FieldID, Value: p.Value, Flow: p.Flow},
		})
		if err != nil {
			return err
		}

		event := protocol.MeasureEvent{
			OccurrenceID:  p.OccurrenceID,
			FieldID:       p.FieldID,
			Value:         p.Value,
			TransactionID: tx.ID,
		}
		s.reply(c, protocol.TypeMeasureSet, event)
		s.broadcast(c, gridID, protocol.TypeMeasureSet, event)
		return nil
	})
}

func (s *Service) handleEditDoc(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.EditDoc
	if err := env.Decode(&p); err != nil {
		return err
	}

	return c.ws.With(func() error {
		o, ok := c.ws.Occurrences[p.OccurrenceID]
		if !ok {
			return errors.Join(domain.ErrNotFound, errors.New("occurrence "+p.OccurrenceID))
		}
		gridID, err := c.ws.GridOf(o.Parent.Kind, o.Parent.ID)
		if err != nil {
			return err
		}
		tx, err := s.txlog.Apply(ctx, c.ws, gridID, c.UserID, domain.Operations{
			&domain.DocEditOp{OccurrenceID: p.OccurrenceID, FieldID: p.FieldID, Steps: p.Steps, Content: p.Content},
		})
		if err != nil {
			return err
		}

		event := protocol.DocEvent{
			OccurrenceID:  p.OccurrenceID,
			FieldID:       p.FieldID,
			Steps:         p.Steps,
			Content:       p.Content,
			TransactionID: tx.ID,
		}
		s.reply(c, protocol.TypeDocEdited, event)
		s.broadcast(c, gridID, protocol.TypeDocEdited, event)
		return nil
	})
}

func (s *Service) handleGetUndoState(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.GetUndoState
	if err := env.Decode(&p); err != nil {
		return err
	}
	st, err := s.txlog.State(ctx, p.GridID)
	if err != nil {
		return err
	}
	s.reply(c, protocol.TypeUndoState, st)
	return nil
}

func (s *Service) handleUndo(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.UndoTransaction
	if err := env.Decode(&p); err != nil {
		return err
	}

	return c.ws.With(func() error {
		_, reversed, err := s.txlog.Undo(ctx, c.ws, p.GridID, p.TransactionID, c.UserID)
		if err != nil {
			undoOperations.WithLabelValues("undo", "failed").Inc()
			s.reply(c, protocol.TypeUndoResult, protocol.UndoResult{
				Success:       false,
				TransactionID: p.TransactionID,
				Error:         errorCode(err),
			})
			// Reported through undo_result; not a server_error.
			return nil
		}
		undoOperations.WithLabelValues("undo", "ok").Inc()

		s.reply(c, protocol.TypeUndoResult, protocol.UndoResult{
			Success:       true,
			TransactionID: p.TransactionID,
			ReversedOps:   reversed,
		})
		s.broadcast(c, p.GridID, protocol.TypeTransactionUndone, protocol.TransactionEvent{
			TransactionID: p.TransactionID,
			GridID:        p.GridID,
			Operations:    reversed,
		})
		return nil
	})
}

func (s *Service) handleRedo(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.RedoTransaction
	if err := env.Decode(&p); err != nil {
		return err
	}

	return c.ws.With(func() error {
		tx, err := s.txlog.Redo(ctx, c.ws, p.GridID, p.TransactionID, c.UserID)
		if err != nil {
			undoOperations.WithLabelValues("redo", "failed").Inc()
			s.reply(c, protocol.TypeRedoResult, protocol.UndoResult{
				Success:       false,
				TransactionID: p.TransactionID,
				Error:         errorCode(err),
			})
			return nil
		}
		undoOperations.WithLabelValues("redo", "ok").Inc()

		s.reply(c, protocol.TypeRedoResult, protocol.UndoResult{
			Success:       true,
			TransactionID: p.TransactionID,
		})
		s.broadcast(c, p.GridID, protocol.TypeTransactionRedone, protocol.TransactionEvent{
			TransactionID: p.TransactionID,
			GridID:        p.GridID,
			Operations:    tx.Operations,
		})
		return nil
	})
}

func (s *Service) handleGetTransactions(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.GetTransactions
	if err := env.Decode(&p); err != nil {
		return err
	}
	txs, err := s.txlog.List(ctx, p.GridID, p.IncludeUndone)
	if err != nil {
		return err
	}
	s.reply(c, protocol.TypeTransactions, protocol.Transactions{GridID: p.GridID, Transactions: txs})
	return nil
}

func (s *Service) handleGetDerivedValue(ctx context.Context, c *Conn, env protocol.Envelope) error {
	var p protocol.GetDerivedValue
	if err := env.Decode(&p); err != nil {
		return err
	}

	return c.ws.With(func() error {
		f, ok := c.ws.Fields[p.FieldID]
		if !ok {
			return errors.Join(domain.ErrNotFound, errors.New("field "+p.FieldID))
		}
		v, err := s.metrics.Evaluate(ctx, c.ws, f, p.Period)
		if err != nil {
			return err
		}
		s.reply(c, protocol.TypeDerivedValue, protocol.DerivedValue{
			FieldID: p.FieldID,
			Period:  p.Period,
			Value:   v,
		})
		return nil
	})
}
