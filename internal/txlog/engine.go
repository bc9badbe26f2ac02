// Package txlog records reversible operations in an append-only
// transaction log and walks it to invert or reapply them.
package txlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alexanderramin/gridboard/internal/cache"
	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/repository"
)

// Engine applies, undoes and redoes transactions against a workspace.
// All methods expect the workspace lock to be held by the caller; the
// lock is what serializes two concurrent undo requests against the same
// top-of-stack transaction — the loser re-reads the log and fails with
// ErrOutOfOrder.
//
// Each logical transaction's durable writes go through one unit of work,
// so a failure partway leaves nothing committed.
type Engine struct {
	uow    db.UnitOfWork
	repos  *repository.Repos
	logger *slog.Logger
}

// NewEngine creates an Engine over the given unit of work and
// repositories.
func NewEngine(uow db.UnitOfWork, repos *repository.Repos, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{uow: uow, repos: repos, logger: logger}
}

// UndoState summarizes what undo/redo is currently legal for a grid.
type UndoState struct {
	CanUndo        bool   `json:"canUndo"`
	CanRedo        bool   `json:"canRedo"`
	LastUndoableID string `json:"lastUndoableId,omitempty"`
	LastRedoableID string `json:"lastRedoableId,omitempty"`
}

// Apply assigns the next sequence for the grid, executes each
// operation's forward semantics in order, and persists the transaction
// as applied. A failure partway through rolls the workspace and the
// database transaction back to the pre-attempt state — never silently
// partial.
func (e *Engine) Apply(ctx context.Context, ws *cache.Workspace, gridID, userID string,
	ops domain.Operations) (*domain.Transaction, error) {

	var tx *domain.Transaction
	memento := ws.Snapshot()
	err := e.uow.WithinTx(ctx, func(ctx context.Context, conn db.DBTX) error {
		a := newApplier(conn)
		seq, err := a.repos.Seqs.NextSeq(ctx, gridID)
		if err != nil {
			return fmt.Errorf("allocating sequence: %w", err)
		}

		tx = &domain.Transaction{
			ID:         uuid.New().String(),
			GridID:     gridID,
			UserID:     userID,
			Seq:        seq,
			State:      domain.TxApplied,
			Operations: ops,
			CreatedAt:  time.Now().UTC(),
		}

		for _, op := range ops {
			if err := a.applyForward(ctx, ws, op); err != nil {
				return fmt.Errorf("applying %s operation: %w", op.Kind(), err)
			}
		}

		if err := a.repos.Txs.Upsert(ctx, tx); err != nil {
			return fmt.Errorf("recording transaction: %w", errors.Join(domain.ErrStorage, err))
		}
		return nil
	})
	if err != nil {
		ws.Restore(memento)
		return nil, err
	}

	e.logger.Debug("transaction applied", "tx_id", tx.ID, "grid_id", gridID, "seq", tx.Seq, "ops", len(ops))
	return tx, nil
}

// Undo reverses the transaction. Legal only when its state is applied or
// redone and it is the most recent such transaction for its grid —
// strict LIFO, no out-of-order undo. Returns the applied inverse
// operations; consumers use them to drive position-change animation.
func (e *Engine) Undo(ctx context.Context, ws *cache.Workspace, gridID, txID, userID string) (*domain.Transaction, domain.Operations, error) {
	tx, err := e.repos.Txs.GetByID(ctx, txID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading transaction %s: %w", txID, err)
	}
	if tx.GridID != gridID {
		return nil, nil, fmt.Errorf("transaction %s: %w", txID, domain.ErrNotFound)
	}
	if !tx.Undoable() {
		return nil, nil, fmt.Errorf("undo of %s transaction %s: %w", tx.State, txID, domain.ErrOutOfOrder)
	}
	top, err := e.repos.Txs.LatestUndoable(ctx, gridID)
	if err != nil {
		return nil, nil, fmt.Errorf("locating undo stack top: %w", err)
	}
	if top.ID != tx.ID {
		return nil, nil, fmt.Errorf("undo of seq %d while seq %d is on top: %w", tx.Seq, top.Seq, domain.ErrOutOfOrder)
	}

	inverse := make(domain.Operations, 0, len(tx.Operations))
	for i := len(tx.Operations) - 1; i >= 0; i-- {
		inverse = append(inverse, invert(tx.Operations[i]))
	}

	memento := ws.Snapshot()
	err = e.uow.WithinTx(ctx, func(ctx context.Context, conn db.DBTX) error {
		a := newApplier(conn)
		for _, op := range inverse {
			if err := a.applyForward(ctx, ws, op); err != nil {
				return fmt.Errorf("reversing %s operation: %w", op.Kind(), err)
			}
		}

		now := time.Now().UTC()
		tx.State = domain.TxUndone
		tx.UndoneAt = &now
		tx.UndoneBy = userID
		if err := a.repos.Txs.Upsert(ctx, tx); err != nil {
			return fmt.Errorf("recording undo: %w", errors.Join(domain.ErrStorage, err))
		}
		return nil
	})
	if err != nil {
		ws.Restore(memento)
		return nil, nil, err
	}

	e.logger.Debug("transaction undone", "tx_id", tx.ID, "grid_id", gridID, "seq", tx.Seq)
	return tx, inverse, nil
}

// Redo re-applies an undone transaction. Legal only when it is the most
// recently undone transaction for its grid. A redone transaction behaves
// like an applied one for the next undo.
func (e *Engine) Redo(ctx context.Context, ws *cache.Workspace, gridID, txID, userID string) (*domain.Transaction, error) {
	tx, err := e.repos.Txs.GetByID(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("loading transaction %s: %w", txID, err)
	}
	if tx.GridID != gridID {
		return nil, fmt.Errorf("transaction %s: %w", txID, domain.ErrNotFound)
	}
	if tx.State != domain.TxUndone {
		return nil, fmt.Errorf("redo of %s transaction %s: %w", tx.State, txID, domain.ErrOutOfOrder)
	}
	top, err := e.repos.Txs.LatestUndone(ctx, gridID)
	if err != nil {
		return nil, fmt.Errorf("locating redo stack top: %w", err)
	}
	if top.ID != tx.ID {
		return nil, fmt.Errorf("redo of seq %d while seq %d is on top: %w", tx.Seq, top.Seq, domain.ErrOutOfOrder)
	}

	memento := ws.Snapshot()
	err = e.uow.WithinTx(ctx, func(ctx context.Context, conn db.DBTX) error {
		a := newApplier(conn)
		for _, op := range tx.Operations {
			if err := a.applyForward(ctx, ws, op); err != nil {
				return fmt.Errorf("reapplying %s operation: %w", op.Kind(), err)
			}
		}

		tx.State = domain.TxRedone
		tx.UndoneAt = nil
		tx.UndoneBy = ""
		if err := a.repos.Txs.Upsert(ctx, tx); err != nil {
			return fmt.Errorf("recording redo: %w", errors.Join(domain.ErrStorage, err))
		}
		return nil
	})
	if err != nil {
		ws.Restore(memento)
		return nil, err
	}

	e.logger.Debug("transaction redone", "tx_id", tx.ID, "grid_id", gridID, "seq", tx.Seq)
	return tx, nil
}

// State reports what undo/redo is currently legal for the grid.
func (e *Engine) State(ctx context.Context, gridID string) (*UndoState, error) {
	st := &UndoState{}

	top, err := e.repos.Txs.LatestUndoable(ctx, gridID)
	switch {
	case err == nil:
		st.CanUndo = true
		st.LastUndoableID = top.ID
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("locating undo stack top: %w", err)
	}

	undone, err := e.repos.Txs.LatestUndone(ctx, gridID)
	switch {
	case err == nil:
		st.CanRedo = true
		st.LastRedoableID = undone.ID
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("locating redo stack top: %w", err)
	}

	return st, nil
}

// List returns the grid's transactions in sequence order.
func (e *Engine) List(ctx context.Context, gridID string, includeUndone bool) ([]*domain.Transaction, error) {
	return e.repos.Txs.ListByGrid(ctx, gridID, includeUndone)
}
