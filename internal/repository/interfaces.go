package repository

import (
	"context"

	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/domain"
)

type GridRepo interface {
	Upsert(ctx context.Context, g *domain.Grid) error
	GetByID(ctx context.Context, id string) (*domain.Grid, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Grid, error)
	ListAll(ctx context.Context) ([]*domain.Grid, error)
	Delete(ctx context.Context, id string) error
}

type PanelRepo interface {
	Upsert(ctx context.Context, p *domain.Panel) error
	GetByID(ctx context.Context, id string) (*domain.Panel, error)
	ListByGrid(ctx context.Context, gridID string) ([]*domain.Panel, error)
	Delete(ctx context.Context, id string) error
}

type ContainerRepo interface {
	Upsert(ctx context.Context, c *domain.Container) error
	GetByID(ctx context.Context, id string) (*domain.Container, error)
	ListByGrid(ctx context.Context, gridID string) ([]*domain.Container, error)
	Delete(ctx context.Context, id string) error
}

type InstanceRepo interface {
	Upsert(ctx context.Context, i *domain.Instance) error
	GetByID(ctx context.Context, id string) (*domain.Instance, error)
	ListByGrid(ctx context.Context, gridID string) ([]*domain.Instance, error)
	Delete(ctx context.Context, id string) error
}

type FieldRepo interface {
	Upsert(ctx context.Context, f *domain.Field) error
	GetByID(ctx context.Context, id string) (*domain.Field, error)
	ListByGrid(ctx context.Context, gridID string) ([]*domain.Field, error)
	Delete(ctx context.Context, id string) error
}

type OccurrenceRepo interface {
	Upsert(ctx context.Context, o *domain.Occurrence) error
	GetByID(ctx context.Context, id string) (*domain.Occurrence, error)
	ListByParent(ctx context.Context, ref domain.ParentRef) ([]*domain.Occurrence, error)
	ListByTarget(ctx context.Context, targetType domain.EntityKind, targetID string) ([]*domain.Occurrence, error)
	ListAll(ctx context.Context) ([]*domain.Occurrence, error)
	Delete(ctx context.Context, id string) error
	DeleteByTarget(ctx context.Context, targetType domain.EntityKind, targetID string) error
}

type TransactionRepo interface {
	Upsert(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListByGrid(ctx context.Context, gridID string, includeUndone bool) ([]*domain.Transaction, error)
	// LatestUndoable returns the applied or redone transaction with the
	// highest sequence for the grid, or ErrNotFound.
	LatestUndoable(ctx context.Context, gridID string) (*domain.Transaction, error)
	// LatestUndone returns the undone transaction with the lowest
	// sequence for the grid (the most recently undone one under strict
	// LIFO), or ErrNotFound.
	LatestUndone(ctx context.Context, gridID string) (*domain.Transaction, error)
}

type GridSequenceRepo interface {
	NextSeq(ctx context.Context, gridID string) (int, error)
}

// ParentListRepo persists a parent's ordered occurrence-id list onto
// whichever entity table owns it.
type ParentListRepo interface {
	SaveOrder(ctx context.Context, ref domain.ParentRef, ids []string) error
}

// Repos bundles every repository a handler needs, created once per
// database handle.
type Repos struct {
	Grids       GridRepo
	Panels      PanelRepo
	Containers  ContainerRepo
	Instances   InstanceRepo
	Fields      FieldRepo
	Occurrences OccurrenceRepo
	Txs         TransactionRepo
	Seqs        GridSequenceRepo
	ParentLists ParentListRepo
}

// NewRepos wires the sqlite implementation of every repository.
func NewRepos(conn db.DBTX) *Repos {
	return &Repos{
		Grids:       NewSQLiteGridRepo(conn),
		Panels:      NewSQLitePanelRepo(conn),
		Containers:  NewSQLiteContainerRepo(conn),
		Instances:   NewSQLiteInstanceRepo(conn),
		Fields:      NewSQLiteFieldRepo(conn),
		Occurrences: NewSQLiteOccurrenceRepo(conn),
		Txs:         NewSQLiteTransactionRepo(conn),
		Seqs:        NewSQLiteGridSequenceRepo(conn),
		ParentLists: NewSQLiteParentListRepo(conn),
	}
}
