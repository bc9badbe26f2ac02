package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/repository"
)

// Manager owns one Workspace per user with live connections. Workspaces
// are populated lazily from durable storage on first Acquire and dropped
// when the last connection Releases them, so a later reconnect rebuilds
// the cache from the store — the reconciliation path for any
// apply-before-persist divergence.
type Manager struct {
	repos  *repository.Repos
	logger *slog.Logger

	mu         sync.Mutex
	workspaces map[string]*managed
}

type managed struct {
	ws   *Workspace
	refs int
}

// NewManager creates a cache manager over the given repositories.
func NewManager(repos *repository.Repos, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repos:      repos,
		logger:     logger,
		workspaces: make(map[string]*managed),
	}
}

// Acquire returns the user's shared workspace, loading it from storage
// if this is the user's first live connection. Each Acquire must be
// paired with a Release.
func (m *Manager) Acquire(ctx context.Context, userID string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.workspaces[userID]; ok {
		entry.refs++
		return entry.ws, nil
	}

	ws, err := m.load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("populating workspace for user %s: %w", userID, err)
	}
	m.workspaces[userID] = &managed{ws: ws, refs: 1}
	m.logger.Info("workspace populated", "user_id", userID,
		"grids", len(ws.Grids), "occurrences", len(ws.Occurrences))
	return ws, nil
}

// Release drops one reference; the workspace is evicted when the last
// connection for the user goes away.
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.workspaces[userID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.workspaces, userID)
		m.logger.Info("workspace evicted", "user_id", userID)
	}
}

// load reads the user's full board state from durable storage.
func (m *Manager) load(ctx context.Context, userID string) (*Workspace, error) {
	ws := NewWorkspace(userID)

	grids, err := m.repos.Grids.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range grids {
		ws.Grids[g.ID] = g
		ws.Lists[g.Ref()] = append([]string(nil), g.OccurrenceOrder...)
	}

	for _, g := range grids {
		panels, err := m.repos.Panels.ListByGrid(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range panels {
			ws.Panels[p.ID] = p
			ws.Lists[p.Ref()] = append([]string(nil), p.OccurrenceOrder...)
		}

		containers, err := m.repos.Containers.ListByGrid(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range containers {
			ws.Containers[c.ID] = c
			ws.Lists[c.Ref()] = append([]string(nil), c.OccurrenceOrder...)
		}

		instances, err := m.repos.Instances.ListByGrid(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, in := range instances {
			ws.Instances[in.ID] = in
			ws.Lists[in.Ref()] = append([]string(nil), in.OccurrenceOrder...)
		}

		fields, err := m.repos.Fields.ListByGrid(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			ws.Fields[f.ID] = f
		}
	}

	// Occurrences hang off whichever parents we just loaded.
	var parents []domain.ParentRef
	for _, g := range ws.Grids {
		parents = append(parents, g.Ref())
	}
	for _, p := range ws.Panels {
		parents = append(parents, p.Ref())
	}
	for _, c := range ws.Containers {
		parents = append(parents, c.Ref())
	}
	for _, in := range ws.Instances {
		parents = append(parents, in.Ref())
	}
	for _, ref := range parents {
		occs, err := m.repos.Occurrences.ListByParent(ctx, ref)
		if err != nil {
			return nil, err
		}
		for _, o := range occs {
			ws.Occurrences[o.ID] = o
		}
	}

	return ws, nil
}
