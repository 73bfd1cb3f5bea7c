package sidebar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"convtree/internal/domain/repositories"
	"convtree/internal/events"
)

// EventBridge forwards a workspace bus to long-lived consumers
type EventBridge interface {
	Attach(ownerID string, bus *events.Bus) (detach func())
}

// RegistryConfig wires the workspace registry
type RegistryConfig struct {
	Provider     repositories.StorageProvider
	ViewStates   repositories.ViewStateStore // optional
	ViewStateTTL time.Duration
	Timeout      time.Duration
	Renderer     *TreeRenderer
	DeletePolicy FolderDeletePolicy
	Observer     ActionObserver
	Bridge       EventBridge // optional
	Logger       *slog.Logger
}

type registryEntry struct {
	workspace *Workspace
	detach    func()
}

// Registry lazily creates and loads one Workspace per owner
type Registry struct {
	mu         sync.Mutex
	workspaces map[string]*registryEntry
	loads      singleflight.Group
	cfg        RegistryConfig
	logger     *slog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		workspaces: make(map[string]*registryEntry),
		cfg:        cfg,
		logger:     cfg.Logger,
	}
}

// Get returns the owner's workspace, loading it and restoring its saved
// session on first use. Loads run outside the registry lock; concurrent
// first requests for one owner share a single load.
func (r *Registry) Get(ctx context.Context, ownerID string) (*Workspace, error) {
	if ws := r.lookup(ownerID); ws != nil {
		return ws, nil
	}

	v, err, _ := r.loads.Do(ownerID, func() (any, error) {
		if ws := r.lookup(ownerID); ws != nil {
			return ws, nil
		}
		ws, err := r.open(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		entry := &registryEntry{workspace: ws, detach: func() {}}
		if r.cfg.Bridge != nil {
			entry.detach = r.cfg.Bridge.Attach(ownerID, ws.Bus())
		}

		r.mu.Lock()
		r.workspaces[ownerID] = entry
		r.mu.Unlock()

		r.logger.Debug("workspace opened", "owner_id", ownerID)
		return ws, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Workspace), nil
}

func (r *Registry) lookup(ownerID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.workspaces[ownerID]; ok {
		return e.workspace
	}
	return nil
}

// open builds and loads a workspace without touching the registry map
func (r *Registry) open(ctx context.Context, ownerID string) (*Workspace, error) {
	ws := NewWorkspace(WorkspaceConfig{
		OwnerID:      ownerID,
		Storage:      r.cfg.Provider.ForOwner(ownerID),
		Timeout:      r.cfg.Timeout,
		Renderer:     r.cfg.Renderer,
		DeletePolicy: r.cfg.DeletePolicy,
		Observer:     r.cfg.Observer,
		Logger:       r.logger,
	})
	if err := ws.Load(ctx); err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}

	if r.cfg.ViewStates != nil {
		snap, err := r.cfg.ViewStates.Load(ctx, ownerID)
		if err != nil {
			r.logger.Warn("failed to restore session", "owner_id", ownerID, "error", err)
		} else {
			ws.Restore(snap)
		}
	}
	return ws, nil
}

// SaveSession persists the workspace's view state. Without a view state
// store it does nothing.
func (r *Registry) SaveSession(ctx context.Context, ws *Workspace) error {
	if r.cfg.ViewStates == nil {
		return nil
	}
	if err := r.cfg.ViewStates.Save(ctx, ws.OwnerID(), ws.Snapshot(), r.cfg.ViewStateTTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Evict drops the owner's workspace; the next Get reloads it from storage
func (r *Registry) Evict(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.workspaces[ownerID]; ok {
		e.detach()
		delete(r.workspaces, ownerID)
	}
}

// Len returns the number of open workspaces
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}
