package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"mitra-ai/internal/config"
	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrModelNotFound is returned by admin mutations on an unknown model id
var ErrModelNotFound = errors.New("model not found")

// ErrModelExists is returned when creating a model id that is already registered
var ErrModelExists = errors.New("model already exists")

// reloadTimeout bounds a shared snapshot reload. The reload is detached
// from the caller that triggered it, so it needs its own deadline.
const reloadTimeout = 5 * time.Second

// Registry serves model descriptors and per-message costs.
// Reads come from a snapshot that is reloaded once it is older than ttl,
// so admin edits become visible within ttl.
type Registry struct {
	store        db.ModelStore
	fallbackCost int
	ttl          time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	snapshot map[string]db.ModelDescriptor
	loadedAt time.Time
	// generation is bumped by every invalidate; a reload publishes only
	// if it is unchanged since the reload started.
	generation uint64
	reloads    singleflight.Group

	fallbackCharges atomic.Int64
}

// NewRegistry creates a Registry over store
func NewRegistry(store db.ModelStore, fallbackCost int, ttl time.Duration) *Registry {
	return &Registry{
		store:        store,
		fallbackCost: fallbackCost,
		ttl:          ttl,
		now:          time.Now,
	}
}

// FallbackCost is charged for unknown or unresolvable model ids
func (r *Registry) FallbackCost() int {
	return r.fallbackCost
}

// FallbackCharges counts the costs resolved to the fallback because the
// registry could not be read. Each one may have under-billed a premium model.
func (r *Registry) FallbackCharges() int64 {
	return r.fallbackCharges.Load()
}

// ListActive returns the active models ordered by display name
func (r *Registry) ListActive(ctx context.Context) ([]db.ModelDescriptor, error) {
	models, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]db.ModelDescriptor, 0, len(models))
	for _, m := range models {
		if m.IsActive {
			active = append(active, m)
		}
	}
	sortByName(active)
	return active, nil
}

// ListAll returns every model, active or not, ordered by display name
func (r *Registry) ListAll(ctx context.Context) ([]db.ModelDescriptor, error) {
	models, err := r.store.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	sortByName(models)
	return models, nil
}

// ResolveCost returns the per-message cost of modelID, or the fallback
// cost when the id is empty, unknown or the registry cannot be read.
// Inactive models keep their configured price.
func (r *Registry) ResolveCost(ctx context.Context, modelID string) int {
	if modelID == "" {
		return r.fallbackCost
	}
	models, err := r.load(ctx)
	if err != nil && ctx.Err() != nil {
		// The caller was cancelled, not the registry.
		return r.fallbackCost
	}
	if err != nil {
		charges := r.fallbackCharges.Add(1)
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"model_id":         modelID,
			"fallback_cost":    r.fallbackCost,
			"fallback_charges": charges,
		}).Warn("Registry unavailable, using fallback cost")
		return r.fallbackCost
	}
	m, ok := models[modelID]
	if !ok {
		logger.Log.WithField("model_id", modelID).Debug("Unknown model, using fallback cost")
		return r.fallbackCost
	}
	return m.CostPerMessage
}

// Create registers a new model
func (r *Registry) Create(ctx context.Context, model db.ModelDescriptor) (*db.ModelDescriptor, error) {
	created, err := r.store.CreateModel(ctx, model)
	if err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, ErrModelExists
		}
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	r.invalidate()
	return created, nil
}

// Update applies a partial update to an existing model
func (r *Registry) Update(ctx context.Context, modelID string, patch db.ModelPatch) (*db.ModelDescriptor, error) {
	updated, err := r.store.UpdateModel(ctx, modelID, patch)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to update model: %w", err)
	}
	r.invalidate()
	return updated, nil
}

// Deactivate hides a model from the selectable list without deleting it
func (r *Registry) Deactivate(ctx context.Context, modelID string) (*db.ModelDescriptor, error) {
	inactive := false
	return r.Update(ctx, modelID, db.ModelPatch{IsActive: &inactive})
}

// Seed inserts the configured models that are not registered yet.
// Existing rows are left alone so admin edits survive restarts.
func (r *Registry) Seed(ctx context.Context, seeds []config.Model) error {
	inserted := 0
	for _, s := range seeds {
		_, err := r.store.CreateModel(ctx, db.ModelDescriptor{
			ModelID:        s.ID,
			DisplayName:    s.Name,
			Provider:       s.Provider,
			CostPerMessage: s.CostPerMessage,
			IsActive:       s.Active(),
			IsFree:         s.IsFree,
		})
		if errors.Is(err, db.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed model %s: %w", s.ID, err)
		}
		inserted++
	}
	r.invalidate()

	logger.Log.WithFields(logrus.Fields{"configured": len(seeds), "inserted": inserted}).Info("Model registry seeded")
	return nil
}

func (r *Registry) load(ctx context.Context) (map[string]db.ModelDescriptor, error) {
	r.mu.RLock()
	if r.snapshot != nil && r.now().Sub(r.loadedAt) < r.ttl {
		snap := r.snapshot
		r.mu.RUnlock()
		return snap, nil
	}
	gen := r.generation
	r.mu.RUnlock()

	// Concurrent misses of the same generation share one store read. The read
	// runs detached from ctx so one cancelled caller cannot fail the others.
	ch := r.reloads.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		reloadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reloadTimeout)
		defer cancel()

		models, err := r.store.ListModels(reloadCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to load models: %w", err)
		}
		snap := make(map[string]db.ModelDescriptor, len(models))
		for _, m := range models {
			snap[m.ModelID] = m
		}

		r.mu.Lock()
		if r.generation == gen {
			r.snapshot = snap
			r.loadedAt = r.now()
		}
		r.mu.Unlock()
		return snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]db.ModelDescriptor), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) invalidate() {
	r.mu.Lock()
	r.snapshot = nil
	r.generation++
	r.mu.Unlock()
}

func sortByName(models []db.ModelDescriptor) {
	sort.Slice(models, func(i, j int) bool {
		if models[i].DisplayName != models[j].DisplayName {
			return models[i].DisplayName < models[j].DisplayName
		}
		return models[i].ModelID < models[j].ModelID
	})
}
