// File: internal/services/ai/catalog.go
package ai

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	catalogCacheKey = "provider.models"

	// A refresh outlives the request that started it; this bounds it instead.
	catalogFetchTimeout = 30 * time.Second

	fallbackContextLength       = 8192
	fallbackMaxCompletionTokens = 4096
)

var errEmptyCatalog = errors.New("provider returned no models")

// Catalog is the time-boxed model list. Entries expire together after the TTL;
// there is no per-model invalidation.
type Catalog struct {
	lister       ModelLister
	store        *cache.Cache
	ttl          time.Duration
	defaultModel string
	fetchTimeout time.Duration
	group        singleflight.Group
	logger       Logger
}

// NewCatalog wires a catalog around an injected cache. A nil store gets a private one.
func NewCatalog(lister ModelLister, store *cache.Cache, ttl time.Duration, defaultModel string, logger Logger) *Catalog {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if store == nil {
		store = cache.New(ttl, 10*time.Minute)
	}
	return &Catalog{
		lister:       lister,
		store:        store,
		ttl:          ttl,
		defaultModel: defaultModel,
		fetchTimeout: catalogFetchTimeout,
		logger:       logger,
	}
}

func (c *Catalog) DefaultModel() string {
	return c.defaultModel
}

// Models never fails: an unreachable provider yields the single fallback entry.
func (c *Catalog) Models(ctx context.Context) []Model {
	if cached, ok := c.store.Get(catalogCacheKey); ok {
		return cloneModels(cached.([]Model))
	}

	models, err := c.Refresh(ctx)
	if err != nil {
		c.logger.Error("model catalog unavailable, using fallback", "error", err, "fallback_model", c.defaultModel)
		return []Model{c.fallback()}
	}
	return models
}

// Refresh fetches the list and replaces the cached copy. Concurrent callers share one fetch,
// which is detached from any single caller: a caller whose ctx ends stops waiting alone.
func (c *Catalog) Refresh(ctx context.Context) ([]Model, error) {
	ch := c.group.DoChan(catalogCacheKey, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		models, err := c.lister.ListModels(fetchCtx)
		if err != nil {
			return nil, err
		}
		if len(models) == 0 {
			return nil, errEmptyCatalog
		}
		sort.SliceStable(models, func(i, j int) bool {
			if models[i].Name == models[j].Name {
				return models[i].ID < models[j].ID
			}
			return models[i].Name < models[j].Name
		})
		c.store.Set(catalogCacheKey, models, c.ttl)
		c.logger.Debug("model catalog refreshed", "count", len(models))
		return models, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneModels(res.Val.([]Model)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Catalog) Contains(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	for _, m := range c.Models(ctx) {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Resolve returns the model id to call and whether the requested id was valid.
// Unknown or empty ids resolve to the default model.
func (c *Catalog) Resolve(ctx context.Context, requested string) (string, bool) {
	if c.Contains(ctx, requested) {
		return requested, true
	}
	if requested != "" {
		c.logger.Info("requested model not in catalog, using default", "requested", requested, "effective", c.defaultModel)
	}
	return c.defaultModel, false
}

func (c *Catalog) fallback() Model {
	return Model{
		ID:                  c.defaultModel,
		Name:                "Default model",
		ContextLength:       fallbackContextLength,
		MaxCompletionTokens: fallbackMaxCompletionTokens,
		Pricing:             Pricing{Prompt: "0", Completion: "0"},
	}
}

func cloneModels(models []Model) []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}
