package threat

import (
	"strings"
	"sync"
)

// NameKey is the case-insensitive identity of an actor name.
func NameKey(name string) string {
	return strings.ToLower(collapseSpace(name))
}

// ActorCache maps actor name keys and alias keys to actor IDs. It is owned
// by a single Service and seeded from the store at the start of each run.
type ActorCache struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewActorCache returns an empty cache.
func NewActorCache() *ActorCache {
	return &ActorCache{ids: make(map[string]string)}
}

// Seed replaces the cache contents with the given actors.
func (c *ActorCache) Seed(actors []*Actor) {
	ids := make(map[string]string, len(actors))
	for _, a := range actors {
		indexActor(ids, a)
	}
	c.mu.Lock()
	c.ids = ids
	c.mu.Unlock()
}

// Put indexes a single actor.
func (c *ActorCache) Put(a *Actor) {
	c.mu.Lock()
	indexActor(c.ids, a)
	c.mu.Unlock()
}

// Lookup returns the actor ID for a name or alias.
func (c *ActorCache) Lookup(name string) (string, bool) {
	k := NameKey(name)
	if k == "" {
		return "", false
	}
	c.mu.RLock()
	id, ok := c.ids[k]
	c.mu.RUnlock()
	return id, ok
}

// Len returns the number of indexed keys.
func (c *ActorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

func indexActor(ids map[string]string, a *Actor) {
	if a == nil || a.ID == "" {
		return
	}
	if k := NameKey(a.Name); k != "" {
		ids[k] = a.ID
	}
	for _, alias := range a.Aliases {
		k := NameKey(alias)
		if k == "" {
			continue
		}
		// canonical names win over another actor's alias
		if _, taken := ids[k]; taken {
			continue
		}
		ids[k] = a.ID
	}
}
