package tag

import (
	"slices"
	"sync"
)

// Taxonomy supplies tag existence, direct-parent lookup and ordering.
//
// Tables only consume ancestor walking and comparison; where tags come from
// (a config file, a game's tag registry) is the provider's business.
type Taxonomy interface {
	// Exists reports whether t is a known, valid tag.
	Exists(t Tag) bool
	// Parent returns the direct parent of t, or None.
	Parent(t Tag) Tag
	// Compare orders two tags.
	Compare(a, b Tag) int
}

// Dotted is the structural taxonomy: every well-formed tag exists.
type Dotted struct{}

// Exists implements Taxonomy.
func (Dotted) Exists(t Tag) bool { return t.Valid() }

// Parent implements Taxonomy.
func (Dotted) Parent(t Tag) Tag { return t.Parent() }

// Compare implements Taxonomy.
func (Dotted) Compare(a, b Tag) int { return Compare(a, b) }

// Registry is an explicit taxonomy. Registering a tag registers its whole
// ancestor chain, so the registry is always hierarchy-complete.
// Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	tags map[Tag]struct{}
}

// NewRegistry creates a registry holding the given tags and their ancestors.
func NewRegistry(tags ...Tag) *Registry {
	r := &Registry{tags: make(map[Tag]struct{})}
	for _, t := range tags {
		r.Register(t)
	}
	return r
}

// Register adds t and all its ancestors. It returns false for malformed tags.
func (r *Registry) Register(t Tag) bool {
	if !t.Valid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for cur := t; cur != None; cur = cur.Parent() {
		r.tags[cur] = struct{}{}
	}
	return true
}

// Unregister removes t and every tag below it.
func (r *Registry) Unregister(t Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.tags {
		if k.MatchesOrDescends(t) {
			delete(r.tags, k)
		}
	}
}

// Exists implements Taxonomy.
func (r *Registry) Exists(t Tag) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tags[t]
	return ok
}

// Parent implements Taxonomy.
func (r *Registry) Parent(t Tag) Tag { return t.Parent() }

// Compare implements Taxonomy.
func (r *Registry) Compare(a, b Tag) int { return Compare(a, b) }

// Tags returns every registered tag in taxonomy order.
func (r *Registry) Tags() []Tag {
	r.mu.RLock()
	out := make([]Tag, 0, len(r.tags))
	for t := range r.tags {
		out = append(out, t)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, Compare)
	return out
}
