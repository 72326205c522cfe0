package registry

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vango-dev/headsync/pkg/headtag"
)

// ID identifies a contribution for its whole lifetime.
type ID string

// Tags maps a tag type to the ordered declarations a component makes for it.
type Tags map[headtag.Type][]headtag.Declaration

// Clone copies the map and its slices. Declarations are immutable and shared.
func (t Tags) Clone() Tags {
	if t == nil {
		return Tags{}
	}
	out := make(Tags, len(t))
	for typ, decls := range t {
		out[typ] = append([]headtag.Declaration(nil), decls...)
	}
	return out
}

// Contribution is one component's current declaration snapshot.
type Contribution struct {
	ID       ID
	Sequence uint64
	Tags     Tags
}

// Registry is the ordered store of live contributions.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	nextSeq uint64
	entries map[ID]*Contribution
	newID   func() ID
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[ID]*Contribution),
		newID:   func() ID { return ID(uuid.NewString()) },
	}
}

// Register stores tags as a new contribution and returns its ID.
func (r *Registry) Register(tags Tags) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	id := r.newID()
	r.entries[id] = &Contribution{
		ID:       id,
		Sequence: r.nextSeq,
		Tags:     tags.Clone(),
	}
	return id
}

// Update replaces the tags of an existing contribution, keeping its
// sequence. It reports false and does nothing if id is unknown.
func (r *Registry) Update(id ID, tags Tags) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[id]
	if !ok {
		return false
	}
	c.Tags = tags.Clone()
	return true
}

// Unregister removes a contribution. It reports false if id is unknown.
func (r *Registry) Unregister(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Get returns a copy of the contribution with the given id.
func (r *Registry) Get(id ID) (Contribution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[id]
	if !ok {
		return Contribution{}, false
	}
	return Contribution{ID: c.ID, Sequence: c.Sequence, Tags: c.Tags.Clone()}, true
}

// Snapshot returns copies of all live contributions in ascending sequence
// order, which is precedence order.
func (r *Registry) Snapshot() []Contribution {
	r.mu.Lock()
	out := make([]Contribution, 0, len(r.entries))
	for _, c := range r.entries {
		out = append(out, Contribution{ID: c.ID, Sequence: c.Sequence, Tags: c.Tags.Clone()})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// Len returns the number of live contributions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
