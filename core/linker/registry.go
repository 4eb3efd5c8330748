package linker

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fingraph/fingraph/model"
)

// Registry is the canonical entity registry, the one piece of cross-document
// shared mutable state. All merge-affecting writes go through a single
// writer; the internal lock additionally makes reads safe from other
// goroutines. The registry never deletes entities: merged entities are
// retired with a redirect to the survivor.
type Registry struct {
	mu         sync.RWMutex
	entities   map[uuid.UUID]*model.Entity
	aliasIndex map[string][]uuid.UUID // normalized alias -> live candidate ids
	redirects  map[uuid.UUID]uuid.UUID
	embeddings map[uuid.UUID][]float32
	seq        map[uuid.UUID]uint64 // creation order, used for deterministic survivor selection
	nextSeq    uint64
}

// NewRegistry creates an empty canonical registry
func NewRegistry() *Registry {
	return &Registry{
		entities:   map[uuid.UUID]*model.Entity{},
		aliasIndex: map[string][]uuid.UUID{},
		redirects:  map[uuid.UUID]uuid.UUID{},
		embeddings: map[uuid.UUID][]float32{},
		seq:        map[uuid.UUID]uint64{},
	}
}

// Add registers a new canonical entity and indexes its aliases
func (r *Registry) Add(entity *model.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	r.entities[entity.ID] = entity
	r.seq[entity.ID] = r.nextSeq
	r.nextSeq++

	r.indexAliasLocked(entity.ID, entity.Name)
	for _, alias := range entity.Aliases {
		r.indexAliasLocked(entity.ID, alias)
	}
}

// Resolve follows redirect chains to the live canonical id.
// Returns the input id unchanged if it is unknown or already live.
func (r *Registry) Resolve(id uuid.UUID) uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(id)
}

func (r *Registry) resolveLocked(id uuid.UUID) uuid.UUID {
	for {
		next, ok := r.redirects[id]
		if !ok {
			return id
		}
		id = next
	}
}

// Get returns the live entity for id, following redirects
func (r *Registry) Get(id uuid.UUID) (*model.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entity, ok := r.entities[r.resolveLocked(id)]
	return entity, ok
}

// Live returns all live entities ordered by id
func (r *Registry) Live() []*model.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	live := make([]*model.Entity, 0, len(r.entities))
	for _, entity := range r.entities {
		if !entity.Retired {
			live = append(live, entity)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].ID.String() < live[j].ID.String()
	})
	return live
}

// Len returns the number of live entities
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, entity := range r.entities {
		if !entity.Retired {
			n++
		}
	}
	return n
}

// AliasCandidates returns the live entity ids indexed under the normalized
// form of name, ordered by creation.
func (r *Registry) AliasCandidates(name string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[uuid.UUID]bool{}
	var candidates []uuid.UUID
	for _, id := range r.aliasIndex[NormalizeName(name)] {
		id = r.resolveLocked(id)
		entity, ok := r.entities[id]
		if !ok || entity.Retired || seen[id] {
			continue
		}
		seen[id] = true
		candidates = append(candidates, id)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return r.seq[candidates[i]] < r.seq[candidates[j]]
	})
	return candidates
}

// Embedding returns the stored name embedding for an entity, if any
func (r *Registry) Embedding(id uuid.UUID) ([]float32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	embedding, ok := r.embeddings[r.resolveLocked(id)]
	return embedding, ok
}

// SetEmbedding stores the name embedding for an entity
func (r *Registry) SetEmbedding(id uuid.UUID, embedding []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[r.resolveLocked(id)] = embedding
}

// Seq returns the creation sequence number of an entity. Earlier-created
// entities survive merges, so the mapping is independent of merge order.
func (r *Registry) Seq(id uuid.UUID) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq[id]
}

func (r *Registry) indexAliasLocked(id uuid.UUID, alias string) {
	normalized := NormalizeName(alias)
	if normalized == "" {
		return
	}
	for _, existing := range r.aliasIndex[normalized] {
		if existing == id {
			return
		}
	}
	r.aliasIndex[normalized] = append(r.aliasIndex[normalized], id)
}

// attach adds a mention to an existing entity under the write lock.
// Confidence aggregation uses noisy-or, which is commutative and only applied
// for mentions not seen before, keeping repeated ingestion idempotent.
func (r *Registry) attach(id uuid.UUID, mention *model.Mention) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entity, ok := r.entities[r.resolveLocked(id)]
	if !ok {
		return
	}

	ref := model.MentionRef{
		DocumentID: mention.DocumentID,
		Start:      mention.Start,
		End:        mention.End,
		Text:       mention.Text,
	}
	if !entity.AddMention(ref) {
		return
	}

	entity.AddAlias(mention.Text)
	entity.Confidence = noisyOr(entity.Confidence, mention.Confidence)
	entity.UpdatedAt = time.Now().UTC()
	r.indexAliasLocked(entity.ID, mention.Text)
}

// merge collapses the loser entities into the survivor under the write lock.
// The survivor keeps its id; losers are retired with a redirect. The
// operation is all-or-nothing: state is only mutated after all losers are
// validated live.
func (r *Registry) merge(survivor uuid.UUID, losers []uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	surviving, ok := r.entities[survivor]
	if !ok || surviving.Retired {
		return false
	}
	losing := make([]*model.Entity, 0, len(losers))
	for _, id := range losers {
		entity, ok := r.entities[id]
		if !ok || entity.Retired || id == survivor {
			return false
		}
		losing = append(losing, entity)
	}

	for _, loser := range losing {
		surviving.AddAlias(loser.Name)
		for _, alias := range loser.Aliases {
			surviving.AddAlias(alias)
		}
		for _, ref := range loser.Mentions {
			surviving.AddMention(ref)
		}
		surviving.Confidence = noisyOr(surviving.Confidence, loser.Confidence)

		loser.Retired = true
		redirect := survivor
		loser.RedirectTo = &redirect
		r.redirects[loser.ID] = survivor
		delete(r.embeddings, loser.ID)
	}

	surviving.UpdatedAt = time.Now().UTC()
	r.indexAliasLocked(survivor, surviving.Name)
	for _, alias := range surviving.Aliases {
		r.indexAliasLocked(survivor, alias)
	}
	return true
}

// noisyOr aggregates two confidence values commutatively
func noisyOr(a, b float64) float64 {
	result := 1 - (1-a)*(1-b)
	if result > 0.99 {
		result = 0.99
	}
	return result
}
