package linker

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fingraph/fingraph/core/pipeline"
	"github.com/fingraph/fingraph/model"
)

// Merge records one applied merge decision: all Retired ids now redirect to
// Survivor. Consumers (the graph manager) must apply merges in the order they
// were produced.
type Merge struct {
	Survivor uuid.UUID
	Retired  []uuid.UUID
}

// Review is an ambiguous merge decision whose confidence was below the
// auto-merge threshold. It is surfaced instead of silently resolved, since
// collapsing two identities is irreversible.
type Review struct {
	Mention    model.MentionRef
	AttachedTo uuid.UUID
	Candidates []uuid.UUID
	Confidence float64
	Reason     string
}

// Linker resolves mentions across documents into canonical entities.
// It is the single writer of the registry: Link must be called from one
// goroutine at a time (the facade serializes per-document results), which
// makes merge decisions deterministic in input order while the registry's
// own locking keeps concurrent readers safe.
type Linker struct {
	registry *Registry
	config   *model.Config
	embedder pipeline.EmbedFunc
	log      *slog.Logger

	merges  []Merge
	reviews []Review
}

// NewLinker creates a linker over the given registry
func NewLinker(registry *Registry, config *model.Config, logger *slog.Logger) *Linker {
	return &Linker{
		registry: registry,
		config:   config,
		log:      logger,
	}
}

// SetEmbedder enables the semantic similarity tier. Entity name embeddings
// are computed lazily and cached in the registry.
func (l *Linker) SetEmbedder(embedder pipeline.EmbedFunc) {
	l.embedder = embedder
}

// Registry returns the canonical registry the linker writes to
func (l *Linker) Registry() *Registry {
	return l.registry
}

// Link resolves a mention to a canonical entity id, creating a new entity,
// attaching to an existing one, or merging previously distinct entities when
// the mention connects them with sufficient confidence. Linking the same
// mention twice is a no-op returning the same canonical id.
func (l *Linker) Link(mention *model.Mention) (uuid.UUID, error) {
	candidates, nearMiss := l.findCandidates(mention)

	if len(candidates) == 0 {
		entity := l.newEntity(mention)
		l.registry.Add(entity)
		if nearMiss != nil {
			// A similar entity exists but did not clear the link threshold:
			// keep them separate and surface the pair for review.
			review := Review{
				Mention:    mentionRef(mention),
				AttachedTo: entity.ID,
				Candidates: []uuid.UUID{nearMiss.id},
				Confidence: nearMiss.similarity,
				Reason:     "similarity below link threshold",
			}
			l.reviews = append(l.reviews, review)
			if l.log != nil {
				l.log.Warn("Possible duplicate entity needs review",
					slog.String("mention", mention.Text),
					slog.String("candidate", nearMiss.id.String()),
					slog.Float64("similarity", nearMiss.similarity))
			}
		}
		return entity.ID, nil
	}

	if len(candidates) == 1 {
		l.registry.attach(candidates[0].id, mention)
		return l.registry.Resolve(candidates[0].id), nil
	}

	// Multiple distinct canonical entities match the same mention: the
	// mention is merge evidence. Merge confidence is the weakest candidate
	// similarity; below the auto-merge threshold the decision is surfaced
	// for review instead of applied.
	confidence := candidates[len(candidates)-1].similarity
	best := candidates[0]

	if confidence < l.config.AutoMergeThreshold {
		l.registry.attach(best.id, mention)
		attached := l.registry.Resolve(best.id)
		review := Review{
			Mention:    mentionRef(mention),
			AttachedTo: attached,
			Candidates: candidateIDs(candidates),
			Confidence: confidence,
			Reason:     "merge confidence below auto-merge threshold",
		}
		l.reviews = append(l.reviews, review)
		if l.log != nil {
			l.log.Warn("Ambiguous entity merge needs review",
				slog.String("mention", mention.Text),
				slog.Int("candidates", len(candidates)),
				slog.Float64("confidence", confidence))
		}
		return attached, nil
	}

	survivor, losers := l.pickSurvivor(candidates)
	if len(losers) > 0 {
		if !l.registry.merge(survivor, losers) {
			// A candidate was retired between lookup and merge; re-resolving
			// yields the already-merged state, keeping Link idempotent.
			l.registry.attach(survivor, mention)
			return l.registry.Resolve(survivor), nil
		}
		l.merges = append(l.merges, Merge{Survivor: survivor, Retired: losers})
		if l.log != nil {
			l.log.Info("Merged entities",
				slog.String("survivor", survivor.String()),
				slog.Int("retired", len(losers)),
				slog.Float64("confidence", confidence))
		}
	}

	l.registry.attach(survivor, mention)
	return survivor, nil
}

// Merges drains the applied merges in the order they were produced
func (l *Linker) Merges() []Merge {
	merges := l.merges
	l.merges = nil
	return merges
}

// PendingReviews returns the ambiguous merge decisions collected so far
func (l *Linker) PendingReviews() []Review {
	return l.reviews
}

type candidate struct {
	id         uuid.UUID
	similarity float64
}

// findCandidates returns the distinct live entities matching the mention,
// ordered by similarity descending. Tier 1 is exact normalized alias match,
// tier 2 lexical similarity above the link threshold, tier 3 embedding
// similarity above the stricter semantic threshold. The second return value
// is the best candidate that stayed below the link threshold but above the
// auto-merge threshold, surfaced as a possible duplicate.
func (l *Linker) findCandidates(mention *model.Mention) ([]candidate, *candidate) {
	matched := map[uuid.UUID]float64{}
	var nearMiss *candidate

	for _, id := range l.registry.AliasCandidates(mention.Text) {
		if l.typeCompatible(id, mention.Type) {
			matched[id] = 1
		}
	}

	for _, entity := range l.registry.Live() {
		if _, ok := matched[entity.ID]; ok {
			continue
		}
		if !typesCompatible(entity.Type, mention.Type) {
			continue
		}
		similarity := bestAliasSimilarity(entity, mention.Text)
		if similarity >= l.config.LinkThreshold {
			matched[entity.ID] = similarity
			continue
		}
		if l.embedder != nil {
			if semantic, ok := l.semanticSimilarity(entity, mention.Text); ok &&
				semantic >= l.config.SemanticLinkThreshold {
				matched[entity.ID] = semantic
				continue
			}
		}
		if similarity >= l.config.AutoMergeThreshold &&
			(nearMiss == nil || similarity > nearMiss.similarity) {
			nearMiss = &candidate{id: entity.ID, similarity: similarity}
		}
	}

	candidates := make([]candidate, 0, len(matched))
	for id, similarity := range matched {
		candidates = append(candidates, candidate{id: id, similarity: similarity})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return l.registry.Seq(candidates[i].id) < l.registry.Seq(candidates[j].id)
	})
	if len(candidates) > 0 {
		nearMiss = nil
	}
	return candidates, nearMiss
}

func (l *Linker) typeCompatible(id uuid.UUID, mentionType model.MentionType) bool {
	entity, ok := l.registry.Get(id)
	return ok && typesCompatible(entity.Type, mentionType)
}

// typesCompatible allows linking when either side is untyped ("other")
func typesCompatible(a model.MentionType, b model.MentionType) bool {
	return a == b || a == model.MentionOther || b == model.MentionOther
}

func bestAliasSimilarity(entity *model.Entity, text string) float64 {
	best := StringSimilarity(entity.Name, text)
	for _, alias := range entity.Aliases {
		if s := StringSimilarity(alias, text); s > best {
			best = s
		}
	}
	return best
}

// semanticSimilarity compares the mention text embedding with the entity's
// cached name embedding, computing and caching embeddings on first use.
func (l *Linker) semanticSimilarity(entity *model.Entity, text string) (float64, bool) {
	entityEmbedding, ok := l.registry.Embedding(entity.ID)
	if !ok {
		computed, err := l.embedder(entity.Name)
		if err != nil {
			return 0, false
		}
		l.registry.SetEmbedding(entity.ID, computed)
		entityEmbedding = computed
	}

	textEmbedding, err := l.embedder(text)
	if err != nil {
		return 0, false
	}
	return Cosine(entityEmbedding, textEmbedding), true
}

// pickSurvivor selects the earliest-created candidate as the merge survivor,
// breaking ties by higher confidence then lexicographic id. The choice
// depends only on entity state, never on discovery order, which makes merge
// outcomes confluent.
func (l *Linker) pickSurvivor(candidates []candidate) (uuid.UUID, []uuid.UUID) {
	ids := candidateIDs(candidates)
	sort.Slice(ids, func(i, j int) bool {
		seqI, seqJ := l.registry.Seq(ids[i]), l.registry.Seq(ids[j])
		if seqI != seqJ {
			return seqI < seqJ
		}
		entityI, _ := l.registry.Get(ids[i])
		entityJ, _ := l.registry.Get(ids[j])
		if entityI != nil && entityJ != nil && entityI.Confidence != entityJ.Confidence {
			return entityI.Confidence > entityJ.Confidence
		}
		return ids[i].String() < ids[j].String()
	})
	return ids[0], ids[1:]
}

func candidateIDs(candidates []candidate) []uuid.UUID {
	ids := make([]uuid.UUID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids
}

func (l *Linker) newEntity(mention *model.Mention) *model.Entity {
	entity := &model.Entity{
		ID:         uuid.New(),
		Name:       mention.Text,
		Type:       mention.Type,
		Aliases:    []string{},
		Confidence: mention.Confidence,
		CreatedAt:  time.Now().UTC(),
	}
	entity.AddMention(mentionRef(mention))
	return entity
}

func mentionRef(mention *model.Mention) model.MentionRef {
	return model.MentionRef{
		DocumentID: mention.DocumentID,
		Start:      mention.Start,
		End:        mention.End,
		Text:       mention.Text,
	}
}
