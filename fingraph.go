package fingraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fingraph/fingraph/core/graph"
	"github.com/fingraph/fingraph/core/linker"
	"github.com/fingraph/fingraph/core/pipeline"
	"github.com/fingraph/fingraph/database"
	"github.com/fingraph/fingraph/export"
	"github.com/fingraph/fingraph/helper"
	"github.com/fingraph/fingraph/model"
	loadSql "github.com/fingraph/fingraph/sql"
)

// Fingraph converts unstructured financial text into a structured knowledge
// graph. Extraction (mentions, relations, temporal expressions, events) runs
// per document and may be parallelized; linking and graph mutation are
// serialized, so graph state never depends on goroutine scheduling.
type Fingraph struct {
	Config   *model.Config
	Pipeline *pipeline.Pipeline
	Linker   *linker.Linker
	Graph    *graph.Manager

	// Database handlers, set when the graph is backed by Postgres
	DB        *helper.Database
	Documents *database.DocumentsDBHandler
	Entities  *database.EntitiesDBHandler
	Relations *database.RelationsDBHandler
	Events    *database.EventsDBHandler

	// mu serializes the link-and-upsert phase of ingestion
	mu  sync.Mutex
	log *slog.Logger
}

// IngestResult summarizes what one document contributed to the graph
type IngestResult struct {
	DocumentID uuid.UUID
	Mentions   int
	Entities   []uuid.UUID
	Relations  []*model.Relation
	Events     []*model.Event
	Merges     []linker.Merge
	Reviews    []linker.Review
	Err        error
}

// New creates an in-memory Fingraph instance with the default rule-based
// extraction pipeline. Pass nil to use the default configuration.
func New(config *model.Config) *Fingraph {
	if config == nil {
		config = model.DefaultConfig()
	}

	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	registry := linker.NewRegistry()

	return &Fingraph{
		Config:   config,
		Pipeline: pipeline.DefaultPipeline(config, nil),
		Linker:   linker.NewLinker(registry, config, logger),
		Graph:    graph.NewManager(),
		log:      logger,
	}
}

// NewWithDatabase creates a Fingraph instance backed by Postgres. Graph state
// is held in memory and mirrored to the database on every ingest; use
// LoadFromDatabase to rebuild the in-memory graph after a restart.
func NewWithDatabase(config *model.Config, dbConfig *helper.DatabaseConfiguration) (*Fingraph, error) {
	fg := New(config)

	db := helper.NewDatabase("fingraph", dbConfig, fg.log)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	relations, err := database.NewRelationsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create relations handler", err)
	}

	events, err := database.NewEventsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create events handler", err)
	}

	fg.DB = db
	fg.Documents = documents
	fg.Entities = entities
	fg.Relations = relations
	fg.Events = events

	return fg, nil
}

// Close closes the database connection
func (f *Fingraph) Close() error {
	if f.DB != nil && f.DB.Instance != nil {
		return f.DB.Instance.Close()
	}
	return nil
}

// SetPipeline replaces the extraction pipeline
func (f *Fingraph) SetPipeline(p *pipeline.Pipeline) {
	f.Pipeline = p
	if p.Embedder != nil {
		f.Linker.SetEmbedder(p.Embedder)
	}
}

// SetGazetteer installs a dictionary of known entity names matched with high
// confidence ahead of the rule patterns.
func (f *Fingraph) SetGazetteer(gazetteer map[string]model.MentionType) {
	f.Pipeline = pipeline.DefaultPipeline(f.Config, gazetteer)
}

// UseModelPipeline switches mention extraction to the transformer NER model
// and enables embedding-based semantic linking. The models are downloaded on
// first use.
func (f *Fingraph) UseModelPipeline() error {
	extractor, err := pipeline.ModelMentionExtractor(f.Config)
	if err != nil {
		return helper.NewError("create model mention extractor", err)
	}

	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	p := pipeline.DefaultPipeline(f.Config, nil)
	p.MentionExtractor = extractor
	p.SetEmbedder(embedder)
	f.SetPipeline(p)
	return nil
}

// IngestDocument runs the full pipeline on one document and applies the
// results to the graph. Re-ingesting a document with identical content is a
// no-op for relations and events and only reinforces entity confidences
// already recorded.
func (f *Fingraph) IngestDocument(ctx context.Context, doc *model.Document) (*IngestResult, error) {
	if doc.Content == "" {
		return nil, helper.NewError("ingest document", fmt.Errorf("document content is empty"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extraction, err := f.Pipeline.Process(doc)
	if err != nil {
		return nil, helper.NewError("extract", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applyLocked(ctx, doc, extraction)
}

// IngestDocuments ingests documents with parallel extraction and serialized
// linking. Extraction runs on up to workers goroutines; linking and graph
// mutation happen in document order, so the outcome is identical to ingesting
// the documents one by one. A failing document is recorded in its result and
// does not affect the others. Cancellation is honored between documents:
// already-applied documents stay applied.
func (f *Fingraph) IngestDocuments(ctx context.Context, docs []*model.Document, workers int) ([]*IngestResult, error) {
	if workers <= 0 {
		workers = 1
	}

	type extracted struct {
		result *pipeline.ExtractionResult
		err    error
	}
	extractions := make([]extracted, len(docs))
	ready := make([]chan struct{}, len(docs))
	for i := range ready {
		ready[i] = make(chan struct{})
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if docs[i].Content == "" {
					extractions[i].err = helper.NewError("ingest document", fmt.Errorf("document content is empty"))
				} else {
					extractions[i].result, extractions[i].err = f.Pipeline.Process(docs[i])
				}
				close(ready[i])
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range docs {
			select {
			case <-ctx.Done():
				// Remaining documents are marked below
				for j := i; j < len(docs); j++ {
					extractions[j].err = ctx.Err()
					close(ready[j])
				}
				return
			case jobs <- i:
			}
		}
	}()

	results := make([]*IngestResult, len(docs))
	for i, doc := range docs {
		<-ready[i]

		if extractions[i].err != nil {
			results[i] = &IngestResult{DocumentID: doc.RID, Err: extractions[i].err}
			f.log.Warn("Skipped document",
				slog.String("document_id", doc.RID.String()),
				slog.String("error", extractions[i].err.Error()),
			)
			continue
		}

		if err := ctx.Err(); err != nil {
			results[i] = &IngestResult{DocumentID: doc.RID, Err: err}
			continue
		}

		f.mu.Lock()
		result, err := f.applyLocked(ctx, doc, extractions[i].result)
		f.mu.Unlock()
		if err != nil {
			result = &IngestResult{DocumentID: doc.RID, Err: err}
		}
		results[i] = result
	}

	wg.Wait()
	return results, nil
}

// applyLocked links mentions, applies merges, and upserts relations and
// events. Caller holds f.mu.
func (f *Fingraph) applyLocked(ctx context.Context, doc *model.Document, extraction *pipeline.ExtractionResult) (*IngestResult, error) {
	registry := f.Linker.Registry()

	// Link every entity-kind mention to a canonical entity; time and
	// amount mentions only qualify relations and events.
	mentionEntity := map[*model.Mention]uuid.UUID{}
	touched := map[uuid.UUID]bool{}
	for _, mention := range extraction.Mentions {
		if !mention.Type.EntityKind() {
			continue
		}
		id, err := f.Linker.Link(mention)
		if err != nil {
			return nil, helper.NewError("link mention", err)
		}
		mentionEntity[mention] = id
		touched[id] = true
	}

	merges := f.Linker.Merges()
	reviews := f.Linker.PendingReviews()

	// Sync survivors into the graph before re-keying edges to them
	for _, merge := range merges {
		touched[merge.Survivor] = true
	}
	for id := range touched {
		live := registry.Resolve(id)
		entity, ok := registry.Get(live)
		if !ok {
			continue
		}
		err := f.Graph.UpsertEntity(entity)
		if err != nil {
			return nil, helper.NewError("upsert entity", err)
		}
	}

	// Re-key pre-existing edges from retired entities to their survivors.
	// Each merge retires its whole loser set in one atomic pass, so an edge
	// between two losers is rewritten instead of tripping validation.
	for _, merge := range merges {
		err := f.Graph.RetireAll(merge.Retired, merge.Survivor)
		if err != nil && !errors.Is(err, graph.ErrUnknownEntity) {
			return nil, helper.NewError("retire entities", err)
		}
	}

	result := &IngestResult{
		DocumentID: doc.RID,
		Mentions:   len(extraction.Mentions),
		Merges:     merges,
		Reviews:    reviews,
	}
	for id := range touched {
		result.Entities = append(result.Entities, registry.Resolve(id))
	}

	// Relations, re-keyed from mentions to canonical entities
	for _, candidate := range extraction.Relations {
		if candidate.Confidence < f.Config.RelationConfidenceFloor {
			continue
		}
		subject := registry.Resolve(mentionEntity[candidate.Subject])
		object := registry.Resolve(mentionEntity[candidate.Object])
		if subject == object {
			// Merging can collapse both endpoints into one entity
			continue
		}
		relation := &model.Relation{
			SubjectID:  subject,
			Predicate:  candidate.Predicate,
			ObjectID:   object,
			Evidence:   candidate.Evidence,
			Confidence: candidate.Confidence,
			Temporal:   candidate.Temporal,
			Metadata:   candidate.Metadata,
		}
		err := f.Graph.UpsertRelation(relation)
		if err != nil {
			return nil, helper.NewError("upsert relation", err)
		}
		result.Relations = append(result.Relations, relation)
	}

	// Events, role fillers re-keyed to canonical entities
	for _, candidate := range extraction.Events {
		if candidate.Confidence < f.Config.EventConfidenceFloor {
			continue
		}
		event := &model.Event{
			Type:       candidate.Type,
			Trigger:    candidate.Trigger,
			Evidence:   candidate.Evidence,
			Confidence: candidate.Confidence,
			Temporal:   candidate.Temporal,
			Incomplete: candidate.Incomplete,
		}
		for _, role := range candidate.Roles {
			modelRole := model.Role{Name: role.Name}
			if role.Mention != nil {
				if linked, ok := mentionEntity[role.Mention]; ok {
					id := registry.Resolve(linked)
					modelRole.EntityID = &id
				} else {
					// Amount fillers carry their value instead of an entity
					modelRole.Value = role.Mention.Text
				}
			}
			event.Roles = append(event.Roles, modelRole)
		}
		if event.FilledRoles() == 0 {
			continue
		}
		err := f.Graph.UpsertEvent(event)
		if err != nil {
			return nil, helper.NewError("upsert event", err)
		}
		result.Events = append(result.Events, event)
	}

	err := f.persistLocked(ctx, doc, result)
	if err != nil {
		return nil, err
	}

	f.log.Info("Ingested document",
		slog.String("document_id", doc.RID.String()),
		slog.Int("mentions", result.Mentions),
		slog.Int("entities", len(result.Entities)),
		slog.Int("relations", len(result.Relations)),
		slog.Int("events", len(result.Events)),
		slog.Int("merges", len(result.Merges)),
	)

	return result, nil
}

// persistLocked mirrors an ingest result into Postgres when handlers are
// set. The whole document batch runs in one transaction and is retried with
// bounded exponential backoff, so the database never holds a document whose
// relations or events are missing.
func (f *Fingraph) persistLocked(ctx context.Context, doc *model.Document, result *IngestResult) error {
	if f.DB == nil {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < f.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := f.Config.RetryBaseDelay * time.Duration(1<<(attempt-1))
			f.log.Warn("Retrying document persist",
				slog.String("document_id", doc.RID.String()),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = f.persistTx(doc, result)
		if lastErr == nil {
			return nil
		}
	}
	return helper.NewError("persist document batch",
		fmt.Errorf("after %d attempts: %w", f.Config.MaxRetries, lastErr))
}

// persistTx writes one document's contribution inside a single transaction
func (f *Fingraph) persistTx(doc *model.Document, result *IngestResult) error {
	tx, err := f.DB.Instance.Begin()
	if err != nil {
		return helper.NewError("begin persist transaction", err)
	}
	defer tx.Rollback()

	documents := f.Documents.WithTx(tx)
	entities := f.Entities.WithTx(tx)
	relations := f.Relations.WithTx(tx)
	events := f.Events.WithTx(tx)

	err = documents.InsertDocument(doc)
	if err != nil {
		return helper.NewError("persist document", err)
	}

	registry := f.Linker.Registry()
	for _, id := range result.Entities {
		entity, ok := registry.Get(id)
		if !ok {
			continue
		}
		err := entities.UpsertEntity(entity)
		if err != nil {
			return helper.NewError("persist entity", err)
		}
	}
	for _, merge := range result.Merges {
		for _, retired := range merge.Retired {
			if entity, ok := registry.Get(retired); ok {
				if err := entities.UpsertEntity(entity); err != nil {
					return helper.NewError("persist retired entity", err)
				}
			}
			if err := entities.RetireEntity(retired, merge.Survivor); err != nil {
				return helper.NewError("persist retire", err)
			}
		}
	}
	for _, relation := range result.Relations {
		err := relations.UpsertRelation(relation)
		if err != nil {
			return helper.NewError("persist relation", err)
		}
	}
	for _, event := range result.Events {
		err := events.UpsertEvent(event)
		if err != nil {
			return helper.NewError("persist event", err)
		}
	}

	return tx.Commit()
}

// LoadFromDatabase rebuilds the in-memory graph and linker registry from
// Postgres. Call it once after NewWithDatabase when resuming an existing graph.
func (f *Fingraph) LoadFromDatabase() error {
	if f.DB == nil {
		return helper.NewError("load from database", fmt.Errorf("no database configured"))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	registry := f.Linker.Registry()
	batch := f.Config.ExportBatchSize
	for offset := 0; ; offset += batch {
		entities, err := f.Entities.SelectLiveEntities(batch, offset)
		if err != nil {
			return helper.NewError("load entities", err)
		}
		for _, entity := range entities {
			registry.Add(entity)
			if err := f.Graph.UpsertEntity(entity); err != nil {
				return helper.NewError("load entity into graph", err)
			}
		}
		if len(entities) < batch {
			break
		}
	}

	for offset := 0; ; offset += batch {
		relations, err := f.Relations.SelectAllRelations(batch, offset)
		if err != nil {
			return helper.NewError("load relations", err)
		}
		for _, relation := range relations {
			if err := f.Graph.UpsertRelation(relation); err != nil {
				return helper.NewError("load relation into graph", err)
			}
		}
		if len(relations) < batch {
			break
		}
	}

	for offset := 0; ; offset += batch {
		events, err := f.Events.SelectAllEvents(batch, offset)
		if err != nil {
			return helper.NewError("load events", err)
		}
		for _, event := range events {
			if err := f.Graph.UpsertEvent(event); err != nil {
				return helper.NewError("load event into graph", err)
			}
		}
		if len(events) < batch {
			break
		}
	}

	entityCount, relationCount, eventCount := f.Graph.Counts()
	f.log.Info("Loaded graph from database",
		slog.Int("entities", entityCount),
		slog.Int("relations", relationCount),
		slog.Int("events", eventCount),
	)

	return nil
}

// Snapshot returns an immutable point-in-time copy of the graph
func (f *Fingraph) Snapshot() *model.Snapshot {
	return f.Graph.Snapshot()
}

// Restore rebuilds the in-memory graph and linker registry from a snapshot.
// Intended for fresh instances; restoring the snapshot of a graph reproduces
// its counts and canonical ids.
func (f *Fingraph) Restore(snapshot *model.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.Graph.Restore(snapshot)
	if err != nil {
		return helper.NewError("restore snapshot", err)
	}

	registry := f.Linker.Registry()
	for _, entity := range snapshot.Entities {
		if _, ok := registry.Get(entity.ID); !ok {
			registry.Add(entity)
		}
	}
	return nil
}

// SimilarEntities ranks live entities by semantic similarity of their names
// to the query text. Requires an embedder (UseModelPipeline, or SetPipeline
// with one configured); with a database attached the ranking runs on the
// stored pgvector column, otherwise on lazily cached in-memory embeddings.
func (f *Fingraph) SimilarEntities(text string, limit int) ([]*model.Entity, []float64, error) {
	embedder := f.Pipeline.Embedder
	if embedder == nil {
		return nil, nil, helper.NewError("similar entities", fmt.Errorf("no embedder configured"))
	}
	embedding, err := embedder(text)
	if err != nil {
		return nil, nil, helper.NewError("embed query", err)
	}

	if f.Entities != nil {
		return f.Entities.SelectEntitiesBySimilarity(embedding, limit)
	}

	registry := f.Linker.Registry()
	type scored struct {
		entity     *model.Entity
		similarity float64
	}
	var ranked []scored
	for _, entity := range registry.Live() {
		entityEmbedding, ok := registry.Embedding(entity.ID)
		if !ok {
			computed, err := embedder(entity.Name)
			if err != nil {
				continue
			}
			registry.SetEmbedding(entity.ID, computed)
			entityEmbedding = computed
		}
		ranked = append(ranked, scored{entity: entity, similarity: linker.Cosine(entityEmbedding, embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].similarity != ranked[j].similarity {
			return ranked[i].similarity > ranked[j].similarity
		}
		return ranked[i].entity.Name < ranked[j].entity.Name
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	entities := make([]*model.Entity, len(ranked))
	similarities := make([]float64, len(ranked))
	for i, s := range ranked {
		entities[i] = s.entity
		similarities[i] = s.similarity
	}
	return entities, similarities, nil
}

// PendingReviews returns unresolved ambiguous merge decisions
func (f *Fingraph) PendingReviews() []linker.Review {
	return f.Linker.PendingReviews()
}

// QueryEntities returns live entities matching the filter
func (f *Fingraph) QueryEntities(filter graph.EntityFilter) []*model.Entity {
	return f.Graph.QueryEntities(filter)
}

// QueryRelations returns relations matching the filter
func (f *Fingraph) QueryRelations(filter graph.RelationFilter) []*model.Relation {
	return f.Graph.QueryRelations(filter)
}

// QueryEvents returns events matching the filter
func (f *Fingraph) QueryEvents(filter graph.EventFilter) []*model.Event {
	return f.Graph.QueryEvents(filter)
}

// Neighbors returns the 1-hop neighborhood of an entity
func (f *Fingraph) Neighbors(entityID uuid.UUID, predicates []model.PredicateType) ([]*model.Entity, error) {
	return f.Graph.Neighbors(entityID, predicates)
}

// ShortestPath finds a minimal-hop relation path between two entities
func (f *Fingraph) ShortestPath(fromID, toID uuid.UUID, maxHops int) ([]*model.Entity, error) {
	return f.Graph.ShortestPath(fromID, toID, maxHops)
}

// Subgraph extracts the neighborhood snapshot around an entity
func (f *Fingraph) Subgraph(centerID uuid.UUID, maxHops int) (*model.Snapshot, error) {
	return f.Graph.Subgraph(centerID, maxHops)
}

// Statistics summarizes the current graph state
func (f *Fingraph) Statistics(topN int) *graph.Statistics {
	return f.Graph.Statistics(topN)
}

// ExportHTML writes an interactive HTML rendering of the current graph
func (f *Fingraph) ExportHTML(path string, title string) error {
	return export.WriteHTMLFile(path, title, f.Snapshot())
}

// ExportNeo4j mirrors the current graph into a Neo4j database
func (f *Fingraph) ExportNeo4j(ctx context.Context, config export.Neo4jConfig) error {
	exporter, err := export.NewNeo4jExporter(ctx, config, f.log)
	if err != nil {
		return err
	}
	defer exporter.Close(ctx)

	return exporter.Export(ctx, f.Snapshot())
}
