package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fingraph/fingraph/helper"
	"github.com/fingraph/fingraph/model"
)

// Neo4jConfig holds connection settings for a Neo4j export target
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	// BatchSize bounds the number of nodes or edges per write transaction.
	BatchSize int
	// MaxRetries and RetryBaseDelay bound the exponential backoff on
	// transient write failures.
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Neo4jExporter mirrors graph snapshots into a Neo4j database.
// Exports are idempotent: nodes and edges are written with MERGE keyed by id,
// so re-exporting the same snapshot changes nothing.
type Neo4jExporter struct {
	driver neo4j.DriverWithContext
	config Neo4jConfig
	log    *slog.Logger
}

// NewNeo4jExporter connects to Neo4j and verifies connectivity
func NewNeo4jExporter(ctx context.Context, config Neo4jConfig, logger *slog.Logger) (*Neo4jExporter, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	driver, err := neo4j.NewDriverWithContext(config.URI, neo4j.BasicAuth(config.Username, config.Password, ""))
	if err != nil {
		return nil, helper.NewError("create neo4j driver", err)
	}

	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		driver.Close(ctx)
		return nil, helper.NewError("verify neo4j connectivity", err)
	}

	return &Neo4jExporter{
		driver: driver,
		config: config,
		log:    logger,
	}, nil
}

// Close releases the underlying driver
func (e *Neo4jExporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// CreateConstraints ensures uniqueness constraints on node ids exist
func (e *Neo4jExporter) CreateConstraints(ctx context.Context) error {
	statements := []string{
		`CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (n:Entity) REQUIRE n.id IS UNIQUE`,
		`CREATE CONSTRAINT event_id IF NOT EXISTS FOR (n:Event) REQUIRE n.id IS UNIQUE`,
	}
	for _, statement := range statements {
		_, err := neo4j.ExecuteQuery(ctx, e.driver, statement, nil, neo4j.EagerResultTransformer)
		if err != nil {
			return helper.NewError("create constraint", err)
		}
	}
	return nil
}

// Export mirrors the snapshot into Neo4j in batches
func (e *Neo4jExporter) Export(ctx context.Context, snapshot *model.Snapshot) error {
	err := e.CreateConstraints(ctx)
	if err != nil {
		return err
	}

	nodes := snapshot.Nodes()
	for start := 0; start < len(nodes); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(nodes))
		err := e.writeNodeBatch(ctx, nodes[start:end])
		if err != nil {
			return helper.NewError("write node batch", err)
		}
	}

	edges := snapshot.Edges()
	for start := 0; start < len(edges); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(edges))
		err := e.writeEdgeBatch(ctx, edges[start:end])
		if err != nil {
			return helper.NewError("write edge batch", err)
		}
	}

	e.log.Info("Exported snapshot to neo4j",
		slog.Int("nodes", len(nodes)),
		slog.Int("edges", len(edges)),
	)

	return nil
}

func (e *Neo4jExporter) writeNodeBatch(ctx context.Context, nodes []model.NodeExport) error {
	rows := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		rows = append(rows, map[string]any{
			"id":    node.ID,
			"label": node.Label,
			"type":  node.Type,
			"color": node.ColorHint,
		})
	}

	query := `
		UNWIND $rows AS row
		CALL {
			WITH row
			WITH row WHERE row.type = 'event'
			MERGE (n:Event {id: row.id})
			SET n.label = row.label, n.type = row.type, n.color = row.color
		UNION
			WITH row
			WITH row WHERE row.type <> 'event'
			MERGE (n:Entity {id: row.id})
			SET n.label = row.label, n.type = row.type, n.color = row.color
		}`

	return e.writeWithRetry(ctx, query, map[string]any{"rows": rows})
}

func (e *Neo4jExporter) writeEdgeBatch(ctx context.Context, edges []model.EdgeExport) error {
	rows := make([]map[string]any, 0, len(edges))
	for _, edge := range edges {
		rows = append(rows, map[string]any{
			"source": edge.Source,
			"target": edge.Target,
			"label":  edge.Label,
			"type":   edge.Type,
		})
	}

	query := `
		UNWIND $rows AS row
		MATCH (a {id: row.source})
		MATCH (b {id: row.target})
		MERGE (a)-[r:RELATES {label: row.label, type: row.type}]->(b)`

	return e.writeWithRetry(ctx, query, map[string]any{"rows": rows})
}

// writeWithRetry runs a write query with bounded exponential backoff
func (e *Neo4jExporter) writeWithRetry(ctx context.Context, query string, params map[string]any) error {
	var lastErr error
	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.config.RetryBaseDelay * time.Duration(1<<(attempt-1))
			e.log.Warn("Retrying neo4j write",
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

		_, lastErr = neo4j.ExecuteQuery(ctx, e.driver, query, params, neo4j.EagerResultTransformer)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("write failed after %d attempts: %w", e.config.MaxRetries, lastErr)
}
