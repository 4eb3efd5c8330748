package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/fingraph/fingraph"
	"github.com/fingraph/fingraph/export"
	"github.com/fingraph/fingraph/model"
)

// Mirrors an ingested graph into Neo4j. Connection settings come from the
// environment (or a local .env file): NEO4J_URI, NEO4J_USERNAME, NEO4J_PASSWORD.
func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	config := export.Neo4jConfig{
		URI:      os.Getenv("NEO4J_URI"),
		Username: os.Getenv("NEO4J_USERNAME"),
		Password: os.Getenv("NEO4J_PASSWORD"),
	}
	if config.URI == "" {
		log.Fatal("NEO4J_URI is not set")
	}

	fg := fingraph.New(nil)
	referenceDate := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	docs := []*model.Document{
		model.NewDocument("news-1",
			"[Investment] Alpha Systems Inc invested $2 billion in Beta Robotics Ltd in March 2024.", &referenceDate),
		model.NewDocument("news-2",
			"[Cooperation] Beta Robotics Ltd announced a partnership with Gamma Holdings in April 2024.", &referenceDate),
	}

	results, err := fg.IngestDocuments(context.Background(), docs, 2)
	if err != nil {
		log.Fatalf("Failed to ingest documents: %v", err)
	}
	for _, result := range results {
		if result.Err != nil {
			log.Fatalf("Document %s failed: %v", result.DocumentID, result.Err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := fg.ExportNeo4j(ctx, config); err != nil {
		log.Fatalf("Failed to export to Neo4j: %v", err)
	}

	entities, relations, events := fg.Graph.Counts()
	fmt.Printf("Exported %d entities, %d relations and %d events to %s\n",
		entities, relations, events, config.URI)
}
