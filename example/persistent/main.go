package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fingraph/fingraph"
	"github.com/fingraph/fingraph/helper"
	"github.com/fingraph/fingraph/model"
)

// Demonstrates the Postgres-backed mode: ingest into a throwaway container,
// then rebuild the in-memory graph from the database as a restart would.
func main() {
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	fg, err := fingraph.NewWithDatabase(nil, dbConfig)
	if err != nil {
		log.Fatalf("Failed to create fingraph: %v", err)
	}
	defer fg.Close()

	referenceDate := time.Date(2023, time.August, 15, 0, 0, 0, 0, time.UTC)
	doc := model.NewDocument(
		"cooperation announcement",
		"[Investment Cooperation] On August 15 2023, Company A announced a strategic cooperation with Company B across Europe.",
		&referenceDate,
	)

	result, err := fg.IngestDocument(context.Background(), doc)
	if err != nil {
		log.Fatalf("Failed to ingest document: %v", err)
	}
	fmt.Printf("Ingested: %d entities, %d relations, %d events\n",
		len(result.Entities), len(result.Relations), len(result.Events))

	// Simulate a restart: a fresh instance over the same database
	restarted, err := fingraph.NewWithDatabase(nil, dbConfig)
	if err != nil {
		log.Fatalf("Failed to create second instance: %v", err)
	}
	defer restarted.Close()

	if err := restarted.LoadFromDatabase(); err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}

	snapshot := restarted.Snapshot()
	fmt.Printf("Recovered: %d entities, %d relations, %d events\n",
		len(snapshot.Entities), len(snapshot.Relations), len(snapshot.Events))

	// Incremental update on the recovered graph dedupes against stored edges
	if _, err := restarted.IngestDocument(context.Background(), model.NewDocument(
		"follow-up",
		"Company A deepened its cooperation with Company B in Q4 2023.",
		&referenceDate,
	)); err != nil {
		log.Fatalf("Failed to ingest follow-up: %v", err)
	}

	entities, relations, events := restarted.Graph.Counts()
	fmt.Printf("After follow-up: %d entities, %d relations, %d events\n", entities, relations, events)
}
