package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fingraph/fingraph"
	"github.com/fingraph/fingraph/core/graph"
	"github.com/fingraph/fingraph/model"
)

var sampleNews = []string{
	"[Investment Cooperation] On August 15 2023, Company A announced a strategic cooperation with Company B across Europe.",
	"[Investment] Alpha Systems Inc invested $2 billion in Beta Robotics Ltd in March 2024.",
	"Company A took a stake in Beta Robotics Ltd last year.",
	"[Personnel] Gamma Holdings appointed Dr. Jane Doe as chief executive in Q1 2024.",
}

func main() {
	fg := fingraph.New(nil)

	referenceDate := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	docs := make([]*model.Document, len(sampleNews))
	for i, content := range sampleNews {
		docs[i] = model.NewDocument(fmt.Sprintf("news-%d", i+1), content, &referenceDate)
	}

	results, err := fg.IngestDocuments(context.Background(), docs, 4)
	if err != nil {
		log.Fatalf("Failed to ingest documents: %v", err)
	}
	for _, result := range results {
		if result.Err != nil {
			log.Printf("Document %s failed: %v", result.DocumentID, result.Err)
			continue
		}
		fmt.Printf("Document %s: %d mentions, %d entities, %d relations, %d events\n",
			result.DocumentID, result.Mentions, len(result.Entities), len(result.Relations), len(result.Events))
	}

	// Query the graph
	fmt.Println("\nOrganizations:")
	for _, entity := range fg.QueryEntities(graph.EntityFilter{Type: model.MentionOrganization}) {
		fmt.Printf("  %s (confidence %.2f, aliases %v)\n", entity.Name, entity.Confidence, entity.Aliases)
	}

	fmt.Println("\nInvestment relations:")
	for _, relation := range fg.QueryRelations(graph.RelationFilter{Predicate: model.PredicateInvestment}) {
		when := "undated"
		if relation.Temporal != nil && relation.Temporal.Resolved() {
			when = relation.Temporal.Normalized()
		}
		fmt.Printf("  %s -> %s (%s, confidence %.2f)\n", relation.SubjectID, relation.ObjectID, when, relation.Confidence)
	}

	// Graph analytics
	stats := fg.Statistics(3)
	fmt.Printf("\nGraph: %d entities, %d relations, %d events\n", stats.EntityCount, stats.RelationCount, stats.EventCount)
	for _, degree := range stats.MostConnected {
		fmt.Printf("  most connected: %s (%d edges)\n", degree.Entity.Name, degree.Degree)
	}

	// Pending merge decisions that need a human eye
	for _, review := range fg.PendingReviews() {
		fmt.Printf("Review needed: %q attached to %s (%s, confidence %.2f)\n",
			review.Mention.Text, review.AttachedTo, review.Reason, review.Confidence)
	}

	// Render the graph as an interactive HTML page
	if err := fg.ExportHTML("graph.html", "Financial Knowledge Graph"); err != nil {
		log.Fatalf("Failed to export HTML: %v", err)
	}
	fmt.Println("\nWrote graph.html")
}
