package linker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	t.Run("Lowercases and strips punctuation", func(t *testing.T) {
		assert.Equal(t, "acme technologies", NormalizeName("Acme-Technologies"))
	})

	t.Run("Drops corporate designators", func(t *testing.T) {
		assert.Equal(t, "a", NormalizeName("Company A"))
		assert.Equal(t, "a", NormalizeName("Co. A Ltd."))
		assert.Equal(t, "acme", NormalizeName("Acme Corp."))
		assert.Equal(t, "gamma", NormalizeName("Gamma Holdings"))
	})

	t.Run("Keeps designators when nothing else remains", func(t *testing.T) {
		assert.Equal(t, "inc", NormalizeName("Inc"))
		assert.Equal(t, "company ltd", NormalizeName("Company Ltd"))
	})

	t.Run("Empty input stays empty", func(t *testing.T) {
		assert.Equal(t, "", NormalizeName("  "))
	})
}

func TestStringSimilarity(t *testing.T) {
	t.Run("Equal normalized forms score one", func(t *testing.T) {
		assert.Equal(t, 1.0, StringSimilarity("Company A", "Co. A Ltd."))
		assert.Equal(t, 1.0, StringSimilarity("Acme Corp", "ACME Corporation"))
	})

	t.Run("Similar names score high but below one", func(t *testing.T) {
		similarity := StringSimilarity("Northwind Traders", "Northwind Trading")
		assert.InDelta(t, 0.8125, similarity, 0.001)
	})

	t.Run("Containment raises the floor", func(t *testing.T) {
		similarity := StringSimilarity("Acme", "Acme Technologies")
		assert.InDelta(t, 0.412, similarity, 0.01, "floor should beat the low bigram overlap")
	})

	t.Run("Unrelated names score low", func(t *testing.T) {
		assert.Less(t, StringSimilarity("Orion Aerospace", "Stellar Dynamics"), 0.3)
	})

	t.Run("Empty name scores zero", func(t *testing.T) {
		assert.Zero(t, StringSimilarity("", "Company A"))
	})
}

func TestCosine(t *testing.T) {
	t.Run("Identical vectors", func(t *testing.T) {
		assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	})

	t.Run("Orthogonal vectors", func(t *testing.T) {
		assert.Zero(t, Cosine([]float32{1, 0}, []float32{0, 1}))
	})

	t.Run("Mismatched or empty vectors score zero", func(t *testing.T) {
		assert.Zero(t, Cosine([]float32{1, 2}, []float32{1, 2, 3}))
		assert.Zero(t, Cosine(nil, nil))
		assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
	})
}
