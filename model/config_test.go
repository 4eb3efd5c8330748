package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Run("Returns sensible default values", func(t *testing.T) {
		config := DefaultConfig()

		assert.Equal(t, 0.5, config.MentionConfidenceFloor, "Default MentionConfidenceFloor should be 0.5")
		assert.Equal(t, 0.5, config.RelationConfidenceFloor, "Default RelationConfidenceFloor should be 0.5")
		assert.Equal(t, 0.5, config.EventConfidenceFloor, "Default EventConfidenceFloor should be 0.5")
		assert.Equal(t, 120, config.ProximityWindow, "Default ProximityWindow should be 120")
		assert.Equal(t, 0.6, config.CooccurrenceConfidence, "Default CooccurrenceConfidence should be 0.6")
	})

	t.Run("Linking thresholds are ordered", func(t *testing.T) {
		config := DefaultConfig()

		assert.Greater(t, config.LinkThreshold, config.AutoMergeThreshold,
			"ambiguous band between auto-merge and link threshold must exist")
		assert.Greater(t, config.SemanticLinkThreshold, config.LinkThreshold,
			"semantic tier should be stricter than the lexical tier")
	})

	t.Run("Storage defaults are positive", func(t *testing.T) {
		config := DefaultConfig()

		assert.Positive(t, config.ExportBatchSize)
		assert.Positive(t, config.MaxRetries)
		assert.Positive(t, config.RetryBaseDelay)
	})
}

func TestConfigJSON(t *testing.T) {
	t.Run("Round-trips through JSON", func(t *testing.T) {
		config := DefaultConfig()
		config.ProximityWindow = 200

		bytes, err := json.Marshal(config)
		require.NoError(t, err)

		var decoded Config
		err = json.Unmarshal(bytes, &decoded)
		require.NoError(t, err)
		assert.Equal(t, *config, decoded)
	})
}
