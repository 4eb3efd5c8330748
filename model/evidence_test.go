package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEvidenceFingerprint(t *testing.T) {
	t.Run("Identical spans share a fingerprint across documents", func(t *testing.T) {
		first := EvidenceSpan{DocumentID: uuid.New(), Start: 10, End: 25, Text: "invested in"}
		second := EvidenceSpan{DocumentID: uuid.New(), Start: 10, End: 25, Text: "invested in"}

		assert.Equal(t, first.Fingerprint("relation:investment"), second.Fingerprint("relation:investment"),
			"the document id must not influence the fingerprint")
	})

	t.Run("Kind separates otherwise equal spans", func(t *testing.T) {
		span := EvidenceSpan{Start: 10, End: 25, Text: "invested in"}

		assert.NotEqual(t, span.Fingerprint("relation:investment"), span.Fingerprint("event:investment"))
	})

	t.Run("Position and text separate fingerprints", func(t *testing.T) {
		base := EvidenceSpan{Start: 10, End: 25, Text: "invested in"}
		moved := EvidenceSpan{Start: 11, End: 26, Text: "invested in"}
		reworded := EvidenceSpan{Start: 10, End: 25, Text: "acquired by"}

		assert.NotEqual(t, base.Fingerprint("relation:investment"), moved.Fingerprint("relation:investment"))
		assert.NotEqual(t, base.Fingerprint("relation:investment"), reworded.Fingerprint("relation:investment"))
	})
}

func TestMentionTypeEntityKind(t *testing.T) {
	t.Run("Time and amount are qualifiers, not entities", func(t *testing.T) {
		assert.False(t, MentionTime.EntityKind())
		assert.False(t, MentionAmount.EntityKind())
	})

	t.Run("Everything else denotes an entity", func(t *testing.T) {
		for _, mentionType := range []MentionType{
			MentionOrganization, MentionPerson, MentionProduct, MentionLocation, MentionOther,
		} {
			assert.True(t, mentionType.EntityKind(), string(mentionType))
		}
	})
}
