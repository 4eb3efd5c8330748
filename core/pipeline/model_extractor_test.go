package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fingraph/fingraph/model"
)

func TestMapNERLabel(t *testing.T) {
	t.Run("Maps BIO-tagged labels onto mention types", func(t *testing.T) {
		assert.Equal(t, model.MentionOrganization, mapNERLabel("B-ORG"))
		assert.Equal(t, model.MentionOrganization, mapNERLabel("I-ORG"))
		assert.Equal(t, model.MentionPerson, mapNERLabel("PER"))
		assert.Equal(t, model.MentionLocation, mapNERLabel("B-LOC"))
		assert.Equal(t, model.MentionOther, mapNERLabel("B-MISC"))
	})
}
