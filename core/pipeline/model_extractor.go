package pipeline

import (
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/fingraph/fingraph/helper"
	"github.com/fingraph/fingraph/model"
)

// ModelMentionExtractor creates a mention extractor backed by a NER model.
// Uses distilbert-NER; detected PER/ORG/LOC/MISC labels are mapped onto the
// mention type vocabulary. It satisfies the same contract as the rule-based
// extractor, so the two are interchangeable.
func ModelMentionExtractor(config *model.Config) (MentionExtractFunc, error) {
	modelName := "KnightsAnalytics/distilbert-NER"
	modelPath, err := helper.PrepareModel(modelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	nerConfig := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "mention-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}), // Ignore non-entity tokens
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, nerConfig)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return func(doc *model.Document) ([]*model.Mention, error) {
		if strings.TrimSpace(doc.Content) == "" {
			return []*model.Mention{}, nil
		}

		result, err := nerPipeline.RunPipeline([]string{doc.Content})
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}

		if len(result.Entities) == 0 {
			return []*model.Mention{}, nil
		}

		var mentions []*model.Mention
		for _, entity := range result.Entities[0] {
			confidence := float64(entity.Score)
			if confidence < config.MentionConfidenceFloor {
				continue
			}

			mentions = append(mentions, &model.Mention{
				DocumentID: doc.RID,
				Start:      int(entity.Start),
				End:        int(entity.End),
				Text:       strings.TrimSpace(entity.Word),
				Type:       mapNERLabel(entity.Entity),
				Confidence: confidence,
				Metadata: model.Metadata{
					"method": "ner_model",
					"label":  entity.Entity,
				},
			})
		}

		return resolveOverlaps(mentions), nil
	}, nil
}

// mapNERLabel maps BIO-tagged NER labels onto mention types
func mapNERLabel(label string) model.MentionType {
	label = strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
	switch label {
	case "ORG":
		return model.MentionOrganization
	case "PER":
		return model.MentionPerson
	case "LOC":
		return model.MentionLocation
	default:
		return model.MentionOther
	}
}
