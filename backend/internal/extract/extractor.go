// Package extract turns note text into validated entity and relationship
// candidates and applies them to the entity record in batches.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"notegraph/backend/internal/constants"
	"notegraph/backend/internal/knowledge"
	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

// Extractor proposes entities for a note and relationships between them
type Extractor interface {
	ExtractEntities(ctx context.Context, title, body string) ([]knowledge.EntityCandidate, error)
	ExtractRelationships(ctx context.Context, entities []knowledge.EntityCandidate) ([]knowledge.RelationshipCandidate, error)
}

// Completer is the chat completion call the LLM extractor needs
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMsg string) (string, error)
}

const entitySystemPrompt = `You extract named entities from a short note.
Return a JSON array with at most %d objects of the form {"name": "...", "type": "...", "context": "..."}.
- type is one of: person, organization, concept, technology, event
- name is the canonical name as written in the note (no abbreviation expansion)
- context is the sentence of the note that mentions the entity
- prefer specific, reusable entities over generic words
Respond with JSON only. No markdown, no explanation.`

const relationshipSystemPrompt = `You find relationships between entities that appear in the same note.
Return a JSON array with at most %d objects of the form {"source": "...", "target": "...", "type": "..."}.
- source and target must be names from the provided list, exactly as given
- type is one of:
  * specialization_of: source is a more specific form of target
  * enabled_by: source was made possible by target
  * builds_on: source extends or improves on target
  * contrasts_with: source and target are alternatives or opposites
  * applies_to: source is used in the domain of target
  * created_by: source was made by target
- only include relationships the note actually supports
Respond with JSON only. No markdown, no explanation.`

// LLMExtractor extracts candidates through a chat completion model
type LLMExtractor struct {
	llm              Completer
	maxEntities      int
	maxRelationships int
	logger           *zap.Logger
}

// NewLLMExtractor creates an extractor. Non-positive caps fall back to the defaults.
func NewLLMExtractor(llm Completer, maxEntities, maxRelationships int) *LLMExtractor {
	if maxEntities <= 0 {
		maxEntities = constants.MaxEntitiesPerNote
	}
	if maxRelationships <= 0 {
		maxRelationships = constants.MaxRelationshipsPerNote
	}
	return &LLMExtractor{
		llm:              llm,
		maxEntities:      maxEntities,
		maxRelationships: maxRelationships,
		logger:           logger.Named("extract"),
	}
}

// ExtractEntities asks the model for the entities a note mentions
func (e *LLMExtractor) ExtractEntities(ctx context.Context, title, body string) ([]knowledge.EntityCandidate, error) {
	text := PlainText(body)
	if strings.TrimSpace(title) == "" && text == "" {
		return nil, nil
	}

	userMsg := fmt.Sprintf("Title: %s\n\n%s", title, text)
	raw, err := e.llm.Complete(ctx, fmt.Sprintf(entitySystemPrompt, e.maxEntities), userMsg)
	if err != nil {
		return nil, apperrors.NewExtractionFailed("entities", err)
	}

	entities, err := ParseEntities(raw, e.maxEntities)
	if err != nil {
		e.logger.Warn("Failed to parse entity extraction JSON",
			zap.String("title", title),
			zap.String("response", raw),
			zap.Error(err),
		)
		return nil, apperrors.NewExtractionFailed("entities", err)
	}
	return entities, nil
}

// ExtractRelationships asks the model how a note's entities relate. Fewer
// than two entities cannot relate, so no call is made.
func (e *LLMExtractor) ExtractRelationships(ctx context.Context, entities []knowledge.EntityCandidate) ([]knowledge.RelationshipCandidate, error) {
	if len(entities) < 2 {
		return nil, nil
	}

	type promptEntity struct {
		Name    string `json:"name"`
		Type    string `json:"type"`
		Context string `json:"context,omitempty"`
	}
	list := make([]promptEntity, 0, len(entities))
	for _, ent := range entities {
		list = append(list, promptEntity{Name: ent.Name, Type: string(ent.Type), Context: ent.Context})
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, apperrors.NewExtractionFailed("relationships", err)
	}

	raw, err := e.llm.Complete(ctx, fmt.Sprintf(relationshipSystemPrompt, e.maxRelationships), "Entities:\n"+string(data))
	if err != nil {
		return nil, apperrors.NewExtractionFailed("relationships", err)
	}

	rels, err := ParseRelationships(raw, entities, e.maxRelationships)
	if err != nil {
		e.logger.Warn("Failed to parse relationship extraction JSON",
			zap.String("response", raw),
			zap.Error(err),
		)
		return nil, apperrors.NewExtractionFailed("relationships", err)
	}
	return rels, nil
}

// PlainText strips HTML markup from a note body and collapses whitespace.
// Text nodes are joined with spaces so block elements do not run together.
func PlainText(body string) string {
	if !strings.Contains(body, "<") || !strings.Contains(body, ">") {
		return strings.Join(strings.Fields(body), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return strings.Join(strings.Fields(body), " ")
	}
	doc.Find("script, style").Remove()

	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				parts = append(parts, c.Text())
				return
			}
			walk(c)
		})
	}
	walk(doc.Selection)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
