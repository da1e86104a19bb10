// Package relation manages typed relationships between entities: accepting
// relationships extracted from a note, and inferring hierarchy from compound names.
package relation

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"notegraph/backend/internal/constants"
	"notegraph/backend/internal/knowledge"
	"notegraph/backend/internal/store"
	"notegraph/backend/pkg/logger"
)

// Index is the set of relationship triples already present in a record
type Index map[knowledge.Triple]struct{}

// NewIndex builds the triple set of a record
func NewIndex(rec *store.EntityRecord) Index {
	idx := make(Index, len(rec.Relationships))
	for _, rel := range rec.Relationships {
		idx[rel.Key()] = struct{}{}
	}
	return idx
}

// Has reports whether the triple exists
func (idx Index) Has(t knowledge.Triple) bool {
	_, ok := idx[t]
	return ok
}

// Append adds rel to the record unless its triple already exists.
// Returns true when the relationship was added.
func Append(rec *store.EntityRecord, idx Index, rel *knowledge.Relationship) bool {
	key := rel.Key()
	if idx.Has(key) {
		return false
	}
	idx[key] = struct{}{}
	rec.Relationships = append(rec.Relationships, rel)
	return true
}

// New builds a relationship between two stored entities
func New(source, target *knowledge.Entity, typ knowledge.RelationshipType) *knowledge.Relationship {
	return &knowledge.Relationship{
		ID:               knowledge.NewID(),
		SourceEntityID:   source.ID,
		TargetEntityID:   target.ID,
		SourceEntityName: source.Name,
		TargetEntityName: target.Name,
		Type:             typ,
		Bidirectional:    typ.IsBidirectional(),
		CreatedAt:        time.Now().UTC(),
	}
}

// Acceptor validates relationships extracted from one note before they enter the store
type Acceptor struct {
	maxPerNote int
	logger     *zap.Logger
}

// NewAcceptor creates an acceptor keeping at most maxPerNote relationships per note
func NewAcceptor(maxPerNote int) *Acceptor {
	if maxPerNote < 0 {
		maxPerNote = constants.MaxRelationshipsPerNote
	}
	return &Acceptor{
		maxPerNote: maxPerNote,
		logger:     logger.Named("relation"),
	}
}

// Accept adds the valid candidates to rec and returns how many were added.
// resolved maps the lower-cased names the note's entities were extracted under
// to the entity ids the resolver returned. A candidate is dropped when its type
// is unknown, when either endpoint is not one of the note's entities, when both
// endpoints resolve to the same entity, or when its triple already exists.
// At most maxPerNote candidates are considered.
func (a *Acceptor) Accept(
	rec *store.EntityRecord,
	idx Index,
	candidates []knowledge.RelationshipCandidate,
	resolved map[string]string,
	conversationID, noteID string,
) int {
	if len(candidates) > a.maxPerNote {
		candidates = candidates[:a.maxPerNote]
	}

	added := 0
	for _, c := range candidates {
		if _, err := knowledge.ParseRelationshipType(string(c.Type)); err != nil {
			a.logger.Debug("Dropping relationship with unknown type", zap.String("type", string(c.Type)))
			continue
		}
		source := rec.Entity(resolved[strings.ToLower(strings.TrimSpace(c.Source))])
		target := rec.Entity(resolved[strings.ToLower(strings.TrimSpace(c.Target))])
		if source == nil || target == nil {
			a.logger.Debug("Dropping relationship with unknown endpoint",
				zap.String("source", c.Source),
				zap.String("target", c.Target),
			)
			continue
		}
		if source.ID == target.ID {
			continue
		}

		rel := New(source, target, c.Type)
		rel.SourceConversationID = conversationID
		rel.SourceNoteID = noteID
		if Append(rec, idx, rel) {
			added++
		}
	}
	return added
}
