// Package entity resolves extracted entity candidates against the entity store.
package entity

import (
	"strings"

	"go.uber.org/zap"

	"notegraph/backend/internal/constants"
	"notegraph/backend/internal/knowledge"
	"notegraph/backend/internal/store"
	"notegraph/backend/pkg/logger"
)

// MatchRule names the rule that matched a candidate to an existing entity
type MatchRule string

const (
	MatchExact      MatchRule = "exact"
	MatchFuzzy      MatchRule = "fuzzy"
	MatchWhitespace MatchRule = "whitespace"
	MatchNone       MatchRule = "created"
)

// Resolver maps candidate names onto entities in an entity record.
// It mutates the record in place and never persists it.
type Resolver struct {
	rec       *store.EntityRecord
	threshold float64
	newID     func() string
	logger    *zap.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithThreshold sets the fuzzy-match threshold
func WithThreshold(threshold float64) Option {
	return func(r *Resolver) {
		if threshold > 0 {
			r.threshold = threshold
		}
	}
}

// WithIDGenerator replaces the random id generator, for tests
func WithIDGenerator(gen func() string) Option {
	return func(r *Resolver) {
		r.newID = gen
	}
}

// NewResolver creates a resolver over rec
func NewResolver(rec *store.EntityRecord, opts ...Option) *Resolver {
	r := &Resolver{
		rec:       rec,
		threshold: constants.FuzzyMatchThreshold,
		newID:     knowledge.NewEntityID,
		logger:    logger.Named("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the id of the entity the candidate refers to, creating it if
// no rule matches. The mention is recorded once per (conversation, note).
func (r *Resolver) Resolve(c knowledge.EntityCandidate, conversationID, noteID string) string {
	id, rule := r.Match(c.Name)

	mention := knowledge.Mention{
		ConversationID: conversationID,
		NoteID:         noteID,
		Context:        truncate(c.Context, constants.MaxContextLength),
	}

	if id == "" {
		id = r.uniqueID()
		r.rec.Entities[id] = &knowledge.Entity{
			ID:       id,
			Name:     strings.TrimSpace(c.Name),
			Type:     c.Type,
			Mentions: []knowledge.Mention{mention},
		}
		r.logger.Debug("Entity created",
			zap.String("entity_id", id),
			zap.String("name", c.Name),
			zap.String("type", string(c.Type)),
		)
	} else if r.rec.Entities[id].AddMention(mention) {
		r.logger.Debug("Entity mention added",
			zap.String("entity_id", id),
			zap.String("candidate", c.Name),
			zap.String("rule", string(rule)),
		)
	}

	r.rec.LinkNoteEntity(conversationID, noteID, id)
	return id
}

// Match finds the live entity a name refers to without mutating anything.
// Rules run in order and the first rule with a hit wins: exact
// (case-insensitive), fuzzy (best ratio at or above the threshold, ties by id),
// then whitespace-insensitive.
func (r *Resolver) Match(name string) (string, MatchRule) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", MatchNone
	}
	entities := r.rec.SortedEntities()

	lower := strings.ToLower(name)
	for _, e := range entities {
		if strings.ToLower(e.Name) == lower {
			return e.ID, MatchExact
		}
	}

	bestID, bestScore := "", 0.0
	for _, e := range entities {
		score := Similarity(name, e.Name)
		if score >= r.threshold && score > bestScore {
			bestID, bestScore = e.ID, score
		}
	}
	if bestID != "" {
		return bestID, MatchFuzzy
	}

	compact := Compact(name)
	for _, e := range entities {
		if Compact(e.Name) == compact {
			return e.ID, MatchWhitespace
		}
	}

	return "", MatchNone
}

func (r *Resolver) uniqueID() string {
	for {
		id := r.newID()
		if _, taken := r.rec.Entities[id]; !taken {
			return id
		}
	}
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
