package knowledge

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// Notes and Sources
// ============================================================================

// SourceType is the kind of content a source was derived from
type SourceType string

const (
	SourceArticle SourceType = "article"
	SourceVideo   SourceType = "video"
	SourcePodcast SourceType = "podcast"
	SourcePDF     SourceType = "pdf"
)

// Note is an atomic idea belonging to exactly one source
type Note struct {
	ConversationID string   `json:"conversation_id" yaml:"conversation_id"`
	NoteID         string   `json:"id" yaml:"id"`
	Title          string   `json:"title" yaml:"title"`
	Body           string   `json:"body" yaml:"body"`
	Tags           []string `json:"tags,omitempty" yaml:"tags"`
	SequenceIndex  int      `json:"sequence_index" yaml:"sequence_index"`
}

// Source represents one conversation and the notes derived from it
type Source struct {
	ID         string     `json:"id" yaml:"id"`
	Title      string     `json:"title" yaml:"title"`
	URL        string     `json:"url,omitempty" yaml:"url"`
	SourceType SourceType `json:"source_type" yaml:"source_type"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	Notes      []Note     `json:"notes" yaml:"notes"`
}

// ============================================================================
// Entities
// ============================================================================

// EntityType classifies an entity
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityConcept      EntityType = "concept"
	EntityTechnology   EntityType = "technology"
	EntityEvent        EntityType = "event"
)

// EntityTypes lists every valid entity type
var EntityTypes = []EntityType{EntityPerson, EntityOrganization, EntityConcept, EntityTechnology, EntityEvent}

// ParseEntityType validates a raw type string
func ParseEntityType(raw string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(raw)))
	for _, valid := range EntityTypes {
		if t == valid {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", raw)
}

// Mention records that a note referenced an entity
type Mention struct {
	ConversationID string `json:"conversation_id"`
	NoteID         string `json:"note_id"`
	Context        string `json:"context,omitempty"`
}

// Entity is a normalized, deduplicated named thing mentioned across notes
type Entity struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     EntityType `json:"type"`
	Mentions []Mention  `json:"mentions"`
}

// HasMention reports whether the entity already records a mention from the note
func (e *Entity) HasMention(conversationID, noteID string) bool {
	for _, m := range e.Mentions {
		if m.ConversationID == conversationID && m.NoteID == noteID {
			return true
		}
	}
	return false
}

// AddMention appends a mention unless the note is already recorded.
// Returns true when the mention was added.
func (e *Entity) AddMention(m Mention) bool {
	if e.HasMention(m.ConversationID, m.NoteID) {
		return false
	}
	e.Mentions = append(e.Mentions, m)
	return true
}

// ============================================================================
// Relationships
// ============================================================================

// RelationshipType is the semantic kind of an entity-to-entity edge
type RelationshipType string

const (
	RelSpecializationOf RelationshipType = "specialization_of"
	RelEnabledBy        RelationshipType = "enabled_by"
	RelBuildsOn         RelationshipType = "builds_on"
	RelContrastsWith    RelationshipType = "contrasts_with"
	RelAppliesTo        RelationshipType = "applies_to"
	RelCreatedBy        RelationshipType = "created_by"
)

// RelationshipTypes lists every valid relationship type
var RelationshipTypes = []RelationshipType{
	RelSpecializationOf, RelEnabledBy, RelBuildsOn, RelContrastsWith, RelAppliesTo, RelCreatedBy,
}

// ParseRelationshipType validates a raw type string
func ParseRelationshipType(raw string) (RelationshipType, error) {
	t := RelationshipType(strings.ToLower(strings.TrimSpace(raw)))
	for _, valid := range RelationshipTypes {
		if t == valid {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown relationship type %q", raw)
}

// IsBidirectional reports whether relationships of this type read the same both ways
func (t RelationshipType) IsBidirectional() bool {
	return t == RelContrastsWith
}

// Relationship is a typed edge between two entities
type Relationship struct {
	ID                   string           `json:"id"`
	SourceEntityID       string           `json:"source_entity_id"`
	TargetEntityID       string           `json:"target_entity_id"`
	SourceEntityName     string           `json:"source_entity_name"`
	TargetEntityName     string           `json:"target_entity_name"`
	Type                 RelationshipType `json:"type"`
	Bidirectional        bool             `json:"bidirectional"`
	SourceConversationID string           `json:"source_conversation_id,omitempty"`
	SourceNoteID         string           `json:"source_note_id,omitempty"` // empty for inferred relationships
	AutoGenerated        bool             `json:"auto_generated"`
	CreatedAt            time.Time        `json:"created_at"`
}

// Triple is the identity of a relationship for deduplication
type Triple struct {
	Source string
	Target string
	Type   RelationshipType
}

// Key returns the relationship's dedup identity
func (r *Relationship) Key() Triple {
	return Triple{Source: r.SourceEntityID, Target: r.TargetEntityID, Type: r.Type}
}

// ============================================================================
// Manual links and merges
// ============================================================================

// ManualLink is a user-asserted edge between two graph nodes
type ManualLink struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityMerge is one entry of the append-only merge audit log
type EntityMerge struct {
	Canonical string    `json:"canonical"`
	Merged    []string  `json:"merged"`
	MergedAt  time.Time `json:"merged_at"`
}
