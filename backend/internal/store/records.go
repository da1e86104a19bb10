// Package store holds the two durable records behind the knowledge graph: the
// entity record (entities, note index, relationships, processed conversations)
// and the link record (manual links, merge log, dismissals, review marks).
package store

import (
	"slices"
	"sort"
	"time"

	"notegraph/backend/internal/knowledge"
)

// EntityRecord is the entity store snapshot
type EntityRecord struct {
	Version                int64                        `json:"version"`
	LastUpdated            time.Time                    `json:"last_updated"`
	Entities               map[string]*knowledge.Entity `json:"entities"`
	NoteEntities           map[string][]string          `json:"note_entities"` // NoteKey -> entity ids
	Relationships          []*knowledge.Relationship    `json:"relationships"`
	ProcessedConversations []string                     `json:"processed_conversations"`
}

// NewEntityRecord creates an empty entity record
func NewEntityRecord() *EntityRecord {
	return &EntityRecord{
		Entities:     make(map[string]*knowledge.Entity),
		NoteEntities: make(map[string][]string),
	}
}

func (r *EntityRecord) normalize() {
	if r.Entities == nil {
		r.Entities = make(map[string]*knowledge.Entity)
	}
	if r.NoteEntities == nil {
		r.NoteEntities = make(map[string][]string)
	}
}

// Entity returns the entity with the given id, or nil
func (r *EntityRecord) Entity(id string) *knowledge.Entity {
	return r.Entities[id]
}

// SortedEntities returns every entity ordered by id
func (r *EntityRecord) SortedEntities() []*knowledge.Entity {
	out := make([]*knowledge.Entity, 0, len(r.Entities))
	for _, e := range r.Entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LinkNoteEntity records that a note mentions an entity
func (r *EntityRecord) LinkNoteEntity(conversationID, noteID, entityID string) {
	key := knowledge.NoteKey(conversationID, noteID)
	if slices.Contains(r.NoteEntities[key], entityID) {
		return
	}
	r.NoteEntities[key] = append(r.NoteEntities[key], entityID)
}

// NoteEntityIDs returns the entity ids recorded for a note
func (r *EntityRecord) NoteEntityIDs(conversationID, noteID string) []string {
	return r.NoteEntities[knowledge.NoteKey(conversationID, noteID)]
}

// IsProcessed reports whether a conversation has been through entity extraction
func (r *EntityRecord) IsProcessed(conversationID string) bool {
	return slices.Contains(r.ProcessedConversations, conversationID)
}

// MarkProcessed records a conversation as extracted
func (r *EntityRecord) MarkProcessed(conversationID string) {
	if !r.IsProcessed(conversationID) {
		r.ProcessedConversations = append(r.ProcessedConversations, conversationID)
	}
}

// LinkRecord is the manual-link store snapshot
type LinkRecord struct {
	Version          int64                   `json:"version"`
	LastUpdated      time.Time               `json:"last_updated"`
	ManualLinks      []*knowledge.ManualLink `json:"manual_links"`
	EntityMerges     []knowledge.EntityMerge `json:"entity_merges"`
	DismissedLinks   []string                `json:"dismissed_links"`
	ReviewedEntities []string                `json:"reviewed_entities"`
}

// NewLinkRecord creates an empty link record
func NewLinkRecord() *LinkRecord {
	return &LinkRecord{}
}

// Link returns the manual link with the given id, or nil
func (r *LinkRecord) Link(id string) *knowledge.ManualLink {
	for _, l := range r.ManualLinks {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// RemoveLink deletes a manual link and any dismissal of it.
// Returns false when the link does not exist.
func (r *LinkRecord) RemoveLink(id string) bool {
	for i, l := range r.ManualLinks {
		if l.ID == id {
			r.ManualLinks = append(r.ManualLinks[:i], r.ManualLinks[i+1:]...)
			r.DismissedLinks = slices.DeleteFunc(r.DismissedLinks, func(d string) bool { return d == id })
			return true
		}
	}
	return false
}

// IsDismissed reports whether a manual link is hidden
func (r *LinkRecord) IsDismissed(id string) bool {
	return slices.Contains(r.DismissedLinks, id)
}

// Dismiss hides a manual link without deleting it
func (r *LinkRecord) Dismiss(id string) {
	if !r.IsDismissed(id) {
		r.DismissedLinks = append(r.DismissedLinks, id)
	}
}

// Restore un-hides a dismissed manual link
func (r *LinkRecord) Restore(id string) {
	r.DismissedLinks = slices.DeleteFunc(r.DismissedLinks, func(d string) bool { return d == id })
}

// IsReviewed reports whether an entity was marked as reviewed
func (r *LinkRecord) IsReviewed(entityID string) bool {
	return slices.Contains(r.ReviewedEntities, entityID)
}

// MarkReviewed appends entity ids to the reviewed set
func (r *LinkRecord) MarkReviewed(ids ...string) int {
	added := 0
	for _, id := range ids {
		if !r.IsReviewed(id) {
			r.ReviewedEntities = append(r.ReviewedEntities, id)
			added++
		}
	}
	return added
}

// Redirects returns the merge redirects recorded in the audit log
func (r *LinkRecord) Redirects() knowledge.Redirects {
	return knowledge.BuildRedirects(r.EntityMerges)
}
