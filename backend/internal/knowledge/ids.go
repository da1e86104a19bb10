package knowledge

import (
	"strings"

	"github.com/google/uuid"

	"notegraph/backend/internal/constants"
)

// Graph node id prefixes
const (
	notePrefix   = "note:"
	sourcePrefix = "source:"
	entityPrefix = "entity:"
)

// NoteNodeID returns the graph id of a note
func NoteNodeID(conversationID, noteID string) string {
	return notePrefix + conversationID + ":" + noteID
}

// SourceNodeID returns the graph id of a source
func SourceNodeID(conversationID string) string {
	return sourcePrefix + conversationID
}

// EntityNodeID returns the graph id of an entity
func EntityNodeID(entityID string) string {
	return entityPrefix + entityID
}

// ParseEntityNodeID extracts the entity id from an entity node id
func ParseEntityNodeID(nodeID string) (string, bool) {
	if !strings.HasPrefix(nodeID, entityPrefix) {
		return "", false
	}
	return strings.TrimPrefix(nodeID, entityPrefix), true
}

// NoteKey identifies a note in the note→entity index
func NoteKey(conversationID, noteID string) string {
	return conversationID + ":" + noteID
}

// NewEntityID returns a short random entity id
func NewEntityID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:constants.EntityIDLength]
}

// NewID returns a random id for relationships, links and jobs
func NewID() string {
	return uuid.New().String()
}

// Redirects maps merged-away entity ids to their canonical id
type Redirects map[string]string

// BuildRedirects replays the merge log. Chains (a merged into b, b later into c)
// collapse to the final canonical id.
func BuildRedirects(merges []EntityMerge) Redirects {
	r := make(Redirects)
	for _, m := range merges {
		for _, id := range m.Merged {
			r[id] = m.Canonical
		}
	}
	return r
}

// Resolve follows redirects to the live id
func (r Redirects) Resolve(id string) string {
	seen := 0
	for {
		next, ok := r[id]
		if !ok || next == id || seen > len(r) {
			return id
		}
		id = next
		seen++
	}
}

// ResolveNode rewrites an entity node id through the redirects; other node ids pass through
func (r Redirects) ResolveNode(nodeID string) string {
	if entityID, ok := ParseEntityNodeID(nodeID); ok {
		return EntityNodeID(r.Resolve(entityID))
	}
	return nodeID
}
