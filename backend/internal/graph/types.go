// Package graph assembles the knowledge graph (notes, sources, entities and
// the links between them) from the note corpus and the two stored records.
package graph

import (
	"strings"

	"notegraph/backend/internal/knowledge"
)

// NodeType classifies a graph node
type NodeType string

const (
	NodeNote   NodeType = "note"
	NodeSource NodeType = "source"
	NodeEntity NodeType = "entity"
)

// LinkType classifies a graph link
type LinkType string

const (
	LinkSequential LinkType = "sequential"
	LinkMentions   LinkType = "mentions"
	LinkSharedTag  LinkType = "shared_tag"
	LinkManual     LinkType = "manual"
)

// LinkTypes lists every link type in a fixed order
var LinkTypes = []LinkType{LinkSequential, LinkMentions, LinkSharedTag, LinkManual}

// Node is a vertex of the graph. Which fields are set depends on Type.
type Node struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Label string   `json:"label"`

	// Note nodes
	ConversationID string   `json:"conversation_id,omitempty"`
	NoteID         string   `json:"note_id,omitempty"`
	SequenceIndex  int      `json:"sequence_index,omitempty"`
	Tags           []string `json:"tags,omitempty"`

	// Source nodes
	SourceType knowledge.SourceType `json:"source_type,omitempty"`
	URL        string               `json:"url,omitempty"`
	NoteCount  int                  `json:"note_count,omitempty"`

	// Entity nodes
	EntityID     string               `json:"entity_id,omitempty"`
	EntityType   knowledge.EntityType `json:"entity_type,omitempty"`
	MentionCount int                  `json:"mention_count,omitempty"`
}

// Link is an edge of the graph. Which fields are set depends on Type.
type Link struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   LinkType `json:"type"`

	Tag      string   `json:"tag,omitempty"`  // shared_tag: first shared tag
	Tags     []string `json:"tags,omitempty"` // shared_tag: every shared tag
	Context  string   `json:"context,omitempty"`
	Label    string   `json:"label,omitempty"`
	ManualID string   `json:"manual_id,omitempty"`
}

// Stats summarizes a built graph
type Stats struct {
	Notes                  int              `json:"notes"`
	Sources                int              `json:"sources"`
	Entities               int              `json:"entities"`
	Links                  int              `json:"links"`
	LinksByType            map[LinkType]int `json:"links_by_type"`
	Relationships          int              `json:"relationships"`
	ProcessedConversations int              `json:"processed_conversations"`
}

// Graph is a read-only projection of the stores. It is rebuilt on every read
// and never persisted.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
	Stats Stats  `json:"stats"`

	// Relationships between entities present in the graph, with merge
	// redirects applied
	Relationships []*knowledge.Relationship `json:"relationships"`

	nodeIndex     map[string]int
	notesBySource map[string][]string
	tagIndex      map[string][]string
	noteEntities  map[string][]string
	entityNotes   map[string][]string
}

func newGraph() *Graph {
	return &Graph{
		Nodes:         []Node{},
		Links:         []Link{},
		Relationships: []*knowledge.Relationship{},
		nodeIndex:     make(map[string]int),
		notesBySource: make(map[string][]string),
		tagIndex:      make(map[string][]string),
		noteEntities:  make(map[string][]string),
		entityNotes:   make(map[string][]string),
	}
}

func (g *Graph) addNode(n Node) bool {
	if _, exists := g.nodeIndex[n.ID]; exists {
		return false
	}
	g.nodeIndex[n.ID] = len(g.Nodes)
	g.Nodes = append(g.Nodes, n)
	return true
}

// Node returns the node with the given id
func (g *Graph) Node(id string) (*Node, bool) {
	i, ok := g.nodeIndex[id]
	if !ok {
		return nil, false
	}
	return &g.Nodes[i], true
}

// Has reports whether a node exists
func (g *Graph) Has(id string) bool {
	_, ok := g.nodeIndex[id]
	return ok
}

// NotesBySource returns a source's note node ids in sequence order
func (g *Graph) NotesBySource(conversationID string) []string {
	return g.notesBySource[conversationID]
}

// NotesWithTag returns the note node ids carrying a normalized tag
func (g *Graph) NotesWithTag(tag string) []string {
	return g.tagIndex[tag]
}

// EntitiesOf returns the entity node ids a note mentions
func (g *Graph) EntitiesOf(noteNodeID string) []string {
	return g.noteEntities[noteNodeID]
}

// NotesMentioning returns the note node ids that mention an entity
func (g *Graph) NotesMentioning(entityNodeID string) []string {
	return g.entityNotes[entityNodeID]
}

// LinksOfType returns the links of one type in graph order
func (g *Graph) LinksOfType(t LinkType) []Link {
	var out []Link
	for _, l := range g.Links {
		if l.Type == t {
			out = append(out, l)
		}
	}
	return out
}

// NormalizeTag lower-cases and trims a tag and strips leading '#'
func NormalizeTag(tag string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.ToLower(strings.TrimSpace(tag)), "#"))
}

// NormalizeTags normalizes and deduplicates tags, keeping first-seen order
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
