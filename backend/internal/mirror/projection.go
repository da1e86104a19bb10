package mirror

import (
	"sort"

	"notegraph/backend/internal/graph"
	"notegraph/backend/internal/knowledge"
)

// projectionLabel marks every node the mirror owns so a re-export can clear them
const projectionLabel = "NoteGraph"

var nodeLabels = map[graph.NodeType]string{
	graph.NodeNote:   "Note",
	graph.NodeSource: "Source",
	graph.NodeEntity: "Entity",
}

var linkRelTypes = map[graph.LinkType]string{
	graph.LinkSequential: "SEQUENTIAL",
	graph.LinkMentions:   "MENTIONS",
	graph.LinkSharedTag:  "SHARED_TAG",
	graph.LinkManual:     "MANUAL",
}

// relationshipRelType is the Neo4j type of entity-to-entity relationships;
// the semantic type is a property
const relationshipRelType = "RELATES"

// batch is one UNWIND statement's worth of rows sharing a label or relationship type
type batch struct {
	Kind string
	Rows []map[string]any
}

// nodeBatches groups graph nodes by Neo4j label, in a fixed label order
func nodeBatches(g *graph.Graph) []batch {
	grouped := make(map[string][]map[string]any)
	for _, n := range g.Nodes {
		label, ok := nodeLabels[n.Type]
		if !ok {
			continue
		}
		grouped[label] = append(grouped[label], nodeProps(n))
	}
	return sortedBatches(grouped)
}

func nodeProps(n graph.Node) map[string]any {
	props := map[string]any{
		"id":    n.ID,
		"label": n.Label,
	}
	switch n.Type {
	case graph.NodeNote:
		props["conversation_id"] = n.ConversationID
		props["note_id"] = n.NoteID
		props["sequence_index"] = int64(n.SequenceIndex)
		props["tags"] = stringsOrEmpty(n.Tags)
	case graph.NodeSource:
		props["source_type"] = string(n.SourceType)
		props["url"] = n.URL
		props["note_count"] = int64(n.NoteCount)
	case graph.NodeEntity:
		props["entity_id"] = n.EntityID
		props["entity_type"] = string(n.EntityType)
		props["mention_count"] = int64(n.MentionCount)
	}
	return props
}

// linkBatches groups graph links by Neo4j relationship type
func linkBatches(g *graph.Graph) []batch {
	grouped := make(map[string][]map[string]any)
	for _, l := range g.Links {
		relType, ok := linkRelTypes[l.Type]
		if !ok {
			continue
		}
		grouped[relType] = append(grouped[relType], map[string]any{
			"source":    l.Source,
			"target":    l.Target,
			"tags":      stringsOrEmpty(l.Tags),
			"context":   l.Context,
			"label":     l.Label,
			"manual_id": l.ManualID,
		})
	}
	return sortedBatches(grouped)
}

// relationshipRows maps entity relationships onto entity node ids
func relationshipRows(g *graph.Graph) []map[string]any {
	rows := make([]map[string]any, 0, len(g.Relationships))
	for _, rel := range g.Relationships {
		rows = append(rows, map[string]any{
			"id":             rel.ID,
			"source":         knowledge.EntityNodeID(rel.SourceEntityID),
			"target":         knowledge.EntityNodeID(rel.TargetEntityID),
			"type":           string(rel.Type),
			"bidirectional":  rel.Bidirectional,
			"auto_generated": rel.AutoGenerated,
			"source_note":    rel.SourceNoteID,
		})
	}
	return rows
}

func sortedBatches(grouped map[string][]map[string]any) []batch {
	out := make([]batch, 0, len(grouped))
	for kind, rows := range grouped {
		out = append(out, batch{Kind: kind, Rows: rows})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// stringsOrEmpty avoids writing null list properties
func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
