package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"notegraph/backend/internal/knowledge"
	"notegraph/backend/internal/notes"
	"notegraph/backend/internal/store"
	"notegraph/backend/pkg/logger"
)

// Builder loads current state and assembles a fresh graph on every call
type Builder struct {
	notes    notes.Source
	entities store.EntityRepository
	links    store.LinkRepository
	logger   *zap.Logger
}

// NewBuilder creates a graph builder
func NewBuilder(source notes.Source, entities store.EntityRepository, links store.LinkRepository) *Builder {
	return &Builder{
		notes:    source,
		entities: entities,
		links:    links,
		logger:   logger.Named("graph"),
	}
}

// Build loads the indexable sources and both records and assembles the graph.
// Only load failures are errors; stale or dangling data is skipped.
func (b *Builder) Build(ctx context.Context) (*Graph, error) {
	start := time.Now()

	sources, err := b.notes.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	entities, err := b.entities.LoadEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}
	links, err := b.links.LoadLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}

	g := Assemble(notes.Indexable(sources), entities, links)

	b.logger.Debug("Graph built",
		zap.Int("notes", g.Stats.Notes),
		zap.Int("sources", g.Stats.Sources),
		zap.Int("entities", g.Stats.Entities),
		zap.Int("links", g.Stats.Links),
		zap.Duration("took", time.Since(start)),
	)
	return g, nil
}

// Assemble builds the graph from already loaded state. It never fails and
// is deterministic: sources are visited by id, notes by sequence index and
// entities by id.
func Assemble(sources []knowledge.Source, entities *store.EntityRecord, links *store.LinkRecord) *Graph {
	if entities == nil {
		entities = store.NewEntityRecord()
	}
	if links == nil {
		links = store.NewLinkRecord()
	}
	redirects := links.Redirects()

	g := newGraph()
	g.addSources(sources)
	g.addSharedTags()
	g.addEntities(entities)
	g.addRelationships(entities, redirects)
	g.addManualLinks(links, redirects)
	g.computeStats(entities)
	return g
}

// addSources emits source and note nodes and the sequential chain per source
func (g *Graph) addSources(sources []knowledge.Source) {
	sorted := make([]knowledge.Source, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, src := range sorted {
		sourceNode := Node{
			ID:         knowledge.SourceNodeID(src.ID),
			Type:       NodeSource,
			Label:      src.Title,
			SourceType: src.SourceType,
			URL:        src.URL,
		}
		if !g.addNode(sourceNode) {
			continue
		}

		noteList := make([]knowledge.Note, len(src.Notes))
		copy(noteList, src.Notes)
		sort.SliceStable(noteList, func(i, j int) bool {
			return noteList[i].SequenceIndex < noteList[j].SequenceIndex
		})

		prev := ""
		for _, n := range noteList {
			id := knowledge.NoteNodeID(src.ID, n.NoteID)
			tags := NormalizeTags(n.Tags)
			added := g.addNode(Node{
				ID:             id,
				Type:           NodeNote,
				Label:          n.Title,
				ConversationID: src.ID,
				NoteID:         n.NoteID,
				SequenceIndex:  n.SequenceIndex,
				Tags:           tags,
			})
			if !added {
				continue
			}

			g.notesBySource[src.ID] = append(g.notesBySource[src.ID], id)
			for _, t := range tags {
				g.tagIndex[t] = append(g.tagIndex[t], id)
			}
			if prev != "" {
				g.Links = append(g.Links, Link{Source: prev, Target: id, Type: LinkSequential})
			}
			prev = id
		}
		g.Nodes[g.nodeIndex[sourceNode.ID]].NoteCount = len(g.notesBySource[src.ID])
	}
}

// addSharedTags emits one shared_tag link per cross-source note pair. A pair
// sharing several tags gets one link carrying all of them.
func (g *Graph) addSharedTags() {
	tags := make([]string, 0, len(g.tagIndex))
	for t := range g.tagIndex {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	pairs := make(map[[2]string]int)
	for _, tag := range tags {
		ids := g.tagIndex[tag]
		for i := 0; i < len(ids); i++ {
			a, _ := g.Node(ids[i])
			for j := i + 1; j < len(ids); j++ {
				b, _ := g.Node(ids[j])
				if a.ConversationID == b.ConversationID {
					continue
				}
				key := [2]string{ids[i], ids[j]}
				if key[1] < key[0] {
					key[0], key[1] = key[1], key[0]
				}
				if at, seen := pairs[key]; seen {
					g.Links[at].Tags = append(g.Links[at].Tags, tag)
					continue
				}
				pairs[key] = len(g.Links)
				g.Links = append(g.Links, Link{
					Source: ids[i],
					Target: ids[j],
					Type:   LinkSharedTag,
					Tag:    tag,
					Tags:   []string{tag},
				})
			}
		}
	}
}

// addEntities emits entity nodes and mention links. Mentions of notes that
// are not in the graph are dropped.
func (g *Graph) addEntities(entities *store.EntityRecord) {
	for _, e := range entities.SortedEntities() {
		if len(e.Mentions) == 0 {
			continue
		}
		nodeID := knowledge.EntityNodeID(e.ID)
		g.addNode(Node{
			ID:           nodeID,
			Type:         NodeEntity,
			Label:        e.Name,
			EntityID:     e.ID,
			EntityType:   e.Type,
			MentionCount: len(e.Mentions),
		})

		seen := make(map[string]struct{}, len(e.Mentions))
		for _, m := range e.Mentions {
			noteID := knowledge.NoteNodeID(m.ConversationID, m.NoteID)
			note, ok := g.Node(noteID)
			if !ok || note.Type != NodeNote {
				continue
			}
			if _, dup := seen[noteID]; dup {
				continue
			}
			seen[noteID] = struct{}{}

			g.Links = append(g.Links, Link{
				Source:  nodeID,
				Target:  noteID,
				Type:    LinkMentions,
				Context: m.Context,
			})
			g.noteEntities[noteID] = append(g.noteEntities[noteID], nodeID)
			g.entityNotes[nodeID] = append(g.entityNotes[nodeID], noteID)
		}
	}
}

// addRelationships keeps relationships whose endpoints are entity nodes,
// following merge redirects for ids recorded before a merge
func (g *Graph) addRelationships(entities *store.EntityRecord, redirects knowledge.Redirects) {
	seen := make(map[knowledge.Triple]struct{}, len(entities.Relationships))
	for _, rel := range entities.Relationships {
		sourceID := redirects.Resolve(rel.SourceEntityID)
		targetID := redirects.Resolve(rel.TargetEntityID)
		if sourceID == targetID {
			continue
		}
		source, ok := g.Node(knowledge.EntityNodeID(sourceID))
		if !ok {
			continue
		}
		target, ok := g.Node(knowledge.EntityNodeID(targetID))
		if !ok {
			continue
		}

		r := *rel
		r.SourceEntityID, r.SourceEntityName = sourceID, source.Label
		r.TargetEntityID, r.TargetEntityName = targetID, target.Label
		if _, dup := seen[r.Key()]; dup {
			continue
		}
		seen[r.Key()] = struct{}{}
		g.Relationships = append(g.Relationships, &r)
	}
}

// addManualLinks emits non-dismissed manual links whose endpoints exist
func (g *Graph) addManualLinks(links *store.LinkRecord, redirects knowledge.Redirects) {
	for _, ml := range links.ManualLinks {
		if links.IsDismissed(ml.ID) {
			continue
		}
		source := redirects.ResolveNode(ml.Source)
		target := redirects.ResolveNode(ml.Target)
		if source == target || !g.Has(source) || !g.Has(target) {
			continue
		}
		g.Links = append(g.Links, Link{
			Source:   source,
			Target:   target,
			Type:     LinkManual,
			Label:    ml.Label,
			ManualID: ml.ID,
		})
	}
}

func (g *Graph) computeStats(entities *store.EntityRecord) {
	s := Stats{LinksByType: make(map[LinkType]int, len(LinkTypes))}
	for _, t := range LinkTypes {
		s.LinksByType[t] = 0
	}
	for _, n := range g.Nodes {
		switch n.Type {
		case NodeNote:
			s.Notes++
		case NodeSource:
			s.Sources++
		case NodeEntity:
			s.Entities++
		}
	}
	for _, l := range g.Links {
		s.LinksByType[l.Type]++
	}
	s.Links = len(g.Links)
	s.Relationships = len(g.Relationships)
	s.ProcessedConversations = len(entities.ProcessedConversations)
	g.Stats = s
}
