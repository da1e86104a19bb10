// Package related ranks the notes connected to a given note across five
// connection classes and explains each connection.
package related

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"notegraph/backend/internal/constants"
	"notegraph/backend/internal/graph"
	"notegraph/backend/internal/knowledge"
	"notegraph/backend/pkg/logger"
)

// ConnectionType is the class of connection a related note was found through
type ConnectionType string

const (
	ConnSharedTag       ConnectionType = "shared_tag"
	ConnSharedEntity    ConnectionType = "shared_entity"
	ConnViaRelationship ConnectionType = "via_relationship"
	ConnSequential      ConnectionType = "sequential"
	ConnSameSource      ConnectionType = "same_source"
)

// Direction of a sequential neighbour
const (
	DirectionNext     = "next"
	DirectionPrevious = "previous"
)

// PathInfo records how a related note was reached
type PathInfo struct {
	Tags             []string                   `json:"tags,omitempty"`
	Entity           string                     `json:"entity,omitempty"`
	FromEntity       string                     `json:"from_entity,omitempty"` // entity of the queried note
	ToEntity         string                     `json:"to_entity,omitempty"`   // entity of the related note
	RelationshipType knowledge.RelationshipType `json:"relationship_type,omitempty"`
	OriginIsSource   bool                       `json:"origin_is_source,omitempty"`
	Direction        string                     `json:"direction,omitempty"`
}

// NoteRef identifies a note in results
type NoteRef struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversation_id"`
	NoteID         string   `json:"note_id"`
	Title          string   `json:"title"`
	SequenceIndex  int      `json:"sequence_index"`
	Tags           []string `json:"tags,omitempty"`
}

// RelatedNote is one ranked connection
type RelatedNote struct {
	NoteRef
	Connection  ConnectionType `json:"connection"`
	Score       int            `json:"score"`
	Path        PathInfo       `json:"path"`
	Explanation string         `json:"explanation"`
}

// Related groups results by connection class
type Related struct {
	Sequential      []RelatedNote `json:"sequential"`
	SharedTag       []RelatedNote `json:"shared_tag"`
	SharedEntity    []RelatedNote `json:"shared_entity"`
	ViaRelationship []RelatedNote `json:"via_relationship"`
	SameSource      []RelatedNote `json:"same_source"`
}

// Result of a related-notes query. Found is false for unknown notes.
type Result struct {
	Found            bool     `json:"found"`
	Note             *NoteRef `json:"note,omitempty"`
	Related          Related  `json:"related"`
	TotalConnections int      `json:"total_connections"`
}

// GraphBuilder produces the graph a query runs against
type GraphBuilder interface {
	Build(ctx context.Context) (*graph.Graph, error)
}

// Engine answers related-note queries against a freshly built graph
type Engine struct {
	builder GraphBuilder
	logger  *zap.Logger
}

// NewEngine creates a related-notes engine
func NewEngine(builder GraphBuilder) *Engine {
	return &Engine{
		builder: builder,
		logger:  logger.Named("related"),
	}
}

// RelatedNotes builds the graph once and ranks the notes related to noteID.
// noteID is a note node id ("note:<conversation>:<note>") or "<conversation>:<note>".
// Only graph build failures are errors; an unknown note is a not-found result.
func (e *Engine) RelatedNotes(ctx context.Context, noteID string) (*Result, error) {
	g, err := e.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	res := Find(g, noteID)
	e.logger.Debug("Related notes computed",
		zap.String("note_id", noteID),
		zap.Bool("found", res.Found),
		zap.Int("connections", res.TotalConnections),
	)
	return res, nil
}

// Find ranks the notes related to noteID in g. Every class is scanned
// independently; a note keeps only its highest scoring connection, and the
// first one found on ties.
func Find(g *graph.Graph, noteID string) *Result {
	if !strings.HasPrefix(noteID, "note:") {
		noteID = "note:" + noteID
	}
	origin, ok := g.Node(noteID)
	if !ok || origin.Type != graph.NodeNote {
		return &Result{Found: false}
	}

	acc := newAccumulator(g, origin)
	acc.scanSharedTags()
	acc.scanSharedEntities()
	acc.scanRelationships()
	acc.scanSequential()
	acc.scanSameSource()

	ref := toRef(origin)
	res := &Result{Found: true, Note: &ref}
	for _, id := range acc.order {
		r := *acc.best[id]
		r.Explanation = Explain(r.Connection, r.Path)
		switch r.Connection {
		case ConnSequential:
			res.Related.Sequential = append(res.Related.Sequential, r)
		case ConnSharedTag:
			res.Related.SharedTag = append(res.Related.SharedTag, r)
		case ConnSharedEntity:
			res.Related.SharedEntity = append(res.Related.SharedEntity, r)
		case ConnViaRelationship:
			res.Related.ViaRelationship = append(res.Related.ViaRelationship, r)
		case ConnSameSource:
			res.Related.SameSource = append(res.Related.SameSource, r)
		}
	}
	res.TotalConnections = len(acc.order)

	bySequence(res.Related.Sequential)
	bySequence(res.Related.SameSource)
	byScore(res.Related.SharedTag)
	byScore(res.Related.SharedEntity)
	byScore(res.Related.ViaRelationship)
	return res
}

type accumulator struct {
	g      *graph.Graph
	origin *graph.Node
	order  []string
	best   map[string]*RelatedNote
}

func newAccumulator(g *graph.Graph, origin *graph.Node) *accumulator {
	return &accumulator{
		g:      g,
		origin: origin,
		best:   make(map[string]*RelatedNote),
	}
}

// offer keeps the candidate unless the note already has an equal or better connection
func (a *accumulator) offer(noteID string, conn ConnectionType, score int, path PathInfo) {
	if noteID == a.origin.ID {
		return
	}
	node, ok := a.g.Node(noteID)
	if !ok || node.Type != graph.NodeNote {
		return
	}
	cur, seen := a.best[noteID]
	if seen && cur.Score >= score {
		return
	}
	if !seen {
		a.order = append(a.order, noteID)
	}
	a.best[noteID] = &RelatedNote{
		NoteRef:    toRef(node),
		Connection: conn,
		Score:      score,
		Path:       path,
	}
}

func (a *accumulator) scanSharedTags() {
	if len(a.origin.Tags) == 0 {
		return
	}
	var candidates []string
	shared := make(map[string][]string)
	for _, tag := range a.origin.Tags {
		for _, id := range a.g.NotesWithTag(tag) {
			if id == a.origin.ID {
				continue
			}
			if _, seen := shared[id]; !seen {
				candidates = append(candidates, id)
			}
			shared[id] = append(shared[id], tag)
		}
	}
	for _, id := range candidates {
		node, _ := a.g.Node(id)
		score := constants.ScoreSharedTagCross
		if node.ConversationID == a.origin.ConversationID {
			score = constants.ScoreSharedTagSame
		}
		a.offer(id, ConnSharedTag, score, PathInfo{Tags: shared[id]})
	}
}

func (a *accumulator) scanSharedEntities() {
	for _, entityID := range a.g.EntitiesOf(a.origin.ID) {
		entity, ok := a.g.Node(entityID)
		if !ok {
			continue
		}
		for _, id := range a.g.NotesMentioning(entityID) {
			a.offer(id, ConnSharedEntity, constants.ScoreSharedEntity, PathInfo{Entity: entity.Label})
		}
	}
}

// scanRelationships walks note -> entity -> relationship -> entity -> note
func (a *accumulator) scanRelationships() {
	mine := make(map[string]struct{})
	for _, entityID := range a.g.EntitiesOf(a.origin.ID) {
		mine[entityID] = struct{}{}
	}
	if len(mine) == 0 {
		return
	}

	for _, rel := range a.g.Relationships {
		source := knowledge.EntityNodeID(rel.SourceEntityID)
		target := knowledge.EntityNodeID(rel.TargetEntityID)
		if _, ok := mine[source]; ok {
			a.offerRelated(target, PathInfo{
				FromEntity:       rel.SourceEntityName,
				ToEntity:         rel.TargetEntityName,
				RelationshipType: rel.Type,
				OriginIsSource:   true,
			})
		}
		if _, ok := mine[target]; ok {
			a.offerRelated(source, PathInfo{
				FromEntity:       rel.TargetEntityName,
				ToEntity:         rel.SourceEntityName,
				RelationshipType: rel.Type,
				OriginIsSource:   false,
			})
		}
	}
}

func (a *accumulator) offerRelated(entityID string, path PathInfo) {
	for _, id := range a.g.NotesMentioning(entityID) {
		a.offer(id, ConnViaRelationship, constants.ScoreViaRelationship, path)
	}
}

func (a *accumulator) scanSequential() {
	siblings := a.g.NotesBySource(a.origin.ConversationID)
	for i, id := range siblings {
		if id != a.origin.ID {
			continue
		}
		if i > 0 {
			a.offer(siblings[i-1], ConnSequential, constants.ScoreSequential, PathInfo{Direction: DirectionPrevious})
		}
		if i+1 < len(siblings) {
			a.offer(siblings[i+1], ConnSequential, constants.ScoreSequential, PathInfo{Direction: DirectionNext})
		}
		return
	}
}

func (a *accumulator) scanSameSource() {
	for _, id := range a.g.NotesBySource(a.origin.ConversationID) {
		a.offer(id, ConnSameSource, constants.ScoreSameSource, PathInfo{})
	}
}

func toRef(n *graph.Node) NoteRef {
	return NoteRef{
		ID:             n.ID,
		ConversationID: n.ConversationID,
		NoteID:         n.NoteID,
		Title:          n.Label,
		SequenceIndex:  n.SequenceIndex,
		Tags:           n.Tags,
	}
}

func bySequence(notes []RelatedNote) {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].SequenceIndex < notes[j].SequenceIndex
	})
}

func byScore(notes []RelatedNote) {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Score > notes[j].Score
	})
}
