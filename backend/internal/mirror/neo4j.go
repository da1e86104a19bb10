// Package mirror projects a built knowledge graph into Neo4j for exploration
// with Cypher. The projection is rebuilt on every export and is never read back
// as the system of record.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"notegraph/backend/internal/graph"
	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

// ExportStats reports what a projection contains after an export
type ExportStats struct {
	Nodes    map[string]int64 `json:"nodes"` // by label
	Links    map[string]int64 `json:"links"` // by relationship type
	Duration time.Duration    `json:"duration"`
}

// Neo4jMirror writes graph projections through a Neo4j driver
type Neo4jMirror struct {
	driver neo4j.DriverWithContext
	uri    string
	logger *zap.Logger
}

// NewNeo4jMirror creates a mirror over an existing driver
func NewNeo4jMirror(driver neo4j.DriverWithContext, uri string) *Neo4jMirror {
	return &Neo4jMirror{
		driver: driver,
		uri:    uri,
		logger: logger.Named("mirror"),
	}
}

// Connect opens a driver and verifies the server is reachable
func Connect(ctx context.Context, uri, user, password string) (*Neo4jMirror, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewMirrorFailed(uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperrors.NewMirrorFailed(uri, err)
	}
	return NewNeo4jMirror(driver, uri), nil
}

// Close closes the Neo4j driver connection
func (m *Neo4jMirror) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}

const (
	indexQuery = `CREATE INDEX notegraph_node_id IF NOT EXISTS FOR (n:NoteGraph) ON (n.id)`
	clearQuery = `MATCH (n:NoteGraph) DETACH DELETE n`

	mergeNodesQuery = `
		UNWIND $rows AS row
		MERGE (n:NoteGraph {id: row.id})
		SET n:%s, n += row
	`
	mergeLinksQuery = `
		UNWIND $rows AS row
		MATCH (a:NoteGraph {id: row.source})
		MATCH (b:NoteGraph {id: row.target})
		MERGE (a)-[r:%s]->(b)
		SET r.tags = row.tags,
		    r.context = row.context,
		    r.label = row.label,
		    r.manual_id = row.manual_id
	`
	mergeRelationshipsQuery = `
		UNWIND $rows AS row
		MATCH (a:Entity {id: row.source})
		MATCH (b:Entity {id: row.target})
		MERGE (a)-[r:RELATES {type: row.type}]->(b)
		SET r.id = row.id,
		    r.bidirectional = row.bidirectional,
		    r.auto_generated = row.auto_generated,
		    r.source_note = row.source_note
	`
	countNodesQuery = `
		MATCH (n:NoteGraph)
		WITH [l IN labels(n) WHERE l <> 'NoteGraph'][0] AS label
		RETURN label, count(*) AS total
	`
	countLinksQuery = `
		MATCH (:NoteGraph)-[r]->(:NoteGraph)
		RETURN type(r) AS label, count(r) AS total
	`
)

// Export replaces the previous projection with g inside one write transaction
func (m *Neo4jMirror) Export(ctx context.Context, g *graph.Graph) (*ExportStats, error) {
	start := time.Now()

	session := m.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	// Schema statements cannot share a transaction with writes
	if _, err := session.Run(ctx, indexQuery, nil); err != nil {
		return nil, apperrors.NewMirrorFailed(m.uri, fmt.Errorf("failed to ensure index: %w", err))
	}

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, clearQuery, nil); err != nil {
			return nil, fmt.Errorf("failed to clear projection: %w", err)
		}
		for _, b := range nodeBatches(g) {
			if _, err := tx.Run(ctx, fmt.Sprintf(mergeNodesQuery, b.Kind), map[string]any{"rows": b.Rows}); err != nil {
				return nil, fmt.Errorf("failed to write %s nodes: %w", b.Kind, err)
			}
		}
		for _, b := range linkBatches(g) {
			if _, err := tx.Run(ctx, fmt.Sprintf(mergeLinksQuery, b.Kind), map[string]any{"rows": b.Rows}); err != nil {
				return nil, fmt.Errorf("failed to write %s links: %w", b.Kind, err)
			}
		}
		if rows := relationshipRows(g); len(rows) > 0 {
			if _, err := tx.Run(ctx, mergeRelationshipsQuery, map[string]any{"rows": rows}); err != nil {
				return nil, fmt.Errorf("failed to write relationships: %w", err)
			}
		}

		stats := &ExportStats{}
		var err error
		if stats.Nodes, err = countBy(ctx, tx, countNodesQuery); err != nil {
			return nil, err
		}
		if stats.Links, err = countBy(ctx, tx, countLinksQuery); err != nil {
			return nil, err
		}
		return stats, nil
	})
	if err != nil {
		m.logger.Error("Graph export failed", zap.String("uri", m.uri), zap.Error(err))
		return nil, apperrors.NewMirrorFailed(m.uri, err)
	}

	stats := out.(*ExportStats)
	stats.Duration = time.Since(start)
	m.logger.Info("Graph exported",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("links", len(g.Links)),
		zap.Int("relationships", len(g.Relationships)),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// countBy runs a query returning (label, total) rows and collects them
func countBy(ctx context.Context, tx neo4j.ManagedTransaction, query string) (map[string]int64, error) {
	result, err := tx.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		label, total := labelCount(result.Record())
		counts[label] = total
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch record: %w", err)
	}
	return counts, nil
}

// labelCount reads one (label, total) row. Labels missing from a row count
// under the empty string.
func labelCount(record *neo4j.Record) (string, int64) {
	var label string
	if val, ok := record.Get("label"); ok {
		label, _ = val.(string)
	}
	var total int64
	if val, ok := record.Get("total"); ok {
		total, _ = val.(int64)
	}
	return label, total
}
