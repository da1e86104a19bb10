package relation

import (
	"strings"

	"go.uber.org/zap"

	"notegraph/backend/internal/knowledge"
	"notegraph/backend/internal/store"
	"notegraph/backend/pkg/logger"
)

// splitCompound splits a name on hyphens, underscores and spaces
func splitCompound(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
}

// InferHierarchy adds a specialization_of relationship from every compound
// entity ("unix-philosophy") to the entity named by its first part ("unix").
// Safe to re-run: existing triples are skipped. Returns the number added.
func InferHierarchy(rec *store.EntityRecord) int {
	log := logger.Named("relation")

	entities := rec.SortedEntities()
	byName := make(map[string]*knowledge.Entity, len(entities))
	for _, e := range entities {
		key := strings.ToLower(strings.TrimSpace(e.Name))
		if _, taken := byName[key]; !taken {
			byName[key] = e
		}
	}

	idx := NewIndex(rec)
	added := 0
	for _, e := range entities {
		parts := splitCompound(e.Name)
		if len(parts) < 2 {
			continue
		}
		root, ok := byName[strings.ToLower(parts[0])]
		if !ok || root.ID == e.ID {
			continue
		}

		rel := New(e, root, knowledge.RelSpecializationOf)
		rel.AutoGenerated = true
		if Append(rec, idx, rel) {
			added++
			log.Debug("Inferred specialization",
				zap.String("entity", e.Name),
				zap.String("root", root.Name),
			)
		}
	}

	if added > 0 {
		log.Info("Hierarchical inference added relationships", zap.Int("added", added))
	}
	return added
}
