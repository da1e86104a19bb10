package review

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"notegraph/backend/internal/knowledge"
	"notegraph/backend/internal/store"
	apperrors "notegraph/backend/pkg/errors"
)

// MergeResult reports what a merge changed
type MergeResult struct {
	Merge                knowledge.EntityMerge `json:"merge"`
	MentionsMoved        int                   `json:"mentions_moved"`
	RelationshipsUpdated int                   `json:"relationships_updated"`
	RelationshipsDropped int                   `json:"relationships_dropped"`
}

// Merge folds mergeIDs into canonicalID. Mentions move to the canonical entity,
// the note index and relationships are rewritten to the canonical id,
// relationships that become self-loops or duplicates are dropped, the merged
// entities are deleted and an audit record is appended. The link record is
// saved before the entity record.
func (s *Service) Merge(ctx context.Context, canonicalID string, mergeIDs []string) (*MergeResult, error) {
	canonicalID = strings.TrimSpace(canonicalID)
	if canonicalID == "" {
		return nil, apperrors.NewValidation("canonical", "required")
	}
	ids := dedupe(mergeIDs)
	if len(ids) == 0 {
		return nil, apperrors.NewInvalidMerge(canonicalID, nil, "no entities to merge")
	}
	for _, id := range ids {
		if id == canonicalID {
			return nil, apperrors.NewInvalidMerge(canonicalID, nil, "an entity cannot be merged into itself")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.entities.LoadEntities(ctx)
	if err != nil {
		return nil, err
	}
	canonical := rec.Entity(canonicalID)
	if canonical == nil {
		return nil, apperrors.NewNotFound("entity", canonicalID)
	}
	var missing []string
	for _, id := range ids {
		if rec.Entity(id) == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewInvalidMerge(canonicalID, missing, "unknown entities")
	}

	links, err := s.links.LoadLinks(ctx)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{}
	merged := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		merged[id] = struct{}{}
		for _, m := range rec.Entities[id].Mentions {
			if canonical.AddMention(m) {
				result.MentionsMoved++
			}
		}
		delete(rec.Entities, id)
	}

	rewriteNoteIndex(rec, merged, canonicalID)
	result.RelationshipsUpdated, result.RelationshipsDropped = rewriteRelationships(rec, merged, canonical)

	result.Merge = knowledge.EntityMerge{
		Canonical: canonicalID,
		Merged:    ids,
		MergedAt:  s.now().UTC(),
	}
	links.EntityMerges = append(links.EntityMerges, result.Merge)

	// The audit record goes first: a redirect to a still-live entity is
	// harmless, and retrying the merge completes it
	if err := s.links.SaveLinks(ctx, links); err != nil {
		return nil, err
	}
	if err := s.entities.SaveEntities(ctx, rec); err != nil {
		s.logger.Error("Merge recorded but entities not saved",
			zap.String("canonical", canonicalID),
			zap.Strings("merged", ids),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Entities merged",
		zap.String("canonical", canonicalID),
		zap.Strings("merged", ids),
		zap.Int("mentions_moved", result.MentionsMoved),
		zap.Int("relationships_updated", result.RelationshipsUpdated),
		zap.Int("relationships_dropped", result.RelationshipsDropped),
	)
	return result, nil
}

// rewriteNoteIndex points every note index entry at the canonical id, without duplicates
func rewriteNoteIndex(rec *store.EntityRecord, merged map[string]struct{}, canonicalID string) {
	for key, ids := range rec.NoteEntities {
		out := make([]string, 0, len(ids))
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := merged[id]; ok {
				id = canonicalID
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
		rec.NoteEntities[key] = out
	}
}

// rewriteRelationships moves relationship endpoints to the canonical entity.
// Returns how many were rewritten and how many were dropped as self-loops or duplicates.
func rewriteRelationships(rec *store.EntityRecord, merged map[string]struct{}, canonical *knowledge.Entity) (updated, dropped int) {
	kept := make([]*knowledge.Relationship, 0, len(rec.Relationships))
	seen := make(map[knowledge.Triple]struct{}, len(rec.Relationships))
	for _, rel := range rec.Relationships {
		changed := false
		if _, ok := merged[rel.SourceEntityID]; ok {
			rel.SourceEntityID, rel.SourceEntityName = canonical.ID, canonical.Name
			changed = true
		}
		if _, ok := merged[rel.TargetEntityID]; ok {
			rel.TargetEntityID, rel.TargetEntityName = canonical.ID, canonical.Name
			changed = true
		}
		if rel.SourceEntityID == rel.TargetEntityID {
			dropped++
			continue
		}
		if _, dup := seen[rel.Key()]; dup {
			dropped++
			continue
		}
		seen[rel.Key()] = struct{}{}
		if changed {
			updated++
		}
		kept = append(kept, rel)
	}
	rec.Relationships = kept
	return updated, dropped
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
