package review

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"notegraph/backend/internal/entity"
	"notegraph/backend/internal/knowledge"
	apperrors "notegraph/backend/pkg/errors"
)

// Candidate is one entity inside a duplicate group
type Candidate struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Type     knowledge.EntityType `json:"type"`
	Mentions int                  `json:"mentions"`
}

// DuplicateGroup is a set of entities whose names look alike. Entities are
// ordered by mentions (descending) then id; the first is the suggested canonical.
type DuplicateGroup struct {
	Canonical string      `json:"canonical"`
	Entities  []Candidate `json:"entities"`
	// Similarity is the highest pairwise name similarity inside the group
	Similarity float64 `json:"similarity"`
}

// FindDuplicates groups live entities whose names are similar at or above the
// threshold, or equal ignoring whitespace. Similar pairs join transitively.
// A pair where both entities were already reviewed is not considered.
func (s *Service) FindDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	rec, err := s.entities.LoadEntities(ctx)
	if err != nil {
		return nil, err
	}
	links, err := s.links.LoadLinks(ctx)
	if err != nil {
		return nil, err
	}

	entities := rec.SortedEntities()
	parent := make([]int, len(entities))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	type pair struct {
		i, j int
		sim  float64
	}
	var pairs []pair
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			if links.IsReviewed(a.ID) && links.IsReviewed(b.ID) {
				continue
			}
			sim := entity.Similarity(a.Name, b.Name)
			if sim < s.threshold && entity.Compact(a.Name) != entity.Compact(b.Name) {
				continue
			}
			pairs = append(pairs, pair{i: i, j: j, sim: sim})
			if ri, rj := find(i), find(j); ri != rj {
				parent[rj] = ri
			}
		}
	}

	best := make(map[int]float64)
	for _, p := range pairs {
		r := find(p.i)
		if p.sim > best[r] {
			best[r] = p.sim
		}
	}

	members := make(map[int][]Candidate)
	var roots []int
	for i, e := range entities {
		r := find(i)
		if _, seen := members[r]; !seen {
			roots = append(roots, r)
		}
		members[r] = append(members[r], Candidate{
			ID:       e.ID,
			Name:     e.Name,
			Type:     e.Type,
			Mentions: len(e.Mentions),
		})
	}

	var groups []DuplicateGroup
	for _, r := range roots {
		cands := members[r]
		if len(cands) < 2 {
			continue
		}
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].Mentions != cands[j].Mentions {
				return cands[i].Mentions > cands[j].Mentions
			}
			return cands[i].ID < cands[j].ID
		})
		groups = append(groups, DuplicateGroup{
			Canonical:  cands[0].ID,
			Entities:   cands,
			Similarity: best[r],
		})
	}

	s.logger.Debug("Duplicate scan finished",
		zap.Int("entities", len(entities)),
		zap.Int("groups", len(groups)),
	)
	return groups, nil
}

// MarkReviewed adds entities to the reviewed set so pairs among them are not
// offered again. Returns how many ids were newly added.
func (s *Service) MarkReviewed(ctx context.Context, ids ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.entities.LoadEntities(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if rec.Entity(id) == nil {
			return 0, apperrors.NewNotFound("entity", id)
		}
	}

	links, err := s.links.LoadLinks(ctx)
	if err != nil {
		return 0, err
	}
	added := links.MarkReviewed(ids...)
	if added == 0 {
		return 0, nil
	}
	if err := s.links.SaveLinks(ctx, links); err != nil {
		return 0, err
	}

	s.logger.Info("Entities marked reviewed", zap.Int("added", added))
	return added, nil
}
