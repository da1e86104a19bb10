// Package review holds the user-facing curation operations: manual links,
// duplicate entity review and entity merges.
package review

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"notegraph/backend/internal/constants"
	"notegraph/backend/internal/store"
	"notegraph/backend/pkg/logger"
)

// Service performs review operations against the two records. Each operation
// loads, mutates and saves; operations on one Service are serialized.
type Service struct {
	entities  store.EntityRepository
	links     store.LinkRepository
	threshold float64
	now       func() time.Time
	mu        sync.Mutex
	logger    *zap.Logger
}

// NewService creates a review service. A non-positive threshold uses the default duplicate threshold.
func NewService(entities store.EntityRepository, links store.LinkRepository, threshold float64) *Service {
	if threshold <= 0 {
		threshold = constants.DuplicateThreshold
	}
	return &Service{
		entities:  entities,
		links:     links,
		threshold: threshold,
		now:       time.Now,
		logger:    logger.Named("review"),
	}
}

// Canonical follows merge redirects to the live id of an entity
func (s *Service) Canonical(ctx context.Context, entityID string) (string, error) {
	rec, err := s.links.LoadLinks(ctx)
	if err != nil {
		return "", err
	}
	return rec.Redirects().Resolve(entityID), nil
}
