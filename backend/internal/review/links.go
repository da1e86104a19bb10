package review

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"notegraph/backend/internal/knowledge"
	"notegraph/backend/internal/store"
	apperrors "notegraph/backend/pkg/errors"
)

// LinkStatus is a manual link with its dismissal state
type LinkStatus struct {
	*knowledge.ManualLink
	Dismissed bool `json:"dismissed"`
}

// AddLink records a user-asserted link between two graph nodes. Adding a link
// that already exists between the same endpoints returns the existing one.
func (s *Service) AddLink(ctx context.Context, source, target, label string) (*knowledge.ManualLink, error) {
	source, target = strings.TrimSpace(source), strings.TrimSpace(target)
	if source == "" {
		return nil, apperrors.NewValidation("source", "required")
	}
	if target == "" {
		return nil, apperrors.NewValidation("target", "required")
	}
	if source == target {
		return nil, apperrors.NewValidation("target", "must differ from source")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.links.LoadLinks(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range rec.ManualLinks {
		if l.Source == source && l.Target == target {
			return l, nil
		}
	}

	link := &knowledge.ManualLink{
		ID:        knowledge.NewID(),
		Source:    source,
		Target:    target,
		Label:     strings.TrimSpace(label),
		CreatedAt: s.now().UTC(),
	}
	rec.ManualLinks = append(rec.ManualLinks, link)
	if err := s.links.SaveLinks(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("Manual link added",
		zap.String("link_id", link.ID),
		zap.String("source", source),
		zap.String("target", target),
	)
	return link, nil
}

// RemoveLink deletes a manual link
func (s *Service) RemoveLink(ctx context.Context, id string) error {
	return s.updateLink(ctx, id, "removed", func(rec *store.LinkRecord) {
		rec.RemoveLink(id)
	})
}

// DismissLink hides a manual link from the graph without deleting it
func (s *Service) DismissLink(ctx context.Context, id string) error {
	return s.updateLink(ctx, id, "dismissed", func(rec *store.LinkRecord) {
		rec.Dismiss(id)
	})
}

// RestoreLink shows a dismissed manual link again
func (s *Service) RestoreLink(ctx context.Context, id string) error {
	return s.updateLink(ctx, id, "restored", func(rec *store.LinkRecord) {
		rec.Restore(id)
	})
}

// ListLinks returns manual links in creation order
func (s *Service) ListLinks(ctx context.Context, includeDismissed bool) ([]LinkStatus, error) {
	rec, err := s.links.LoadLinks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]LinkStatus, 0, len(rec.ManualLinks))
	for _, l := range rec.ManualLinks {
		dismissed := rec.IsDismissed(l.ID)
		if dismissed && !includeDismissed {
			continue
		}
		out = append(out, LinkStatus{ManualLink: l, Dismissed: dismissed})
	}
	return out, nil
}

func (s *Service) updateLink(ctx context.Context, id, action string, mutate func(*store.LinkRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.links.LoadLinks(ctx)
	if err != nil {
		return err
	}
	if rec.Link(id) == nil {
		return apperrors.NewNotFound("manual link", id)
	}
	mutate(rec)
	if err := s.links.SaveLinks(ctx, rec); err != nil {
		return err
	}

	s.logger.Info("Manual link "+action, zap.String("link_id", id))
	return nil
}
