// Package notes supplies the sources and notes the knowledge graph is built from.
package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"notegraph/backend/internal/knowledge"
	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

// Source lists every source together with its notes
type Source interface {
	ListSources(ctx context.Context) ([]knowledge.Source, error)
}

// corpus is the on-disk layout of a notes file
type corpus struct {
	Sources []knowledge.Source `json:"sources" yaml:"sources"`
}

// FileSource reads sources from a YAML or JSON corpus file, chosen by extension
type FileSource struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger
}

// NewFileSource creates a corpus reader for path on fs
func NewFileSource(fs afero.Fs, path string) *FileSource {
	return &FileSource{
		fs:     fs,
		path:   path,
		logger: logger.Named("notes"),
	}
}

// ListSources reads the corpus. A missing file yields no sources.
func (s *FileSource) ListSources(ctx context.Context) ([]knowledge.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewContextCancelled("list sources", err)
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if exists, _ := afero.Exists(s.fs, s.path); !exists {
			s.logger.Warn("Notes file not found", zap.String("path", s.path))
			return nil, nil
		}
		return nil, apperrors.NewStoreIO(s.path, "read", err)
	}

	var c corpus
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".json":
		err = json.Unmarshal(data, &c)
	default:
		err = yaml.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse notes file %s: %w", s.path, err)
	}

	for i := range c.Sources {
		normalizeSource(&c.Sources[i])
	}
	s.logger.Debug("Notes loaded",
		zap.String("path", s.path),
		zap.Int("sources", len(c.Sources)),
	)
	return c.Sources, nil
}

// StaticSource serves a fixed list of sources
type StaticSource []knowledge.Source

// ListSources returns a normalized copy of the list
func (s StaticSource) ListSources(ctx context.Context) ([]knowledge.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewContextCancelled("list sources", err)
	}
	out := make([]knowledge.Source, len(s))
	for i, src := range s {
		src.Notes = append([]knowledge.Note(nil), src.Notes...)
		normalizeSource(&src)
		out[i] = src
	}
	return out, nil
}

// normalizeSource stamps each note with its conversation id and, when no note
// carries a sequence index, numbers notes in file order
func normalizeSource(src *knowledge.Source) {
	indexed := false
	for _, n := range src.Notes {
		if n.SequenceIndex != 0 {
			indexed = true
			break
		}
	}
	for i := range src.Notes {
		src.Notes[i].ConversationID = src.ID
		if !indexed {
			src.Notes[i].SequenceIndex = i
		}
	}
	sort.SliceStable(src.Notes, func(a, b int) bool {
		return src.Notes[a].SequenceIndex < src.Notes[b].SequenceIndex
	})
}

// Indexable keeps the sources that hold at least one usable note. Notes
// without an id, or with neither title nor body, are dropped.
func Indexable(sources []knowledge.Source) []knowledge.Source {
	out := make([]knowledge.Source, 0, len(sources))
	for _, src := range sources {
		if strings.TrimSpace(src.ID) == "" {
			continue
		}
		kept := make([]knowledge.Note, 0, len(src.Notes))
		for _, n := range src.Notes {
			if strings.TrimSpace(n.NoteID) == "" {
				continue
			}
			if strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Body) == "" {
				continue
			}
			kept = append(kept, n)
		}
		if len(kept) == 0 {
			continue
		}
		src.Notes = kept
		out = append(out, src)
	}
	return out
}
