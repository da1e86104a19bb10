package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "notegraph/backend/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/notegraph")
	t.Setenv("NEO4J_URI", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/notegraph", cfg.DataDir)
	assert.Equal(t, "/tmp/notegraph/notes.yaml", cfg.NotesFile)
	assert.Equal(t, 60*time.Second, cfg.ExtractTimeout)
	assert.Equal(t, 5, cfg.MaxEntitiesPerNote)
	assert.Equal(t, 3, cfg.MaxRelationshipsPerNote)
	assert.InDelta(t, 0.85, cfg.FuzzyMatchThreshold, 1e-9)
	assert.InDelta(t, 0.7, cfg.DuplicateThreshold, 1e-9)
	assert.False(t, cfg.MirrorEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/srv/kg")
	t.Setenv("EXTRACT_CONCURRENCY", "8")
	t.Setenv("DUPLICATE_THRESHOLD", "0.9")
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.ExtractConcurrency)
	assert.InDelta(t, 0.9, cfg.DuplicateThreshold, 1e-9)
	assert.True(t, cfg.MirrorEnabled())
}

func TestValidate_Rejects(t *testing.T) {
	base := func() *Config {
		return &Config{
			DataDir:             "data",
			ExtractTimeout:      time.Second,
			ExtractConcurrency:  1,
			MaxEntitiesPerNote:  5,
			FuzzyMatchThreshold: 0.85,
			DuplicateThreshold:  0.7,
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.ExtractConcurrency = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))

	cfg = base()
	cfg.FuzzyMatchThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Neo4jURI = "bolt://localhost:7687"
	assert.Error(t, cfg.Validate())
}
