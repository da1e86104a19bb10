package constants

import "time"

// Resolution constants
const (
	// FuzzyMatchThreshold is the similarity at which a new mention joins an existing entity
	FuzzyMatchThreshold = 0.85

	// DuplicateThreshold is the similarity at which two entities are offered for review
	DuplicateThreshold = 0.7

	// EntityIDLength is the length of the short random entity id
	EntityIDLength = 8
)

// Extraction constants
const (
	// MaxEntitiesPerNote caps the entities kept from one extraction call
	MaxEntitiesPerNote = 5

	// MaxRelationshipsPerNote caps the relationships kept from one extraction call
	MaxRelationshipsPerNote = 3

	// MaxContextLength truncates mention context text
	MaxContextLength = 280

	// DefaultExtractConcurrency bounds in-flight LLM calls during a batch
	DefaultExtractConcurrency = 4

	// DefaultExtractTimeout is the per-note budget for both extraction calls
	DefaultExtractTimeout = 60 * time.Second
)

// Related-note scores. Higher wins when a note is reachable through several classes.
const (
	ScoreSharedEntity    = 10
	ScoreViaRelationship = 7
	ScoreSharedTagCross  = 5
	ScoreSequential      = 3
	ScoreSharedTagSame   = 2
	ScoreSameSource      = 2
)

// Store file names inside the data directory
const (
	EntityRecordFile = "entities.json"
	LinkRecordFile   = "links.json"
)
