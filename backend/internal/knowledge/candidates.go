package knowledge

// EntityCandidate is an entity proposed by extraction, already validated at the
// parsing boundary
type EntityCandidate struct {
	Name    string
	Type    EntityType
	Context string
}

// RelationshipCandidate is a relationship proposed by extraction between two
// entity names of the same note
type RelationshipCandidate struct {
	Source string
	Target string
	Type   RelationshipType
}
