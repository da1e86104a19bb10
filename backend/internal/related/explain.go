package related

import (
	"fmt"
	"strings"

	"notegraph/backend/internal/knowledge"
)

// relationshipTemplates phrase a relationship from the related note's point
// of view. The first verb is used when the queried note's entity is the
// relationship source, the second when it is the target. Both take the
// related entity, then the queried note's entity.
var relationshipTemplates = map[knowledge.RelationshipType][2]string{
	knowledge.RelSpecializationOf: {"Covers '%s', the broader idea behind '%s'", "Covers '%s', a specialization of '%s'"},
	knowledge.RelEnabledBy:        {"Covers '%s', which enabled '%s'", "Covers '%s', which was enabled by '%s'"},
	knowledge.RelBuildsOn:         {"Covers '%s', which '%s' builds on", "Covers '%s', which builds on '%s'"},
	knowledge.RelContrastsWith:    {"Covers '%s', which contrasts with '%s'", "Covers '%s', which contrasts with '%s'"},
	knowledge.RelAppliesTo:        {"Covers '%s', where '%s' applies", "Covers '%s', which applies to '%s'"},
	knowledge.RelCreatedBy:        {"Covers '%s', the creator of '%s'", "Covers '%s', created by '%s'"},
}

// Explain renders a short human-readable reason for a connection
func Explain(conn ConnectionType, path PathInfo) string {
	switch conn {
	case ConnSharedTag:
		tags := make([]string, 0, len(path.Tags))
		for _, t := range path.Tags {
			tags = append(tags, "#"+t)
		}
		if len(tags) == 0 {
			return "Shares a tag"
		}
		return "Both tagged " + strings.Join(tags, ", ")
	case ConnSharedEntity:
		return fmt.Sprintf("Both discuss '%s'", path.Entity)
	case ConnViaRelationship:
		tmpl, ok := relationshipTemplates[path.RelationshipType]
		if !ok {
			return fmt.Sprintf("Related through '%s' and '%s'", path.FromEntity, path.ToEntity)
		}
		side := tmpl[0]
		if !path.OriginIsSource {
			side = tmpl[1]
		}
		return fmt.Sprintf(side, path.ToEntity, path.FromEntity)
	case ConnSequential:
		if path.Direction == DirectionPrevious {
			return "Previous in source"
		}
		return "Next in source"
	case ConnSameSource:
		return "From the same source"
	default:
		return "Related"
	}
}
