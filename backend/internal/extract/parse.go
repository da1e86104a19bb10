package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"notegraph/backend/internal/knowledge"
	"notegraph/backend/pkg/logger"
)

// rawEntity is one entity item as the model returns it
type rawEntity struct {
	Name    string `json:"name" validate:"required,max=200"`
	Type    string `json:"type" validate:"required,oneof=person organization concept technology event"`
	Context string `json:"context"`
}

// rawRelationship is one relationship item as the model returns it
type rawRelationship struct {
	Source string `json:"source" validate:"required,max=200"`
	Target string `json:"target" validate:"required,max=200"`
	Type   string `json:"type" validate:"required,oneof=specialization_of enabled_by builds_on contrasts_with applies_to created_by"`
}

var validate = validator.New()

// ParseEntities turns raw model output into entity candidates. Items that fail
// to decode or validate are dropped; only output that is not JSON at all is an
// error. At most limit candidates are returned.
func ParseEntities(raw string, limit int) ([]knowledge.EntityCandidate, error) {
	items, err := decodeList(raw, "entities")
	if err != nil {
		return nil, err
	}

	out := make([]knowledge.EntityCandidate, 0, len(items))
	for _, item := range items {
		if limit > 0 && len(out) >= limit {
			break
		}
		var e rawEntity
		if err := json.Unmarshal(item, &e); err != nil {
			logDropped("entity", item, err)
			continue
		}
		e.Name = strings.TrimSpace(e.Name)
		e.Type = strings.ToLower(strings.TrimSpace(e.Type))
		if err := validate.Struct(e); err != nil {
			logDropped("entity", item, err)
			continue
		}
		out = append(out, knowledge.EntityCandidate{
			Name:    e.Name,
			Type:    knowledge.EntityType(e.Type),
			Context: strings.TrimSpace(e.Context),
		})
	}
	return out, nil
}

// ParseRelationships turns raw model output into relationship candidates.
// Besides validation, both endpoints must name one of the given entities
// (case-insensitive) and must differ.
func ParseRelationships(raw string, entities []knowledge.EntityCandidate, limit int) ([]knowledge.RelationshipCandidate, error) {
	items, err := decodeList(raw, "relationships")
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		known[strings.ToLower(e.Name)] = struct{}{}
	}

	out := make([]knowledge.RelationshipCandidate, 0, len(items))
	for _, item := range items {
		if limit > 0 && len(out) >= limit {
			break
		}
		var r rawRelationship
		if err := json.Unmarshal(item, &r); err != nil {
			logDropped("relationship", item, err)
			continue
		}
		r.Source = strings.TrimSpace(r.Source)
		r.Target = strings.TrimSpace(r.Target)
		r.Type = strings.ToLower(strings.TrimSpace(r.Type))
		if err := validate.Struct(r); err != nil {
			logDropped("relationship", item, err)
			continue
		}
		_, srcOK := known[strings.ToLower(r.Source)]
		_, dstOK := known[strings.ToLower(r.Target)]
		if !srcOK || !dstOK || strings.EqualFold(r.Source, r.Target) {
			logDropped("relationship", item, fmt.Errorf("endpoints %q -> %q not among note entities", r.Source, r.Target))
			continue
		}
		out = append(out, knowledge.RelationshipCandidate{
			Source: r.Source,
			Target: r.Target,
			Type:   knowledge.RelationshipType(r.Type),
		})
	}
	return out, nil
}

// decodeList accepts either a bare JSON array or an object holding the array
// under key, optionally wrapped in a markdown code block.
func decodeList(raw, key string) ([]json.RawMessage, error) {
	jsonStr := stripCodeFence(raw)
	if jsonStr == "" {
		return nil, nil
	}

	arrStart := strings.Index(jsonStr, "[")
	objStart := strings.Index(jsonStr, "{")

	if objStart != -1 && (arrStart == -1 || objStart < arrStart) {
		if end := strings.LastIndex(jsonStr, "}"); end > objStart {
			var wrapper map[string]json.RawMessage
			if err := json.Unmarshal([]byte(jsonStr[objStart:end+1]), &wrapper); err != nil {
				return nil, fmt.Errorf("failed to parse %s object: %w", key, err)
			}
			inner, ok := wrapper[key]
			if !ok {
				return nil, nil
			}
			var items []json.RawMessage
			if err := json.Unmarshal(inner, &items); err != nil {
				return nil, fmt.Errorf("failed to parse %s list: %w", key, err)
			}
			return items, nil
		}
	}

	if arrStart == -1 {
		return nil, fmt.Errorf("no JSON %s list in response", key)
	}
	end := strings.LastIndex(jsonStr, "]")
	if end <= arrStart {
		return nil, fmt.Errorf("unterminated JSON %s list in response", key)
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr[arrStart:end+1]), &items); err != nil {
		return nil, fmt.Errorf("failed to parse %s list: %w", key, err)
	}
	return items, nil
}

// stripCodeFence removes a surrounding ``` block if present
func stripCodeFence(raw string) string {
	jsonStr := strings.TrimSpace(raw)
	if !strings.HasPrefix(jsonStr, "```") {
		return jsonStr
	}

	lines := strings.Split(jsonStr, "\n")
	var jsonLines []string
	inCodeBlock := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			jsonLines = append(jsonLines, line)
		}
	}
	return strings.TrimSpace(strings.Join(jsonLines, "\n"))
}

func logDropped(kind string, item json.RawMessage, err error) {
	logger.Named("extract").Debug("Dropping malformed extraction item",
		zap.String("kind", kind),
		zap.String("item", string(item)),
		zap.Error(err),
	)
}
