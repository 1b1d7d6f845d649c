package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// extractValue converts driver types to plain Go values that encode to JSON.
// Nodes and relationships flatten to their properties plus identity keys.
func extractValue(val any) any {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case neo4j.Node:
		props := copyProps(v.Props)
		props["_labels"] = v.Labels
		return props

	case neo4j.Relationship:
		props := copyProps(v.Props)
		props["_type"] = v.Type
		return props

	case neo4j.Path:
		nodes := make([]any, len(v.Nodes))
		for i, n := range v.Nodes {
			nodes[i] = extractValue(n)
		}
		rels := make([]any, len(v.Relationships))
		for i, r := range v.Relationships {
			rels[i] = extractValue(r)
		}
		return map[string]any{"nodes": nodes, "relationships": rels}

	case neo4j.Date:
		return v.Time().Format("2006-01-02")
	case neo4j.LocalDateTime:
		return v.Time().Format("2006-01-02T15:04:05")
	case neo4j.LocalTime:
		return v.Time().Format("15:04:05")
	case neo4j.Time:
		return v.Time().Format("15:04:05Z07:00")
	case neo4j.Duration:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339)

	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = extractValue(item)
		}
		return out

	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = extractValue(item)
		}
		return out

	default:
		return v
	}
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		out[k] = extractValue(v)
	}
	return out
}
