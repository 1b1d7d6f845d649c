package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Endpoint is one observed (source label)-[type]->(target label) combination.
type Endpoint struct {
	Type string
	From string
	To   string
}

// Introspection is the raw structure read from the store's catalogue procedures.
type Introspection struct {
	Labels            []string
	RelationshipTypes []string
	// Properties maps a label to its property names.
	Properties map[string][]string
	Endpoints  []Endpoint
}

// Introspector reads the graph structure.
type Introspector interface {
	Introspect(ctx context.Context) (*Introspection, error)
}

var _ Introspector = (*Client)(nil)

const (
	labelsQuery     = "CALL db.labels() YIELD label RETURN label ORDER BY label"
	relTypesQuery   = "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType ORDER BY relationshipType"
	nodePropsQuery  = "CALL db.schema.nodeTypeProperties() YIELD nodeLabels, propertyName RETURN nodeLabels, propertyName"
	endpointsQuery  = "MATCH (a)-[r]->(b) WITH type(r) AS rel, labels(a) AS from, labels(b) AS to LIMIT $sample RETURN DISTINCT rel, from, to"
	endpointSamples = 10000
)

// Introspect implements Introspector. All four catalogue reads share one
// read transaction so the picture is consistent.
func (c *Client) Introspect(ctx context.Context) (*Introspection, error) {
	out, err := c.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		in := &Introspection{Properties: make(map[string][]string)}

		labels, err := collectStrings(ctx, tx, labelsQuery, "label")
		if err != nil {
			return nil, fmt.Errorf("read labels: %w", err)
		}
		in.Labels = labels

		types, err := collectStrings(ctx, tx, relTypesQuery, "relationshipType")
		if err != nil {
			return nil, fmt.Errorf("read relationship types: %w", err)
		}
		in.RelationshipTypes = types

		if err := readProperties(ctx, tx, in); err != nil {
			return nil, fmt.Errorf("read node properties: %w", err)
		}
		if err := readEndpoints(ctx, tx, in); err != nil {
			return nil, fmt.Errorf("read relationship endpoints: %w", err)
		}
		return in, nil
	})
	if err != nil {
		c.logger.Warn("Schema introspection failed", zap.Error(err))
		return nil, Classify(err)
	}

	in := out.(*Introspection)
	c.logger.Info("Schema introspected",
		zap.Int("labels", len(in.Labels)),
		zap.Int("relationship_types", len(in.RelationshipTypes)),
		zap.Int("endpoints", len(in.Endpoints)))
	return in, nil
}

func collectStrings(ctx context.Context, tx neo4j.ManagedTransaction, query, key string) ([]string, error) {
	result, err := tx.Run(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	var out []string
	for result.Next(ctx) {
		v, _ := result.Record().Get(key)
		if s := cast.ToString(v); s != "" {
			out = append(out, s)
		}
	}
	return out, result.Err()
}

func readProperties(ctx context.Context, tx neo4j.ManagedTransaction, in *Introspection) error {
	result, err := tx.Run(ctx, nodePropsQuery, nil)
	if err != nil {
		return err
	}

	seen := make(map[string]map[string]bool)
	for result.Next(ctx) {
		record := result.Record()
		rawLabels, _ := record.Get("nodeLabels")
		rawProp, _ := record.Get("propertyName")
		prop := cast.ToString(rawProp)

		for _, label := range cast.ToStringSlice(rawLabels) {
			if seen[label] == nil {
				seen[label] = make(map[string]bool)
			}
			// Labels without properties still appear, with a null property name.
			if prop == "" || seen[label][prop] {
				continue
			}
			seen[label][prop] = true
			in.Properties[label] = append(in.Properties[label], prop)
		}
	}
	if err := result.Err(); err != nil {
		return err
	}

	for label := range in.Properties {
		sort.Strings(in.Properties[label])
	}
	return nil
}

func readEndpoints(ctx context.Context, tx neo4j.ManagedTransaction, in *Introspection) error {
	result, err := tx.Run(ctx, endpointsQuery, map[string]any{"sample": endpointSamples})
	if err != nil {
		return err
	}

	seen := make(map[Endpoint]bool)
	for result.Next(ctx) {
		record := result.Record()
		rawRel, _ := record.Get("rel")
		rawFrom, _ := record.Get("from")
		rawTo, _ := record.Get("to")

		rel := cast.ToString(rawRel)
		for _, from := range cast.ToStringSlice(rawFrom) {
			for _, to := range cast.ToStringSlice(rawTo) {
				ep := Endpoint{Type: rel, From: from, To: to}
				if !seen[ep] {
					seen[ep] = true
					in.Endpoints = append(in.Endpoints, ep)
				}
			}
		}
	}
	if err := result.Err(); err != nil {
		return err
	}

	sort.Slice(in.Endpoints, func(i, j int) bool {
		a, b := in.Endpoints[i], in.Endpoints[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	return nil
}
