package schema

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/graph"
	"github.com/ekaya-inc/grantgraph/pkg/retry"
)

//go:embed grants.yaml
var defaultSchemaYAML []byte

// Provider produces a descriptor of the graph.
type Provider interface {
	Describe(ctx context.Context) (*Descriptor, error)
}

var (
	_ Provider = (*LiveProvider)(nil)
	_ Provider = (*StaticProvider)(nil)
)

// LiveProvider introspects the running store.
type LiveProvider struct {
	introspector graph.Introspector
	retry        *retry.Config
	logger       *zap.Logger
}

// NewLiveProvider creates a provider that introspects through in. Transient
// store failures are retried according to rc.
func NewLiveProvider(in graph.Introspector, rc *retry.Config, logger *zap.Logger) *LiveProvider {
	return &LiveProvider{
		introspector: in,
		retry:        rc,
		logger:       logger.Named("schema-live"),
	}
}

// Describe implements Provider. Failures are reported as schema_unavailable.
func (p *LiveProvider) Describe(ctx context.Context) (*Descriptor, error) {
	in, err := retry.DoWithResult(ctx, p.retry, p.introspector.Introspect, func(attempt int, err error, wait time.Duration) {
		p.logger.Warn("Schema introspection failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		return nil, apperrors.New(apperrors.KindSchemaUnavailable, "schema introspection failed", err)
	}
	if len(in.Labels) == 0 {
		return nil, apperrors.New(apperrors.KindSchemaUnavailable, "graph has no labels", nil)
	}

	return FromIntrospection(in), nil
}

// FromIntrospection converts raw catalogue data into a descriptor. Labels
// without observed properties are kept with an empty list; relationship types
// never seen between two nodes keep no endpoints.
func FromIntrospection(in *graph.Introspection) *Descriptor {
	labels := make(map[string][]string, len(in.Labels))
	for _, l := range in.Labels {
		labels[l] = in.Properties[l]
	}
	rels := make(map[string][]Endpoint, len(in.RelationshipTypes))
	for _, t := range in.RelationshipTypes {
		rels[t] = nil
	}
	for _, ep := range in.Endpoints {
		rels[ep.Type] = append(rels[ep.Type], Endpoint{From: ep.From, To: ep.To})
	}
	return New(labels, rels, SourceLive)
}

// StaticProvider serves a descriptor loaded once from YAML.
type StaticProvider struct {
	desc *Descriptor
}

// fileFormat is the YAML layout of a pinned schema file.
type fileFormat struct {
	Labels        map[string][]string   `yaml:"labels"`
	Relationships map[string][]Endpoint `yaml:"relationships"`
}

// NewStaticProvider loads a pinned schema file, or the built-in grants schema
// when path is empty.
func NewStaticProvider(path string) (*StaticProvider, error) {
	data := defaultSchemaYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema file: %w", err)
		}
		data = b
	}

	desc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return &StaticProvider{desc: desc}, nil
}

// Parse decodes a YAML schema description.
func Parse(data []byte) (*Descriptor, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}
	if len(f.Labels) == 0 {
		return nil, fmt.Errorf("schema file defines no labels")
	}
	for typ, eps := range f.Relationships {
		for _, ep := range eps {
			if _, ok := f.Labels[ep.From]; !ok {
				return nil, fmt.Errorf("relationship %s references unknown label %q", typ, ep.From)
			}
			if _, ok := f.Labels[ep.To]; !ok {
				return nil, fmt.Errorf("relationship %s references unknown label %q", typ, ep.To)
			}
		}
	}
	return New(f.Labels, f.Relationships, SourceStatic), nil
}

// Describe implements Provider.
func (p *StaticProvider) Describe(context.Context) (*Descriptor, error) {
	return p.desc, nil
}

// Default returns the built-in grants schema.
func Default() *Descriptor {
	d, err := Parse(defaultSchemaYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in schema is invalid: %v", err))
	}
	return d
}
