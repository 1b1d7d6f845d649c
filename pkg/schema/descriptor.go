// Package schema describes the labels, properties and relationship types of
// the grant graph, and caches that description for prompt building.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Source values for Descriptor.Source.
const (
	SourceLive   = "live"
	SourceStatic = "static"
)

// Endpoint is a (source label, target label) pair a relationship type connects.
type Endpoint struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Descriptor is an immutable snapshot of the graph structure. It is safe to
// share between goroutines; accessors return copies.
type Descriptor struct {
	labels    map[string][]string
	rels      map[string][]Endpoint
	version   string
	source    string
	createdAt time.Time
}

// New builds a descriptor. Property names and endpoints are sorted and
// de-duplicated; the version is derived from the resulting content.
func New(labels map[string][]string, rels map[string][]Endpoint, source string) *Descriptor {
	d := &Descriptor{
		labels:    make(map[string][]string, len(labels)),
		rels:      make(map[string][]Endpoint, len(rels)),
		source:    source,
		createdAt: time.Now().UTC(),
	}

	for label, props := range labels {
		d.labels[label] = uniqueSorted(props)
	}
	for typ, eps := range rels {
		seen := make(map[Endpoint]bool, len(eps))
		var out []Endpoint
		for _, ep := range eps {
			if !seen[ep] {
				seen[ep] = true
				out = append(out, ep)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].From != out[j].From {
				return out[i].From < out[j].From
			}
			return out[i].To < out[j].To
		})
		d.rels[typ] = out
	}

	sum := sha256.Sum256([]byte(d.PromptText()))
	d.version = hex.EncodeToString(sum[:])[:12]
	return d
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Version is a content hash; two descriptors with the same structure share it.
func (d *Descriptor) Version() string { return d.version }

// Source reports whether the descriptor was introspected or loaded from a file.
func (d *Descriptor) Source() string { return d.source }

// CreatedAt is when the descriptor was built.
func (d *Descriptor) CreatedAt() time.Time { return d.createdAt }

// Labels returns the node labels in sorted order.
func (d *Descriptor) Labels() []string {
	out := make([]string, 0, len(d.labels))
	for l := range d.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Properties returns the property names of a label in sorted order.
func (d *Descriptor) Properties(label string) []string {
	return append([]string(nil), d.labels[label]...)
}

// HasLabel reports whether the label exists.
func (d *Descriptor) HasLabel(label string) bool {
	_, ok := d.labels[label]
	return ok
}

// RelationshipTypes returns the relationship types in sorted order.
func (d *Descriptor) RelationshipTypes() []string {
	out := make([]string, 0, len(d.rels))
	for t := range d.rels {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Endpoints returns the label pairs a relationship type connects.
func (d *Descriptor) Endpoints(relType string) []Endpoint {
	return append([]Endpoint(nil), d.rels[relType]...)
}

// PromptText renders the compact, deterministic listing used in prompts.
func (d *Descriptor) PromptText() string {
	var sb strings.Builder
	sb.WriteString("Node labels and properties:\n")
	for _, label := range d.Labels() {
		props := d.labels[label]
		if len(props) == 0 {
			fmt.Fprintf(&sb, "- %s\n", label)
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", label, strings.Join(props, ", "))
	}

	sb.WriteString("Relationships:\n")
	for _, typ := range d.RelationshipTypes() {
		eps := d.rels[typ]
		if len(eps) == 0 {
			fmt.Fprintf(&sb, "- ()-[:%s]->()\n", typ)
			continue
		}
		for _, ep := range eps {
			fmt.Fprintf(&sb, "- (:%s)-[:%s]->(:%s)\n", ep.From, typ, ep.To)
		}
	}
	return sb.String()
}

// descriptorJSON is the wire form of a Descriptor.
type descriptorJSON struct {
	Version       string                `json:"version"`
	Source        string                `json:"source"`
	CreatedAt     time.Time             `json:"created_at"`
	Labels        map[string][]string   `json:"labels"`
	Relationships map[string][]Endpoint `json:"relationships"`
}

// MarshalJSON implements json.Marshaler.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(descriptorJSON{
		Version:       d.version,
		Source:        d.source,
		CreatedAt:     d.createdAt,
		Labels:        d.labels,
		Relationships: d.rels,
	})
}
