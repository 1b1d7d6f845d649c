package services

import (
	"context"
	"strings"
	"sync"

	"github.com/ekaya-inc/grantgraph/pkg/graph"
	"github.com/ekaya-inc/grantgraph/pkg/llm"
	"github.com/ekaya-inc/grantgraph/pkg/schema"
	"github.com/ekaya-inc/grantgraph/pkg/search"
)

// fakeRunner is a graph.Runner returning canned rows per call.
type fakeRunner struct {
	mu      sync.Mutex
	queries []string
	params  []map[string]any
	limits  []int
	RunFunc func(call int, query string, params map[string]any, limit int) (*graph.Rows, error)
}

func (r *fakeRunner) Run(_ context.Context, query string, params map[string]any, limit int) (*graph.Rows, error) {
	r.mu.Lock()
	call := len(r.queries)
	r.queries = append(r.queries, query)
	r.params = append(r.params, params)
	r.limits = append(r.limits, limit)
	r.mu.Unlock()
	if r.RunFunc == nil {
		return &graph.Rows{}, nil
	}
	return r.RunFunc(call, query, params, limit)
}

func (r *fakeRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

func rowsOf(columns []string, records ...map[string]any) *graph.Rows {
	return &graph.Rows{Columns: columns, Records: records}
}

// fakeSearcher returns results keyed by term; errs fail a term.
type fakeSearcher struct {
	mu      sync.Mutex
	terms   []string
	results map[string][]search.Result
	errs    map[string]error
	// fallback is returned for terms missing from results.
	fallback []search.Result
}

func (s *fakeSearcher) Search(_ context.Context, term string, _ int) ([]search.Result, error) {
	s.mu.Lock()
	s.terms = append(s.terms, term)
	s.mu.Unlock()
	if err, ok := s.errs[term]; ok {
		return nil, err
	}
	if r, ok := s.results[term]; ok {
		return r, nil
	}
	return s.fallback, nil
}

func (s *fakeSearcher) Name() string { return "fake" }

func (s *fakeSearcher) Terms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.terms...)
}

type fakeSchemaSource struct {
	desc  *schema.Descriptor
	err   error
	calls int
}

func (s *fakeSchemaSource) Get(context.Context) (*schema.Descriptor, error) {
	s.calls++
	return s.desc, s.err
}

// promptKind tells generation, repair and synthesis prompts apart.
func promptKind(prompt string) string {
	switch {
	case strings.Contains(prompt, "## Failed Query"):
		return "repair"
	case strings.HasPrefix(prompt, "Analyze the following research grant"):
		return "synthesis"
	default:
		return "generation"
	}
}

// scriptedCompleter answers each prompt kind from its own queue.
func scriptedCompleter(replies map[string][]llm.MockResponse) *llm.MockCompleter {
	var mu sync.Mutex
	next := make(map[string]int)
	return &llm.MockCompleter{
		CompleteFunc: func(_ context.Context, prompt string, _ llm.ModelID) (string, error) {
			kind := promptKind(prompt)
			mu.Lock()
			i := next[kind]
			next[kind]++
			mu.Unlock()
			queue := replies[kind]
			if len(queue) == 0 {
				return "", nil
			}
			if i >= len(queue) {
				i = len(queue) - 1
			}
			return queue[i].Text, queue[i].Err
		},
	}
}

func countKind(m *llm.MockCompleter, kind string) int {
	n := 0
	for _, p := range m.Prompts() {
		if promptKind(p) == kind {
			n++
		}
	}
	return n
}
