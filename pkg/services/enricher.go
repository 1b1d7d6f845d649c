package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/metrics"
	"github.com/ekaya-inc/grantgraph/pkg/models"
	"github.com/ekaya-inc/grantgraph/pkg/search"
	"github.com/ekaya-inc/grantgraph/pkg/workerpool"
)

// EnricherConfig bounds the searches made for one question.
type EnricherConfig struct {
	MaxTerms       int // searches per question
	ResultsPerTerm int
	MaxReferences  int
	// SampleRows is how many leading result rows terms are drawn from.
	SampleRows int
}

// DefaultEnricherConfig returns the standard limits.
func DefaultEnricherConfig() EnricherConfig {
	return EnricherConfig{
		MaxTerms:       3,
		ResultsPerTerm: 3,
		MaxReferences:  5,
		SampleRows:     5,
	}
}

// EnrichmentResult is the outcome of the enrichment stage. Err is set when
// the references were dropped because a search failed; it is never surfaced
// to the caller.
type EnrichmentResult struct {
	References []models.ExternalReference
	Terms      []string
	Err        error
}

// Degraded reports whether enrichment failed and produced no references.
func (r EnrichmentResult) Degraded() bool {
	return r.Err != nil
}

// ContextEnricher finds web pages related to a question and its results.
type ContextEnricher interface {
	Enrich(ctx context.Context, question string, results *models.ResultSet) EnrichmentResult
}

type contextEnricher struct {
	searcher search.Searcher
	pool     *workerpool.Pool
	cfg      EnricherConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewContextEnricher creates an enricher over searcher. Searches for the
// terms of one question run concurrently on pool.
func NewContextEnricher(searcher search.Searcher, pool *workerpool.Pool, cfg EnricherConfig, m *metrics.Metrics, logger *zap.Logger) ContextEnricher {
	def := DefaultEnricherConfig()
	if cfg.MaxTerms <= 0 {
		cfg.MaxTerms = def.MaxTerms
	}
	if cfg.ResultsPerTerm <= 0 {
		cfg.ResultsPerTerm = def.ResultsPerTerm
	}
	if cfg.MaxReferences <= 0 {
		cfg.MaxReferences = def.MaxReferences
	}
	if cfg.SampleRows <= 0 {
		cfg.SampleRows = def.SampleRows
	}
	if searcher == nil {
		searcher = search.NoopSearcher{}
	}
	if pool == nil {
		pool = workerpool.New(workerpool.DefaultConfig(), logger)
	}
	return &contextEnricher{
		searcher: searcher,
		pool:     pool,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.Named("context-enricher"),
	}
}

var _ ContextEnricher = (*contextEnricher)(nil)

// Enrich never fails: any search error drops all references and is logged.
func (e *contextEnricher) Enrich(ctx context.Context, question string, results *models.ResultSet) EnrichmentResult {
	if search.IsNoop(e.searcher) {
		return EnrichmentResult{}
	}

	var rows []map[string]any
	if results != nil {
		rows = results.Rows
	}
	terms := ExtractSearchTerms(question, rows, e.cfg.SampleRows, e.cfg.MaxTerms)
	if len(terms) == 0 {
		return EnrichmentResult{}
	}

	items := make([]workerpool.Item[[]search.Result], len(terms))
	for i, term := range terms {
		items[i] = workerpool.Item[[]search.Result]{
			ID: term,
			Execute: func(ctx context.Context) ([]search.Result, error) {
				return e.searcher.Search(ctx, term, e.cfg.ResultsPerTerm)
			},
		}
	}

	var (
		refs   []models.ExternalReference
		seen   = make(map[string]bool)
		failed []string
	)
	for _, res := range workerpool.Process(ctx, e.pool, items) {
		if res.Err != nil {
			failed = append(failed, fmt.Sprintf("%q: %s", res.ID, logging.SanitizeError(res.Err)))
			continue
		}
		for _, r := range res.Result {
			key := normalizeURL(r.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			refs = append(refs, models.ExternalReference{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
		}
	}

	if len(failed) > 0 {
		err := apperrors.New(apperrors.KindEnrichmentFailed, strings.Join(failed, "; "), nil)
		e.metrics.IncEnrichmentDegraded()
		e.logger.Warn("Web search failed, continuing without references",
			zap.String("backend", e.searcher.Name()),
			zap.Int("failed_terms", len(failed)),
			zap.Error(err))
		return EnrichmentResult{Terms: terms, Err: err}
	}

	if len(refs) > e.cfg.MaxReferences {
		refs = refs[:e.cfg.MaxReferences]
	}
	e.logger.Debug("Enrichment complete",
		zap.Strings("terms", terms),
		zap.Int("references", len(refs)))
	return EnrichmentResult{References: refs, Terms: terms}
}

func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	u = strings.TrimSuffix(u, "/")
	return strings.ToLower(u)
}

var (
	// A single quote only opens a phrase at the start of a word, so
	// apostrophes in "What's" or "Smith's" are not taken as quotes.
	quotedPhrasePattern = regexp.MustCompile(`"([^"]+)"|(?:^|[\s(\[])'([^']+)'`)

	searchTitleFields       = []string{"title", "grant_title", "g.title"}
	searchResearcherFields  = []string{"name", "researcher_name", "r.name", "ci_name", "investigator_name"}
	searchInstitutionFields = []string{"i.name", "institution", "institution_name"}

	searchStopwords = map[string]bool{
		"the": true, "and": true, "for": true, "with": true, "from": true, "into": true,
		"study": true, "research": true, "analysis": true, "project": true, "grant": true,
	}

	honorifics = strings.NewReplacer("Professor ", "", "Prof ", "", "Prof. ", "", "Dr ", "", "Dr. ", "")
)

// ExtractSearchTerms picks web search terms for a question, in priority
// order: quoted phrases from the question, key words of the first grant
// title (with its researcher), the first researcher, and the first
// institution. Rows beyond sampleRows are ignored. When nothing is found the
// question itself is the only term.
func ExtractSearchTerms(question string, rows []map[string]any, sampleRows, maxTerms int) []string {
	if maxTerms <= 0 {
		return nil
	}

	var terms []string
	seen := make(map[string]bool)
	add := func(term string) {
		term = strings.Join(strings.Fields(term), " ")
		key := strings.ToLower(term)
		if term == "" || seen[key] || len(terms) >= maxTerms {
			return
		}
		seen[key] = true
		terms = append(terms, term)
	}

	for _, m := range quotedPhrasePattern.FindAllStringSubmatch(question, -1) {
		if m[1] != "" {
			add(m[1])
		} else {
			add(m[2])
		}
	}

	if sampleRows > 0 && len(rows) > sampleRows {
		rows = rows[:sampleRows]
	}
	var titles, researchers, institutions []string
	for _, row := range rows {
		if v := firstField(row, searchTitleFields); len(v) > 10 {
			titles = append(titles, v)
		}
		if v := firstField(row, searchResearcherFields); v != "" {
			if clean := strings.TrimSpace(honorifics.Replace(v)); len(clean) > 3 {
				researchers = append(researchers, clean)
			}
		}
		if v := firstField(row, searchInstitutionFields); v != "" {
			if main := strings.TrimSpace(strings.Split(v, ",")[0]); len(main) > 5 {
				institutions = append(institutions, main)
			}
		}
	}

	if len(titles) > 0 {
		term := strings.Join(titleKeywords(titles[0]), " ")
		if term != "" && len(researchers) > 0 {
			term += ` "` + researchers[0] + `"`
		}
		add(term)
	}
	if len(researchers) > 0 {
		add(`"` + researchers[0] + `" research grants`)
	}
	if len(institutions) > 0 {
		add(institutions[0])
	}

	if len(terms) == 0 {
		add(question)
	}
	return terms
}

// titleKeywords returns up to four significant words from the first six
// words of a title.
func titleKeywords(title string) []string {
	words := strings.Fields(title)
	if len(words) > 6 {
		words = words[:6]
	}
	var out []string
	for _, w := range words {
		clean := strings.ToLower(strings.Trim(w, ".,()[]:-"))
		if len(clean) > 3 && !searchStopwords[clean] {
			out = append(out, clean)
		}
		if len(out) == 4 {
			break
		}
	}
	return out
}

func firstField(row map[string]any, fields []string) string {
	for _, f := range fields {
		if v, ok := row[f]; ok && v != nil {
			if s := strings.TrimSpace(cast.ToString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}
