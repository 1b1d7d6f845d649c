package services

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/graph"
	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/models"
	"github.com/ekaya-inc/grantgraph/pkg/retry"
)

const (
	statsQuery = `MATCH (g:Grant)
WITH count(g) AS grants, sum(coalesce(g.amount, 0)) AS total_funding
OPTIONAL MATCH (r:Researcher)
WITH grants, total_funding, count(r) AS researchers
OPTIONAL MATCH (i:Institution)
WITH grants, total_funding, researchers, count(i) AS institutions
OPTIONAL MATCH (p:Researcher)-[:PRINCIPAL_INVESTIGATOR]->(:Grant)
RETURN grants, total_funding, researchers, institutions, count(DISTINCT p) AS unique_pis`

	topInstitutionsQuery = `MATCH (g:Grant)-[:HOSTED_BY]->(i:Institution)
WHERE g.amount IS NOT NULL AND g.amount > 0
RETURN i.name AS institution, count(g) AS grant_count, sum(g.amount) AS total_funding
ORDER BY total_funding DESC, institution
LIMIT $limit`

	fundingTrendsQuery = `MATCH (g:Grant)
WHERE g.start_year >= $start_year AND g.start_year <= $end_year
  AND g.amount IS NOT NULL AND g.amount > 0
RETURN g.start_year AS year,
       count(g) AS grant_count,
       sum(g.amount) AS total_funding,
       avg(g.amount) AS avg_funding,
       percentileCont(g.amount, 0.5) AS median_funding
ORDER BY year`

	researchAreasQuery = `MATCH (g:Grant)-[:IN_AREA]->(a:ResearchArea)
WHERE g.amount IS NOT NULL AND g.amount > 0
RETURN a.name AS research_area, count(g) AS grant_count, sum(g.amount) AS total_funding
ORDER BY grant_count DESC, research_area`
)

// Bounds for analytics parameters.
const (
	DefaultInstitutionLimit = 10
	MaxInstitutionLimit     = 100
	EarliestTrendYear       = 1900
)

// AnalyticsService reports aggregate figures over the grant graph.
type AnalyticsService interface {
	Stats(ctx context.Context) (*models.DatabaseStats, error)
	TopInstitutions(ctx context.Context, limit int) ([]models.InstitutionFunding, error)
	FundingTrends(ctx context.Context, startYear, endYear int) ([]models.FundingTrend, error)
	ResearchAreas(ctx context.Context) ([]models.ResearchAreaFunding, error)
}

type analyticsService struct {
	runner graph.Runner
	retry  *retry.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewAnalyticsService creates an analytics service over runner.
func NewAnalyticsService(runner graph.Runner, rc *retry.Config, logger *zap.Logger) AnalyticsService {
	return &analyticsService{
		runner: runner,
		retry:  rc,
		logger: logger.Named("analytics"),
		now:    time.Now,
	}
}

var _ AnalyticsService = (*analyticsService)(nil)

func (s *analyticsService) run(ctx context.Context, name, query string, params map[string]any) (*graph.Rows, error) {
	rows, err := retry.DoWithResult(ctx, s.retry, func(ctx context.Context) (*graph.Rows, error) {
		return s.runner.Run(ctx, query, params, 0)
	}, nil)
	if err != nil {
		s.logger.Error("Analytics query failed",
			zap.String("query", name),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	return rows, nil
}

func (s *analyticsService) Stats(ctx context.Context) (*models.DatabaseStats, error) {
	rows, err := s.run(ctx, "database stats", statsQuery, nil)
	if err != nil {
		return nil, err
	}
	stats := &models.DatabaseStats{}
	if len(rows.Records) > 0 {
		rec := rows.Records[0]
		stats.Grants = cast.ToInt64(rec["grants"])
		stats.Researchers = cast.ToInt64(rec["researchers"])
		stats.Institutions = cast.ToInt64(rec["institutions"])
		stats.TotalFunding = cast.ToFloat64(rec["total_funding"])
		stats.UniquePIs = cast.ToInt64(rec["unique_pis"])
	}
	return stats, nil
}

func (s *analyticsService) TopInstitutions(ctx context.Context, limit int) ([]models.InstitutionFunding, error) {
	switch {
	case limit <= 0:
		limit = DefaultInstitutionLimit
	case limit > MaxInstitutionLimit:
		limit = MaxInstitutionLimit
	}

	rows, err := s.run(ctx, "top institutions", topInstitutionsQuery, map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	out := make([]models.InstitutionFunding, 0, len(rows.Records))
	for _, rec := range rows.Records {
		out = append(out, models.InstitutionFunding{
			Institution:  cast.ToString(rec["institution"]),
			GrantCount:   cast.ToInt64(rec["grant_count"]),
			TotalFunding: cast.ToFloat64(rec["total_funding"]),
		})
	}
	return out, nil
}

// FundingTrends returns per-year funding between startYear and endYear
// inclusive. Zero values default to 2000 and the current year.
func (s *analyticsService) FundingTrends(ctx context.Context, startYear, endYear int) ([]models.FundingTrend, error) {
	if startYear <= 0 {
		startYear = 2000
	}
	if endYear <= 0 {
		endYear = s.now().Year()
	}
	if startYear < EarliestTrendYear || endYear < startYear {
		return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("invalid year range %d-%d", startYear, endYear), nil)
	}

	rows, err := s.run(ctx, "funding trends", fundingTrendsQuery, map[string]any{
		"start_year": startYear,
		"end_year":   endYear,
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.FundingTrend, 0, len(rows.Records))
	for _, rec := range rows.Records {
		out = append(out, models.FundingTrend{
			Year:          cast.ToInt(rec["year"]),
			GrantCount:    cast.ToInt64(rec["grant_count"]),
			TotalFunding:  cast.ToFloat64(rec["total_funding"]),
			AvgFunding:    cast.ToFloat64(rec["avg_funding"]),
			MedianFunding: cast.ToFloat64(rec["median_funding"]),
		})
	}
	return out, nil
}

// ResearchAreas returns how funded grants are spread across research areas,
// largest first.
func (s *analyticsService) ResearchAreas(ctx context.Context) ([]models.ResearchAreaFunding, error) {
	rows, err := s.run(ctx, "research areas", researchAreasQuery, nil)
	if err != nil {
		return nil, err
	}
	out := make([]models.ResearchAreaFunding, 0, len(rows.Records))
	for _, rec := range rows.Records {
		out = append(out, models.ResearchAreaFunding{
			ResearchArea: cast.ToString(rec["research_area"]),
			GrantCount:   cast.ToInt64(rec["grant_count"]),
			TotalFunding: cast.ToFloat64(rec["total_funding"]),
		})
	}
	return out, nil
}
