package handlers

import (
	"context"

	"github.com/ekaya-inc/grantgraph/pkg/models"
	"github.com/ekaya-inc/grantgraph/pkg/schema"
	"github.com/ekaya-inc/grantgraph/pkg/services"
)

type mockPipeline struct {
	requests []models.QueryRequest
	respond  func(req models.QueryRequest) *models.QueryResponse
}

func (m *mockPipeline) Run(ctx context.Context, req models.QueryRequest) *models.QueryResponse {
	resp, _ := m.RunWithTrace(ctx, req)
	return resp
}

func (m *mockPipeline) RunWithTrace(_ context.Context, req models.QueryRequest) (*models.QueryResponse, *services.Trace) {
	m.requests = append(m.requests, req)
	return m.respond(req), &services.Trace{}
}

type mockSchemaStore struct {
	desc      *schema.Descriptor
	err       error
	refreshes int
}

func (m *mockSchemaStore) Get(context.Context) (*schema.Descriptor, error) {
	return m.desc, m.err
}

func (m *mockSchemaStore) Refresh(context.Context) (*schema.Descriptor, error) {
	m.refreshes++
	return m.desc, m.err
}

type mockAnalytics struct {
	stats        *models.DatabaseStats
	institutions []models.InstitutionFunding
	trends       []models.FundingTrend
	areas        []models.ResearchAreaFunding
	err          error

	gotLimit     int
	gotStartYear int
	gotEndYear   int
}

func (m *mockAnalytics) Stats(context.Context) (*models.DatabaseStats, error) {
	return m.stats, m.err
}

func (m *mockAnalytics) TopInstitutions(_ context.Context, limit int) ([]models.InstitutionFunding, error) {
	m.gotLimit = limit
	return m.institutions, m.err
}

func (m *mockAnalytics) FundingTrends(_ context.Context, start, end int) ([]models.FundingTrend, error) {
	m.gotStartYear, m.gotEndYear = start, end
	return m.trends, m.err
}

func (m *mockAnalytics) ResearchAreas(context.Context) ([]models.ResearchAreaFunding, error) {
	return m.areas, m.err
}
