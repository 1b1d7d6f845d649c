package models

// DatabaseStats summarizes the grant graph.
type DatabaseStats struct {
	Grants       int64   `json:"grants"`
	Researchers  int64   `json:"researchers"`
	Institutions int64   `json:"institutions"`
	TotalFunding float64 `json:"total_funding"`
	UniquePIs    int64   `json:"unique_principal_investigators"`
}

// InstitutionFunding is one row of the top-institutions ranking.
type InstitutionFunding struct {
	Institution  string  `json:"institution"`
	GrantCount   int64   `json:"grant_count"`
	TotalFunding float64 `json:"total_funding"`
}

// FundingTrend is the funding summary for one start year.
type FundingTrend struct {
	Year          int     `json:"year"`
	GrantCount    int64   `json:"grant_count"`
	TotalFunding  float64 `json:"total_funding"`
	AvgFunding    float64 `json:"avg_funding"`
	MedianFunding float64 `json:"median_funding"`
}

// ResearchAreaFunding is the grant count and funding of one research area.
type ResearchAreaFunding struct {
	ResearchArea string  `json:"research_area"`
	GrantCount   int64   `json:"grant_count"`
	TotalFunding float64 `json:"total_funding"`
}
