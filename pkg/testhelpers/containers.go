// Package testhelpers starts a shared Neo4j container seeded with a small
// grant graph for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/graph"
)

// Neo4jTestImage is the graph database image used by integration tests.
const Neo4jTestImage = "neo4j:5"

const (
	testUser     = "neo4j"
	testPassword = "test_password"
)

// TestGraph holds a shared Neo4j container and a client connected to it.
type TestGraph struct {
	Container testcontainers.Container
	Config    graph.Config
	Client    *graph.Client
}

var (
	sharedTestGraph     *TestGraph
	sharedTestGraphOnce sync.Once
	sharedTestGraphErr  error
)

// GetTestGraph returns a shared Neo4j container for integration tests.
// The container is created and seeded once and reused across all tests in
// the run.
func GetTestGraph(t *testing.T) *TestGraph {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestGraphOnce.Do(func() {
		sharedTestGraph, sharedTestGraphErr = setupTestGraph()
	})

	if sharedTestGraphErr != nil {
		t.Fatalf("Failed to setup test graph: %v", sharedTestGraphErr)
	}

	return sharedTestGraph
}

func setupTestGraph() (*TestGraph, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        Neo4jTestImage,
		ExposedPorts: []string{"7687/tcp"},
		Env: map[string]string{
			"NEO4J_AUTH": testUser + "/" + testPassword,
		},
		WaitingFor: wait.ForLog("Started.").
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "7687")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	cfg := graph.Config{
		URI:                   fmt.Sprintf("bolt://%s:%s", host, port.Port()),
		Username:              testUser,
		Password:              testPassword,
		MaxConnectionPoolSize: 5,
		AcquireTimeout:        10 * time.Second,
		QueryTimeout:          30 * time.Second,
		FetchSize:             100,
	}

	client, err := graph.NewClient(cfg, zap.NewNop())
	if err != nil {
		return nil, err
	}

	// Bolt can lag the startup log line slightly.
	for i := 0; i < 20; i++ {
		if err = client.VerifyConnectivity(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("graph never became reachable: %w", err)
	}

	if err := seed(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to seed test graph: %w", err)
	}

	return &TestGraph{
		Container: container,
		Config:    cfg,
		Client:    client,
	}, nil
}

// seedStatements build a small grant graph: three grants, two researchers
// and two institutions.
var seedStatements = []string{
	`CREATE (uq:Institution {name: 'University of Queensland'})
	 CREATE (mon:Institution {name: 'Monash University'})
	 CREATE (smith:Researcher {name: 'Jane Smith'})
	 CREATE (king:Researcher {name: 'Glenn King'})
	 CREATE (g1:Grant {application_id: 'APP1001', title: 'CRISPR gene editing for inherited blindness',
	                   amount: 1500000, start_year: 2021, funding_body: 'NHMRC', grant_status: 'Active'})
	 CREATE (g2:Grant {application_id: 'APP1002', title: 'Spider venom peptides for stroke',
	                   amount: 850000, start_year: 2019, funding_body: 'ARC', grant_status: 'Closed'})
	 CREATE (g3:Grant {application_id: 'APP1003', title: 'Coral reef resilience under warming oceans',
	                   amount: 2200000, start_year: 2022, funding_body: 'ARC', grant_status: 'Active'})
	 CREATE (smith)-[:PRINCIPAL_INVESTIGATOR]->(g1)
	 CREATE (king)-[:PRINCIPAL_INVESTIGATOR]->(g2)
	 CREATE (king)-[:INVESTIGATOR]->(g3)
	 CREATE (g1)-[:HOSTED_BY]->(uq)
	 CREATE (g2)-[:HOSTED_BY]->(uq)
	 CREATE (g3)-[:HOSTED_BY]->(mon)`,
}

func seed(ctx context.Context, cfg graph.Config) error {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return err
	}
	defer driver.Close(ctx)

	for _, stmt := range seedStatements {
		if _, err := neo4j.ExecuteQuery(ctx, driver, stmt, nil, neo4j.EagerResultTransformer); err != nil {
			return err
		}
	}
	return nil
}
