// Package graph provides the Neo4j client used to run generated queries and
// introspect the grant graph over Bolt.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/logging"
)

// Config holds graph database configuration.
type Config struct {
	URI                   string        `yaml:"uri" env:"NEO4J_URI" env-default:"bolt://localhost:7687"`
	Username              string        `yaml:"username" env:"NEO4J_USER" env-default:"neo4j"`
	Password              string        `yaml:"-" env:"NEO4J_PASSWORD"`
	Database              string        `yaml:"database" env:"NEO4J_DATABASE"` // Empty selects the server default
	MaxConnectionPoolSize int           `yaml:"max_connection_pool_size" env:"NEO4J_MAX_POOL_SIZE" env-default:"20"`
	AcquireTimeout        time.Duration `yaml:"acquire_timeout" env:"NEO4J_ACQUIRE_TIMEOUT" env-default:"10s"`
	QueryTimeout          time.Duration `yaml:"query_timeout" env:"NEO4J_QUERY_TIMEOUT" env-default:"30s"`
	FetchSize             int           `yaml:"fetch_size" env:"NEO4J_FETCH_SIZE" env-default:"200"`
}

// Rows is the materialized result of a read query.
type Rows struct {
	// Columns are in the order the store returned them.
	Columns []string
	Records []map[string]any
	// Truncated is set when the store had more records than the limit.
	Truncated bool
}

// Runner executes a read-only query and materializes at most limit records.
// Use this interface for dependency injection to enable mocking in tests.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any, limit int) (*Rows, error)
}

var _ Runner = (*Client)(nil)

// Client wraps the Neo4j driver. The driver owns a bounded connection pool and
// is safe for concurrent use; every call opens its own session.
type Client struct {
	driver neo4j.DriverWithContext
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a new graph database client. It does not dial; call
// VerifyConnectivity to check the server is reachable.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		}
		if cfg.AcquireTimeout > 0 {
			c.ConnectionAcquisitionTimeout = cfg.AcquireTimeout
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver for %s: %w", logging.SanitizeURI(cfg.URI), err)
	}

	return &Client{
		driver: driver,
		cfg:    cfg,
		logger: logger.Named("graph"),
	}, nil
}

// Close closes the driver and its pooled connections.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// VerifyConnectivity checks if the database is reachable.
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return Classify(err)
	}
	return nil
}

// ExecuteRead runs work in a read transaction on a fresh session. The session
// is closed before returning, whatever the outcome.
func (c *Client) ExecuteRead(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.cfg.Database,
		FetchSize:    c.fetchSize(),
	})
	defer session.Close(ctx)

	var opts []func(*neo4j.TransactionConfig)
	if c.cfg.QueryTimeout > 0 {
		opts = append(opts, neo4j.WithTxTimeout(c.cfg.QueryTimeout))
	}
	return session.ExecuteRead(ctx, work, opts...)
}

func (c *Client) fetchSize() int {
	if c.cfg.FetchSize > 0 {
		return c.cfg.FetchSize
	}
	return neo4j.FetchDefault
}

// Run implements Runner. Reading stops after limit records; a non-positive
// limit reads everything.
func (c *Client) Run(ctx context.Context, cypher string, params map[string]any, limit int) (*Rows, error) {
	start := time.Now()

	out, err := c.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		keys, err := result.Keys()
		if err != nil {
			return nil, err
		}

		rows := &Rows{Columns: keys, Records: make([]map[string]any, 0)}
		for result.Next(ctx) {
			if limit > 0 && len(rows.Records) >= limit {
				rows.Truncated = true
				break
			}
			record := result.Record()
			row := make(map[string]any, len(record.Keys))
			for i, key := range record.Keys {
				row[key] = extractValue(record.Values[i])
			}
			rows.Records = append(rows.Records, row)
		}
		if !rows.Truncated {
			if err := result.Err(); err != nil {
				return nil, err
			}
		}
		return rows, nil
	})
	if err != nil {
		classified := Classify(err)
		c.logger.Warn("Graph query failed",
			zap.String("query", logging.TruncateQuery(cypher)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(classified))
		return nil, classified
	}

	rows := out.(*Rows)
	c.logger.Debug("Graph query completed",
		zap.Int("rows", len(rows.Records)),
		zap.Bool("truncated", rows.Truncated),
		zap.Duration("elapsed", time.Since(start)))
	return rows, nil
}
