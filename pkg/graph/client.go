// Package graph records merge lineage in Memgraph/Neo4j over Bolt
package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const defaultBoltPort = 7687

// Config locates the lineage graph
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Database is the Neo4j database lineage lives in. Memgraph ignores it.
	Database string
}

// URI is the Bolt address of the graph
func (c Config) URI() string {
	host, port := c.Host, c.Port
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = defaultBoltPort
	}
	return fmt.Sprintf("bolt://%s:%d", host, port)
}

func (c Config) auth() neo4j.AuthToken {
	if c.Username == "" {
		return neo4j.NoAuth()
	}
	return neo4j.BasicAuth(c.Username, c.Password, "")
}

// Client runs lineage statements. Every write and read is scoped to one
// table, since record ids are only unique within their table.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   ectologger.Logger
}

func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI(), cfg.auth())
	if err != nil {
		return nil, errors.WrapExternalIO(err, "open lineage graph")
	}
	return &Client{
		driver:   driver,
		database: cfg.Database,
		logger:   logger,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// VerifyConnectivity is the health check for the lineage graph
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return errors.WrapExternalIO(c.driver.VerifyConnectivity(ctx), "reach lineage graph")
}

// statement is one parameterised Cypher statement. The table parameter is
// added by the client.
type statement struct {
	cypher string
	params map[string]any
}

// writeLineage runs stmts in order inside one write transaction
func (c *Client) writeLineage(ctx context.Context, table, op string, stmts ...statement) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.writeLineage."+op, tracing.Table(table))
	defer span.End()

	session := c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, stmt := range stmts {
			result, err := tx.Run(ctx, stmt.cypher, withTable(table, stmt.params))
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	tracing.Fail(span, err)
	return errors.WrapExternalIO(err, "write "+op+" lineage")
}

// readLineage runs stmt in a read transaction and hands every row to row
// once the transaction has committed
func (c *Client) readLineage(ctx context.Context, table string, stmt statement, row func(*neo4j.Record)) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.readLineage", tracing.Table(table))
	defer span.End()

	session := c.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, stmt.cypher, withTable(table, stmt.params))
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		tracing.Fail(span, err)
		return errors.WrapExternalIO(err, "read lineage")
	}
	for _, rec := range rows.([]*neo4j.Record) {
		row(rec)
	}
	return nil
}

func (c *Client) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: c.database,
	})
}

func withTable(table string, params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["table"] = table
	return out
}
