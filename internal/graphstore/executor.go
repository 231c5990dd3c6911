// Package graphstore fetches entity neighborhoods from a Neo4j graph.
package graphstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var (
	// ErrConnection means the store could not be reached or rejected the
	// credentials.
	ErrConnection = errors.New("graph store connection failed")
	// ErrQuery means the store was reachable but the query failed.
	ErrQuery = errors.New("graph store query failed")
	// ErrNotFound is returned by lookups that match nothing.
	ErrNotFound = errors.New("record not found")
)

// Runner executes a Cypher query and returns a fully buffered result.
// A Runner holds one connection and is closed after a single call.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
	Close(ctx context.Context) error
}

// Opener acquires a Runner for the duration of one call.
type Opener interface {
	Open(ctx context.Context) (Runner, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Runner, error)

func (f OpenerFunc) Open(ctx context.Context) (Runner, error) { return f(ctx) }

// Neo4jExecutor runs queries with the official driver.
type Neo4jExecutor struct {
	Driver neo4j.DriverWithContext
	DBName string
}

// Credentials identify a Neo4j database.
type Credentials struct {
	URI      string
	Username string
	Password string
	Database string
}

// DriverOpener dials a new driver for every Open and verifies connectivity
// before handing it out.
func DriverOpener(creds Credentials) Opener {
	return OpenerFunc(func(ctx context.Context) (Runner, error) {
		driver, err := neo4j.NewDriverWithContext(creds.URI, neo4j.BasicAuth(creds.Username, creds.Password, ""))
		if err != nil {
			return nil, fmt.Errorf("%w: could not create driver: %v", ErrConnection, err)
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			driver.Close(ctx)
			return nil, fmt.Errorf("%w: %v", ErrConnection, err)
		}
		return &Neo4jExecutor{Driver: driver, DBName: creds.Database}, nil
	})
}

// Run executes query with ExecuteQuery, which manages the session and
// transaction and buffers all records.
func (e *Neo4jExecutor) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if e.DBName != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(e.DBName))
	}
	result, err := neo4j.ExecuteQuery(ctx, e.Driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		if neo4j.IsConnectivityError(err) {
			return nil, fmt.Errorf("%w: %v", ErrConnection, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return result, nil
}

// Close releases the driver.
func (e *Neo4jExecutor) Close(ctx context.Context) error {
	return e.Driver.Close(ctx)
}
