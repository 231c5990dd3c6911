package graphstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"go.uber.org/zap"

	"github.com/nicehiro/protgraph/internal/graph"
)

// Settings control how nodes and relationships are read from the store.
// Label and property names must already be validated identifiers.
type Settings struct {
	NodeLabel      string
	IDProperty     string
	LabelProperty  string
	WeightProperty string
	RowLimit       int
	Timeout        time.Duration
}

// NodeSummary describes a single stored node.
type NodeSummary struct {
	Identity   string
	Label      string
	Labels     []string
	Properties map[string]any
}

// Client issues neighborhood queries. Every call acquires its own
// connection from the Opener and releases it before returning.
type Client struct {
	opener Opener
	logger *zap.Logger

	mu       sync.RWMutex
	settings Settings
}

// NewClient creates a graph store client.
func NewClient(opener Opener, settings Settings, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{opener: opener, settings: settings, logger: logger}
}

// Configure replaces the settings used by subsequent calls.
func (c *Client) Configure(settings Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = settings
}

// Settings returns the current settings.
func (c *Client) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// neighborhoodQuery collects the seed, its hop-1 neighbors S, and the
// outgoing relationships of each hop-1 node that end inside S or at the
// seed. A seed without neighbors yields one row with null mid, r and far.
func neighborhoodQuery(s Settings) string {
	label := ""
	if s.NodeLabel != "" {
		label = ":" + s.NodeLabel
	}
	return fmt.Sprintf(`
		MATCH (seed%[1]s {%[2]s: $seed})
		OPTIONAL MATCH (seed)-[sr]-(mid%[1]s)
		WHERE mid <> seed
		WITH seed, mid, collect(sr) AS seedRels
		WITH seed, collect({mid: mid, rels: seedRels}) AS hops
		WITH seed, hops, [h IN hops WHERE h.mid IS NOT NULL | h.mid] AS mids
		UNWIND hops AS hop
		WITH seed, hop.mid AS mid, hop.rels AS seedRels, mids
		OPTIONAL MATCH (mid)-[r]->(far%[1]s)
		WHERE far IN mids OR far = seed
		RETURN seed, mid, seedRels, r, far
		LIMIT $limit
	`, label, s.IDProperty)
}

// FetchNeighborhood returns the raw rows of the neighborhood-closed ego
// graph around seed. On any failure the rows are empty; the error is only
// meant for telling a connection failure apart in messages. No retries.
func (c *Client) FetchNeighborhood(ctx context.Context, seed string) ([]graph.RawTuple, error) {
	s := c.Settings()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	runner, err := c.opener.Open(ctx)
	if err != nil {
		c.logger.Warn("graph store unavailable", zap.String("seed", seed), zap.Error(err))
		return []graph.RawTuple{}, err
	}
	defer c.release(ctx, runner)

	result, err := runner.Run(ctx, neighborhoodQuery(s), map[string]any{
		"seed":  seed,
		"limit": int64(s.RowLimit),
	})
	if err != nil {
		c.logger.Warn("neighborhood query failed", zap.String("seed", seed), zap.Error(err))
		return []graph.RawTuple{}, err
	}

	records := result.Records
	if s.RowLimit > 0 && len(records) > s.RowLimit {
		records = records[:s.RowLimit]
	}

	tuples := make([]graph.RawTuple, 0, len(records))
	for _, rec := range records {
		if t, ok := toTuple(rec, s); ok {
			tuples = append(tuples, t)
		}
	}
	c.logger.Debug("neighborhood fetched",
		zap.String("seed", seed),
		zap.Int("rows", len(result.Records)),
		zap.Int("tuples", len(tuples)),
	)
	return tuples, nil
}

// LookupNode fetches a single node by identity.
func (c *Client) LookupNode(ctx context.Context, identity string) (*NodeSummary, error) {
	s := c.Settings()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", s.NodeLabel).WithProperties(map[string]interface{}{s.IDProperty: identity})).
		Return("n").
		Build()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}

	runner, err := c.opener.Open(ctx)
	if err != nil {
		c.logger.Warn("graph store unavailable", zap.String("identity", identity), zap.Error(err))
		return nil, err
	}
	defer c.release(ctx, runner)

	result, err := runner.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, ErrNotFound
	}

	value, ok := result.Records[0].Get("n")
	if !ok {
		return nil, fmt.Errorf("%w: return value 'n' missing", ErrQuery)
	}
	n, ok := value.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("%w: return value 'n' is not a node", ErrQuery)
	}

	raw := toRawNode(n, s)
	labels := append([]string(nil), n.Labels...)
	sort.Strings(labels)
	return &NodeSummary{
		Identity:   raw.Identity,
		Label:      raw.Label,
		Labels:     labels,
		Properties: n.Props,
	}, nil
}

func (c *Client) release(ctx context.Context, r Runner) {
	// The query context may already be cancelled; closing must still happen.
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.Close(closeCtx); err != nil {
		c.logger.Debug("closing graph store connection", zap.Error(err))
	}
}
