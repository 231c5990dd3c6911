package graphstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nicehiro/protgraph/internal/graph"
)

type fakeRunner struct {
	result  *neo4j.EagerResult
	err     error
	queries []string
	params  []map[string]any
	closed  int
}

func (f *fakeRunner) Run(_ context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	f.queries = append(f.queries, query)
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRunner) Close(context.Context) error {
	f.closed++
	return nil
}

type fakeOpener struct {
	runner *fakeRunner
	err    error
	opened int
}

func (o *fakeOpener) Open(context.Context) (Runner, error) {
	o.opened++
	if o.err != nil {
		return nil, o.err
	}
	return o.runner, nil
}

var testSettings = Settings{
	NodeLabel:      "Protein",
	IDProperty:     "entry",
	LabelProperty:  "name",
	WeightProperty: "weight",
	RowLimit:       500,
}

func protein(id, name string) neo4j.Node {
	props := map[string]any{"entry": id}
	if name != "" {
		props["name"] = name
	}
	return neo4j.Node{ElementId: "el-" + id, Labels: []string{"Protein"}, Props: props}
}

func interacts(id, from, to string, weight any) neo4j.Relationship {
	props := map[string]any{}
	if weight != nil {
		props["weight"] = weight
	}
	return neo4j.Relationship{
		ElementId:      id,
		StartElementId: "el-" + from,
		EndElementId:   "el-" + to,
		Type:           "INTERACTS_WITH",
		Props:          props,
	}
}

var rowKeys = []string{"seed", "mid", "seedRels", "r", "far"}

func row(values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: rowKeys, Values: values}
}

func TestFetchNeighborhoodMapsRows(t *testing.T) {
	seed := protein("P69905", "HBA_HUMAN")
	runner := &fakeRunner{result: &neo4j.EagerResult{
		Keys: rowKeys,
		Records: []*neo4j.Record{
			row(seed, protein("P68871", "HBB_HUMAN"), []any{interacts("s1", "P69905", "P68871", 0.9)},
				interacts("r1", "P68871", "P02042", int64(2)), protein("P02042", "")),
			row(seed, protein("P02042", ""), []any{}, nil, nil),
		},
	}}
	opener := &fakeOpener{runner: runner}
	c := NewClient(opener, testSettings, zap.NewNop())

	tuples, err := c.FetchNeighborhood(context.Background(), "P69905")
	require.NoError(t, err)
	require.Len(t, tuples, 2)

	first := tuples[0]
	assert.Equal(t, "P69905", first.Seed.Identity)
	assert.Equal(t, "HBA_HUMAN", first.Seed.Label)
	require.NotNil(t, first.Mid)
	assert.Equal(t, "P68871", first.Mid.Identity)
	require.NotNil(t, first.Rel)
	assert.Equal(t, 2.0, first.Rel.Weight)
	assert.True(t, first.Rel.HasWeight)
	require.NotNil(t, first.Far)
	assert.Equal(t, "", first.Far.Label)
	require.Len(t, first.SeedRels, 1)
	assert.Equal(t, "el-P69905", first.SeedRels[0].StartElementID)

	second := tuples[1]
	assert.Nil(t, second.Rel)
	assert.Nil(t, second.Far)

	assert.Equal(t, 1, opener.opened)
	assert.Equal(t, 1, runner.closed, "connection released after the call")
	require.Len(t, runner.params, 1)
	assert.Equal(t, "P69905", runner.params[0]["seed"])
	assert.Equal(t, int64(500), runner.params[0]["limit"])
	assert.Contains(t, runner.queries[0], "(seed:Protein {entry: $seed})")
	assert.Contains(t, runner.queries[0], "LIMIT $limit")
}

func TestFetchNeighborhoodIsolatedSeed(t *testing.T) {
	runner := &fakeRunner{result: &neo4j.EagerResult{
		Keys:    rowKeys,
		Records: []*neo4j.Record{row(protein("P1", "lonely"), nil, []any{}, nil, nil)},
	}}
	c := NewClient(&fakeOpener{runner: runner}, testSettings, nil)

	tuples, err := c.FetchNeighborhood(context.Background(), "P1")
	require.NoError(t, err)
	require.Len(t, tuples, 1)

	nb := graph.Assembler{}.Assemble(tuples)
	assert.Equal(t, 1, nb.Len())
	assert.Empty(t, nb.Edges)
}

func TestFetchNeighborhoodCapsRows(t *testing.T) {
	seed := protein("P1", "")
	records := make([]*neo4j.Record, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, row(seed, nil, []any{}, nil, nil))
	}
	settings := testSettings
	settings.RowLimit = 3
	c := NewClient(&fakeOpener{runner: &fakeRunner{result: &neo4j.EagerResult{Records: records}}}, settings, nil)

	tuples, err := c.FetchNeighborhood(context.Background(), "P1")
	require.NoError(t, err)
	assert.Len(t, tuples, 3)
}

func TestFetchNeighborhoodFailuresReturnEmpty(t *testing.T) {
	tests := []struct {
		name    string
		opener  *fakeOpener
		wantErr error
	}{
		{
			name:    "connection refused",
			opener:  &fakeOpener{err: ErrConnection},
			wantErr: ErrConnection,
		},
		{
			name:    "query error",
			opener:  &fakeOpener{runner: &fakeRunner{err: ErrQuery}},
			wantErr: ErrQuery,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.opener, testSettings, nil)
			tuples, err := c.FetchNeighborhood(context.Background(), "P1")
			assert.NotNil(t, tuples)
			assert.Empty(t, tuples)
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.Equal(t, 1, tt.opener.opened, "no retries")
			if tt.opener.runner != nil {
				assert.Equal(t, 1, tt.opener.runner.closed)
			}
		})
	}
}

func TestNeighborhoodQueryWithoutLabel(t *testing.T) {
	s := testSettings
	s.NodeLabel = ""
	q := neighborhoodQuery(s)
	assert.Contains(t, q, "MATCH (seed {entry: $seed})")
	assert.Contains(t, q, "OPTIONAL MATCH (mid)-[r]->(far)")
}

func TestLookupNode(t *testing.T) {
	runner := &fakeRunner{result: &neo4j.EagerResult{
		Keys:    []string{"n"},
		Records: []*neo4j.Record{{Keys: []string{"n"}, Values: []any{protein("P69905", "HBA_HUMAN")}}},
	}}
	c := NewClient(&fakeOpener{runner: runner}, testSettings, nil)

	summary, err := c.LookupNode(context.Background(), "P69905")
	require.NoError(t, err)
	assert.Equal(t, "P69905", summary.Identity)
	assert.Equal(t, "HBA_HUMAN", summary.Label)
	assert.Equal(t, []string{"Protein"}, summary.Labels)
	assert.Equal(t, 1, runner.closed)

	require.Len(t, runner.params, 1)
	found := strings.Contains(runner.queries[0], "P69905")
	for _, v := range runner.params[0] {
		if v == "P69905" {
			found = true
		}
	}
	assert.True(t, found, "identity reaches the query")
}

func TestLookupNodeNotFound(t *testing.T) {
	runner := &fakeRunner{result: &neo4j.EagerResult{}}
	c := NewClient(&fakeOpener{runner: runner}, testSettings, nil)

	_, err := c.LookupNode(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToFloat(t *testing.T) {
	for _, v := range []any{1.5, float32(1.5), int64(2), 2, int32(2)} {
		_, ok := toFloat(v)
		assert.True(t, ok, "%T", v)
	}
	_, ok := toFloat("1.5")
	assert.False(t, ok)
	_, ok = toFloat(nil)
	assert.False(t, ok)
}
