package trackgraph

import (
	"testing"

	"github.com/LdDl/spottrack-go/spot"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelMutations(t *testing.T) {
	m := NewModel()
	a := spot.MustSpot([]float64{0, 0}, 1, 1)
	b := spot.MustSpot([]float64{1, 0}, 1, 1)
	c := spot.MustSpot([]float64{2, 0}, 1, 1)
	m.AddSpotTo(a, 0)
	m.AddSpotTo(b, 3)
	m.AddSpotTo(c, 3)
	assert.Equal(t, 3, a.Frame()+b.Frame())
	assert.Equal(t, []int{0, 3}, m.Frames())
	assert.Equal(t, []*spot.Spot{b, c}, m.SpotsInFrame(3))

	require.NoError(t, m.AddEdge(a, b, 1))
	require.NoError(t, m.AddEdge(c, a, 4))
	assert.Equal(t, 2, m.NumEdges())

	edges := m.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, a, edges[0].Source)
	assert.Equal(t, b, edges[0].Target)
	assert.Equal(t, c, edges[1].Source)

	e, ok := m.Edge(b, a)
	require.True(t, ok)
	assert.Equal(t, 1.0, e.Weight)
	assert.Len(t, m.EdgesOf(a), 2)

	assert.True(t, m.RemoveEdge(b, a))
	assert.False(t, m.RemoveEdge(a, b))
	assert.Equal(t, 1, m.NumEdges())

	// Moving a spot keeps it once.
	m.AddSpotTo(c, 5)
	assert.Equal(t, []*spot.Spot{b}, m.SpotsInFrame(3))
	assert.Equal(t, []int{0, 3, 5}, m.Frames())

	assert.True(t, m.RemoveSpot(c))
	assert.False(t, m.RemoveSpot(c))
	assert.Equal(t, 0, m.NumEdges())
	assert.Equal(t, 2, m.NumSpots())
}

func TestModelEdgeErrors(t *testing.T) {
	m := NewModel()
	a := spot.MustSpot([]float64{0, 0}, 1, 1)
	b := spot.MustSpot([]float64{1, 0}, 1, 1)
	m.AddSpotTo(a, 0)

	err := m.AddEdge(a, b, 1)
	assert.True(t, errors.Is(err, ErrUnknownSpot))
	err = m.AddEdge(a, a, 1)
	assert.True(t, errors.Is(err, ErrSelfLoop))
}

func TestModelBatchedEvents(t *testing.T) {
	m := NewModel()
	var batches [][]Event
	m.AddListener(func(events []Event) {
		batches = append(batches, events)
	})

	a := spot.MustSpot([]float64{0, 0}, 1, 1)
	m.AddSpotTo(a, 0)
	require.Len(t, batches, 1)

	b := spot.MustSpot([]float64{1, 0}, 1, 1)
	m.BeginUpdate()
	m.BeginUpdate()
	m.AddSpotTo(b, 1)
	require.NoError(t, m.AddEdge(a, b, 1))
	m.EndUpdate()
	assert.True(t, m.InUpdate())
	assert.Len(t, batches, 1)
	m.RemoveEdge(a, b)
	m.EndUpdate()
	assert.False(t, m.InUpdate())

	require.Len(t, batches, 2)
	kinds := make([]EventKind, 0, 3)
	for _, ev := range batches[1] {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{SpotAdded, EdgeAdded, EdgeRemoved}, kinds)

	// An empty batch notifies nobody.
	m.BeginUpdate()
	m.EndUpdate()
	assert.Len(t, batches, 2)
	assert.Equal(t, "edge-added", EdgeAdded.String())
}
