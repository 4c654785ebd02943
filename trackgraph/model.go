// Package trackgraph is an in-memory track graph: spots placed in frames and
// weighted edges linking them. Mutations may be grouped between BeginUpdate
// and EndUpdate; listeners then receive the whole batch once the outermost
// update ends.
package trackgraph

import (
	"sort"
	"sync"

	"github.com/LdDl/spottrack-go/spot"
	"github.com/pkg/errors"
)

var (
	// ErrUnknownSpot is returned when an edge endpoint is not in the model.
	ErrUnknownSpot = errors.New("spot is not in the model")
	// ErrSelfLoop is returned when an edge would link a spot to itself.
	ErrSelfLoop = errors.New("edge links a spot to itself")
)

// Edge links Source to Target. The model treats (a, b) and (b, a) as the
// same link and keeps the orientation it was added with.
type Edge struct {
	Source *spot.Spot
	Target *spot.Spot
	Weight float64
}

type edgeKey struct {
	lo, hi int
}

func keyOf(a, b *spot.Spot) edgeKey {
	if a.ID() < b.ID() {
		return edgeKey{a.ID(), b.ID()}
	}
	return edgeKey{b.ID(), a.ID()}
}

// EventKind tells what changed.
type EventKind int

const (
	SpotAdded EventKind = iota + 1
	SpotRemoved
	EdgeAdded
	EdgeRemoved
)

func (k EventKind) String() string {
	switch k {
	case SpotAdded:
		return "spot-added"
	case SpotRemoved:
		return "spot-removed"
	case EdgeAdded:
		return "edge-added"
	case EdgeRemoved:
		return "edge-removed"
	default:
		return "unknown"
	}
}

// Event is one change of the model. Spot is set for spot events, Edge for
// edge events.
type Event struct {
	Kind  EventKind
	Spot  *spot.Spot
	Frame int
	Edge  Edge
}

// Listener receives the events of a finished batch, in mutation order.
type Listener func(events []Event)

// Model is the track graph. It is safe for concurrent use, though a batch
// is expected to have a single writer.
type Model struct {
	mu        sync.Mutex
	spots     map[int]*spot.Spot
	frames    map[int]map[int]*spot.Spot
	edges     map[edgeKey]Edge
	adjacency map[int]map[int]struct{}

	depth     int
	pending   []Event
	listeners []Listener
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		spots:     make(map[int]*spot.Spot),
		frames:    make(map[int]map[int]*spot.Spot),
		edges:     make(map[edgeKey]Edge),
		adjacency: make(map[int]map[int]struct{}),
	}
}

// AddListener registers l for every future batch.
func (m *Model) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// BeginUpdate opens a batch. Batches nest.
func (m *Model) BeginUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depth++
}

// EndUpdate closes a batch. When the outermost batch closes, pending events
// are delivered to the listeners.
func (m *Model) EndUpdate() {
	m.mu.Lock()
	if m.depth > 0 {
		m.depth--
	}
	if m.depth > 0 || len(m.pending) == 0 {
		m.mu.Unlock()
		return
	}
	events := m.pending
	m.pending = nil
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l(events)
	}
}

// InUpdate reports whether a batch is open.
func (m *Model) InUpdate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth > 0
}

// emit must be called without the lock held.
func (m *Model) emit(ev Event) {
	m.mu.Lock()
	if m.depth > 0 {
		m.pending = append(m.pending, ev)
		m.mu.Unlock()
		return
	}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l([]Event{ev})
	}
}

// AddSpotTo places s in frame and sets its FRAME feature. A spot already in
// the model moves to the new frame.
func (m *Model) AddSpotTo(s *spot.Spot, frame int) {
	m.mu.Lock()
	if old, ok := m.spots[s.ID()]; ok {
		delete(m.frames[old.Frame()], s.ID())
	}
	s.PutFeature(spot.FeatureFrame, float64(frame))
	m.spots[s.ID()] = s
	inFrame, ok := m.frames[frame]
	if !ok {
		inFrame = make(map[int]*spot.Spot)
		m.frames[frame] = inFrame
	}
	inFrame[s.ID()] = s
	m.mu.Unlock()
	m.emit(Event{Kind: SpotAdded, Spot: s, Frame: frame})
}

// RemoveSpot removes s and every edge touching it. It reports whether s was
// in the model.
func (m *Model) RemoveSpot(s *spot.Spot) bool {
	m.mu.Lock()
	if _, ok := m.spots[s.ID()]; !ok {
		m.mu.Unlock()
		return false
	}
	var removed []Edge
	for other := range m.adjacency[s.ID()] {
		k := keyOf(s, m.spots[other])
		removed = append(removed, m.edges[k])
		delete(m.edges, k)
		delete(m.adjacency[other], s.ID())
	}
	delete(m.adjacency, s.ID())
	delete(m.frames[s.Frame()], s.ID())
	delete(m.spots, s.ID())
	m.mu.Unlock()
	sortEdges(removed)
	for _, e := range removed {
		m.emit(Event{Kind: EdgeRemoved, Edge: e})
	}
	m.emit(Event{Kind: SpotRemoved, Spot: s, Frame: s.Frame()})
	return true
}

// AddEdge links source to target. Adding an existing link replaces its
// weight and orientation.
func (m *Model) AddEdge(source, target *spot.Spot, weight float64) error {
	if source.ID() == target.ID() {
		return errors.Wrapf(ErrSelfLoop, "spot %d", source.ID())
	}
	m.mu.Lock()
	for _, s := range []*spot.Spot{source, target} {
		if _, ok := m.spots[s.ID()]; !ok {
			m.mu.Unlock()
			return errors.Wrapf(ErrUnknownSpot, "spot %d", s.ID())
		}
	}
	e := Edge{Source: source, Target: target, Weight: weight}
	m.edges[keyOf(source, target)] = e
	m.link(source.ID(), target.ID())
	m.link(target.ID(), source.ID())
	m.mu.Unlock()
	m.emit(Event{Kind: EdgeAdded, Edge: e})
	return nil
}

func (m *Model) link(a, b int) {
	n, ok := m.adjacency[a]
	if !ok {
		n = make(map[int]struct{})
		m.adjacency[a] = n
	}
	n[b] = struct{}{}
}

// RemoveEdge removes the link between a and b, whatever its orientation.
// It reports whether the link existed.
func (m *Model) RemoveEdge(a, b *spot.Spot) bool {
	m.mu.Lock()
	k := keyOf(a, b)
	e, ok := m.edges[k]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.edges, k)
	delete(m.adjacency[a.ID()], b.ID())
	delete(m.adjacency[b.ID()], a.ID())
	m.mu.Unlock()
	m.emit(Event{Kind: EdgeRemoved, Edge: e})
	return true
}

// Edge returns the link between a and b.
func (m *Model) Edge(a, b *spot.Spot) (Edge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[keyOf(a, b)]
	return e, ok
}

// Edges returns every edge ordered by source frame, source ID and target ID.
func (m *Model) Edges() []Edge {
	m.mu.Lock()
	out := make([]Edge, 0, len(m.edges))
	for _, e := range m.edges {
		out = append(out, e)
	}
	m.mu.Unlock()
	sortEdges(out)
	return out
}

// EdgesOf returns the edges touching s, in Edges order.
func (m *Model) EdgesOf(s *spot.Spot) []Edge {
	m.mu.Lock()
	out := make([]Edge, 0, len(m.adjacency[s.ID()]))
	for other := range m.adjacency[s.ID()] {
		out = append(out, m.edges[keyOf(s, m.spots[other])])
	}
	m.mu.Unlock()
	sortEdges(out)
	return out
}

// Spot returns the spot with the given ID.
func (m *Model) Spot(id int) (*spot.Spot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.spots[id]
	return s, ok
}

// SpotsInFrame returns the spots of frame ordered by ID.
func (m *Model) SpotsInFrame(frame int) []*spot.Spot {
	m.mu.Lock()
	out := make([]*spot.Spot, 0, len(m.frames[frame]))
	for _, s := range m.frames[frame] {
		out = append(out, s)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Frames returns the non-empty frames in increasing order.
func (m *Model) Frames() []int {
	m.mu.Lock()
	out := make([]int, 0, len(m.frames))
	for f, spots := range m.frames {
		if len(spots) > 0 {
			out = append(out, f)
		}
	}
	m.mu.Unlock()
	sort.Ints(out)
	return out
}

// NumSpots returns the number of spots.
func (m *Model) NumSpots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spots)
}

// NumEdges returns the number of edges.
func (m *Model) NumEdges() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.edges)
}

// SortEdges orders edges by source frame, source ID and target ID.
func SortEdges(edges []Edge) {
	sortEdges(edges)
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if fa, fb := a.Source.Frame(), b.Source.Frame(); fa != fb {
			return fa < fb
		}
		if a.Source.ID() != b.Source.ID() {
			return a.Source.ID() < b.Source.ID()
		}
		return a.Target.ID() < b.Target.ID()
	})
}
