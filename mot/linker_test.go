package mot

import (
	"context"
	"math"
	"testing"

	"github.com/LdDl/spottrack-go/costfunc"
	"github.com/LdDl/spottrack-go/gaps"
	"github.com/LdDl/spottrack-go/spot"
	"github.com/LdDl/spottrack-go/trackgraph"
	"github.com/pkg/errors"
)

func newSpot(x, y float64) *spot.Spot {
	return spot.MustSpot([]float64{x, y}, 1, 1)
}

func TestLinkerStraightTracks(t *testing.T) {
	model := trackgraph.NewModel()
	linker, err := NewLinker(costfunc.SquareDistance{}, model, DefaultSettings())
	if err != nil {
		t.Error(err)
		return
	}
	frames := make(map[int][]*spot.Spot)
	for frame := 0; frame < 5; frame++ {
		x := float64(frame)
		frames[frame] = []*spot.Spot{newSpot(x, 0), newSpot(x, 10)}
	}
	links, err := linker.Link(context.Background(), frames)
	if err != nil {
		t.Error(err)
		return
	}
	if links != 8 {
		t.Errorf("Wrong number of links: %d, expected: %d", links, 8)
	}
	if model.NumEdges() != 8 {
		t.Errorf("Wrong number of edges: %d, expected: %d", model.NumEdges(), 8)
	}
	for _, e := range model.Edges() {
		if e.Source.Y() != e.Target.Y() {
			t.Errorf("Edge crosses tracks: %v -> %v", e.Source, e.Target)
		}
		if e.Target.Frame()-e.Source.Frame() != 1 {
			t.Errorf("Wrong edge frames: %d -> %d", e.Source.Frame(), e.Target.Frame())
		}
		if math.Abs(e.Weight-1) > eps {
			t.Errorf("Wrong edge weight: %v, expected: %v", e.Weight, 1.0)
		}
	}
	if len(linker.Heads) != 2 {
		t.Errorf("Wrong number of heads: %d, expected: %d", len(linker.Heads), 2)
	}
	for _, head := range linker.Heads {
		if len(head.GetTrack()) != 5 {
			t.Errorf("Wrong track length: %d, expected: %d", len(head.GetTrack()), 5)
		}
	}
}

func TestLinkerGreedy(t *testing.T) {
	model := trackgraph.NewModel()
	settings := DefaultSettings()
	settings.Algorithm = MatchingAlgorithmGreedy
	linker, err := NewLinker(costfunc.SquareDistance{}, model, settings)
	if err != nil {
		t.Error(err)
		return
	}
	a, b := newSpot(0, 0), newSpot(0, 10)
	c, d := newSpot(1, 10), newSpot(1, 0)
	if _, err := linker.LinkFrame(0, []*spot.Spot{a, b}); err != nil {
		t.Error(err)
		return
	}
	if _, err := linker.LinkFrame(1, []*spot.Spot{c, d}); err != nil {
		t.Error(err)
		return
	}
	if _, ok := model.Edge(a, d); !ok {
		t.Errorf("Missing edge %d -> %d", a.ID(), d.ID())
	}
	if _, ok := model.Edge(b, c); !ok {
		t.Errorf("Missing edge %d -> %d", b.ID(), c.ID())
	}
}

func TestLinkerGapThenClose(t *testing.T) {
	model := trackgraph.NewModel()
	linker, err := NewLinker(costfunc.SquareDistance{}, model, DefaultSettings())
	if err != nil {
		t.Error(err)
		return
	}
	frames := map[int][]*spot.Spot{
		0: {newSpot(0, 0)},
		1: {newSpot(1, 0)},
		3: {newSpot(3, 0)},
	}
	if _, err := linker.Link(context.Background(), frames); err != nil {
		t.Error(err)
		return
	}
	edges := model.Edges()
	if len(edges) != 2 {
		t.Errorf("Wrong number of edges: %d, expected: %d", len(edges), 2)
		return
	}
	gap := edges[1]
	if gap.Source.Frame() != 1 || gap.Target.Frame() != 3 {
		t.Errorf("Wrong gap edge frames: %d -> %d, expected: 1 -> 3", gap.Source.Frame(), gap.Target.Frame())
	}
	if math.Abs(gap.Weight-4) > eps {
		t.Errorf("Wrong gap weight: %v, expected: %v", gap.Weight, 4.0)
	}

	report, err := gaps.CloseGaps[uint16](context.Background(), model, nil, nil, gaps.DefaultParams())
	if err != nil {
		t.Error(err)
		return
	}
	if report.GapsClosed != 1 || len(report.Added) != 1 {
		t.Errorf("Wrong report: %d gaps closed, %d spots added, expected: 1 and 1", report.GapsClosed, len(report.Added))
		return
	}
	added := report.Added[0]
	if added.Frame() != 2 || math.Abs(added.X()-2) > eps {
		t.Errorf("Wrong inserted spot: frame %d, x %v, expected: frame 2, x 2", added.Frame(), added.X())
	}
	if model.NumEdges() != 3 {
		t.Errorf("Wrong number of edges: %d, expected: %d", model.NumEdges(), 3)
	}
}

func TestLinkerRetiresHeads(t *testing.T) {
	model := trackgraph.NewModel()
	settings := DefaultSettings()
	settings.MaxFrameGap = 1
	linker, err := NewLinker(costfunc.SquareDistance{}, model, settings)
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := linker.LinkFrame(0, []*spot.Spot{newSpot(0, 0)}); err != nil {
		t.Error(err)
		return
	}
	links, err := linker.LinkFrame(3, []*spot.Spot{newSpot(0, 0)})
	if err != nil {
		t.Error(err)
		return
	}
	if links != 0 || model.NumEdges() != 0 {
		t.Errorf("Wrong number of links: %d, expected: %d", links, 0)
	}
	if len(linker.Heads) != 1 {
		t.Errorf("Wrong number of heads: %d, expected: %d", len(linker.Heads), 1)
	}
}

func TestLinkerGating(t *testing.T) {
	model := trackgraph.NewModel()
	settings := DefaultSettings()
	settings.MaxCost = 4
	linker, err := NewLinker(costfunc.SquareDistance{}, model, settings)
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := linker.LinkFrame(0, []*spot.Spot{newSpot(0, 0)}); err != nil {
		t.Error(err)
		return
	}
	// 3 units away: cost 9 is above the gate
	links, err := linker.LinkFrame(1, []*spot.Spot{newSpot(3, 0)})
	if err != nil {
		t.Error(err)
		return
	}
	if links != 0 {
		t.Errorf("Wrong number of links: %d, expected: %d", links, 0)
	}
	if len(linker.Heads) != 2 {
		t.Errorf("Wrong number of heads: %d, expected: %d", len(linker.Heads), 2)
	}
	for _, head := range linker.Heads {
		if head.Frame() == 0 && head.GetNoMatchTimes() != 1 {
			t.Errorf("Wrong no match times: %d, expected: %d", head.GetNoMatchTimes(), 1)
		}
	}

	// An unreachable target is never linked
	blocked := costfunc.Func(func(source, target *spot.Spot) float64 {
		return costfunc.NoPath
	})
	other, err := NewLinker(blocked, trackgraph.NewModel(), DefaultSettings())
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := other.LinkFrame(0, []*spot.Spot{newSpot(0, 0)}); err != nil {
		t.Error(err)
		return
	}
	links, err = other.LinkFrame(1, []*spot.Spot{newSpot(0, 0)})
	if err != nil || links != 0 {
		t.Errorf("Wrong number of links: %d (%v), expected: %d", links, err, 0)
	}
}

func TestLinkerMotionModel(t *testing.T) {
	model := trackgraph.NewModel()
	settings := DefaultSettings()
	settings.MotionModel = true
	linker, err := NewLinker(costfunc.SquareDistance{}, model, settings)
	if err != nil {
		t.Error(err)
		return
	}
	for frame := 0; frame < 4; frame++ {
		spots := []*spot.Spot{newSpot(5, 5), newSpot(20+0.5*float64(frame), 0)}
		if _, err := linker.LinkFrame(frame, spots); err != nil {
			t.Error(err)
			return
		}
	}
	if model.NumEdges() != 6 {
		t.Errorf("Wrong number of edges: %d, expected: %d", model.NumEdges(), 6)
	}
	for _, e := range model.Edges() {
		if e.Source.Y() != e.Target.Y() {
			t.Errorf("Edge crosses tracks: %v -> %v", e.Source, e.Target)
		}
		expected := e.Source.SquareDistanceTo(e.Target)
		if expected == 0 {
			expected = costfunc.MinCost
		}
		if math.Abs(e.Weight-expected) > eps {
			t.Errorf("Wrong edge weight: %v, expected: %v", e.Weight, expected)
		}
	}
}

func TestLinkerErrors(t *testing.T) {
	if _, err := NewLinker(nil, trackgraph.NewModel(), DefaultSettings()); err == nil {
		t.Errorf("Expected error for nil cost function")
	}
	settings := DefaultSettings()
	settings.MaxCost = math.Inf(1)
	if _, err := NewLinker(costfunc.SquareDistance{}, trackgraph.NewModel(), settings); err == nil {
		t.Errorf("Expected error for infinite max cost")
	}
	linker, err := NewLinker(costfunc.SquareDistance{}, trackgraph.NewModel(), DefaultSettings())
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := linker.LinkFrame(2, nil); err != nil {
		t.Error(err)
		return
	}
	_, err = linker.LinkFrame(2, nil)
	if !errors.Is(err, ErrFrameOrder) {
		t.Errorf("Wrong error: %v, expected: %v", err, ErrFrameOrder)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fresh, _ := NewLinker(costfunc.SquareDistance{}, trackgraph.NewModel(), DefaultSettings())
	if _, err := fresh.Link(ctx, map[int][]*spot.Spot{0: {newSpot(0, 0)}}); !errors.Is(err, context.Canceled) {
		t.Errorf("Wrong error: %v, expected: %v", err, context.Canceled)
	}
}

func TestLinkerUnboundedMaxCost(t *testing.T) {
	model := trackgraph.NewModel()
	settings := DefaultSettings()
	settings.MaxCost = math.MaxFloat64
	linker, err := NewLinker(costfunc.SquareDistance{}, model, settings)
	if err != nil {
		t.Error(err)
		return
	}
	frames := map[int][]*spot.Spot{
		0: {newSpot(0, 0), newSpot(100, 0)},
		1: {newSpot(101, 0), newSpot(1, 0)},
	}
	links, err := linker.Link(context.Background(), frames)
	if err != nil {
		t.Error(err)
		return
	}
	if links != 2 {
		t.Errorf("Wrong number of links: %d, expected: %d", links, 2)
	}
	for _, e := range model.Edges() {
		if math.Abs(e.Weight-1) > eps {
			t.Errorf("Wrong edge weight: %v, expected: %v", e.Weight, 1.0)
		}
	}
}

func TestTrackHeadReference(t *testing.T) {
	s := newSpot(2, 3)
	s.PutFeature(spot.FeatureFrame, 4)
	s.PutFeature(spot.FeaturePixelX, 2)

	still := NewTrackHead(s, 1, false)
	if still.Reference() != s {
		t.Errorf("Reference without motion model must be the last spot")
	}

	moving := NewTrackHead(s, 1, true)
	moving.PredictTo(5)
	proxy := moving.Reference()
	if proxy == s {
		t.Errorf("Reference with motion model must be a copy")
	}
	if proxy.Frame() != 4 {
		t.Errorf("Wrong proxy frame: %d, expected: %d", proxy.Frame(), 4)
	}
	if _, ok := proxy.Feature(spot.FeaturePixelX); ok {
		t.Errorf("Proxy must not keep the pixel position")
	}
	predicted := moving.Predicted()
	if math.Abs(proxy.X()-predicted.X) > eps || math.Abs(proxy.Y()-predicted.Y) > eps {
		t.Errorf("Wrong proxy position: (%v, %v), expected: %v", proxy.X(), proxy.Y(), predicted)
	}

	target := newSpot(5, 7)
	if answer := still.PredictionError(target); math.Abs(answer-5) > eps {
		t.Errorf("Wrong prediction error: %v, expected: %v", answer, 5.0)
	}
	expected := math.Hypot(target.X()-predicted.X, target.Y()-predicted.Y)
	if answer := moving.PredictionError(target); math.Abs(answer-expected) > eps {
		t.Errorf("Wrong prediction error: %v, expected: %v", answer, expected)
	}
}
