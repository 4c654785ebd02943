// Package mot links spots frame to frame into tracks. Every frame the live
// track heads are matched against the new spots over a cost matrix built by
// a costfunc.CostFunction, with Hungarian or greedy assignment. A head may
// stay unmatched for a few frames; the link it gets afterwards skips those
// frames and is a gap for the gaps package to close.
package mot

import (
	"context"
	"math"
	"sort"

	"github.com/LdDl/spottrack-go/costfunc"
	"github.com/LdDl/spottrack-go/internal/logging"
	"github.com/LdDl/spottrack-go/spot"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrFrameOrder is returned when frames are not given in increasing order.
var ErrFrameOrder = errors.New("frames must be linked in increasing order")

// Graph receives the spots and links made by a Linker.
type Graph interface {
	AddSpotTo(s *spot.Spot, frame int)
	AddEdge(source, target *spot.Spot, weight float64) error
}

// Settings configures a Linker.
type Settings struct {
	Algorithm MatchingAlgorithm `yaml:"algorithm" json:"algorithm"`
	// MaxCost is the largest linking cost accepted. Default 25 (5 units with squared distances)
	MaxCost float64 `yaml:"max_cost" json:"max_cost"`
	// MaxFrameGap is the number of frames a head may miss before it is retired. Default 3
	MaxFrameGap int `yaml:"max_frame_gap" json:"max_frame_gap"`
	// MotionModel measures costs from Kalman-predicted positions
	MotionModel bool `yaml:"motion_model" json:"motion_model"`
	// FrameInterval is the time step of one frame for the motion model. Default 1
	FrameInterval float64 `yaml:"frame_interval" json:"frame_interval"`
}

// DefaultSettings returns Hungarian matching of squared distances up to 25,
// tolerating 3 missed frames, without motion model.
func DefaultSettings() Settings {
	return Settings{
		Algorithm:     MatchingAlgorithmHungarian,
		MaxCost:       25,
		MaxFrameGap:   3,
		MotionModel:   false,
		FrameInterval: 1,
	}
}

// Validate checks the settings values.
func (s Settings) Validate() error {
	if _, ok := algorithmNames[s.Algorithm]; !ok {
		return errors.Errorf("unknown matching algorithm %d", s.Algorithm)
	}
	if !(s.MaxCost > 0) || math.IsInf(s.MaxCost, 0) {
		return errors.Errorf("max cost must be positive and finite, got %g", s.MaxCost)
	}
	if s.MaxFrameGap < 0 {
		return errors.Errorf("max frame gap must be >= 0, got %d", s.MaxFrameGap)
	}
	if s.MotionModel && !(s.FrameInterval > 0) {
		return errors.Errorf("frame interval must be positive, got %g", s.FrameInterval)
	}
	return nil
}

// Linker is a frame-to-frame multi-object tracker over spots.
type Linker struct {
	// Main storage
	Heads    map[uuid.UUID]*TrackHead
	cost     costfunc.CostFunction
	graph    Graph
	settings Settings
	logger   *logging.Logger
	started  bool
	lastSeen int
}

// Option configures a Linker.
type Option func(*Linker)

// WithLogger sets the linker logger.
func WithLogger(l *logging.Logger) Option {
	return func(linker *Linker) {
		linker.logger = l
	}
}

// NewLinker creates new instance of Linker
func NewLinker(cost costfunc.CostFunction, graph Graph, settings Settings, opts ...Option) (*Linker, error) {
	if cost == nil {
		return nil, &spot.InputError{Op: "NewLinker", Reason: "cost function is nil"}
	}
	if graph == nil {
		return nil, &spot.InputError{Op: "NewLinker", Reason: "graph is nil"}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	linker := &Linker{
		Heads:    make(map[uuid.UUID]*TrackHead),
		cost:     cost,
		graph:    graph,
		settings: settings,
	}
	for _, opt := range opts {
		opt(linker)
	}
	linker.logger = logging.OrNoop(linker.logger).WithComponent("linker")
	return linker, nil
}

// LinkFrame adds spots to the graph at frame and links each to at most one
// live track head. It returns the number of links made.
func (linker *Linker) LinkFrame(frame int, spots []*spot.Spot) (int, error) {
	if linker.started && frame <= linker.lastSeen {
		return 0, errors.Wrapf(ErrFrameOrder, "frame %d after frame %d", frame, linker.lastSeen)
	}
	linker.started = true
	linker.lastSeen = frame

	detections := make([]*spot.Spot, len(spots))
	copy(detections, spots)
	sort.Slice(detections, func(i, j int) bool {
		return detections[i].ID() < detections[j].ID()
	})
	for _, s := range detections {
		s.PutFeature(spot.FeatureFrame, float64(frame))
		linker.graph.AddSpotTo(s, frame)
	}

	// Retire heads which missed too many frames
	for headID, head := range linker.Heads {
		if frame-head.Frame()-1 > linker.settings.MaxFrameGap {
			linker.logger.Debug("retiring track head", "head", headID.String(), "last_frame", head.Frame())
			delete(linker.Heads, headID)
		}
	}
	heads := linker.sortedHeads()

	costs := make([][]float64, len(heads))
	for i, head := range heads {
		head.PredictTo(frame)
		reference := head.Reference()
		costs[i] = make([]float64, len(detections))
		for j, s := range detections {
			c := linker.cost.LinkingCost(reference, s)
			if costfunc.IsNoPath(c) {
				c = costfunc.NoPath
			}
			costs[i][j] = c
		}
	}
	matches := performMatching(costs, linker.settings.MaxCost, linker.settings.Algorithm)

	matchedHeads := make(map[int]struct{}, len(matches))
	matchedDetections := make(map[int]struct{}, len(matches))
	for _, match := range matches {
		head, s := heads[match[0]], detections[match[1]]
		weight := costs[match[0]][match[1]]
		if linker.settings.MotionModel {
			// Edge weight is always measured between the real spots
			weight = linker.cost.LinkingCost(head.Last(), s)
			linker.logger.Debug("motion prediction", "head", head.GetID().String(), "target", s.ID(), "error", head.PredictionError(s))
		}
		if err := linker.graph.AddEdge(head.Last(), s, weight); err != nil {
			return len(matchedHeads), errors.Wrapf(err, "Can't link spot %d to spot %d", head.Last().ID(), s.ID())
		}
		if gap := frame - head.Frame(); gap > 1 {
			linker.logger.Debug("linked over gap", "source", head.Last().ID(), "target", s.ID(), "frames", gap)
		}
		if err := head.Update(s); err != nil {
			return len(matchedHeads), errors.Wrapf(err, "Can't update track head with id %s", head.GetID().String())
		}
		matchedHeads[match[0]] = struct{}{}
		matchedDetections[match[1]] = struct{}{}
	}
	for i, head := range heads {
		if _, ok := matchedHeads[i]; !ok {
			head.IncNoMatch()
		}
	}
	for j, s := range detections {
		if _, ok := matchedDetections[j]; ok {
			continue
		}
		head := NewTrackHead(s, linker.settings.FrameInterval, linker.settings.MotionModel)
		linker.Heads[head.GetID()] = head
	}
	linker.logger.WithFrame(frame).Debug("linked frame", "spots", len(detections), "heads", len(heads), "links", len(matches))
	return len(matches), nil
}

// Link runs LinkFrame over every frame of spots in increasing order. ctx is
// checked between frames; the links made before cancellation stay.
func (linker *Linker) Link(ctx context.Context, spots map[int][]*spot.Spot) (int, error) {
	frames := make([]int, 0, len(spots))
	for frame := range spots {
		frames = append(frames, frame)
	}
	sort.Ints(frames)
	total := 0
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := linker.LinkFrame(frame, spots[frame])
		total += n
		if err != nil {
			return total, err
		}
	}
	linker.logger.Info("linking finished", "frames", len(frames), "links", total, "heads", len(linker.Heads))
	return total, nil
}

// sortedHeads returns the live heads ordered by the ID of their last spot.
func (linker *Linker) sortedHeads() []*TrackHead {
	heads := make([]*TrackHead, 0, len(linker.Heads))
	for _, head := range linker.Heads {
		heads = append(heads, head)
	}
	sort.Slice(heads, func(i, j int) bool {
		return heads[i].Last().ID() < heads[j].Last().ID()
	})
	return heads
}
