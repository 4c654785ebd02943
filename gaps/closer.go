// Package gaps closes the gaps of a track graph: edges linking spots more
// than one frame apart are replaced by chains of spots, one per missing
// frame, either interpolated or re-detected in the source image.
package gaps

import (
	"context"
	"fmt"

	"github.com/LdDl/spottrack-go/detection"
	"github.com/LdDl/spottrack-go/internal/logging"
	"github.com/LdDl/spottrack-go/spot"
	"github.com/LdDl/spottrack-go/trackgraph"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNoImage is returned when a detector method is requested without an image.
var ErrNoImage = errors.New("source image is not set")

// Graph is the track graph mutated by CloseGaps.
type Graph interface {
	AddSpotTo(s *spot.Spot, frame int)
	AddEdge(source, target *spot.Spot, weight float64) error
	RemoveEdge(source, target *spot.Spot) bool
	BeginUpdate()
	EndUpdate()
	Edges() []trackgraph.Edge
}

// State is the step a gap-closing run is in.
type State int

const (
	Scanning State = iota
	Interpolating
	Refining
	Committing
	Done
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Interpolating:
		return "interpolating"
	case Refining:
		return "refining"
	case Committing:
		return "committing"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Warning is a recoverable problem met while filling a gap. The spot it
// concerns was kept at its interpolated position.
type Warning struct {
	Frame   int
	Source  int
	Target  int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("frame %d (edge %d -> %d): %s", w.Frame, w.Source, w.Target, w.Message)
}

// Report summarizes a run.
type Report struct {
	RunID  uuid.UUID
	Method Method
	// EdgesScanned counts the edges examined, gaps or not.
	EdgesScanned int
	GapsClosed   int
	// Added lists the inserted spots in insertion order.
	Added []*spot.Spot
	// Refined counts the inserted spots placed by a detector.
	Refined  int
	Warnings []Warning
}

// Option configures CloseGaps.
type Option func(*options)

type options struct {
	logger       *logging.Logger
	onTransition func(from, to State)
}

// WithLogger sets the run logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// OnTransition registers fn to be called on every state change.
func OnTransition(fn func(from, to State)) Option {
	return func(o *options) {
		o.onTransition = fn
	}
}

type closer[T spot.Sample] struct {
	graph  Graph
	img    *spot.Hyperstack[T]
	params Params
	opts   options
	logger *logging.Logger
	state  State
	report *Report
}

// CloseGaps fills every gap among the edges of g. With params.SelectionOnly
// only the given edges are examined, otherwise all edges of g. Edges are
// processed by source frame, source ID and target ID.
//
// All mutations happen inside one BeginUpdate/EndUpdate batch, which is
// closed on every exit path. The run is not atomic: when ctx is cancelled
// between two edges, or an edge cannot be added, the gaps closed so far
// stay closed and the partial report is returned with the error.
//
// img is only needed by the detector methods.
func CloseGaps[T spot.Sample](ctx context.Context, g Graph, edges []trackgraph.Edge, img *spot.Hyperstack[T], params Params, opts ...Option) (*Report, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Method.Detects() {
		if img == nil {
			return nil, errors.Wrapf(ErrNoImage, "cannot use method %q for spot detection", params.Method)
		}
		if params.SourceChannel >= img.NumChannels() {
			return nil, &spot.InputError{
				Op:     "CloseGaps",
				Reason: fmt.Sprintf("Cannot detect in channel %d as the source image has only %d channels.", params.SourceChannel+1, img.NumChannels()),
			}
		}
	}

	c := &closer[T]{
		graph:  g,
		img:    img,
		params: params,
		report: &Report{RunID: uuid.New(), Method: params.Method},
	}
	for _, opt := range opts {
		opt(&c.opts)
	}
	c.logger = logging.OrNoop(c.opts.logger).WithRun(c.report.RunID).WithComponent("gap-closing")

	var work []trackgraph.Edge
	if params.SelectionOnly {
		work = append(work, edges...)
	} else {
		work = g.Edges()
	}
	trackgraph.SortEdges(work)

	c.logger.Info("interpolating gaps", "method", params.Method.String(), "edges", len(work))
	g.BeginUpdate()
	defer g.EndUpdate()

	for _, e := range work {
		if err := ctx.Err(); err != nil {
			c.logger.Info("gap closing cancelled", "closed", c.report.GapsClosed)
			return c.report, err
		}
		c.report.EdgesScanned++
		if err := c.closeEdge(e); err != nil {
			return c.report, err
		}
	}
	c.transition(Done)
	c.logger.Info("gap closing finished",
		"closed", c.report.GapsClosed,
		"added", len(c.report.Added),
		"refined", c.report.Refined,
		"warnings", len(c.report.Warnings),
	)
	return c.report, nil
}

func (c *closer[T]) transition(to State) {
	if c.state == to {
		return
	}
	from := c.state
	c.state = to
	c.logger.Debug("state", "from", from.String(), "to", to.String())
	if c.opts.onTransition != nil {
		c.opts.onTransition(from, to)
	}
}

func (c *closer[T]) closeEdge(e trackgraph.Edge) error {
	c.transition(Scanning)
	source, target := e.Source, e.Target
	sFrame, tFrame := source.Frame(), target.Frame()
	if absInt(tFrame-sFrame) <= 1 {
		return nil
	}
	c.logger.Debug("processing edge",
		"source", source.ID(), "source_frame", sFrame,
		"target", target.ID(), "target_frame", tFrame,
	)

	sign := 1
	if tFrame < sFrame {
		sign = -1
	}
	sPos, tPos := source.Position(), target.Position()
	previous := source
	for f := sFrame + sign; f != tFrame; f += sign {
		c.transition(Interpolating)
		w := float64(tFrame-f) / float64(tFrame-sFrame)
		position := make([]float64, source.NumDimensions())
		for d := range position {
			position[d] = w*sPos[d] + (1-w)*tPos[d]
		}
		s := spot.MustSpot(position, 0, 0)
		s.PutFeature(spot.FeatureFrame, float64(f))
		for _, feature := range []string{spot.FeatureRadius, spot.FeatureQuality, spot.FeaturePositionT} {
			interpolateFeature(s, source, target, w, feature)
		}

		if c.params.Method.Detects() {
			c.transition(Refining)
			s = c.refine(s, f, e)
		}

		c.transition(Committing)
		c.graph.AddSpotTo(s, f)
		if err := c.graph.AddEdge(previous, s, previous.SquareDistanceTo(s)); err != nil {
			return errors.Wrapf(err, "link spot %d to spot %d", previous.ID(), s.ID())
		}
		c.report.Added = append(c.report.Added, s)
		c.logger.Debug("added spot", "spot", s.ID(), "frame", f)
		previous = s
	}
	if err := c.graph.AddEdge(previous, target, previous.SquareDistanceTo(target)); err != nil {
		return errors.Wrapf(err, "link spot %d to spot %d", previous.ID(), target.ID())
	}
	c.graph.RemoveEdge(source, target)
	c.report.GapsClosed++
	return nil
}

// refine replaces s with the best detection around it, or returns s with a
// warning when there is none.
func (c *closer[T]) refine(s *spot.Spot, frame int, e trackgraph.Edge) *spot.Spot {
	warn := func(format string, args ...any) *spot.Spot {
		w := Warning{Frame: frame, Source: e.Source.ID(), Target: e.Target.ID(), Message: fmt.Sprintf(format, args...)}
		c.report.Warnings = append(c.report.Warnings, w)
		c.logger.Warn(w.Message, "frame", frame, "source", w.Source, "target", w.Target)
		return s
	}

	if frame < 0 || frame >= c.img.NumFrames() {
		return warn("cannot search a spot at frame %d, the source image has %d frames", frame, c.img.NumFrames())
	}
	block, err := c.img.Frame(c.params.SourceChannel, frame)
	if err != nil {
		return warn("%v", err)
	}
	searchRadius := max(c.params.SearchRadius, 1)
	cal := block.Calibration()
	region := RegionAround(s, searchRadius, block.Dims(), cal)

	var det detection.Detector
	switch c.params.Method {
	case LogDetector:
		radius := c.params.LogRadius
		if c.params.LogAutoRadius {
			radius = s.Radius()
		}
		det = detection.NewLogDetector[T](block, region, cal, radius, 0, true, false)
	case HessianDetector:
		radiusXY, radiusZ := c.params.HessianRadiusXY, c.params.HessianRadiusZ
		if c.params.HessianAutoRadius {
			radiusXY, radiusZ = s.Radius(), s.Radius()
		}
		det = detection.NewHessianDetector[T](block, region, cal, radiusXY, radiusZ, 0, true, true)
	}
	det.SetNumThreads(1)
	found, err := det.Process()
	if err != nil {
		return warn("%v", err)
	}
	if len(found) == 0 {
		return warn("could not detect a spot within search radius at frame %d", frame)
	}

	best := found[0]
	for _, cand := range found[1:] {
		if cand.Quality() > best.Quality() {
			best = cand
		}
	}
	if t, ok := s.Feature(spot.FeaturePositionT); ok {
		best.PutFeature(spot.FeaturePositionT, t)
	}
	c.report.Refined++
	return best
}

func interpolateFeature(dst, a, b *spot.Spot, w float64, feature string) {
	va, okA := a.Feature(feature)
	vb, okB := b.Feature(feature)
	if !okA || !okB {
		return
	}
	dst.PutFeature(feature, w*va+(1-w)*vb)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
