package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/LdDl/spottrack-go/spot"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TrackHead is the last spot of a track being built. With a motion model it
// carries a 2D Kalman filter predicting where the track goes next.
type TrackHead struct {
	id           uuid.UUID
	last         *spot.Spot
	predicted    Point
	track        []Point
	maxTrackLen  int
	noMatchTimes int
	// Frame the filter state refers to
	stateFrame int
	tracker    *kalman_filter.Kalman2D
}

// NewTrackHead starts a track at s. dt is the time step of one frame and is
// only used by the motion model.
func NewTrackHead(s *spot.Spot, dt float64, motion bool) *TrackHead {
	head := TrackHead{
		id:           uuid.New(),
		last:         s,
		predicted:    PointOf(s),
		track:        make([]Point, 0, 150),
		maxTrackLen:  150,
		noMatchTimes: 0,
		stateFrame:   s.Frame(),
	}
	if motion {
		/* Kalman filter props */
		// No control input: spots are not pushed in any known direction
		ux := 0.0
		uy := 0.0
		stdDevA := 2.0
		stdDevMx := 0.1
		stdDevMy := 0.1
		head.tracker = kalman_filter.NewKalman2D(dt, ux, uy, stdDevA, stdDevMx, stdDevMy, kalman_filter.WithState2D(s.X(), s.Y()))
	}
	head.track = append(head.track, head.predicted)
	return &head
}

// GetID returns head's identifier
func (head *TrackHead) GetID() uuid.UUID {
	return head.id
}

// Last returns the last spot of the track
func (head *TrackHead) Last() *spot.Spot {
	return head.last
}

// Frame returns the frame of the last spot
func (head *TrackHead) Frame() int {
	return head.last.Frame()
}

// Predicted returns the position expected for the next link
func (head *TrackHead) Predicted() Point {
	return head.predicted
}

// PredictionError returns the XY distance from the predicted position to s
func (head *TrackHead) PredictionError(s *spot.Spot) float64 {
	return euclideanDistance(head.predicted, PointOf(s))
}

// GetTrack returns head's current track. Be careful: this is not copy of track, but reference to it
func (head *TrackHead) GetTrack() []Point {
	return head.track
}

// GetMaxTrackLen returns head's max track length
func (head *TrackHead) GetMaxTrackLen() int {
	return head.maxTrackLen
}

// SetMaxTrackLen sets head's max track length
func (head *TrackHead) SetMaxTrackLen(newMaxTrackLen int) {
	head.maxTrackLen = newMaxTrackLen
}

// GetNoMatchTimes returns head's no match times
func (head *TrackHead) GetNoMatchTimes() int {
	return head.noMatchTimes
}

// IncNoMatch increases head's no match times
func (head *TrackHead) IncNoMatch() {
	head.noMatchTimes++
}

// ResetNoMatch resets head's no match times
func (head *TrackHead) ResetNoMatch() {
	head.noMatchTimes = 0
}

// PredictTo runs the Kalman prediction step once per frame up to frame.
// Without a motion model the prediction stays on the last spot.
func (head *TrackHead) PredictTo(frame int) {
	if head.tracker == nil {
		head.predicted = PointOf(head.last)
		return
	}
	for head.stateFrame < frame {
		head.tracker.Predict()
		head.stateFrame++
	}
	stateX, stateY := head.tracker.GetState()
	head.predicted.X = stateX
	head.predicted.Y = stateY
}

// Reference returns the spot costs are measured from: the last spot itself,
// or a copy of it moved to the predicted position under a motion model.
func (head *TrackHead) Reference() *spot.Spot {
	if head.tracker == nil {
		return head.last
	}
	pos := head.last.Position()
	pos[0], pos[1] = head.predicted.X, head.predicted.Y
	proxy := spot.MustSpot(pos[:head.last.NumDimensions()], head.last.Radius(), head.last.Quality())
	for _, name := range head.last.FeatureNames() {
		switch name {
		case spot.FeaturePositionX, spot.FeaturePositionY, spot.FeaturePixelX, spot.FeaturePixelY:
			continue
		}
		v, _ := head.last.Feature(name)
		proxy.PutFeature(name, v)
	}
	return proxy
}

// Update moves the head to s and execute Kalman filter's second step
func (head *TrackHead) Update(s *spot.Spot) error {
	head.last = s
	if head.tracker != nil {
		head.PredictTo(s.Frame())
		err := head.tracker.Update(s.X(), s.Y())
		if err != nil {
			return errors.Wrap(err, "Can't update track head filter")
		}
	}
	head.predicted = PointOf(s)
	head.track = append(head.track, head.predicted)
	if len(head.track) > head.maxTrackLen {
		head.track = head.track[1:]
	}
	head.noMatchTimes = 0
	return nil
}
