package gaps

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Method is how the spots filling a gap are placed.
type Method uint16

const (
	// LinearInterpolation places spots on the straight line between the gap ends.
	LinearInterpolation Method = iota
	// LogDetector refines every interpolated spot with a LoG detection around it.
	LogDetector
	// HessianDetector refines every interpolated spot with a Hessian detection around it.
	HessianDetector
)

var methodNames = map[Method]string{
	LinearInterpolation: "linear-interpolation",
	LogDetector:         "log-detector",
	HessianDetector:     "hessian-detector",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", m)
}

// Detects reports whether m runs a detector.
func (m Method) Detects() bool {
	return m == LogDetector || m == HessianDetector
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	if _, ok := methodNames[m]; !ok {
		return nil, fmt.Errorf("unknown gap-closing method %d", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range methodNames {
		if v == name {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("unknown gap-closing method %q", string(text))
}

// Params configures one gap-closing run.
type Params struct {
	Method Method `yaml:"method" json:"method"`
	// SearchRadius scales the spot radius to get the detection region
	// half-size. Values below 1 are raised to 1.
	SearchRadius float64 `yaml:"search_radius" json:"search_radius"`
	// LogAutoRadius uses the interpolated spot radius instead of LogRadius.
	LogAutoRadius bool    `yaml:"log_auto_radius" json:"log_auto_radius"`
	LogRadius     float64 `yaml:"log_radius" json:"log_radius"`
	// HessianAutoRadius uses the interpolated spot radius for both Hessian radii.
	HessianAutoRadius bool    `yaml:"hessian_auto_radius" json:"hessian_auto_radius"`
	HessianRadiusXY   float64 `yaml:"hessian_radius_xy" json:"hessian_radius_xy"`
	HessianRadiusZ    float64 `yaml:"hessian_radius_z" json:"hessian_radius_z"`
	// SelectionOnly restricts the run to the edges passed to CloseGaps.
	// Otherwise every edge of the graph is examined.
	SelectionOnly bool `yaml:"selection_only" json:"selection_only"`
	// SourceChannel is the 0-based image channel detections run on.
	SourceChannel int `yaml:"source_channel" json:"source_channel"`
}

// DefaultParams returns linear interpolation with the default detector radii.
func DefaultParams() Params {
	return Params{
		Method:            LinearInterpolation,
		SearchRadius:      4,
		LogAutoRadius:     true,
		LogRadius:         2.5,
		HessianAutoRadius: true,
		HessianRadiusXY:   2.5,
		HessianRadiusZ:    6,
		SelectionOnly:     false,
		SourceChannel:     0,
	}
}

// Validate checks the values independent of the image.
func (p Params) Validate() error {
	if _, ok := methodNames[p.Method]; !ok {
		return errors.Errorf("unknown gap-closing method %d", p.Method)
	}
	if p.SourceChannel < 0 {
		return errors.Errorf("source channel must be >= 0, got %d", p.SourceChannel)
	}
	if !p.LogAutoRadius && !(p.LogRadius > 0) && p.Method == LogDetector {
		return errors.Errorf("log radius must be positive, got %g", p.LogRadius)
	}
	if !p.HessianAutoRadius && p.Method == HessianDetector && (!(p.HessianRadiusXY > 0) || !(p.HessianRadiusZ > 0)) {
		return errors.Errorf("hessian radii must be positive, got %g and %g", p.HessianRadiusXY, p.HessianRadiusZ)
	}
	return nil
}
