// Package detection finds blob-like spots in 1D, 2D and 3D images with
// Laplacian of Gaussian and Hessian filters.
package detection

import (
	"fmt"
	"strings"

	"github.com/LdDl/spottrack-go/spot"
)

// Detector finds spots in the image and interval it was built for.
type Detector interface {
	Process() ([]*spot.Spot, error)
	SetNumThreads(n int)
}

// Method is for the filter used by Detect
type Method uint16

const (
	// MethodLoG filters with a Laplacian of Gaussian kernel
	MethodLoG Method = iota
	// MethodAdvancedLoG is MethodLoG plus a Hessian blob-ratio filter
	MethodAdvancedLoG
	// MethodHessian uses the determinant of the Hessian of a Gaussian-smoothed image
	MethodHessian
)

var methodNames = map[Method]string{
	MethodLoG:         "log",
	MethodAdvancedLoG: "advanced-log",
	MethodHessian:     "hessian",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", m)
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	if _, ok := methodNames[m]; !ok {
		return nil, fmt.Errorf("unknown detection method %d", m)
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
	return fmt.Errorf("unknown detection method %q", string(text))
}

// Settings configures Detect.
type Settings struct {
	Method Method `yaml:"method" json:"method"`
	// Radius is the expected physical blob radius (XY radius when RadiusZ applies).
	Radius float64 `yaml:"radius" json:"radius"`
	// RadiusZ is the expected physical blob radius along Z for MethodHessian
	// and MethodAdvancedLoG.
	RadiusZ   float64 `yaml:"radius_z" json:"radius_z"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Subpixel  bool    `yaml:"subpixel" json:"subpixel"`
	// MedianFilter applies a 3x3 median filter before the LoG filter.
	MedianFilter bool `yaml:"median_filter" json:"median_filter"`
	// BlobRatioThreshold discards MethodAdvancedLoG spots with a lower blob ratio.
	BlobRatioThreshold float64 `yaml:"blob_ratio_threshold" json:"blob_ratio_threshold"`
	// Normalize scales the MethodHessian response so that its maximum is 1.
	Normalize bool `yaml:"normalize" json:"normalize"`
	// Threads bounds the worker pool, 0 means one worker per CPU.
	Threads int `yaml:"threads" json:"threads"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Method:             MethodLoG,
		Radius:             2.5,
		RadiusZ:            2.5,
		Threshold:          0,
		Subpixel:           true,
		MedianFilter:       false,
		BlobRatioThreshold: 0.5,
		Normalize:          false,
		Threads:            0,
	}
}

// NewDetector builds the detector selected by settings.
func NewDetector[T spot.Sample](img spot.Image[T], interval spot.Interval, calibration spot.Calibration, settings Settings) (Detector, error) {
	var d Detector
	switch settings.Method {
	case MethodLoG:
		d = NewLogDetector(img, interval, calibration, settings.Radius, settings.Threshold, settings.Subpixel, settings.MedianFilter)
	case MethodAdvancedLoG:
		d = NewAdvancedLogDetector(img, interval, calibration, settings.Radius, settings.RadiusZ, settings.Threshold, settings.BlobRatioThreshold, settings.Subpixel, settings.MedianFilter)
	case MethodHessian:
		d = NewHessianDetector(img, interval, calibration, settings.Radius, settings.RadiusZ, settings.Threshold, settings.Normalize, settings.Subpixel)
	default:
		return nil, &spot.InputError{Op: "Detect", Reason: fmt.Sprintf("unknown detection method %d", settings.Method)}
	}
	d.SetNumThreads(settings.Threads)
	return d, nil
}

// Detect runs the detector selected by settings on the interval of img.
// Spot positions are physical: pixel coordinates times calibration.
func Detect[T spot.Sample](img spot.Image[T], interval spot.Interval, calibration spot.Calibration, settings Settings) ([]*spot.Spot, error) {
	d, err := NewDetector(img, interval, calibration, settings)
	if err != nil {
		return nil, err
	}
	return d.Process()
}

// prepared is the float copy of the detection interval with its singleton
// axes removed.
type prepared struct {
	img         *spot.ArrayImage[float64]
	kept        []int
	interval    spot.Interval
	calibration spot.Calibration
}

func prepare[T spot.Sample](op string, img spot.Image[T], interval spot.Interval, calibration spot.Calibration) (*prepared, error) {
	if img == nil {
		return nil, &spot.InputError{Op: op, Reason: "Image is null."}
	}
	n := img.NumDimensions()
	if n < 1 || n > 3 {
		return nil, &spot.InputError{Op: op, Reason: fmt.Sprintf("Image must be 1D, 2D or 3D, got %dD.", n)}
	}
	dims := make([]int, n)
	for d := range dims {
		dims[d] = img.Dimension(d)
	}
	if err := interval.Validate(dims); err != nil {
		return nil, &spot.InputError{Op: op, Reason: err.Error()}
	}
	if len(calibration) != n {
		return nil, &spot.InputError{Op: op, Reason: fmt.Sprintf("calibration has %d axes, image has %d", len(calibration), n)}
	}
	if err := calibration.Validate(); err != nil {
		return nil, &spot.InputError{Op: op, Reason: err.Error()}
	}

	squeezed, kept := interval.Squeeze()
	fimg, err := spot.NewArrayImage[float64](squeezed.Dimensions(), calibration.Keep(kept))
	if err != nil {
		return nil, err
	}
	// Dropping axes of extent 1 keeps the X-fastest order, so the copy is sequential.
	data := fimg.Data()
	local := make([]int, n)
	pos := make([]int, n)
	i := 0
	spot.ForEach(interval.Dimensions(), local, func(local []int) {
		for d := range pos {
			pos[d] = local[d] + interval.Min[d]
		}
		data[i] = float64(img.At(pos))
		i++
	})
	return &prepared{
		img:         fimg,
		kept:        kept,
		interval:    interval,
		calibration: calibration,
	}, nil
}

// spots converts peaks found in the prepared image back to physical
// positions in the source image.
func (p *prepared) spots(peaks []Peak, radius float64, subpixel bool) []*spot.Spot {
	out := make([]*spot.Spot, 0, len(peaks))
	n := len(p.calibration)
	for _, peak := range peaks {
		position := make([]float64, n)
		for d := 0; d < n; d++ {
			position[d] = float64(p.interval.Min[d]) * p.calibration[d]
		}
		for i, d := range p.kept {
			c := float64(peak.Pos[i])
			if subpixel {
				c = peak.Refined[i]
			}
			position[d] = (c + float64(p.interval.Min[d])) * p.calibration[d]
		}
		out = append(out, spot.MustSpot(position, radius, peak.Value))
	}
	return out
}
