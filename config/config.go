// Package config loads the YAML file configuring detection, linking, the
// linking cost and gap closing. Missing keys keep their defaults and
// unknown keys are rejected.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/LdDl/spottrack-go/costfunc"
	"github.com/LdDl/spottrack-go/detection"
	"github.com/LdDl/spottrack-go/distcache"
	"github.com/LdDl/spottrack-go/gaps"
	"github.com/LdDl/spottrack-go/internal/logging"
	"github.com/LdDl/spottrack-go/mot"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// maxFileSize bounds the configuration file read by Load.
const maxFileSize = 1 << 20

// CostKind selects the linking cost function.
type CostKind uint8

const (
	// CostSquare is the squared Euclidean distance.
	CostSquare CostKind = iota
	// CostGraph is the squared shortest path through a label mask.
	CostGraph
	// CostReachable reads precomputed distances from a distance cache.
	CostReachable
)

var costKindNames = map[CostKind]string{
	CostSquare:    "square",
	CostGraph:     "graph",
	CostReachable: "reachable",
}

func (k CostKind) String() string {
	if s, ok := costKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("CostKind(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k CostKind) MarshalText() ([]byte, error) {
	if _, ok := costKindNames[k]; !ok {
		return nil, fmt.Errorf("unknown cost kind %d", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CostKind) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for kind, v := range costKindNames {
		if v == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown cost kind %q", string(text))
}

// Cost configures the linking cost function.
type Cost struct {
	Kind      CostKind `yaml:"kind"`
	PixelSize float64  `yaml:"pixel_size"`
	// Connectivity is 4 or 8, graph cost only.
	Connectivity costfunc.Connectivity `yaml:"connectivity"`
	// SameComponent and FarThreshold apply to the reachable cost.
	SameComponent bool    `yaml:"same_component"`
	FarThreshold  float64 `yaml:"far_threshold,omitempty"`
	// Cache is the distance cache file of the reachable cost.
	Cache string `yaml:"cache,omitempty"`
	// Labels is the label mask image of the graph and reachable costs.
	Labels string `yaml:"labels,omitempty"`
}

// Config is the whole configuration file.
type Config struct {
	Detection  detection.Settings `yaml:"detection"`
	Linking    mot.Settings       `yaml:"linking"`
	Cost       Cost               `yaml:"cost"`
	GapClosing gaps.Params        `yaml:"gap_closing"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Detection: detection.DefaultSettings(),
		Linking:   mot.DefaultSettings(),
		Cost: Cost{
			Kind:          CostSquare,
			PixelSize:     1,
			Connectivity:  costfunc.Connectivity8,
			SameComponent: true,
		},
		GapClosing: gaps.DefaultParams(),
	}
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "stat config file")
	}
	if info.Size() > maxFileSize {
		return nil, errors.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", cleanPath)
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result. Empty
// input gives the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, errors.Wrap(err, "encoding config")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encoding config")
	}
	return buf.Bytes(), nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validateDetection(c.Detection); err != nil {
		return errors.Wrap(err, "detection")
	}
	if err := c.Linking.Validate(); err != nil {
		return errors.Wrap(err, "linking")
	}
	if err := c.Cost.Validate(); err != nil {
		return errors.Wrap(err, "cost")
	}
	if err := c.GapClosing.Validate(); err != nil {
		return errors.Wrap(err, "gap_closing")
	}
	return nil
}

func validateDetection(s detection.Settings) error {
	if _, err := s.Method.MarshalText(); err != nil {
		return err
	}
	if !(s.Radius > 0) {
		return errors.Errorf("radius must be positive, got %g", s.Radius)
	}
	if (s.Method == detection.MethodHessian || s.Method == detection.MethodAdvancedLoG) && !(s.RadiusZ > 0) {
		return errors.Errorf("radius_z must be positive, got %g", s.RadiusZ)
	}
	if s.Threads < 0 {
		return errors.Errorf("threads must be >= 0, got %d", s.Threads)
	}
	return nil
}

// Validate checks the values independent of the files they name.
func (c Cost) Validate() error {
	if _, ok := costKindNames[c.Kind]; !ok {
		return errors.Errorf("unknown cost kind %d", c.Kind)
	}
	if !(c.PixelSize > 0) {
		return errors.Errorf("pixel_size must be positive, got %g", c.PixelSize)
	}
	if c.Kind == CostGraph && c.Connectivity != costfunc.Connectivity4 && c.Connectivity != costfunc.Connectivity8 {
		return errors.Errorf("connectivity must be 4 or 8, got %d", c.Connectivity)
	}
	if c.Kind == CostReachable && c.Cache == "" {
		return errors.New("reachable cost needs a cache file")
	}
	if c.FarThreshold < 0 {
		return errors.Errorf("far_threshold must be >= 0, got %g", c.FarThreshold)
	}
	return nil
}

// Build creates the configured cost function. labels is needed by the graph
// and reachable costs, cache by the reachable cost only.
func (c Cost) Build(labels *costfunc.Labels, cache *distcache.Cache, logger *logging.Logger) (costfunc.CostFunction, error) {
	switch c.Kind {
	case CostSquare:
		return costfunc.SquareDistance{}, nil
	case CostGraph:
		g, err := costfunc.NewGraphDistance(labels,
			costfunc.WithConnectivity(c.Connectivity),
			costfunc.WithPixelSize(c.PixelSize),
		)
		if err != nil {
			return nil, err
		}
		return g, nil
	case CostReachable:
		opts := []costfunc.ReachableOption{
			costfunc.WithSameComponent(c.SameComponent),
			costfunc.WithLogger(logger),
		}
		if c.FarThreshold > 0 {
			opts = append(opts, costfunc.WithFarThreshold(c.FarThreshold))
		}
		r, err := costfunc.NewReachableDistanceTime(cache, labels, c.PixelSize, opts...)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, errors.Errorf("unknown cost kind %d", c.Kind)
	}
}
