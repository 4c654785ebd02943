package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/LdDl/spottrack-go/config"
	"github.com/LdDl/spottrack-go/detection"
	"github.com/LdDl/spottrack-go/internal/logging"
	"github.com/LdDl/spottrack-go/spot"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>...",
	Short: "Detect spots in 2D images, one image per frame, and write them as CSV",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDetect,
}

var outputPath string

func init() {
	detectCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output CSV file (default stdout)")
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	_, frames, err := detectFrames(paths, cfg, logger)
	if err != nil {
		return err
	}
	out, closeOut, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer closeOut()
	var all []*spot.Spot
	for _, spots := range frames {
		all = append(all, spots...)
	}
	return writeSpots(out, all)
}

// detectFrames loads every path as a frame and detects spots in it. The
// spots get their FRAME feature set.
func detectFrames(paths []string, cfg *config.Config, logger *logging.Logger) ([]*spot.ArrayImage[uint16], [][]*spot.Spot, error) {
	images := make([]*spot.ArrayImage[uint16], 0, len(paths))
	frames := make([][]*spot.Spot, 0, len(paths))
	for frame, path := range paths {
		img, err := loadFrame(path, pixelSize)
		if err != nil {
			return nil, nil, err
		}
		spots, err := detection.Detect[uint16](img, spot.FromDims(img.Dims()), img.Calibration(), cfg.Detection)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "detect in %s", path)
		}
		for _, s := range spots {
			s.PutFeature(spot.FeatureFrame, float64(frame))
		}
		logger.Info("detected spots", "frame", frame, "path", path, "spots", len(spots))
		images = append(images, img)
		frames = append(frames, spots)
	}
	return images, frames, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	fh, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create output")
	}
	return fh, func() { fh.Close() }, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeSpots(w io.Writer, spots []*spot.Spot) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "frame", "x", "y", "z", "radius", "quality"}); err != nil {
		return err
	}
	for _, s := range spots {
		record := []string{
			strconv.Itoa(s.ID()),
			strconv.Itoa(s.Frame()),
			formatFloat(s.X()),
			formatFloat(s.Y()),
			formatFloat(s.Z()),
			formatFloat(s.Radius()),
			formatFloat(s.Quality()),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
