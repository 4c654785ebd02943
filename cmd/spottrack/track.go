package main

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/LdDl/spottrack-go/config"
	"github.com/LdDl/spottrack-go/costfunc"
	"github.com/LdDl/spottrack-go/distcache"
	"github.com/LdDl/spottrack-go/gaps"
	"github.com/LdDl/spottrack-go/internal/logging"
	"github.com/LdDl/spottrack-go/mot"
	"github.com/LdDl/spottrack-go/spot"
	"github.com/LdDl/spottrack-go/trackgraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var trackCmd = &cobra.Command{
	Use:   "track <image>...",
	Short: "Detect, link and close gaps over a sequence of 2D images",
	Long:  `track runs detection on every image, links the spots frame to frame with the configured cost and closes the gaps of the tracks. Edges are written as CSV, spots optionally to a second file.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTrack,
}

var (
	edgesPath string
	spotsPath string
	noGaps    bool
)

func init() {
	trackCmd.Flags().StringVarP(&edgesPath, "output", "o", "", "Output CSV file for edges (default stdout)")
	trackCmd.Flags().StringVar(&spotsPath, "spots", "", "Output CSV file for spots")
	trackCmd.Flags().BoolVar(&noGaps, "no-gap-closing", false, "Keep the links skipping frames")
}

func runTrack(cmd *cobra.Command, args []string) error {
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
	images, frames, err := detectFrames(paths, cfg, logger)
	if err != nil {
		return err
	}

	cost, err := buildCost(cfg.Cost, logger)
	if err != nil {
		return err
	}
	model := trackgraph.NewModel()
	linker, err := mot.NewLinker(cost, model, cfg.Linking, mot.WithLogger(logger))
	if err != nil {
		return err
	}
	byFrame := make(map[int][]*spot.Spot, len(frames))
	for frame, spots := range frames {
		byFrame[frame] = spots
	}
	if _, err := linker.Link(cmd.Context(), byFrame); err != nil {
		return errors.Wrap(err, "linking")
	}

	if !noGaps {
		stack, err := spot.NewHyperstackFrom(images)
		if err != nil {
			return err
		}
		report, err := gaps.CloseGaps(cmd.Context(), model, nil, stack, cfg.GapClosing, gaps.WithLogger(logger))
		if err != nil {
			return errors.Wrap(err, "gap closing")
		}
		for _, w := range report.Warnings {
			logger.Warn("gap closing", "warning", w.String())
		}
	}

	out, closeOut, err := openOutput(edgesPath)
	if err != nil {
		return err
	}
	defer closeOut()
	if err := writeEdges(out, model.Edges()); err != nil {
		return err
	}
	if spotsPath == "" {
		return nil
	}
	spotsOut, closeSpots, err := openOutput(spotsPath)
	if err != nil {
		return err
	}
	defer closeSpots()
	var all []*spot.Spot
	for _, frame := range model.Frames() {
		all = append(all, model.SpotsInFrame(frame)...)
	}
	return writeSpots(spotsOut, all)
}

// buildCost loads the files the configured cost needs.
func buildCost(c config.Cost, logger *logging.Logger) (costfunc.CostFunction, error) {
	var labels *costfunc.Labels
	var cache *distcache.Cache
	var err error
	if c.Kind != config.CostSquare {
		if c.Labels == "" {
			return nil, errors.Errorf("cost %s needs a label mask", c.Kind)
		}
		if labels, err = loadLabels(c.Labels); err != nil {
			return nil, err
		}
	}
	if c.Kind == config.CostReachable {
		if cache, err = distcache.Load(c.Cache); err != nil {
			return nil, err
		}
	}
	return c.Build(labels, cache, logger)
}

func writeEdges(w io.Writer, edges []trackgraph.Edge) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"source", "target", "source_frame", "target_frame", "weight"}); err != nil {
		return err
	}
	for _, e := range edges {
		record := []string{
			strconv.Itoa(e.Source.ID()),
			strconv.Itoa(e.Target.ID()),
			strconv.Itoa(e.Source.Frame()),
			strconv.Itoa(e.Target.Frame()),
			formatFloat(e.Weight),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
