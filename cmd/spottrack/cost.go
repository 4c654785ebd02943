package main

import (
	"fmt"
	"strconv"

	"github.com/LdDl/spottrack-go/costfunc"
	"github.com/LdDl/spottrack-go/spot"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var costCmd = &cobra.Command{
	Use:   "cost <x1> <y1> <frame1> <x2> <y2> <frame2>",
	Short: "Print the configured linking cost between two positions",
	Args:  cobra.ExactArgs(6),
	RunE:  runCost,
}

var (
	costKind   string
	costLabels string
	costCache  string
)

func init() {
	costCmd.Flags().StringVar(&costKind, "kind", "", "Cost kind: square, graph or reachable (default from config)")
	costCmd.Flags().StringVar(&costLabels, "labels", "", "Label mask image or glob, one image per window")
	costCmd.Flags().StringVar(&costCache, "cache", "", "Distance cache file")
}

func runCost(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	c := cfg.Cost
	if costKind != "" {
		if err := c.Kind.UnmarshalText([]byte(costKind)); err != nil {
			return err
		}
	}
	if costLabels != "" {
		c.Labels = costLabels
	}
	if costCache != "" {
		c.Cache = costCache
	}
	if cmd.Flags().Changed("pixel-size") {
		c.PixelSize = pixelSize
	}
	if err := c.Validate(); err != nil {
		return err
	}

	values := make([]float64, len(args))
	for i, arg := range args {
		if values[i], err = strconv.ParseFloat(arg, 64); err != nil {
			return errors.Wrapf(err, "argument %d", i+1)
		}
	}
	source := spot.MustSpot([]float64{values[0], values[1]}, 1, 1)
	source.PutFeature(spot.FeatureFrame, values[2])
	target := spot.MustSpot([]float64{values[3], values[4]}, 1, 1)
	target.PutFeature(spot.FeatureFrame, values[5])

	fn, err := buildCost(c, logger)
	if err != nil {
		return err
	}
	cost := fn.LinkingCost(source, target)
	if costfunc.IsNoPath(cost) {
		fmt.Fprintln(cmd.OutOrStdout(), "inf")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatFloat(cost))
	return nil
}
