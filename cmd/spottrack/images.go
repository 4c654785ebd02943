package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/LdDl/spottrack-go/costfunc"
	"github.com/LdDl/spottrack-go/spot"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// expandPaths resolves glob patterns in order. A pattern matching nothing
// is kept as is so that opening it reports the error.
func expandPaths(patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "bad pattern %q", pattern)
		}
		if len(matches) == 0 {
			matches = []string{pattern}
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			paths = append(paths, m)
		}
	}
	return paths, nil
}

func decodeImage(path string) (image.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer fh.Close()
	var img image.Image
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tif", ".tiff":
		img, err = tiff.Decode(fh)
	case ".png":
		img, err = png.Decode(fh)
	default:
		return nil, errors.Errorf("unsupported image format %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

// gray16 returns the samples of img in X-fastest order.
func gray16(img image.Image) (int, int, []uint16) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	samples := make([]uint16, w*h)
	if g, ok := img.(*image.Gray16); ok {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				samples[y*w+x] = g.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			}
		}
		return w, h, samples
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			samples[y*w+x] = color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
		}
	}
	return w, h, samples
}

func loadFrame(path string, size float64) (*spot.ArrayImage[uint16], error) {
	img, err := decodeImage(path)
	if err != nil {
		return nil, err
	}
	w, h, samples := gray16(img)
	return spot.WrapArrayImage([]int{w, h}, spot.Calibration{size, size}, samples)
}

// loadLabels reads one label mask per time window, in path order.
func loadLabels(pattern string) (*costfunc.Labels, error) {
	paths, err := expandPaths([]string{pattern})
	if err != nil {
		return nil, err
	}
	var width, height int
	layers := make([][]uint32, 0, len(paths))
	for i, path := range paths {
		img, err := decodeImage(path)
		if err != nil {
			return nil, err
		}
		w, h, layer := labelValues(img)
		if i == 0 {
			width, height = w, h
		} else if w != width || h != height {
			return nil, errors.Errorf("label mask %s is %dx%d, expected %dx%d", path, w, h, width, height)
		}
		layers = append(layers, layer)
	}
	return costfunc.NewLabels(width, height, layers...)
}

// labelValues returns the stored label of every pixel. 8-bit and paletted
// masks keep their raw values instead of being scaled to 16 bits.
func labelValues(img image.Image) (int, int, []uint32) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	labels := make([]uint32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px, py := b.Min.X+x, b.Min.Y+y
			switch m := img.(type) {
			case *image.Gray:
				labels[y*w+x] = uint32(m.GrayAt(px, py).Y)
			case *image.Gray16:
				labels[y*w+x] = uint32(m.Gray16At(px, py).Y)
			case *image.Paletted:
				labels[y*w+x] = uint32(m.ColorIndexAt(px, py))
			default:
				labels[y*w+x] = uint32(color.Gray16Model.Convert(img.At(px, py)).(color.Gray16).Y)
			}
		}
	}
	return w, h, labels
}
