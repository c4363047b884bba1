package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/janelia-flyem/omeview/array"
	"github.com/janelia-flyem/omeview/omero"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/janelia-flyem/omeview/viewer"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Quantiles used for contrast when a channel carries no window.
const (
	lowQuantile  = 0.01
	highQuantile = 0.99
)

// BuildChannelLayer wraps one channel's array, or pyramid levels from high to
// low resolution, as an image layer rendered the way the server renders it.
// A channel without a window reads one plane here to estimate its contrast.
func BuildChannelLayer(ctx context.Context, data []array.Array, ch omero.Channel) (*viewer.ImageLayer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("channel %d has no data", ch.Index)
	}
	name := ch.Label
	if name == "" {
		name = fmt.Sprintf("Channel %d", ch.Index)
	}
	layer := &viewer.ImageLayer{
		LayerMeta:           viewer.LayerMeta{Name: name, Visible: ch.Active},
		Data:                data,
		Colormap:            viewer.Ramp("from_omero", ch.RGB()),
		Blending:            viewer.BlendAdditive,
		ContrastLimits:      [2]float64{ch.Window.Start, ch.Window.End},
		ContrastLimitsRange: [2]float64{ch.Window.Min, ch.Window.Max},
	}
	if ch.Window.Start == 0 && ch.Window.End == 0 {
		limits, bounds, err := estimateContrast(ctx, data[len(data)-1])
		if err != nil {
			return nil, fmt.Errorf("cannot estimate contrast of channel %d: %w", ch.Index, err)
		}
		layer.ContrastLimits = limits
		if ch.Window.Min == 0 && ch.Window.Max == 0 {
			layer.ContrastLimitsRange = bounds
		}
		omv.Debugf("Channel %d has no window, using %v from data\n", ch.Index, limits)
	}
	return layer, nil
}

// estimateContrast reads the first plane of a and returns its 1%/99% quantiles
// and its value range.
func estimateContrast(ctx context.Context, a array.Array) (limits, bounds [2]float64, err error) {
	plane, err := array.PlaneAt(ctx, a, nil)
	if err != nil {
		return
	}
	values := plane.Values()
	if len(values) == 0 {
		return limits, bounds, fmt.Errorf("empty plane")
	}
	sort.Float64s(values)
	limits[0] = stat.Quantile(lowQuantile, stat.Empirical, values, nil)
	limits[1] = stat.Quantile(highQuantile, stat.Empirical, values, nil)
	bounds[0], bounds[1] = floats.Min(values), floats.Max(values)
	if limits[1] <= limits[0] {
		limits[1] = limits[0] + 1
	}
	if bounds[1] < limits[1] {
		bounds[1] = limits[1]
	}
	return limits, bounds, nil
}

// SetDimsLabels labels the T and Z axes of v, in that order, for the axes
// the image actually has.
func SetDimsLabels(v *viewer.Viewer, img *omero.Image) error {
	var labels []string
	if img.SizeT > 1 {
		labels = append(labels, "T")
	}
	if img.SizeZ > 1 {
		labels = append(labels, "Z")
	}
	for i, label := range labels {
		if err := v.Dims.SetAxisLabel(i, label); err != nil {
			return err
		}
	}
	return nil
}

// SetDimsDefaults moves the T and Z sliders to the image's default planes.
func SetDimsDefaults(v *viewer.Viewer, img *omero.Image) error {
	var positions []int
	if img.SizeT > 1 {
		positions = append(positions, img.DefaultT)
	}
	if img.SizeZ > 1 {
		positions = append(positions, img.DefaultZ)
	}
	for i, pos := range positions {
		if err := v.Dims.SetPoint(i, pos); err != nil {
			return err
		}
	}
	return nil
}
