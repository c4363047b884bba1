/*
	Package rois converts viewer annotations into server ROIs.  Every point and
	every drawn shape becomes its own ROI, saved as soon as it is converted.
*/
package rois

import (
	"context"
	"errors"
	"fmt"

	"github.com/janelia-flyem/omeview/omero"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/janelia-flyem/omeview/viewer"
)

// Saver persists an ROI and returns its new id.  *omero.Client is a Saver.
type Saver interface {
	SaveROI(ctx context.Context, roi omero.ROI) (int64, error)
}

// Exporter saves annotation layers as ROIs on one image.
type Exporter struct {
	Saver   Saver
	ImageID int64

	// AxisLabels are the viewer's dims labels.  When they name Z or T axes,
	// those axes decide the plane of each annotation.
	AxisLabels []string

	created []int64
}

// Export saves the annotations of layers on img and returns how many ROIs were
// created.
func Export(ctx context.Context, layers []viewer.Layer, img *omero.Image, saver Saver, labels []string) (int, error) {
	e := &Exporter{Saver: saver, ImageID: img.ID, AxisLabels: labels}
	return e.Export(ctx, layers)
}

// Created returns the ids of the ROIs saved so far.
func (e *Exporter) Created() []int64 {
	return append([]int64{}, e.created...)
}

func (e *Exporter) save(ctx context.Context, shape omero.Shape) error {
	id, err := e.Saver.SaveROI(ctx, omero.ROI{ImageID: e.ImageID, Shapes: []omero.Shape{shape}})
	if err != nil {
		return err
	}
	e.created = append(e.created, id)
	omv.Infof("Created ROI: %d\n", id)
	return nil
}

// Export walks layers in order, saving one ROI per point or shape.  The first
// save error aborts the export; ROIs already saved stay saved.
func (e *Exporter) Export(ctx context.Context, layers []viewer.Layer) (int, error) {
	start := len(e.created)
	for _, l := range layers {
		var err error
		switch layer := l.(type) {
		case *viewer.ImageLayer:
			continue
		case *viewer.PointsLayer:
			err = e.exportPoints(ctx, layer)
		case *viewer.ShapesLayer:
			err = e.exportShapes(ctx, layer)
		case *viewer.LabelsLayer:
			omv.Infof("Labels layer %q skipped: labels cannot be saved as ROIs\n", layer.Name)
		default:
			err = fmt.Errorf("unknown layer type %T", l)
		}
		if err != nil {
			return len(e.created) - start, fmt.Errorf("layer %q: %w", l.Meta().Name, err)
		}
	}
	return len(e.created) - start, nil
}

func (e *Exporter) exportPoints(ctx context.Context, l *viewer.PointsLayer) error {
	for i, coord := range l.Data {
		point, err := ConvertPoint(coord, e.AxisLabels)
		if err != nil {
			return fmt.Errorf("point %d: %v", i, err)
		}
		if err := e.save(ctx, point); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) exportShapes(ctx context.Context, l *viewer.ShapesLayer) error {
	if len(l.Shapes) == 0 {
		omv.Debugf("Shapes layer %q is empty\n", l.Name)
		return nil
	}
	for i, s := range l.Shapes {
		shape, err := ConvertShape(s, e.AxisLabels)
		var skipped *Skipped
		if errors.As(err, &skipped) {
			omv.Warningf("Shape %d of layer %q: %v\n", i, l.Name, skipped)
			continue
		}
		if err != nil {
			return fmt.Errorf("shape %d: %v", i, err)
		}
		if err := e.save(ctx, shape); err != nil {
			return err
		}
	}
	return nil
}
