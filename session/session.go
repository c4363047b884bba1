/*
	Package session composes a viewer session for one image: it owns the plane
	cache, loads every channel as a layer, configures the dims and wires the
	ROI export action and console names into the viewer.
*/
package session

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omeview/array"
	"github.com/janelia-flyem/omeview/config"
	"github.com/janelia-flyem/omeview/omero"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/janelia-flyem/omeview/planes"
	"github.com/janelia-flyem/omeview/rois"
	"github.com/janelia-flyem/omeview/storage"
	"github.com/janelia-flyem/omeview/viewer"
	"github.com/janelia-flyem/omeview/zarr"
)

// SaveROIsAction is the name of the dock action exporting annotations.
const SaveROIsAction = "Save ROIs to OMERO"

// Console names under which the connection and image are exposed.
const (
	ConsoleConn  = "conn"
	ConsoleImage = "omero_image"
)

// Options select the data path of a session.
//
// In Lazy mode no plane is read until it is displayed, with one exception: a
// channel whose rendering window is 0/0 gets its contrast limits from the
// first plane of its lowest resolution level, read while the image loads.
type Options struct {
	Mode        planes.Mode
	Zarr        bool
	Resolutions string

	// Store serves <image id>.zarr groups when Zarr is set.
	Store storage.Store

	// Concurrency bounds parallel plane reads during materialization.
	Concurrency int
}

// Session is one image shown in one viewer.
type Session struct {
	Client *omero.Client
	Image  *omero.Image
	Viewer *viewer.Viewer

	opts    Options
	cache   *planes.Cache
	fetcher *planes.Fetcher
}

// New returns a session whose planes are read from the client's raw pixel
// service.
func New(client *omero.Client, img *omero.Image, v *viewer.Viewer, opts Options) *Session {
	return NewWithSource(client, img, v, planes.ImageSource(client, img), opts)
}

// NewWithSource returns a session reading planes from src.
func NewWithSource(client *omero.Client, img *omero.Image, v *viewer.Viewer, src planes.Source, opts Options) *Session {
	if opts.Concurrency <= 0 {
		opts.Concurrency = config.DefaultConcurrency
	}
	cache := planes.NewCache()
	return &Session{
		Client:  client,
		Image:   img,
		Viewer:  v,
		opts:    opts,
		cache:   cache,
		fetcher: planes.NewFetcher(src, cache),
	}
}

// Cache returns the session's plane cache.
func (s *Session) Cache() *planes.Cache {
	return s.cache
}

// Concurrency is the bound on parallel plane reads.
func (s *Session) Concurrency() int {
	return s.opts.Concurrency
}

// channelData returns the arrays for channel c: one array, or pyramid levels.
func (s *Session) channelData(ctx context.Context, c int) ([]array.Array, error) {
	if s.opts.Zarr {
		if s.opts.Store == nil {
			return nil, fmt.Errorf("no zarr store configured")
		}
		pyr, err := zarr.LoadPyramid(ctx, s.opts.Store, s.Image.ID, c, s.opts.Resolutions)
		if err != nil {
			return nil, err
		}
		return pyr.Levels, nil
	}
	a, err := planes.Assemble(ctx, s.fetcher, s.Image, c, s.opts.Mode)
	if err != nil {
		return nil, err
	}
	return []array.Array{a}, nil
}

// LoadImage adds one layer per channel, then sets the dims defaults and labels.
func (s *Session) LoadImage(ctx context.Context) error {
	timedLog := omv.NewTimeLog()
	for c, ch := range s.Image.Channels {
		omv.Infof("loading channel %d:\n", c)
		data, err := s.channelData(ctx, c)
		if err != nil {
			return fmt.Errorf("loading channel %d of %s: %w", c, s.Image, err)
		}
		layer, err := BuildChannelLayer(ctx, data, ch)
		if err != nil {
			return err
		}
		if _, err := s.Viewer.AddImage(layer); err != nil {
			return err
		}
	}
	if err := SetDimsDefaults(s.Viewer, s.Image); err != nil {
		return err
	}
	if err := SetDimsLabels(s.Viewer, s.Image); err != nil {
		return err
	}
	mode := s.opts.Mode.String()
	if s.opts.Zarr {
		mode = "zarr"
	}
	timedLog.Infof("Loaded %d channel(s) of %s (%s)", len(s.Image.Channels), s.Image, mode)
	return nil
}

// SaveROIs exports the viewer's annotation layers to the server.
func (s *Session) SaveROIs(ctx context.Context) (int, error) {
	n, err := rois.Export(ctx, s.Viewer.Layers(), s.Image, s.Client, s.Viewer.Dims.AxisLabels())
	if err != nil {
		return n, err
	}
	omv.Infof("Saved %d ROI(s) on %s\n", n, s.Image)
	return n, nil
}

// Attach adds the save action and exposes the connection and image in the
// viewer console.
func (s *Session) Attach() {
	s.Viewer.AddAction(SaveROIsAction, func(ctx context.Context) error {
		_, err := s.SaveROIs(ctx)
		return err
	})
	s.Viewer.UpdateConsole(map[string]interface{}{
		ConsoleConn:  s.Client,
		ConsoleImage: s.Image,
	})
}

// Open loads the image into the viewer and attaches the session to it.
func Open(ctx context.Context, client *omero.Client, img *omero.Image, v *viewer.Viewer, opts Options) (*Session, error) {
	s := New(client, img, v, opts)
	if err := s.LoadImage(ctx); err != nil {
		return nil, err
	}
	s.Attach()
	return s, nil
}
