package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/janelia-flyem/omeview/config"
	"github.com/janelia-flyem/omeview/omero"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/janelia-flyem/omeview/planes"
	"github.com/janelia-flyem/omeview/session"
	"github.com/janelia-flyem/omeview/tui"
	"github.com/janelia-flyem/omeview/viewer"
	"github.com/janelia-flyem/omeview/zarr"
	"github.com/spf13/cobra"
)

type viewFlags struct {
	eager       bool
	zarr        bool
	resolutions string
	endpoint    string
	annotations string
}

func newViewCommand(global *globalFlags) *cobra.Command {
	flags := &viewFlags{}
	cmd := &cobra.Command{
		Use:   "view Image:<id>",
		Short: "Open an image in the terminal viewer",
		Long: `Open every channel of an image as a viewer layer.  Planes are read lazily
from the OMERO pixel service unless --eager is given, or from the image's
zarr pyramid on object storage with --zarr.  The "s" key saves the points
and shapes drawn in the viewer as ROIs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, global, flags, args[0])
		},
	}
	f := cmd.Flags()
	f.BoolVar(&flags.eager, "eager", false, "read every plane before opening the viewer")
	f.BoolVar(&flags.zarr, "zarr", false, "read the image from its zarr pyramid on object storage")
	f.StringVar(&flags.resolutions, "resolutions", "", "pyramid levels to load: an index, a comma list or a range such as 0-2")
	f.StringVar(&flags.endpoint, "endpoint_url", "", fmt.Sprintf("zarr storage endpoint or bucket URL (default %s)", config.DefaultEndpoint))
	f.StringVar(&flags.annotations, "annotations", "", "annotation file loaded at start and written by the \"w\" key")
	return cmd
}

// openSession looks up the image and loads it into a new viewer.  The
// returned cleanup closes any zarr store that was opened.
func openSession(ctx context.Context, cfg *config.Config, client *omero.Client, img *omero.Image, flags *viewFlags) (*session.Session, func(), error) {
	opts := session.Options{
		Mode:        planes.Lazy,
		Zarr:        flags.zarr,
		Resolutions: flags.resolutions,
		Concurrency: cfg.Concurrency(),
	}
	if flags.eager {
		opts.Mode = planes.Eager
	}
	cleanup := func() {}
	if flags.zarr {
		cacheBytes, err := cfg.ChunkCacheBytes()
		if err != nil {
			return nil, cleanup, err
		}
		store, err := session.OpenZarrStore(ctx, cfg.Zarr, flags.endpoint, cacheBytes)
		if err != nil {
			return nil, cleanup, err
		}
		opts.Store = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				omv.Errorf("closing zarr store: %v\n", err)
			}
		}
	}
	s, err := session.Open(ctx, client, img, viewer.New(), opts)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return s, cleanup, nil
}

func runView(cmd *cobra.Command, global *globalFlags, flags *viewFlags, ref string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, global)
	if err != nil {
		return err
	}
	cfg.Logging.SetLogger()

	if flags.zarr {
		if _, err := zarr.ParseResolutions(flags.resolutions, nil); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Invalid resolutions %q\n", flags.resolutions)
			return err
		}
	}
	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	img, err := lookupImage(ctx, client, ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "View image: %s\n", img.Name)

	s, cleanup, err := openSession(ctx, cfg, client, img, flags)
	if err != nil {
		return err
	}
	defer cleanup()

	if flags.annotations != "" {
		if _, statErr := os.Stat(flags.annotations); statErr == nil {
			layers, err := s.Viewer.LoadAnnotations(flags.annotations)
			if err != nil {
				return err
			}
			omv.Infof("Loaded %d annotation layer(s) from %s\n", len(layers), flags.annotations)
		}
	}

	// The viewer owns the terminal from here on.
	if cfg.Logging.Logfile == "" {
		omv.SetLogOutput(io.Discard)
		defer omv.SetLogOutput(os.Stderr)
	}
	return tui.Run(ctx, s.Viewer, tui.Options{
		Title:           img.Name,
		AnnotationsFile: flags.annotations,
		SaveAction:      session.SaveROIsAction,
	})
}
