package main

import (
	"fmt"

	"github.com/janelia-flyem/omeview/planes"
	"github.com/janelia-flyem/omeview/session"
	"github.com/janelia-flyem/omeview/viewer"
	"github.com/spf13/cobra"
)

func newROIsCommand(global *globalFlags) *cobra.Command {
	roisCmd := &cobra.Command{
		Use:   "rois",
		Short: "Manage ROIs without opening the viewer",
	}

	var annotations string
	saveCmd := &cobra.Command{
		Use:   "save Image:<id>",
		Short: "Save the points and shapes of an annotation file as ROIs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			cfg.Logging.SetLogger()
			client, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Close()
			img, err := lookupImage(ctx, client, args[0])
			if err != nil {
				return err
			}

			// The image is opened lazily so the dims carry its Z and T labels
			// without reading pixels.
			s, err := session.Open(ctx, client, img, viewer.New(), session.Options{
				Mode:        planes.Lazy,
				Concurrency: cfg.Concurrency(),
			})
			if err != nil {
				return err
			}
			if _, err := s.Viewer.LoadAnnotations(annotations); err != nil {
				return err
			}
			n, err := s.SaveROIs(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d ROI(s) on %s\n", n, img)
			return nil
		},
	}
	saveCmd.Flags().StringVar(&annotations, "annotations", "", "annotation file to export")
	saveCmd.MarkFlagRequired("annotations")

	roisCmd.AddCommand(saveCmd)
	return roisCmd
}
