package main

import (
	"fmt"
	"runtime"

	"github.com/janelia-flyem/omeview/omero"
	"github.com/spf13/cobra"
)

func newAboutCommand(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "about",
		Short: "Show the omeview version and the API versions of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "omeview %s (%s)\n", Version, runtime.Version())

			client, err := omero.NewClient(cfg.Server.Host, &omero.Options{PixelService: cfg.PixelServiceURL()})
			if err != nil {
				return err
			}
			if err := client.Connect(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "server %s\n", client.Host())
			fmt.Fprintf(out, "api    v%s\n", client.APIVersion())
			for _, v := range client.APIVersions() {
				fmt.Fprintf(out, "       v%s supported by server\n", v)
			}
			return nil
		},
	}
}
