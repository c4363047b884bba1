// Command omeview opens OMERO images in a terminal viewer and saves the
// annotations drawn on them back to the server as ROIs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/janelia-flyem/omeview/config"
	"github.com/janelia-flyem/omeview/omero"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/spf13/cobra"
)

// Version is replaced at build time with -ldflags "-X main.Version=...".
var Version = "0.1.0"

// ExitNoSuchObject is the exit status when a looked-up object does not exist.
const ExitNoSuchObject = 110

// exitError ends the process with a specific status and message.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	host       string
	username   string
	password   string
	sessionKey string
	server     int
	group      int
	verbose    bool
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "omeview",
		Short:         "View OMERO images in the terminal and save ROIs back to OMERO",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.verbose {
				omv.Verbose = true
				omv.SetLogMode(omv.DebugMode)
			}
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "TOML configuration file")
	pf.StringVarP(&flags.host, "host", "s", "", "OMERO.web base URL")
	pf.StringVarP(&flags.username, "user", "u", "", "OMERO user name")
	pf.StringVarP(&flags.password, "password", "w", "", "OMERO password")
	pf.StringVarP(&flags.sessionKey, "key", "k", "", "join an existing session instead of logging in")
	pf.IntVar(&flags.server, "server", 1, "OMERO server id used at login")
	pf.IntVarP(&flags.group, "group", "g", config.AllGroups, "group used for lookups (-1 for all groups)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log debug messages")

	rootCmd.AddCommand(newViewCommand(flags), newROIsCommand(flags), newAboutCommand(flags))
	return rootCmd
}

// loadConfig reads the TOML configuration and applies the flags that were
// given on the command line.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.Server.Host = flags.host
	}
	if changed("user") {
		cfg.Server.Username = flags.username
	}
	if changed("password") {
		cfg.Server.Password = flags.password
	}
	if changed("key") {
		cfg.Server.SessionKey = flags.sessionKey
	}
	if changed("server") {
		cfg.Server.ServerName = flags.server
	}
	if changed("group") {
		cfg.Server.Group = flags.group
	}
	return cfg, cfg.Validate()
}

// connect opens a logged-in client with the group override applied.
func connect(ctx context.Context, cfg *config.Config) (*omero.Client, error) {
	client, err := omero.NewClient(cfg.Server.Host, &omero.Options{PixelService: cfg.PixelServiceURL()})
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	if cfg.Server.SessionKey != "" {
		err = client.JoinSession(ctx, cfg.Server.SessionKey)
	} else {
		err = client.Login(ctx, cfg.Server.Username, cfg.Server.Password, cfg.Server.ServerName)
	}
	if err != nil {
		return nil, err
	}
	client.SetGroup(cfg.Server.Group)
	return client, nil
}

// lookupImage resolves an "Image:<id>" reference.  A missing image ends the
// process with ExitNoSuchObject.
func lookupImage(ctx context.Context, client *omero.Client, refString string) (*omero.Image, error) {
	ref, err := omero.ParseObjectRef(refString, "Image")
	if err != nil {
		return nil, err
	}
	img, err := client.GetImage(ctx, ref.ID)
	if errors.Is(err, omero.ErrNotFound) {
		return nil, &exitError{code: ExitNoSuchObject, msg: fmt.Sprintf("No such %s: %d", ref.Type, ref.ID)}
	}
	return img, err
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	omv.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}
