package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bucketdeck/internal/flags"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	profile     string
	configPath  string
	bucket      string
	debug       bool
	metricsAddr string
	timeout     time.Duration
}

func newRootCmd(opts *globalOptions, holder *appHolder) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bucketdeck",
		Short: "bucketdeck browses and transfers objects in cloud storage buckets.",
		Long: `A single client for S3, Alibaba OSS, Google Cloud Storage, Azure Blob Storage
and S3-compatible services. Save a connection as a profile with 'bucketdeck config',
then list, copy, transfer and presign objects from the command line or
browse the bucket interactively with 'bucketdeck browse'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			holder.app = app
			cmd.SetContext(withApp(cmd.Context(), app))
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.profile, flags.Profile, flags.ProfileShort, "", "Profile to connect with (defaults to the configured default profile)")
	pf.StringVar(&opts.configPath, flags.Config, "", "Path of the config file")
	pf.StringVarP(&opts.bucket, flags.Bucket, flags.BucketShort, "", "Override the bucket of the selected profile")
	pf.BoolVarP(&opts.debug, flags.Debug, flags.DebugShort, false, "Enable debug logging")
	pf.StringVar(&opts.metricsAddr, flags.MetricsAddr, "", "Expose Prometheus transfer metrics on this address (e.g. :9090)")
	pf.DurationVar(&opts.timeout, flags.Timeout, 0, "Give up waiting for an operation after this long (0 waits until done)")

	rootCmd.AddCommand(
		newObjectCmds()...,
	)
	rootCmd.AddCommand(
		newPutCmd(),
		newGetCmd(),
		newBrowseCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// appHolder lets Execute release the container even when the command failed
type appHolder struct {
	app *appContainer
}

// Execute runs the command line and returns the process exit code
func Execute(ctx context.Context, args []string) int {
	var (
		opts   globalOptions
		holder appHolder
	)
	rootCmd := newRootCmd(&opts, &holder)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if holder.app != nil {
		holder.app.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
