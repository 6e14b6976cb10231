package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"bucketdeck/internal/events"
	"bucketdeck/internal/flags"
	"bucketdeck/internal/listing"
	"bucketdeck/internal/service"
	"bucketdeck/pkg/storage"

	"github.com/spf13/cobra"
)

// defaultPresignTTL is one hour
const defaultPresignTTL = 3600

type objectFlags struct {
	all      bool
	filter   string
	pageSize int
	byteRng  string
	ttl      uint64
	force    bool
}

// runWithClient opens the selected profile and runs fn with a context bounded by --timeout
func runWithClient(cmd *cobra.Command, fn func(ctx context.Context, app *appContainer, client *service.Client) error) error {
	app, err := appFromContext(cmd.Context())
	if err != nil {
		return err
	}

	client, err := app.OpenClient(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := app.waitContext(cmd.Context())
	defer cancel()
	return fn(ctx, app, client)
}

func newObjectCmds() []*cobra.Command {
	cmdFlags := objectFlags{}

	lsCmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List the folders and objects under a path",
		Long: `Lists one folder of the bucket, folders first. Only the first page is fetched unless
--all is given. For example: 'bucketdeck ls photos/2024 --filter IMG_'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runWithClient(cmd, func(ctx context.Context, app *appContainer, client *service.Client) error {
				lst, err := listFolder(ctx, client, path, cmdFlags.filter, cmdFlags.pageSize, cmdFlags.all)
				if err != nil {
					return fmt.Errorf("error listing '%s': %w", listing.NormalizePath(path), err)
				}

				if lst.Len() == 0 {
					fmt.Println("No objects found.")
					return nil
				}
				fmt.Println(app.StorageFormatter.FormatListing(lst.Entries()))
				if !lst.Complete() {
					fmt.Println("More entries are available. Use --all to list everything.")
				}
				return nil
			})
		},
	}
	lsCmd.Flags().BoolVarP(&cmdFlags.all, flags.All, flags.AllShort, false, "Fetch every page of the listing")
	lsCmd.Flags().StringVar(&cmdFlags.filter, flags.Filter, "", "Only show entries whose name starts with this text")
	lsCmd.Flags().IntVar(&cmdFlags.pageSize, flags.PageSize, storage.DefaultPageSize, "Number of entries requested per page")

	statCmd := &cobra.Command{
		Use:   "stat [key]",
		Short: "Show the metadata of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithClient(cmd, func(ctx context.Context, app *appContainer, client *service.Client) error {
				client.Meta(args[0])
				ev, err := waitFor[events.MetadataReady](ctx, newEventWaiter(client, nil))
				if err != nil {
					return err
				}
				if ev.Err != nil {
					return fmt.Errorf("error reading metadata of '%s': %w", args[0], ev.Err)
				}
				fmt.Println(app.StorageFormatter.FormatMetadata(ev.Metadata))
				return nil
			})
		},
	}

	catCmd := &cobra.Command{
		Use:   "cat [key]",
		Short: "Write an object, or part of it, to standard output",
		Long: `Writes the object body to standard output. Use --range offset:length to read part of it;
a missing length reads to the end. For example: 'bucketdeck cat logs/app.log --range 0:512'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			var rng *storage.ByteRange
			if cmdFlags.byteRng != "" {
				parsed, err := parseByteRange(cmdFlags.byteRng)
				if err != nil {
					return err
				}
				rng = &parsed
			}

			return runWithClient(cmd, func(ctx context.Context, app *appContainer, client *service.Client) error {
				if rng != nil {
					client.GetRange(key, *rng)
				} else {
					client.Get(key)
				}
				ev, err := waitFor[events.ObjectReady](ctx, newEventWaiter(client, nil))
				if err != nil {
					return err
				}
				if ev.Err != nil {
					return fmt.Errorf("error reading '%s': %w", key, ev.Err)
				}
				_, err = os.Stdout.Write(ev.Data)
				return err
			})
		},
	}
	catCmd.Flags().StringVar(&cmdFlags.byteRng, flags.Range, "", "Byte range to read as offset:length")

	mkdirCmd := &cobra.Command{
		Use:   "mkdir [path]",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithClient(cmd, func(ctx context.Context, app *appContainer, client *service.Client) error {
				client.CreateFolder(args[0])
				ev, err := waitFor[events.FolderCreated](ctx, newEventWaiter(client, nil))
				if err != nil {
					return err
				}
				if ev.Err != nil {
					return fmt.Errorf("error creating folder '%s': %w", args[0], ev.Err)
				}
				fmt.Printf("Folder '%s' created.\n", ev.Path)
				return nil
			})
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm [key...]",
		Short: "Delete one or more objects",
		Long:  `Deletes the given objects. Every key is attempted even when some fail. Use --force to skip the confirmation.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithClient(cmd, func(ctx context.Context, app *appContainer, client *service.Client) error {
				if !cmdFlags.force {
					confirmed, err := app.Prompter.ConfirmYes(fmt.Sprintf("Delete %d object(s) from '%s'?", len(args), client.Config().Bucket))
					if err != nil {
						return err
					}
					if !confirmed {
						fmt.Println("Deletion cancelled.")
						return nil
					}
				}

				if len(args) == 1 {
					client.Delete(args[0])
				} else {
					client.DeleteMany(args)
				}
				ev, err := waitFor[events.Deleted](ctx, newEventWaiter(client, nil))
				if err != nil {
					return err
				}

				var batchErr *storage.BatchError
				if errors.As(ev.Err, &batchErr) {
					failed := batchErr.Failed()
					for _, r := range failed {
						fmt.Fprintf(os.Stderr, "  %s: %v\n", r.Key, r.Err)
					}
					return fmt.Errorf("deleted %d of %d object(s): %w", len(ev.Keys)-len(failed), len(ev.Keys), ev.Err)
				}
				if ev.Err != nil {
					return fmt.Errorf("error deleting: %w", ev.Err)
				}
				fmt.Printf("Deleted %d object(s).\n", len(ev.Keys))
				return nil
			})
		},
	}
	rmCmd.Flags().BoolVarP(&cmdFlags.force, flags.Force, flags.ForceShort, false, "Delete without asking for confirmation")

	cpCmd := &cobra.Command{
		Use:   "cp [src] [dest]",
		Short: "Copy an object within the bucket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithClient(cmd, func(ctx context.Context, app *appContainer, client *service.Client) error {
				return copyObject(ctx, client, args[0], args[1], false)
			})
		},
	}

	mvCmd := &cobra.Command{
		Use:   "mv [src] [dest]",
		Short: "Move an object within the bucket",
		Long:  `Copies the object and then deletes the source. If the delete fails both objects are left in place.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithClient(cmd, func(ctx context.Context, app *appContainer, client *service.Client) error {
				return copyObject(ctx, client, args[0], args[1], true)
			})
		},
	}

	presignCmd := &cobra.Command{
		Use:   "presign [key]",
		Short: "Print a time-limited download URL for an object",
		Long:  `Signs a GET URL for the object. The lifetime is given in seconds and may not exceed 7 days.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := service.PresignTTL(cmdFlags.ttl); err != nil {
				return fmt.Errorf("invalid --%s: %w", flags.TTL, err)
			}
			return runWithClient(cmd, func(ctx context.Context, app *appContainer, client *service.Client) error {
				if !client.IsPrivate() {
					app.Logger.Info("Profile is not marked private; objects may already be publicly readable", "bucket", client.Config().Bucket)
				}
				client.Presign(args[0], cmdFlags.ttl)
				ev, err := waitFor[events.PresignReady](ctx, newEventWaiter(client, nil))
				if err != nil {
					return err
				}
				if ev.Err != nil {
					return fmt.Errorf("error presigning '%s': %w", args[0], ev.Err)
				}
				fmt.Println(ev.URL)
				fmt.Fprintf(os.Stderr, "Expires at %s\n", ev.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}
	presignCmd.Flags().Uint64Var(&cmdFlags.ttl, flags.TTL, defaultPresignTTL, "Lifetime of the URL in seconds")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Describe the bucket of the selected profile",
		Long:  `Shows the location, access state, versioning and usage of the bucket.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithClient(cmd, func(ctx context.Context, app *appContainer, client *service.Client) error {
				client.BucketInfo()
				ev, err := waitFor[events.BucketInfoReady](ctx, newEventWaiter(client, nil))
				if err != nil {
					return err
				}
				if ev.Err != nil {
					return fmt.Errorf("error describing bucket '%s': %w", client.Config().Bucket, ev.Err)
				}
				fmt.Println(app.StorageFormatter.FormatBucketDetails(ev.Info))
				return nil
			})
		},
	}

	return []*cobra.Command{lsCmd, statCmd, catCmd, mkdirCmd, rmCmd, cpCmd, mvCmd, presignCmd, infoCmd}
}

// listFolder drives a Listing through one page, or every page when all is set
func listFolder(ctx context.Context, client *service.Client, path, filter string, pageSize int, all bool) (*listing.Listing, error) {
	lst := listing.New(pageSize)
	w := newEventWaiter(client, nil)

	req := lst.Start(path, filter)
	for {
		client.List(req)
		ev, err := waitFor[events.ListingReady](ctx, w)
		if err != nil {
			return lst, err
		}
		lst.Apply(ev.Request, ev.Page, ev.Err)
		if ev.Err != nil {
			return lst, ev.Err
		}
		if !all {
			return lst, nil
		}

		next, ok := lst.More()
		if !ok {
			return lst, nil
		}
		req = next
	}
}

func copyObject(ctx context.Context, client *service.Client, src, dst string, isMove bool) error {
	client.Copy(src, dst, isMove)
	ev, err := waitFor[events.CopyDone](ctx, newEventWaiter(client, nil))
	if err != nil {
		return err
	}

	switch {
	case errors.Is(ev.Err, storage.ErrMoveIncomplete):
		return fmt.Errorf("copied '%s' to '%s' but the source could not be deleted: %w", src, dst, ev.Err)
	case ev.Err != nil:
		return fmt.Errorf("error copying '%s' to '%s': %w", src, dst, ev.Err)
	}

	verb := "Copied"
	if isMove {
		verb = "Moved"
	}
	fmt.Printf("%s '%s' to '%s'.\n", verb, src, dst)
	return nil
}

// parseByteRange reads "offset:length" or "offset:"
func parseByteRange(s string) (storage.ByteRange, error) {
	offsetPart, lengthPart, found := strings.Cut(s, ":")
	if !found {
		return storage.ByteRange{}, fmt.Errorf("invalid range '%s': expected offset:length", s)
	}

	offset, err := strconv.ParseUint(strings.TrimSpace(offsetPart), 10, 64)
	if err != nil {
		return storage.ByteRange{}, fmt.Errorf("invalid range offset '%s': %w", offsetPart, err)
	}

	var length uint64
	if lengthPart = strings.TrimSpace(lengthPart); lengthPart != "" {
		length, err = strconv.ParseUint(lengthPart, 10, 64)
		if err != nil {
			return storage.ByteRange{}, fmt.Errorf("invalid range length '%s': %w", lengthPart, err)
		}
		if length == 0 {
			return storage.ByteRange{}, fmt.Errorf("invalid range '%s': length must be positive", s)
		}
	}
	return storage.ByteRange{Offset: offset, Length: length}, nil
}
