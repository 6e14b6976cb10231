package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"bucketdeck/internal/events"
	"bucketdeck/internal/flags"
	"bucketdeck/internal/service"
	"bucketdeck/internal/transfer"
	"bucketdeck/pkg/storage"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"
)

const progressBarWidth = 40

func newPutCmd() *cobra.Command {
	var prefix string

	putCmd := &cobra.Command{
		Use:   "put [file...]",
		Short: "Upload local files into a folder of the bucket",
		Long: `Uploads each file under --prefix, keeping its base name. Files are transferred
concurrently up to the max_concurrent_transfers of the profile.
For example: 'bucketdeck put report.pdf notes.txt --prefix docs/'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithClient(cmd, func(ctx context.Context, app *appContainer, client *service.Client) error {
				jobs := transfer.NewRegistry()
				for _, local := range args {
					jobs.Track(client.Upload(local, prefix), local)
				}
				err := awaitTransfers(ctx, client, jobs, os.Stderr)
				fmt.Println(app.StorageFormatter.FormatTransfers(jobs.Jobs()))
				return err
			})
		},
	}
	putCmd.Flags().StringVar(&prefix, flags.Prefix, "", "Folder to upload into")
	return putCmd
}

func newGetCmd() *cobra.Command {
	var dest string

	getCmd := &cobra.Command{
		Use:   "get [key...]",
		Short: "Download objects to the local disk",
		Long: `Downloads each object. When --dest is a directory, or more than one key is given,
objects are saved there under their base names. Missing parent directories are created.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := dest
			if len(args) > 1 && target != "" {
				if err := os.MkdirAll(target, 0o755); err != nil {
					return fmt.Errorf("error creating '%s': %w", target, err)
				}
			}
			if target == "" {
				target = "."
			}

			return runWithClient(cmd, func(ctx context.Context, app *appContainer, client *service.Client) error {
				jobs := transfer.NewRegistry()
				for _, key := range args {
					jobs.Track(client.Download(key, target), target)
				}
				err := awaitTransfers(ctx, client, jobs, os.Stderr)
				fmt.Println(app.StorageFormatter.FormatTransfers(jobs.Jobs()))
				return err
			})
		},
	}
	getCmd.Flags().StringVar(&dest, "dest", "", "File or directory to download into (defaults to the current directory)")
	return getCmd
}

// awaitTransfers applies progress and completions to jobs until none is running
func awaitTransfers(ctx context.Context, client *service.Client, jobs *transfer.Registry, out io.Writer) error {
	bar := newProgressLine(out)
	defer bar.finish()

	w := newEventWaiter(client, func(p transfer.Progress) {
		if jobs.ApplyProgress(p) {
			bar.render(jobs.Jobs())
		}
	})

	for jobs.Active() > 0 {
		done, err := waitFor[events.TransferDone](ctx, w)
		if err != nil {
			return err
		}
		jobs.Finish(done.Job, done.LocalPath, done.Err)
		bar.render(jobs.Jobs())
	}

	failed := 0
	for _, job := range jobs.Jobs() {
		if job.Status == transfer.Failed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d transfer(s) failed", failed, jobs.Len())
	}
	return nil
}

// progressLine redraws one aggregate bar over all jobs in place
type progressLine struct {
	out   io.Writer
	bar   progress.Model
	drawn bool
}

func newProgressLine(out io.Writer) *progressLine {
	return &progressLine{
		out: out,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressBarWidth)),
	}
}

func (l *progressLine) render(jobs []transfer.Job) {
	var total, done uint64
	finished := 0
	for _, job := range jobs {
		total += job.Total
		done += job.Transferred
		if job.Finished() {
			finished++
		}
	}

	rate := 0.0
	if total > 0 {
		rate = min(float64(done)/float64(total), 1)
	}
	fmt.Fprintf(l.out, "\r%s %s / %s (%d/%d)", l.bar.ViewAs(rate),
		storage.FormatBytes(int64(done)), storage.FormatBytes(int64(total)), finished, len(jobs))
	l.drawn = true
}

func (l *progressLine) finish() {
	if l.drawn {
		fmt.Fprintln(l.out)
	}
}
