package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"bucketdeck/internal/events"
	"bucketdeck/internal/tasks"
	"bucketdeck/internal/transfer"
	"bucketdeck/pkg/storage"
)

// FolderContentType is stored on the zero-byte marker objects that represent folders
const FolderContentType = "application/x-directory"

// Client is the one operation surface over a Backend. Every operation returns immediately and
// later posts exactly one event to Events; transfers also post progress to Progress
type Client struct {
	backend  storage.Backend
	cfg      storage.ClientConfig
	engine   *transfer.Engine
	spawner  *tasks.Spawner
	events   *events.Queue[events.Event]
	progress *events.Queue[transfer.Progress]
	private  atomic.Bool
	now      func() time.Time
	logger   *slog.Logger
}

func NewClient(backend storage.Backend, cfg storage.ClientConfig, spawner *tasks.Spawner, logger *slog.Logger, opts ...transfer.Option) *Client {
	opts = append([]transfer.Option{
		transfer.WithBufferSize(cfg.EffectiveBufferSize()),
		transfer.WithConcurrencyLimit(cfg.MaxConcurrentTransfers),
	}, opts...)

	c := &Client{
		backend:  backend,
		cfg:      cfg,
		engine:   transfer.NewEngine(backend, logger, opts...),
		spawner:  spawner,
		events:   events.NewQueue[events.Event](),
		progress: events.NewQueue[transfer.Progress](),
		now:      time.Now,
		logger:   logger.With("service", "Client", "provider", backend.Service().String(), "bucket", cfg.Bucket),
	}
	c.private.Store(cfg.Private)
	return c
}

func (c *Client) Events() *events.Queue[events.Event] {
	return c.events
}

// Progress carries per-chunk transfer progress, kept apart from Events so it cannot crowd them out
func (c *Client) Progress() *events.Queue[transfer.Progress] {
	return c.progress
}

// IsPrivate reports whether anonymous reads are refused, so presigning is worth offering.
// It starts from the configured hint and follows the last successful BucketInfo
func (c *Client) IsPrivate() bool {
	return c.private.Load()
}

func (c *Client) Config() storage.ClientConfig {
	return c.cfg
}

// Shutdown gives in-flight operations up to grace to post their events, then closes the queues
// and the backend. Late results are dropped
func (c *Client) Shutdown(grace time.Duration) bool {
	finished := c.spawner.Shutdown(grace)
	c.events.Close()
	c.progress.Close()
	if err := c.backend.Close(); err != nil {
		c.logger.Warn("Failed to close backend", "error", err)
	}
	return finished
}

// --- Object Operations ---

func (c *Client) Meta(key string) {
	c.dispatch("meta", true,
		func(ctx context.Context) events.Event {
			meta, err := c.backend.Stat(ctx, key)
			return events.MetadataReady{Key: key, Metadata: meta, Err: err}
		},
		func(err error) events.Event { return events.MetadataReady{Key: key, Err: err} },
	)
}

// Get reads a whole object. Callers keep it to small objects; large ones go through Download
func (c *Client) Get(key string) {
	c.dispatch("get", true,
		func(ctx context.Context) events.Event {
			data, err := c.read(ctx, key, nil)
			return events.ObjectReady{Key: key, Data: data, Err: err}
		},
		func(err error) events.Event { return events.ObjectReady{Key: key, Err: err} },
	)
}

func (c *Client) GetRange(key string, rng storage.ByteRange) {
	c.dispatch("get range", true,
		func(ctx context.Context) events.Event {
			data, err := c.read(ctx, key, &rng)
			return events.ObjectReady{Key: key, Range: &rng, Data: data, Err: err}
		},
		func(err error) events.Event { return events.ObjectReady{Key: key, Range: &rng, Err: err} },
	)
}

func (c *Client) read(ctx context.Context, key string, rng *storage.ByteRange) ([]byte, error) {
	body, err := c.backend.Read(ctx, key, rng)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, storage.NewOpError("read", key, storage.ErrTransport, err)
	}
	return data, nil
}

func (c *Client) Delete(key string) {
	keys := []string{key}
	c.dispatch("delete", true,
		func(ctx context.Context) events.Event {
			return events.Deleted{Keys: keys, Err: c.backend.Delete(ctx, key)}
		},
		func(err error) events.Event { return events.Deleted{Keys: keys, Err: err} },
	)
}

// DeleteMany is best effort: every key is attempted and the event lists each key's result
func (c *Client) DeleteMany(keys []string) {
	keys = append([]string(nil), keys...)
	c.dispatch("delete many", true,
		func(ctx context.Context) events.Event {
			results, err := c.backend.DeleteMany(ctx, keys)
			return events.Deleted{Keys: keys, Results: results, Err: err}
		},
		func(err error) events.Event { return events.Deleted{Keys: keys, Err: err} },
	)
}

// List fetches one page. The request is echoed in the event so the listing can drop stale pages
func (c *Client) List(req storage.ListOptions) {
	c.dispatch("list", true,
		func(ctx context.Context) events.Event {
			page, err := c.backend.List(ctx, req)
			return events.ListingReady{Request: req, Page: page, Err: err}
		},
		func(err error) events.Event { return events.ListingReady{Request: req, Err: err} },
	)
}

// CreateFolder writes the zero-byte marker object for path
func (c *Client) CreateFolder(path string) {
	key := storage.FolderKey(path)
	c.dispatch("create folder", true,
		func(ctx context.Context) events.Event {
			if key == "" {
				return events.FolderCreated{Path: path, Err: storage.NewOpError("create folder", path, storage.ErrInvalidKey, nil)}
			}
			err := c.backend.Write(ctx, key, bytes.NewReader(nil), 0, storage.WriteOptions{ContentType: FolderContentType})
			return events.FolderCreated{Path: key, Err: err}
		},
		func(err error) events.Event { return events.FolderCreated{Path: key, Err: err} },
	)
}

// Copy copies src to dst. A move deletes src only after the copy succeeded; if that delete fails
// both objects exist and the event carries ErrMoveIncomplete
func (c *Client) Copy(src, dst string, isMove bool) {
	c.dispatch("copy", true,
		func(ctx context.Context) events.Event {
			return events.CopyDone{Src: src, Dest: dst, IsMove: isMove, Err: c.copy(ctx, src, dst, isMove)}
		},
		func(err error) events.Event { return events.CopyDone{Src: src, Dest: dst, IsMove: isMove, Err: err} },
	)
}

func (c *Client) copy(ctx context.Context, src, dst string, isMove bool) error {
	if src == dst || src == "" || dst == "" {
		return storage.NewOpError("copy", src, storage.ErrInvalidKey, fmt.Errorf("cannot copy %q to %q", src, dst))
	}
	if err := c.backend.Copy(ctx, src, dst); err != nil {
		return err
	}
	if !isMove {
		return nil
	}
	if err := c.backend.Delete(ctx, src); err != nil {
		c.logger.Warn("Move left the source in place", "src", src, "dest", dst, "error", err)
		return fmt.Errorf("move %s to %s: %w: %w", src, dst, storage.ErrMoveIncomplete, err)
	}
	return nil
}

// Presign signs a GET URL valid for ttlSeconds
func (c *Client) Presign(key string, ttlSeconds uint64) {
	ttl, err := PresignTTL(ttlSeconds)
	if err != nil {
		c.events.Send(events.PresignReady{Key: key, Err: storage.NewOpError("presign", key, storage.ErrPresign, err)})
		return
	}

	c.dispatch("presign", true,
		func(ctx context.Context) events.Event {
			expires := c.now().Add(ttl)
			url, err := c.backend.Presign(ctx, key, ttl)
			if err != nil {
				err = storage.NewOpError("presign", key, storage.ErrPresign, err)
			}
			return events.PresignReady{Key: key, URL: url, ExpiresAt: expires, Err: err}
		},
		func(err error) events.Event { return events.PresignReady{Key: key, Err: err} },
	)
}

// PresignTTL converts seconds to a duration, refusing zero, overflow and anything past the 7 day limit
func PresignTTL(ttlSeconds uint64) (time.Duration, error) {
	if ttlSeconds == 0 {
		return 0, fmt.Errorf("ttl must be positive")
	}
	if ttlSeconds > uint64(math.MaxInt64/int64(time.Second)) {
		return 0, fmt.Errorf("ttl of %d seconds overflows", ttlSeconds)
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl > storage.MaxPresignTTL {
		return 0, fmt.Errorf("ttl %s exceeds the maximum of %s", ttl, storage.MaxPresignTTL)
	}
	return ttl, nil
}

func (c *Client) BucketInfo() {
	c.dispatch("bucket info", true,
		func(ctx context.Context) events.Event {
			info, err := c.backend.BucketInfo(ctx)
			if err == nil {
				c.private.Store(info.Private)
			}
			return events.BucketInfoReady{Info: info, Err: err}
		},
		func(err error) events.Event { return events.BucketInfoReady{Err: err} },
	)
}

// --- Transfers ---

// Upload sends localPath into destPrefix. The returned reference identifies the job in progress
// updates and in the final TransferDone event
func (c *Client) Upload(localPath, destPrefix string) transfer.JobRef {
	job := transfer.NewJobRef(transfer.Upload, transfer.UploadKey(destPrefix, localPath))
	c.dispatch("upload", false,
		func(ctx context.Context) events.Event {
			err := c.engine.Upload(ctx, job, localPath, c.sendProgress)
			return events.TransferDone{Job: job, LocalPath: localPath, Err: err}
		},
		func(err error) events.Event { return events.TransferDone{Job: job, LocalPath: localPath, Err: err} },
	)
	return job
}

// Download fetches key into localPath (a file, or a directory to put it in)
func (c *Client) Download(key, localPath string) transfer.JobRef {
	job := transfer.NewJobRef(transfer.Download, key)
	c.dispatch("download", false,
		func(ctx context.Context) events.Event {
			dest, err := c.engine.Download(ctx, job, localPath, c.sendProgress)
			return events.TransferDone{Job: job, LocalPath: dest, Err: err}
		},
		func(err error) events.Event { return events.TransferDone{Job: job, LocalPath: localPath, Err: err} },
	)
	return job
}

func (c *Client) sendProgress(p transfer.Progress) {
	c.progress.Send(p)
}

// dispatch runs op in the background and posts its event. fail builds the event when the task
// cannot run or panics, so every call still produces exactly one event
func (c *Client) dispatch(op string, bounded bool, run func(ctx context.Context) events.Event, fail func(error) events.Event) {
	c.logger.Debug("Starting operation", "op", op)

	started := c.spawner.Go(op, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Operation panicked", "op", op, "panic", r)
				c.events.Send(fail(fmt.Errorf("%w: %s panicked: %v", storage.ErrTransport, op, r)))
			}
		}()

		if bounded && c.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}

		ev := run(ctx)
		if err := events.Err(ev); err != nil {
			c.logger.Error("Operation failed", "op", op, "error", err)
		}
		c.events.Send(ev)
	})

	if !started {
		c.events.Send(fail(fmt.Errorf("%w: client is shutting down", storage.ErrTransport)))
	}
}
