package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bucketdeck/internal/metrics"
	"bucketdeck/pkg/storage"

	"golang.org/x/sync/semaphore"
)

// DefaultBufferSize is the size of the single buffer each transfer reuses
const DefaultBufferSize = storage.DefaultBufferSize

// Engine streams bytes between local files and a Backend with one fixed-size buffer per transfer.
// Transfers are never retried
type Engine struct {
	backend    storage.Backend
	bufferSize int
	limit      *semaphore.Weighted
	metrics    *metrics.TransferMetrics
	logger     *slog.Logger
}

type Option func(*Engine)

func WithBufferSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.bufferSize = size
		}
	}
}

// WithConcurrencyLimit caps the number of transfers moving bytes at once. Zero means no cap
func WithConcurrencyLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithMetrics(m *metrics.TransferMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(backend storage.Backend, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		backend:    backend,
		bufferSize: DefaultBufferSize,
		logger:     logger.With("component", "transfer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) BufferSize() int {
	return e.bufferSize
}

// UploadKey is the object key a local file gets when uploaded into destPrefix
func UploadKey(destPrefix, localPath string) string {
	return storage.FolderKey(destPrefix) + filepath.Base(localPath)
}

// Upload copies localPath to job.Key. The local file size is the total; a file that changes
// size while uploading fails the transfer
func (e *Engine) Upload(ctx context.Context, job JobRef, localPath string, sink Sink) (err error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return storage.NewOpError("upload", localPath, storage.ErrIO, err)
	}
	if info.IsDir() {
		return storage.NewOpError("upload", localPath, storage.ErrIO, errors.New("is a directory"))
	}

	file, err := os.Open(localPath)
	if err != nil {
		return storage.NewOpError("upload", localPath, storage.ErrIO, err)
	}
	defer file.Close()

	release, err := e.acquire(ctx)
	if err != nil {
		return storage.NewOpError("upload", job.Key, storage.ErrTransport, err)
	}
	defer release()

	total := uint64(info.Size())
	done := e.track(job, total)
	defer func() { done(err) }()

	pr, pw := io.Pipe()
	pumped := make(chan copyResult, 1)
	go func() {
		res := e.copyChunks(ctx, pw, io.LimitReader(file, info.Size()), job, total, sink)
		if res.readErr != nil {
			pw.CloseWithError(res.readErr)
		} else {
			pw.Close()
		}
		pumped <- res
	}()

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	writeErr := e.backend.Write(ctx, job.Key, pr, info.Size(), storage.WriteOptions{ContentType: contentType})
	// Unblocks the pump if the backend returned without draining the pipe
	pr.CloseWithError(io.ErrClosedPipe)
	res := <-pumped

	switch {
	case ctx.Err() != nil:
		return storage.NewOpError("upload", job.Key, storage.ErrTransport, ctx.Err())
	case res.readErr != nil:
		return storage.NewOpError("upload", localPath, storage.ErrIO, res.readErr)
	case writeErr != nil:
		return storage.NewOpError("upload", job.Key, storage.ErrTransport, writeErr)
	case res.writeErr != nil:
		return storage.NewOpError("upload", job.Key, storage.ErrTransport, res.writeErr)
	case res.written != total:
		return storage.NewOpError("upload", localPath, storage.ErrIO,
			fmt.Errorf("file changed during upload: read %d of %d bytes", res.written, total))
	}
	return nil
}

// Download copies job.Key to localPath and returns the file actually written. A localPath that is
// an existing directory, or ends with a separator, receives the object's base name. Parent
// directories are created. A failed download leaves whatever was written in place
func (e *Engine) Download(ctx context.Context, job JobRef, localPath string, sink Sink) (dest string, err error) {
	meta, err := e.backend.Stat(ctx, job.Key)
	if err != nil {
		return "", storage.NewOpError("download", job.Key, storage.ErrTransport, err)
	}

	dest = ResolveDownloadPath(job.Key, localPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return dest, storage.NewOpError("download", dest, storage.ErrIO, err)
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return dest, storage.NewOpError("download", job.Key, storage.ErrTransport, err)
	}
	defer release()

	done := e.track(job, meta.Size)
	defer func() { done(err) }()

	body, err := e.backend.Read(ctx, job.Key, nil)
	if err != nil {
		return dest, storage.NewOpError("download", job.Key, storage.ErrTransport, err)
	}
	defer body.Close()

	file, err := os.Create(dest)
	if err != nil {
		return dest, storage.NewOpError("download", dest, storage.ErrIO, err)
	}

	res := e.copyChunks(ctx, file, body, job, meta.Size, sink)
	closeErr := file.Close()

	switch {
	case res.readErr != nil:
		return dest, storage.NewOpError("download", job.Key, storage.ErrTransport, res.readErr)
	case res.writeErr != nil:
		return dest, storage.NewOpError("download", dest, storage.ErrIO, res.writeErr)
	case closeErr != nil:
		return dest, storage.NewOpError("download", dest, storage.ErrIO, closeErr)
	case res.written != meta.Size:
		return dest, storage.NewOpError("download", job.Key, storage.ErrTransport,
			fmt.Errorf("short body: got %d of %d bytes", res.written, meta.Size))
	}
	return dest, nil
}

// ResolveDownloadPath maps a destination argument to a file path
func ResolveDownloadPath(key, localPath string) string {
	name := path.Base(strings.TrimSuffix(key, storage.DefaultDelimiter))
	if localPath == "" {
		return name
	}
	if strings.HasSuffix(localPath, string(os.PathSeparator)) || strings.HasSuffix(localPath, "/") {
		return filepath.Join(localPath, name)
	}
	if info, err := os.Stat(localPath); err == nil && info.IsDir() {
		return filepath.Join(localPath, name)
	}
	return localPath
}

type copyResult struct {
	written  uint64
	readErr  error
	writeErr error
}

// copyChunks fills the buffer completely before each write, so every chunk except the last is
// exactly one buffer long and a transfer of N bytes emits ceil(N/B) progress events
func (e *Engine) copyChunks(ctx context.Context, dst io.Writer, src io.Reader, job JobRef, total uint64, sink Sink) copyResult {
	buf := make([]byte, e.bufferSize)
	var res copyResult

	for {
		if err := ctx.Err(); err != nil {
			res.readErr = err
			return res
		}

		n, err := io.ReadFull(src, buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				res.writeErr = werr
				return res
			}
			res.written += uint64(n)
			e.metrics.AddBytes(job.Direction.String(), n)
			if sink != nil {
				sink(Progress{Job: job, Total: total, Transferred: res.written})
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return res
		default:
			res.readErr = err
			return res
		}
	}
}

func (e *Engine) acquire(ctx context.Context) (func(), error) {
	if e.limit == nil {
		return func() {}, nil
	}
	if err := e.limit.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { e.limit.Release(1) }, nil
}

func (e *Engine) track(job JobRef, total uint64) func(error) {
	start := time.Now()
	direction := job.Direction.String()
	e.metrics.Started(direction)
	e.logger.Debug("Transfer started", "direction", direction, "key", job.Key, "total", total, "job", job.ID)

	return func(err error) {
		elapsed := time.Since(start)
		e.metrics.Finished(direction, err, elapsed)
		if err != nil {
			e.logger.Warn("Transfer failed", "direction", direction, "key", job.Key, "job", job.ID, "error", err)
			return
		}
		e.logger.Debug("Transfer finished", "direction", direction, "key", job.Key, "job", job.ID, "elapsed", elapsed)
	}
}
