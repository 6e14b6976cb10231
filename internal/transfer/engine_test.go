package transfer

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bucketdeck/pkg/storage"
	"bucketdeck/pkg/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTempFile(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)

	p := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p, data
}

type recorder struct {
	events []Progress
}

func (r *recorder) sink(p Progress) {
	r.events = append(r.events, p)
}

func (r *recorder) transferred() []uint64 {
	out := make([]uint64, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Transferred)
	}
	return out
}

func TestUploadSeventeenMiB(t *testing.T) {
	const size = 17 << 20
	local, data := writeTempFile(t, size)
	backend := memory.New("data")
	engine := NewEngine(backend, discardLogger())

	rec := &recorder{}
	job := NewJobRef(Upload, UploadKey("in/", local))
	require.NoError(t, engine.Upload(context.Background(), job, local, rec.sink))

	assert.Equal(t, []uint64{8388608, 16777216, 17825792}, rec.transferred())
	for _, e := range rec.events {
		assert.Equal(t, uint64(size), e.Total)
		assert.Equal(t, job, e.Job)
	}

	rc, err := backend.Read(context.Background(), "in/payload.bin", nil)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

func TestProgressEventCount(t *testing.T) {
	const buf = 64 << 10
	sizes := []int{0, 1, buf - 1, buf, buf + 1, 3 * buf, 5*buf + 17}

	for _, size := range sizes {
		local, _ := writeTempFile(t, size)
		backend := memory.New("data")
		engine := NewEngine(backend, discardLogger(), WithBufferSize(buf))

		up := &recorder{}
		require.NoError(t, engine.Upload(context.Background(), NewJobRef(Upload, "k"), local, up.sink))

		down := &recorder{}
		dest := filepath.Join(t.TempDir(), "out.bin")
		_, err := engine.Download(context.Background(), NewJobRef(Download, "k"), dest, down.sink)
		require.NoError(t, err)

		want := (size + buf - 1) / buf
		for _, rec := range []*recorder{up, down} {
			assert.Len(t, rec.events, want, "size %d", size)
			var last uint64
			for _, e := range rec.events {
				assert.GreaterOrEqual(t, e.Transferred, last)
				last = e.Transferred
			}
			assert.Equal(t, uint64(size), last)
		}
	}
}

func TestDownloadCreatesParentsAndResolvesDirectories(t *testing.T) {
	backend := memory.New("data")
	backend.Put("photos/cat.png", []byte("meow"))
	engine := NewEngine(backend, discardLogger())

	root := t.TempDir()
	dest, err := engine.Download(context.Background(), NewJobRef(Download, "photos/cat.png"), filepath.Join(root, "a", "b")+string(os.PathSeparator), nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a", "b", "cat.png"), dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "meow", string(data))

	dest, err = engine.Download(context.Background(), NewJobRef(Download, "photos/cat.png"), root, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "cat.png"), dest)
}

func TestDownloadMissingObject(t *testing.T) {
	engine := NewEngine(memory.New("data"), discardLogger())
	_, err := engine.Download(context.Background(), NewJobRef(Download, "nope"), t.TempDir(), nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUploadLocalFailures(t *testing.T) {
	engine := NewEngine(memory.New("data"), discardLogger())

	err := engine.Upload(context.Background(), NewJobRef(Upload, "k"), filepath.Join(t.TempDir(), "missing"), nil)
	assert.ErrorIs(t, err, storage.ErrIO)

	err = engine.Upload(context.Background(), NewJobRef(Upload, "k"), t.TempDir(), nil)
	assert.ErrorIs(t, err, storage.ErrIO)
}

type failingBackend struct {
	*memory.Backend
}

func (f failingBackend) Write(ctx context.Context, key string, r io.Reader, size int64, opts storage.WriteOptions) error {
	// Consume one chunk, then give up
	_, _ = io.CopyN(io.Discard, r, 1)
	return storage.NewOpError("write", key, storage.ErrPermission, nil)
}

func TestUploadBackendFailureStopsPump(t *testing.T) {
	local, _ := writeTempFile(t, 256<<10)
	engine := NewEngine(failingBackend{memory.New("data")}, discardLogger(), WithBufferSize(64<<10))

	rec := &recorder{}
	err := engine.Upload(context.Background(), NewJobRef(Upload, "k"), local, rec.sink)
	assert.ErrorIs(t, err, storage.ErrPermission)
	assert.LessOrEqual(t, len(rec.events), 1)
}

func TestConcurrencyLimitHonoursContext(t *testing.T) {
	local, _ := writeTempFile(t, 10)
	engine := NewEngine(memory.New("data"), discardLogger(), WithConcurrencyLimit(1))

	release, err := engine.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = engine.Upload(ctx, NewJobRef(Upload, "k"), local, nil)
	assert.ErrorIs(t, err, storage.ErrTransport)
}

func TestUploadKeyAndResolve(t *testing.T) {
	assert.Equal(t, "a/b/file.txt", UploadKey("a/b", "/tmp/file.txt"))
	assert.Equal(t, "file.txt", UploadKey("", "/tmp/file.txt"))
	assert.Equal(t, "x.bin", ResolveDownloadPath("dir/x.bin", ""))
	assert.True(t, strings.HasSuffix(ResolveDownloadPath("dir/x.bin", "/tmp/out.bin"), "out.bin"))
}
