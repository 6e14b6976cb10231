package browser

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bucketdeck/internal/events"
	"bucketdeck/internal/service"
	"bucketdeck/internal/tasks"
	"bucketdeck/internal/transfer"
	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"
	"bucketdeck/pkg/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newState(t *testing.T, backend *memory.Backend, pageSize int) *State {
	t.Helper()
	return NewState(newClient(t, backend), pageSize, discardLogger())
}

func newClient(t *testing.T, backend *memory.Backend) *service.Client {
	t.Helper()
	cfg := storage.ClientConfig{Service: common.S3Compatible, Bucket: "data", Timeout: time.Second, Private: true}
	client := service.NewClient(backend, cfg, tasks.NewSpawner(context.Background(), discardLogger()), discardLogger(),
		transfer.WithBufferSize(64<<10))
	t.Cleanup(func() { client.Shutdown(time.Second) })
	return client
}

// settle polls until cond holds, the way the UI loop would on every tick
func settle(t *testing.T, s *State, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.Poll()
		return cond()
	}, 5*time.Second, 5*time.Millisecond)
}

func entryKeys(s *State) []string {
	var keys []string
	for _, e := range s.Entries() {
		keys = append(keys, e.Key)
	}
	return keys
}

func seeded() *memory.Backend {
	b := memory.New("data")
	b.Put("photos/", nil)
	b.Put("photos/2023/x.png", []byte("x"))
	b.Put("photos/a.png", []byte("a"))
	b.Put("photos/b.png", []byte("b"))
	b.Put("readme.md", []byte("# hi"))
	return b
}

func TestOpenAndPaginate(t *testing.T) {
	s := newState(t, seeded(), 2)

	s.Open("photos")
	settle(t, s, func() bool { return !s.Listing().Loading() })
	assert.Equal(t, "photos/", s.Listing().Path())

	for s.LoadMore() {
		settle(t, s, func() bool { return !s.Listing().Loading() })
	}
	assert.Equal(t, []string{"photos/2023/", "photos/a.png", "photos/b.png"}, entryKeys(s))
	assert.True(t, s.Listing().Complete())
}

func TestSecondRefreshWinsOverQueuedFirst(t *testing.T) {
	backend := memory.New("data")
	backend.Put("docs/a.txt", []byte("a"))
	backend.Put("docs/b.txt", []byte("b"))
	client := newClient(t, backend)
	s := NewState(client, 10, discardLogger())

	s.Open("docs")
	settle(t, s, func() bool { return !s.Listing().Loading() })
	require.Equal(t, []string{"docs/a.txt", "docs/b.txt"}, entryKeys(s))

	// The first answer is queued but not yet applied when the object goes away
	s.Refresh()
	require.Eventually(t, func() bool { return client.Events().Len() == 1 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, backend.Delete(context.Background(), "docs/a.txt"))
	s.Refresh()
	require.Eventually(t, func() bool { return client.Events().Len() == 2 }, 5*time.Second, 5*time.Millisecond)

	s.Poll()
	assert.False(t, s.Listing().Loading())
	assert.Equal(t, []string{"docs/b.txt"}, entryKeys(s))
}

func TestMoveCursorLoadsMoreAtTheEnd(t *testing.T) {
	s := newState(t, seeded(), 1)
	s.Open("photos/")
	settle(t, s, func() bool { return !s.Listing().Loading() && s.Listing().Len() > 0 })

	for i := 0; i < 10 && !s.Listing().Complete(); i++ {
		s.MoveCursor(1)
		settle(t, s, func() bool { return !s.Listing().Loading() })
	}
	assert.Equal(t, 3, s.Listing().Len())
}

func TestNavigationThroughEvents(t *testing.T) {
	s := newState(t, seeded(), 10)
	s.Open("")
	settle(t, s, func() bool { return !s.Listing().Loading() })
	assert.Equal(t, []string{"photos/", "readme.md"}, entryKeys(s))

	s.OpenEntry(storage.NewFolder("photos/"))
	settle(t, s, func() bool { return !s.Listing().Loading() })
	assert.Equal(t, "photos/", s.History().Current())

	s.Navigate(events.NavBack, "")
	settle(t, s, func() bool { return s.Listing().Path() == "" && !s.Listing().Loading() })
	assert.True(t, s.History().CanForward())

	s.Navigate(events.NavForward, "")
	settle(t, s, func() bool { return s.Listing().Path() == "photos/" && !s.Listing().Loading() })

	s.Navigate(events.NavGoTo, "photos/2023")
	settle(t, s, func() bool { return s.Listing().Path() == "photos/2023/" && !s.Listing().Loading() })
	assert.Equal(t, []string{"photos/2023/x.png"}, entryKeys(s))

	s.Up()
	settle(t, s, func() bool { return s.Listing().Path() == "photos/" && !s.Listing().Loading() })
}

func TestPreviewPolicy(t *testing.T) {
	backend := memory.New("data")
	backend.Put("small.txt", []byte("hello"))
	backend.Put("big.bin", bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, PreviewLimit))
	s := newState(t, backend, 10)

	s.Preview(storage.Object{Key: "small.txt", Size: 5})
	settle(t, s, func() bool { p, ok := s.PreviewData(); return ok && p.Key == "small.txt" })
	p, _ := s.PreviewData()
	assert.False(t, p.Partial)
	assert.Equal(t, "hello", string(p.Data))
	assert.Contains(t, p.ContentType, "text/plain")

	s.Preview(storage.Object{Key: "big.bin", Size: 4 * PreviewLimit})
	settle(t, s, func() bool { p, ok := s.PreviewData(); return ok && p.Key == "big.bin" })
	p, _ = s.PreviewData()
	assert.True(t, p.Partial)
	assert.Len(t, p.Data, SniffLength)

	settle(t, s, func() bool { _, ok := s.Metadata(); return ok })
}

func TestDeleteSelectedUsesBatch(t *testing.T) {
	backend := seeded()
	s := newState(t, backend, 10)
	s.Open("photos/")
	settle(t, s, func() bool { return !s.Listing().Loading() })

	s.ToggleSelected("photos/a.png")
	s.ToggleSelected("photos/b.png")
	assert.Equal(t, 2, s.DeleteSelected())

	settle(t, s, func() bool {
		toast, ok := s.Toast()
		return ok && toast.Message == "deleted 2 object(s)" && !s.Listing().Loading()
	})
	assert.Equal(t, []string{"photos/2023/"}, entryKeys(s))
	assert.NotContains(t, backend.Keys(), "photos/a.png")
}

func TestErrorToastClearsOnNextSuccess(t *testing.T) {
	s := newState(t, seeded(), 10)

	s.Copy("missing", "elsewhere", false)
	settle(t, s, func() bool { toast, ok := s.Toast(); return ok && toast.IsError() })
	toast, _ := s.Toast()
	assert.ErrorIs(t, toast.Err, storage.ErrNotFound)

	s.Open("")
	settle(t, s, func() bool { _, ok := s.Toast(); return !ok && !s.Listing().Loading() })

	s.Copy("missing", "elsewhere", false)
	settle(t, s, func() bool { _, ok := s.Toast(); return ok })
	s.DismissToast()
	_, ok := s.Toast()
	assert.False(t, ok)
}

func TestPresignSetsURLOnEntry(t *testing.T) {
	s := newState(t, seeded(), 10)
	s.Open("")
	settle(t, s, func() bool { return !s.Listing().Loading() })

	assert.True(t, s.Presign("readme.md", 300))
	settle(t, s, func() bool {
		obj, _ := s.Listing().Lookup("readme.md")
		return obj.URL != ""
	})

	s.LoadBucketInfo()
	settle(t, s, func() bool { _, ok := s.BucketInfo(); return ok })
}

func TestPresignRefusedForPublicBucket(t *testing.T) {
	backend := memory.New("data", memory.WithPublicACL())
	s := newState(t, backend, 10)

	s.LoadBucketInfo()
	settle(t, s, func() bool { _, ok := s.BucketInfo(); return ok })
	assert.False(t, s.Presign("k", 60))
}

func TestUploadTracksJobUntilDismissed(t *testing.T) {
	backend := seeded()
	s := newState(t, backend, 10)
	s.Open("photos/")
	settle(t, s, func() bool { return !s.Listing().Loading() })

	local := filepath.Join(t.TempDir(), "c.png")
	require.NoError(t, os.WriteFile(local, make([]byte, 130<<10), 0o644))

	job := s.Upload(local)
	assert.Equal(t, "photos/c.png", job.Key)
	settle(t, s, func() bool {
		j, _ := s.Jobs().Get(transfer.Upload, "photos/c.png")
		return j.Finished()
	})

	j, ok := s.Jobs().Get(transfer.Upload, "photos/c.png")
	require.True(t, ok)
	assert.Equal(t, transfer.Completed, j.Status)
	assert.Equal(t, uint64(130<<10), j.Transferred)
	assert.Equal(t, 1.0, j.Rate())

	settle(t, s, func() bool { _, ok := s.Listing().Lookup("photos/c.png"); return ok })
	assert.Equal(t, 1, s.Jobs().Len(), "completed jobs stay visible")
	assert.Equal(t, 1, s.Jobs().DismissFinished())
}

func TestCreateFolderRefreshes(t *testing.T) {
	s := newState(t, seeded(), 10)
	s.Open("photos/")
	settle(t, s, func() bool { return !s.Listing().Loading() })

	s.CreateFolder("2024")
	settle(t, s, func() bool { _, ok := s.Listing().Lookup("photos/2024/"); return ok })
}
