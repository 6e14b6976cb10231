package minio

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"
	"bucketdeck/pkg/storage/s3test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "test-bucket"

func newTestStorage(t *testing.T, srv *s3test.Server) *MinioStorage {
	t.Helper()
	m, err := NewMinioStorage(storage.ClientConfig{
		Service:         common.S3Compatible,
		Endpoint:        srv.URL,
		Bucket:          testBucket,
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
		AddressingStyle: storage.AddressingPath,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return m
}

func listAll(t *testing.T, m *MinioStorage, opts storage.ListOptions) (names []string, pages []storage.ListingPage) {
	t.Helper()
	for {
		page, err := m.List(context.Background(), opts)
		require.NoError(t, err)
		pages = append(pages, page)
		for _, p := range page.CommonPrefixes {
			names = append(names, p.Key)
		}
		for _, o := range page.Objects {
			names = append(names, o.Key)
		}
		if !page.HasMore() {
			return names, pages
		}
		require.Less(t, len(pages), 10, "listing never ended")
		opts.ContinuationToken = page.NextContinuationToken
	}
}

func TestListKeepsFoldersAcrossPages(t *testing.T) {
	srv := s3test.NewServer(t, testBucket)
	srv.AddObject("photos/2023/x.png", "x")
	srv.AddObject("photos/a.png", "a")
	srv.AddObject("photos/z.png", "z")
	m := newTestStorage(t, srv)

	names, pages := listAll(t, m, storage.ListOptions{Prefix: "photos/", Delimiter: "/", MaxKeys: 2})

	assert.ElementsMatch(t, []string{"photos/2023/", "photos/a.png", "photos/z.png"}, names)
	require.Len(t, pages, 2)
	assert.Len(t, pages[0].CommonPrefixes, 1)
	assert.Len(t, pages[0].Objects, 1)
	assert.True(t, pages[0].IsTruncated)
	assert.False(t, pages[1].IsTruncated)
}

func TestListFolderMarkerAndRecursive(t *testing.T) {
	srv := s3test.NewServer(t, testBucket)
	srv.AddObject("docs/", "")
	srv.AddObject("docs/a.txt", "aaa")
	srv.AddObject("docs/sub/b.txt", "b")
	m := newTestStorage(t, srv)

	names, _ := listAll(t, m, storage.ListOptions{Prefix: "docs/", Delimiter: "/"})
	assert.ElementsMatch(t, []string{"docs/sub/", "docs/a.txt"}, names, "the folder's own marker is not listed")

	names, _ = listAll(t, m, storage.ListOptions{Prefix: "docs/sub/", MaxKeys: 1})
	assert.Equal(t, []string{"docs/sub/b.txt"}, names)

	page, err := m.List(context.Background(), storage.ListOptions{Prefix: "docs/a"})
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
	assert.Equal(t, uint64(3), page.Objects[0].Size)
}

func TestListCancelledContext(t *testing.T) {
	srv := s3test.NewServer(t, testBucket)
	m := newTestStorage(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.List(ctx, storage.ListOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, srv.ListRequests())
}

func TestDeleteManyReportsEachKey(t *testing.T) {
	srv := s3test.NewServer(t, testBucket)
	for _, k := range []string{"a", "b", "c"} {
		srv.AddObject(k, k)
	}
	srv.FailDelete("b", "AccessDenied")
	m := newTestStorage(t, srv)

	results, err := m.DeleteMany(context.Background(), []string{"a", "b", "c"})

	var batchErr *storage.BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, storage.ErrPermission)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, []string{"b"}, srv.Keys())
}

func TestWriteStreamsFromPipe(t *testing.T) {
	srv := s3test.NewServer(t, testBucket)
	m := newTestStorage(t, srv)

	body := "hello from a pipe"
	pr, pw := io.Pipe()
	go func() {
		_, _ = io.WriteString(pw, body)
		_ = pw.Close()
	}()

	err := m.Write(context.Background(), "docs/hello.txt", pr, int64(len(body)), storage.WriteOptions{ContentType: "text/plain"})
	require.NoError(t, err)

	got, ok := srv.Object("docs/hello.txt")
	require.True(t, ok)
	assert.Equal(t, body, string(got))
}

func TestReadMissingKey(t *testing.T) {
	srv := s3test.NewServer(t, testBucket)
	srv.AddObject("present.txt", "data")
	m := newTestStorage(t, srv)

	_, err := m.Read(context.Background(), "missing.txt", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rc, err := m.Read(context.Background(), "present.txt", nil)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}
