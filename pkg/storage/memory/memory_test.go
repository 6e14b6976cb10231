package memory

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"bucketdeck/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *Backend {
	b := New("photos-bucket")
	for _, key := range []string{
		"photos/",
		"photos/2023/a.png",
		"photos/2023/b.png",
		"photos/2024/c.png",
		"photos/a.png",
		"photos/b.png",
		"readme.md",
	} {
		b.Put(key, []byte(key))
	}
	return b
}

func keysOf(objs []storage.Object) []string {
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	return keys
}

func TestListGroupsByDelimiter(t *testing.T) {
	ctx := context.Background()
	page, err := seeded().List(ctx, storage.ListOptions{Prefix: "photos/", Delimiter: "/", MaxKeys: 100})
	require.NoError(t, err)

	assert.Equal(t, []string{"photos/2023/", "photos/2024/"}, keysOf(page.CommonPrefixes))
	assert.Equal(t, []string{"photos/a.png", "photos/b.png"}, keysOf(page.Objects))
	assert.False(t, page.HasMore())
}

func TestListPaginatesWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	b := seeded()

	var all []string
	opts := storage.ListOptions{Prefix: "photos/", Delimiter: "/", MaxKeys: 1}
	for pages := 0; pages < 10; pages++ {
		page, err := b.List(ctx, opts)
		require.NoError(t, err)
		all = append(all, keysOf(page.CommonPrefixes)...)
		all = append(all, keysOf(page.Objects)...)
		if !page.HasMore() {
			break
		}
		opts.ContinuationToken = page.NextContinuationToken
	}

	// photos/ itself is a folder marker and is dropped
	assert.Equal(t, []string{"photos/2023/", "photos/2024/", "photos/a.png", "photos/b.png"}, all)
}

func TestListIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := seeded()
	opts := storage.ListOptions{Prefix: "photos/", Delimiter: "/", MaxKeys: 2}

	first, err := b.List(ctx, opts)
	require.NoError(t, err)
	second, err := b.List(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReadRange(t *testing.T) {
	ctx := context.Background()
	b := New("data")
	b.Put("blob", []byte("0123456789"))

	rc, err := b.Read(ctx, "blob", &storage.ByteRange{Offset: 2, Length: 3})
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "234", string(data))

	rc, err = b.Read(ctx, "blob", &storage.ByteRange{Offset: 8, Length: 100})
	require.NoError(t, err)
	data, _ = io.ReadAll(rc)
	assert.Equal(t, "89", string(data))

	_, err = b.Read(ctx, "missing", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWriteCopyDelete(t *testing.T) {
	ctx := context.Background()
	b := New("data")

	require.NoError(t, b.Write(ctx, "a.txt", strings.NewReader("hello"), 5, storage.WriteOptions{ContentType: "text/plain"}))
	err := b.Write(ctx, "short.txt", strings.NewReader("hi"), 5, storage.WriteOptions{})
	assert.ErrorIs(t, err, storage.ErrIO)

	meta, err := b.Stat(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), meta.Size)
	assert.Equal(t, "text/plain", meta.ContentType)

	require.NoError(t, b.Copy(ctx, "a.txt", "b.txt"))
	assert.ErrorIs(t, b.Copy(ctx, "nope", "c.txt"), storage.ErrNotFound)

	results, err := b.DeleteMany(ctx, []string{"a.txt", "b.txt"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Empty(t, b.Keys())
}

func TestPresign(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("data", WithClock(func() time.Time { return fixed }))
	b.Put("a.txt", bytes.Repeat([]byte("x"), 3))

	u, err := b.Presign(ctx, "a.txt", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "memory://data/a.txt?expires=1767229200", u)

	_, err = b.Presign(ctx, "a.txt", 8*24*time.Hour)
	assert.ErrorIs(t, err, storage.ErrPresign)

	info, err := b.BucketInfo(ctx)
	require.NoError(t, err)
	assert.True(t, info.Private)
	assert.Equal(t, int64(3), info.UsageBytes)
}
