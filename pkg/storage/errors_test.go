package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpErrorMatchesKindAndCause(t *testing.T) {
	err := NewOpError("stat", "a.txt", ErrNotFound, io.ErrUnexpectedEOF)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Equal(t, "stat a.txt: not found: unexpected EOF", err.Error())
}

func TestNewOpErrorKeepsExistingKind(t *testing.T) {
	inner := NewOpError("read", "k", ErrPermission, nil)
	wrapped := fmt.Errorf("preview: %w", inner)

	err := NewOpError("get", "k", ErrTransport, wrapped)
	assert.Same(t, wrapped, err)
	assert.Equal(t, ErrPermission, ErrorKind(err))
}

func TestBatchResult(t *testing.T) {
	assert.NoError(t, BatchResult([]DeleteResult{{Key: "a"}, {Key: "b"}}))

	results := []DeleteResult{
		{Key: "a"},
		{Key: "b", Err: NewOpError("delete", "b", ErrPermission, nil)},
	}
	err := BatchResult(results)
	assert.ErrorIs(t, err, ErrPartialBatch)

	var batch *BatchError
	if assert.True(t, errors.As(err, &batch)) {
		assert.Len(t, batch.Results, 2)
		assert.Equal(t, []DeleteResult{results[1]}, batch.Failed())
	}
	assert.Contains(t, err.Error(), "1 of 2 keys failed (b)")
}

func TestErrorKind(t *testing.T) {
	assert.Nil(t, ErrorKind(nil))
	assert.Nil(t, ErrorKind(errors.New("plain")))
	assert.Equal(t, ErrIO, ErrorKind(fmt.Errorf("upload: %w", ErrIO)))

	move := fmt.Errorf("%w: %w", ErrMoveIncomplete, NewOpError("delete", "src", ErrPermission, nil))
	assert.Equal(t, ErrMoveIncomplete, ErrorKind(move))
	assert.ErrorIs(t, move, ErrPermission)
}

func TestDeleteEachKeepsOrderAndEveryResult(t *testing.T) {
	keys := []string{"a", "b", "c", "d"}
	results, err := DeleteEach(context.Background(), keys, 2, func(ctx context.Context, key string) error {
		if key == "c" {
			return NewOpError("delete", key, ErrNotFound, nil)
		}
		return nil
	})

	assert.ErrorIs(t, err, ErrPartialBatch)
	assert.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, keys[i], r.Key)
	}
	assert.ErrorIs(t, results[2].Err, ErrNotFound)
	assert.NoError(t, results[3].Err)
}
