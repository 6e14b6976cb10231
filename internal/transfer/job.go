package transfer

import (
	"fmt"

	"github.com/google/uuid"
)

type Direction int

const (
	Upload Direction = iota
	Download
)

func (d Direction) String() string {
	if d == Download {
		return "download"
	}
	return "upload"
}

// JobRef identifies one dispatched transfer. The ID tells apart two transfers of the same key
type JobRef struct {
	ID        uuid.UUID
	Direction Direction
	Key       string
}

func NewJobRef(direction Direction, key string) JobRef {
	return JobRef{ID: uuid.New(), Direction: direction, Key: key}
}

func (r JobRef) String() string {
	return fmt.Sprintf("%s %s (%s)", r.Direction, r.Key, r.ID.String()[:8])
}

// Progress is emitted once per buffer-sized chunk. Transferred never decreases within one job
type Progress struct {
	Job         JobRef
	Total       uint64
	Transferred uint64
}

// Sink receives progress on the transferring goroutine. It must not block for long
type Sink func(Progress)
