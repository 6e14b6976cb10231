package events

import (
	"time"

	"bucketdeck/internal/transfer"
	"bucketdeck/pkg/storage"
)

// Event is the closed set of completions the core posts to the UI loop.
// Transfer progress is not an Event; it travels on its own queue
type Event interface {
	isEvent()
}

// ListingReady answers one list request. Request echoes what was asked so stale pages can be dropped
type ListingReady struct {
	Request storage.ListOptions
	Page    storage.ListingPage
	Err     error
}

// Deleted answers Delete and DeleteMany. Results is set for batches
type Deleted struct {
	Keys    []string
	Results []storage.DeleteResult
	Err     error
}

type FolderCreated struct {
	Path string
	Err  error
}

type MetadataReady struct {
	Key      string
	Metadata storage.Metadata
	Err      error
}

// ObjectReady carries a whole object, or the requested range of it
type ObjectReady struct {
	Key   string
	Range *storage.ByteRange
	Data  []byte
	Err   error
}

type BucketInfoReady struct {
	Info storage.BucketInfo
	Err  error
}

// CopyDone reports a copy or a move. For a move whose delete failed, Err is ErrMoveIncomplete
type CopyDone struct {
	Src    string
	Dest   string
	IsMove bool
	Err    error
}

type PresignReady struct {
	Key       string
	URL       string
	ExpiresAt time.Time
	Err       error
}

// TransferDone completes a job; zero-byte transfers produce no progress before it
type TransferDone struct {
	Job       transfer.JobRef
	LocalPath string
	Err       error
}

type NavKind int

const (
	NavBack NavKind = iota
	NavForward
	NavGoTo
)

func (k NavKind) String() string {
	switch k {
	case NavBack:
		return "back"
	case NavForward:
		return "forward"
	default:
		return "goto"
	}
}

// NavigationRequested is posted by the front end itself; Path is only used by NavGoTo
type NavigationRequested struct {
	Kind NavKind
	Path string
}

func (ListingReady) isEvent()        {}
func (Deleted) isEvent()             {}
func (FolderCreated) isEvent()       {}
func (MetadataReady) isEvent()       {}
func (ObjectReady) isEvent()         {}
func (BucketInfoReady) isEvent()     {}
func (CopyDone) isEvent()            {}
func (PresignReady) isEvent()        {}
func (TransferDone) isEvent()        {}
func (NavigationRequested) isEvent() {}

// Err returns the failure carried by e, if any
func Err(e Event) error {
	switch ev := e.(type) {
	case ListingReady:
		return ev.Err
	case Deleted:
		return ev.Err
	case FolderCreated:
		return ev.Err
	case MetadataReady:
		return ev.Err
	case ObjectReady:
		return ev.Err
	case BucketInfoReady:
		return ev.Err
	case CopyDone:
		return ev.Err
	case PresignReady:
		return ev.Err
	case TransferDone:
		return ev.Err
	default:
		return nil
	}
}
