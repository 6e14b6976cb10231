package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bucketdeck/internal/events"
	"bucketdeck/internal/listing"
	"bucketdeck/internal/transfer"
	"bucketdeck/pkg/storage"
)

const (
	// PreviewLimit is the largest object fetched whole for a preview
	PreviewLimit = 2 << 20
	// SniffLength is how much of a larger object is fetched to guess its type
	SniffLength = 512
)

// Dispatcher is the part of the client facade the browser drives
type Dispatcher interface {
	List(req storage.ListOptions)
	Meta(key string)
	Get(key string)
	GetRange(key string, rng storage.ByteRange)
	Delete(key string)
	DeleteMany(keys []string)
	CreateFolder(path string)
	Copy(src, dst string, isMove bool)
	Presign(key string, ttlSeconds uint64)
	BucketInfo()
	Upload(localPath, destPrefix string) transfer.JobRef
	Download(key, localPath string) transfer.JobRef
	IsPrivate() bool
	Events() *events.Queue[events.Event]
	Progress() *events.Queue[transfer.Progress]
}

// Toast is a one-shot message. Errors stay until the next successful operation or Dismiss
type Toast struct {
	Message string
	Err     error
	At      time.Time
}

func (t Toast) IsError() bool {
	return t.Err != nil
}

// Preview is the last fetched object body. Partial is set when only the first bytes were fetched
type Preview struct {
	Key         string
	Data        []byte
	ContentType string
	Partial     bool
	Err         error
}

// State is everything the browser shows. It belongs to the UI loop: background work reaches it
// only through Poll, so none of it is locked
type State struct {
	dispatcher Dispatcher
	listing    *listing.Listing
	history    *History
	jobs       *transfer.Registry

	toast   *Toast
	preview *Preview
	meta    *events.MetadataReady
	info    *storage.BucketInfo
	cursor  int

	now    func() time.Time
	logger *slog.Logger
}

func NewState(dispatcher Dispatcher, pageSize int, logger *slog.Logger) *State {
	return &State{
		dispatcher: dispatcher,
		listing:    listing.New(pageSize),
		history:    NewHistory(""),
		jobs:       transfer.NewRegistry(),
		now:        time.Now,
		logger:     logger.With("component", "browser"),
	}
}

// --- Navigation ---

// Open shows path and records it in history
func (s *State) Open(path string) {
	path = listing.NormalizePath(path)
	s.history.Visit(path)
	s.load(path, "")
}

// OpenEntry enters a folder, or previews a file
func (s *State) OpenEntry(obj storage.Object) {
	if obj.IsFolder() {
		s.Open(obj.Key)
		return
	}
	s.Preview(obj)
}

// Navigate queues a navigation request; it takes effect on the next Poll like any other event
func (s *State) Navigate(kind events.NavKind, path string) {
	s.dispatcher.Events().Send(events.NavigationRequested{Kind: kind, Path: path})
}

// Up opens the parent folder
func (s *State) Up() {
	s.Navigate(events.NavGoTo, storage.ParentPrefix(s.listing.Path()))
}

func (s *State) Refresh() {
	s.cursor = 0
	s.dispatcher.List(s.listing.Refresh())
}

// SetFilter narrows the current folder to keys starting with filter
func (s *State) SetFilter(filter string) {
	s.load(s.listing.Path(), filter)
}

// LoadMore requests the next page if there is one and nothing is in flight
func (s *State) LoadMore() bool {
	req, ok := s.listing.More()
	if ok {
		s.dispatcher.List(req)
	}
	return ok
}

func (s *State) load(path, filter string) {
	s.cursor = 0
	s.meta = nil
	s.preview = nil
	s.dispatcher.List(s.listing.Start(path, filter))
}

// --- Cursor and selection ---

func (s *State) Entries() []storage.Object {
	return s.listing.Entries()
}

func (s *State) Cursor() int {
	return s.cursor
}

// MoveCursor moves by delta and asks for the next page when the cursor reaches the end
func (s *State) MoveCursor(delta int) {
	n := s.listing.Len()
	if n == 0 {
		s.cursor = 0
		return
	}
	s.cursor = min(max(s.cursor+delta, 0), n-1)
	if s.cursor == n-1 {
		s.LoadMore()
	}
}

// Current returns the entry under the cursor
func (s *State) Current() (storage.Object, bool) {
	entries := s.listing.Entries()
	if s.cursor < 0 || s.cursor >= len(entries) {
		return storage.Object{}, false
	}
	return entries[s.cursor], true
}

func (s *State) ToggleSelected(key string) bool {
	return s.listing.ToggleSelected(key)
}

func (s *State) Selected() []storage.Object {
	return s.listing.Selected()
}

// --- Operations ---

// Preview fetches small objects whole and only the head of large ones
func (s *State) Preview(obj storage.Object) {
	if obj.IsFolder() {
		return
	}
	s.dispatcher.Meta(obj.Key)
	if obj.Size <= PreviewLimit {
		s.dispatcher.Get(obj.Key)
		return
	}
	s.dispatcher.GetRange(obj.Key, storage.ByteRange{Offset: 0, Length: SniffLength})
}

// DeleteSelected deletes every selected entry, or the entry under the cursor when nothing is selected
func (s *State) DeleteSelected() int {
	var keys []string
	for _, obj := range s.listing.Selected() {
		keys = append(keys, obj.Key)
	}
	if len(keys) == 0 {
		if cur, ok := s.Current(); ok {
			keys = []string{cur.Key}
		}
	}

	switch len(keys) {
	case 0:
		return 0
	case 1:
		s.dispatcher.Delete(keys[0])
	default:
		s.dispatcher.DeleteMany(keys)
	}
	return len(keys)
}

func (s *State) CreateFolder(name string) {
	s.dispatcher.CreateFolder(s.listing.Path() + name)
}

func (s *State) Copy(src, dst string, isMove bool) {
	s.dispatcher.Copy(src, dst, isMove)
}

// Presign is only offered for private buckets; public objects are reachable without it
func (s *State) Presign(key string, ttlSeconds uint64) bool {
	if !s.dispatcher.IsPrivate() {
		s.setToast("bucket is public, no signed URL needed", nil)
		return false
	}
	s.dispatcher.Presign(key, ttlSeconds)
	return true
}

func (s *State) LoadBucketInfo() {
	s.dispatcher.BucketInfo()
}

// Upload sends a local file into the current folder
func (s *State) Upload(localPath string) transfer.JobRef {
	job := s.dispatcher.Upload(localPath, s.listing.Path())
	s.jobs.Track(job, localPath)
	return job
}

func (s *State) Download(key, localPath string) transfer.JobRef {
	job := s.dispatcher.Download(key, localPath)
	s.jobs.Track(job, localPath)
	return job
}

// --- Event application ---

// Poll applies everything that arrived since the last call without waiting. Events are taken
// before progress so that all progress sent ahead of a TransferDone is applied before it.
// It returns the number of updates applied
func (s *State) Poll() int {
	evs := s.dispatcher.Events().Drain()

	progress := s.dispatcher.Progress().Drain()
	for _, p := range progress {
		s.jobs.ApplyProgress(p)
	}

	for _, ev := range evs {
		s.apply(ev)
	}
	return len(progress) + len(evs)
}

func (s *State) apply(ev events.Event) {
	switch e := ev.(type) {
	case events.ListingReady:
		if !s.listing.Apply(e.Request, e.Page, e.Err) {
			s.logger.Debug("Dropped stale listing page", "prefix", e.Request.Prefix, "token", e.Request.ContinuationToken)
			return
		}
		s.result("", e.Err)
		s.cursor = min(s.cursor, max(s.listing.Len()-1, 0))

	case events.Deleted:
		switch {
		case e.Err == nil:
			s.result(fmt.Sprintf("deleted %d object(s)", len(e.Keys)), nil)
		case errors.Is(e.Err, storage.ErrPartialBatch):
			failed := 0
			for _, r := range e.Results {
				if r.Err != nil {
					failed++
				}
			}
			s.setToast(fmt.Sprintf("deleted %d of %d object(s)", len(e.Keys)-failed, len(e.Keys)), e.Err)
		default:
			s.result("", e.Err)
		}
		s.Refresh()

	case events.FolderCreated:
		s.result("created "+e.Path, e.Err)
		if e.Err == nil {
			s.Refresh()
		}

	case events.MetadataReady:
		if e.Err == nil {
			meta := e
			s.meta = &meta
		}
		s.result("", e.Err)

	case events.ObjectReady:
		s.preview = &Preview{Key: e.Key, Data: e.Data, Partial: e.Range != nil, Err: e.Err}
		if e.Err == nil {
			s.preview.ContentType = http.DetectContentType(e.Data)
		}
		s.result("", e.Err)

	case events.BucketInfoReady:
		if e.Err == nil {
			info := e.Info
			s.info = &info
		}
		s.result("", e.Err)

	case events.CopyDone:
		verb := "copied"
		if e.IsMove {
			verb = "moved"
		}
		if errors.Is(e.Err, storage.ErrMoveIncomplete) {
			s.setToast(fmt.Sprintf("copied %s to %s but could not delete the source", e.Src, e.Dest), e.Err)
		} else {
			s.result(fmt.Sprintf("%s %s to %s", verb, e.Src, e.Dest), e.Err)
		}
		if e.Err == nil || errors.Is(e.Err, storage.ErrMoveIncomplete) {
			s.Refresh()
		}

	case events.PresignReady:
		if e.Err == nil {
			s.listing.SetURL(e.Key, e.URL)
		}
		s.result(e.URL, e.Err)

	case events.TransferDone:
		s.jobs.Finish(e.Job, e.LocalPath, e.Err)
		s.result(fmt.Sprintf("%s finished", e.Job.Direction), e.Err)
		if e.Err == nil && e.Job.Direction == transfer.Upload && storage.ParentPrefix(e.Job.Key) == s.listing.Path() {
			s.Refresh()
		}

	case events.NavigationRequested:
		s.navigate(e)
	}
}

func (s *State) navigate(e events.NavigationRequested) {
	var (
		path  string
		moved bool
	)
	switch e.Kind {
	case events.NavBack:
		path, moved = s.history.Back()
	case events.NavForward:
		path, moved = s.history.Forward()
	case events.NavGoTo:
		path = listing.NormalizePath(e.Path)
		moved = path != s.history.Current()
		s.history.Visit(path)
	}
	if moved {
		s.load(path, "")
	}
}

// result records the outcome of an operation: failures become an error toast, success clears one
func (s *State) result(message string, err error) {
	if err != nil {
		s.setToast(message, err)
		return
	}
	if s.toast != nil && s.toast.IsError() {
		s.toast = nil
	}
	if message != "" {
		s.setToast(message, nil)
	}
}

func (s *State) setToast(message string, err error) {
	if message == "" && err != nil {
		message = err.Error()
	}
	s.toast = &Toast{Message: message, Err: err, At: s.now()}
}

// --- Accessors ---

func (s *State) Toast() (Toast, bool) {
	if s.toast == nil {
		return Toast{}, false
	}
	return *s.toast, true
}

func (s *State) DismissToast() {
	s.toast = nil
}

func (s *State) Listing() *listing.Listing {
	return s.listing
}

func (s *State) History() *History {
	return s.history
}

func (s *State) Jobs() *transfer.Registry {
	return s.jobs
}

func (s *State) PreviewData() (Preview, bool) {
	if s.preview == nil {
		return Preview{}, false
	}
	return *s.preview, true
}

func (s *State) Metadata() (storage.Metadata, bool) {
	if s.meta == nil {
		return storage.Metadata{}, false
	}
	return s.meta.Metadata, true
}

func (s *State) BucketInfo() (storage.BucketInfo, bool) {
	if s.info == nil {
		return storage.BucketInfo{}, false
	}
	return *s.info, true
}
