package listing

import (
	"bucketdeck/pkg/storage"
)

type State int

const (
	Idle State = iota
	Loading
)

func (s State) String() string {
	if s == Loading {
		return "loading"
	}
	return "idle"
}

// Query builds the first-page request for a folder. filter refines the prefix and is not a folder itself
func Query(path, filter string, pageSize int) storage.ListOptions {
	if pageSize <= 0 {
		pageSize = storage.DefaultPageSize
	}
	return storage.ListOptions{
		Prefix:    NormalizePath(path) + filter,
		Delimiter: storage.DefaultDelimiter,
		MaxKeys:   pageSize,
	}
}

// NormalizePath turns a user or UI path into a folder prefix: no leading slash, one trailing slash, "" for the root
func NormalizePath(path string) string {
	return storage.FolderKey(path)
}

type entryRef struct {
	folder bool
	index  int
}

// Listing accumulates the pages of one folder into a folders-first view.
// It is owned by a single goroutine and only changes through Start, More and Apply
type Listing struct {
	pageSize int
	path     string
	filter   string

	state      State
	pending    storage.ListOptions
	generation uint64

	folders []storage.Object
	files   []storage.Object
	index   map[string]entryRef

	nextToken string
	complete  bool
	pages     int
	err       error
}

func New(pageSize int) *Listing {
	if pageSize <= 0 {
		pageSize = storage.DefaultPageSize
	}
	return &Listing{pageSize: pageSize, index: make(map[string]entryRef)}
}

// Start discards everything accumulated and returns the first-page request to dispatch
func (l *Listing) Start(path, filter string) storage.ListOptions {
	l.path = NormalizePath(path)
	l.filter = filter
	l.folders = nil
	l.files = nil
	l.index = make(map[string]entryRef)
	l.nextToken = ""
	l.complete = false
	l.pages = 0
	l.err = nil

	l.pending = l.issue(Query(l.path, l.filter, l.pageSize))
	return l.pending
}

// Refresh restarts the current folder from its first page
func (l *Listing) Refresh() storage.ListOptions {
	return l.Start(l.path, l.filter)
}

// More returns the next-page request, or false when a page is in flight or the listing is complete
func (l *Listing) More() (storage.ListOptions, bool) {
	req, ok := l.NextQuery()
	if !ok || l.state == Loading {
		return storage.ListOptions{}, false
	}
	l.pending = l.issue(req)
	return l.pending, true
}

// issue stamps req with a fresh generation and marks it in flight
func (l *Listing) issue(req storage.ListOptions) storage.ListOptions {
	l.generation++
	req.Generation = l.generation
	l.state = Loading
	return req
}

// NextQuery previews the next-page request without changing state
func (l *Listing) NextQuery() (storage.ListOptions, bool) {
	if l.complete || l.nextToken == "" {
		return storage.ListOptions{}, false
	}
	req := Query(l.path, l.filter, l.pageSize)
	req.ContinuationToken = l.nextToken
	return req, true
}

// Apply merges the answer to req. Answers to anything but the pending request are stale and
// ignored, which covers pages that arrive after the user navigated elsewhere. Requests are matched
// by generation: two refreshes of one folder ask the same question but only the last answer counts
func (l *Listing) Apply(req storage.ListOptions, page storage.ListingPage, err error) bool {
	if l.state != Loading || req.Generation != l.pending.Generation {
		return false
	}
	l.state = Idle

	if err != nil {
		l.err = err
		return true
	}
	l.err = nil
	l.pages++

	for _, folder := range page.CommonPrefixes {
		l.add(folder, true)
	}
	for _, obj := range page.Objects {
		if storage.IsFolderMarker(obj.Key, req.Delimiter) {
			continue
		}
		l.add(obj, false)
	}

	l.nextToken = page.NextContinuationToken
	l.complete = !page.HasMore()
	return true
}

func (l *Listing) add(obj storage.Object, folder bool) {
	if _, dup := l.index[obj.Key]; dup {
		return
	}
	if folder {
		obj.Kind = storage.KindFolder
		l.index[obj.Key] = entryRef{folder: true, index: len(l.folders)}
		l.folders = append(l.folders, obj)
		return
	}
	l.index[obj.Key] = entryRef{index: len(l.files)}
	l.files = append(l.files, obj)
}

// Entries returns folders then files, each in the order the service returned them
func (l *Listing) Entries() []storage.Object {
	out := make([]storage.Object, 0, len(l.folders)+len(l.files))
	out = append(out, l.folders...)
	return append(out, l.files...)
}

func (l *Listing) Len() int {
	return len(l.folders) + len(l.files)
}

func (l *Listing) entry(key string) *storage.Object {
	ref, ok := l.index[key]
	if !ok {
		return nil
	}
	if ref.folder {
		return &l.folders[ref.index]
	}
	return &l.files[ref.index]
}

// Lookup returns the entry for key
func (l *Listing) Lookup(key string) (storage.Object, bool) {
	e := l.entry(key)
	if e == nil {
		return storage.Object{}, false
	}
	return *e, true
}

func (l *Listing) ToggleSelected(key string) bool {
	e := l.entry(key)
	if e == nil {
		return false
	}
	e.Selected = !e.Selected
	return true
}

func (l *Listing) ClearSelection() {
	for i := range l.folders {
		l.folders[i].Selected = false
	}
	for i := range l.files {
		l.files[i].Selected = false
	}
}

// Selected returns the selected entries in view order
func (l *Listing) Selected() []storage.Object {
	var out []storage.Object
	for _, e := range l.Entries() {
		if e.Selected {
			out = append(out, e)
		}
	}
	return out
}

// SetURL attaches a presigned URL to an entry
func (l *Listing) SetURL(key, url string) bool {
	e := l.entry(key)
	if e == nil {
		return false
	}
	e.URL = url
	return true
}

func (l *Listing) Path() string   { return l.path }
func (l *Listing) Filter() string { return l.filter }
func (l *Listing) State() State   { return l.state }
func (l *Listing) Loading() bool  { return l.state == Loading }
func (l *Listing) Pages() int     { return l.pages }
func (l *Listing) Err() error     { return l.err }
func (l *Listing) Complete() bool { return l.complete }
func (l *Listing) PageSize() int  { return l.pageSize }
