package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"bucketdeck/pkg/common"
)

const (
	// DefaultDelimiter groups keys into folders
	DefaultDelimiter = "/"
	DefaultPageSize  = 100
)

type ObjectKind int

const (
	KindFile ObjectKind = iota
	KindFolder
)

func (k ObjectKind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// Object is one entry of a listing. Folders are synthesized from common prefixes and never stored
type Object struct {
	Key          string
	Kind         ObjectKind
	Size         uint64
	LastModified *time.Time
	ETag         string
	StorageClass string
	Owner        string

	// Selected is the UI multi-select flag; the core never reads it
	Selected bool
	// URL is filled in after a presign
	URL string
}

// NewFolder synthesizes a folder entry for a common prefix
func NewFolder(prefix string) Object {
	return Object{Key: prefix, Kind: KindFolder}
}

func (o Object) IsFolder() bool {
	return o.Kind == KindFolder
}

// Name returns the last path element, keeping the trailing slash of folders
func (o Object) Name() string {
	trimmed := strings.TrimSuffix(o.Key, DefaultDelimiter)
	if idx := strings.LastIndex(trimmed, DefaultDelimiter); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if o.IsFolder() {
		return trimmed + DefaultDelimiter
	}
	return trimmed
}

// ListOptions is one listing request
type ListOptions struct {
	Prefix            string
	Delimiter         string
	ContinuationToken string
	MaxKeys           int

	// Generation tags the request so its answer can be told apart from an identical earlier
	// request. Backends ignore it
	Generation uint64
}

// ListingPage is one page of a listing. An empty NextContinuationToken is the only end-of-listing signal
type ListingPage struct {
	Prefix      string
	Delimiter   string
	StartAfter  string
	MaxKeys     int
	IsTruncated bool

	NextContinuationToken string

	Objects        []Object
	CommonPrefixes []Object
}

// NewListingPage echoes the request and drops any object whose key ends with the delimiter;
// those are zero-byte folder markers already represented by a common prefix
func NewListingPage(opts ListOptions, objects []Object, prefixes []string, nextToken string) ListingPage {
	page := ListingPage{
		Prefix:                opts.Prefix,
		Delimiter:             opts.Delimiter,
		StartAfter:            opts.ContinuationToken,
		MaxKeys:               opts.MaxKeys,
		IsTruncated:           nextToken != "",
		NextContinuationToken: nextToken,
		Objects:               make([]Object, 0, len(objects)),
		CommonPrefixes:        make([]Object, 0, len(prefixes)),
	}

	for _, obj := range objects {
		if IsFolderMarker(obj.Key, opts.Delimiter) {
			continue
		}
		obj.Kind = KindFile
		page.Objects = append(page.Objects, obj)
	}
	for _, p := range prefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, NewFolder(p))
	}
	return page
}

func (p ListingPage) HasMore() bool {
	return p.NextContinuationToken != ""
}

// IsFolderMarker reports whether key is a folder placeholder object
func IsFolderMarker(key, delimiter string) bool {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return strings.HasSuffix(key, delimiter)
}

// FolderKey normalizes a folder path so it ends with exactly one delimiter
func FolderKey(p string) string {
	p = strings.TrimLeft(p, DefaultDelimiter)
	if p == "" {
		return ""
	}
	return strings.TrimRight(p, DefaultDelimiter) + DefaultDelimiter
}

// ParentPrefix returns the folder containing key ("" for the root)
func ParentPrefix(key string) string {
	dir := path.Dir(strings.TrimSuffix(key, DefaultDelimiter))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir + DefaultDelimiter
}

// Metadata is the result of a stat
type Metadata struct {
	Key          string
	Size         uint64
	ContentType  string
	LastModified *time.Time
	ETag         string
	StorageClass string
}

// ByteRange selects part of an object. Length 0 means "to the end"
type ByteRange struct {
	Offset uint64
	Length uint64
}

// HTTPHeader renders the range as an HTTP Range header value
func (r ByteRange) HTTPHeader() string {
	if r.Length == 0 {
		return fmt.Sprintf("bytes=%d-", r.Offset)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Offset, r.Offset+r.Length-1)
}

// End returns the inclusive last byte, or -1 when the range is open ended
func (r ByteRange) End() int64 {
	if r.Length == 0 {
		return -1
	}
	return int64(r.Offset + r.Length - 1)
}

// WriteOptions carries optional attributes for a write
type WriteOptions struct {
	ContentType string
}

type Bucket = BucketInfo

type BucketInfo struct {
	Name         string
	Service      common.ServiceType
	Location     string
	StorageClass string
	CreatedAt    time.Time
	// A value of -1 indicates that the usage is unknown or could not be retrieved
	UsageBytes int64
	Labels     map[string]string

	// Private is false when anonymous users can read objects
	Private                bool
	Versioning             *Versioning
	PublicAccessPrevention string
}

type Versioning struct {
	Enabled bool
}

func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "N/A"
	}
	if bytes == 0 {
		return "0 B"
	}

	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	sizes := []string{"KB", "MB", "GB", "TB", "PB", "EB"}
	if exp >= len(sizes) {
		return fmt.Sprintf("%d B", bytes) // Fallback if extremely large
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), sizes[exp])
}
