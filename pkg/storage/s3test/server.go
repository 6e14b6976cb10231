// Package s3test serves a single in-memory bucket over the S3 REST protocol so the
// S3-family adapters can be exercised against real SDK requests.
// It implements path-style ListObjectsV2, PutObject, GetObject, HeadObject, DeleteObject and DeleteObjects
package s3test

import (
	"bufio"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	namespace    = "http://s3.amazonaws.com/doc/2006-03-01/"
	lastModified = "2024-05-01T12:00:00.000Z"
	maxKeys      = 1000
)

// Put records one PutObject request as the server received it
type Put struct {
	Key           string
	Body          []byte
	PayloadHash   string
	ContentLength int64
}

type Server struct {
	*httptest.Server
	bucket string

	mu                   sync.Mutex
	objects              map[string][]byte
	failures             map[string]string
	puts                 []Put
	deleteBatches        []int
	listRequests         int
	truncateWithoutToken bool
}

// NewServer starts a server holding bucket and stops it when the test ends
func NewServer(t testing.TB, bucket string) *Server {
	t.Helper()
	s := &Server{
		bucket:   bucket,
		objects:  make(map[string][]byte),
		failures: make(map[string]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) AddObject(key, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = []byte(body)
}

// FailDelete makes DeleteObjects report key as not deleted with the given error code
func (s *Server) FailDelete(key, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = code
}

// TruncateWithoutToken makes truncated listings omit NextContinuationToken, as some
// S3-compatible servers do
func (s *Server) TruncateWithoutToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truncateWithoutToken = true
}

func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Server) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[key]
	return body, ok
}

func (s *Server) Puts() []Put {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.puts)
}

// DeleteBatches returns the number of keys in each DeleteObjects request, in arrival order
func (s *Server) DeleteBatches() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deleteBatches)
}

func (s *Server) ListRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listRequests
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, "/"+s.bucket)
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		writeError(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
		return
	}
	key := strings.TrimPrefix(rest, "/")
	q := r.URL.Query()

	switch {
	case key == "" && r.Method == http.MethodGet && q.Get("list-type") == "2":
		s.listObjects(w, q)
	case key == "" && r.Method == http.MethodPost && q.Has("delete"):
		s.deleteObjects(w, r)
	case key == "":
		writeError(w, http.StatusNotImplemented, "NotImplemented", "bucket operation not supported")
	case r.Method == http.MethodPut:
		s.putObject(w, r, key)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		s.getObject(w, r, key)
	case r.Method == http.MethodDelete:
		s.mu.Lock()
		delete(s.objects, key)
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusNotImplemented, "NotImplemented", "object operation not supported")
	}
}

type listResult struct {
	XMLName               xml.Name `xml:"ListBucketResult"`
	Xmlns                 string   `xml:"xmlns,attr"`
	Name                  string
	Prefix                string
	Delimiter             string `xml:",omitempty"`
	MaxKeys               int
	KeyCount              int
	IsTruncated           bool
	ContinuationToken     string         `xml:",omitempty"`
	NextContinuationToken string         `xml:",omitempty"`
	Contents              []listObject   `xml:"Contents"`
	CommonPrefixes        []commonPrefix `xml:"CommonPrefixes"`
}

type listObject struct {
	Key          string
	LastModified string
	ETag         string
	Size         int
	StorageClass string
}

type commonPrefix struct {
	Prefix string
}

type entry struct {
	name   string
	folder bool
}

func (s *Server) listObjects(w http.ResponseWriter, q url.Values) {
	get := q.Get
	prefix, delimiter := get("prefix"), get("delimiter")

	limit := maxKeys
	if v := get("max-keys"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "InvalidArgument", "max-keys must be a non-negative integer")
			return
		}
		limit = min(n, maxKeys)
	}

	after := get("start-after")
	if token := get("continuation-token"); token != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(token)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidArgument", "The continuation token provided is incorrect")
			return
		}
		after = string(decoded)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listRequests++

	entries := s.entries(prefix, delimiter)
	start := sort.Search(len(entries), func(i int) bool { return entries[i].name > after })
	end := min(start+limit, len(entries))
	page := entries[start:end]

	res := listResult{
		Xmlns:             namespace,
		Name:              s.bucket,
		Prefix:            prefix,
		Delimiter:         delimiter,
		MaxKeys:           limit,
		KeyCount:          len(page),
		IsTruncated:       end < len(entries),
		ContinuationToken: get("continuation-token"),
	}
	if res.IsTruncated && !s.truncateWithoutToken && len(page) > 0 {
		res.NextContinuationToken = base64.RawURLEncoding.EncodeToString([]byte(page[len(page)-1].name))
	}
	for _, e := range page {
		if e.folder {
			res.CommonPrefixes = append(res.CommonPrefixes, commonPrefix{Prefix: e.name})
			continue
		}
		body := s.objects[e.name]
		res.Contents = append(res.Contents, listObject{
			Key:          e.name,
			LastModified: lastModified,
			ETag:         etag(body),
			Size:         len(body),
			StorageClass: "STANDARD",
		})
	}
	writeXML(w, http.StatusOK, res)
}

// entries returns objects and rolled-up folders in key order. Keys under one folder are
// contiguous once sorted, so a folder is emitted once at the position of its first key
func (s *Server) entries(prefix, delimiter string) []entry {
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []entry
	for _, k := range keys {
		if delimiter != "" {
			if i := strings.Index(k[len(prefix):], delimiter); i >= 0 {
				folder := k[:len(prefix)+i+len(delimiter)]
				if n := len(out); n > 0 && out[n-1].name == folder {
					continue
				}
				out = append(out, entry{name: folder, folder: true})
				continue
			}
		}
		out = append(out, entry{name: k})
	}
	return out
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request, key string) {
	hash := r.Header.Get("X-Amz-Content-Sha256")

	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(hash, "STREAMING-") {
		body, err = decodeChunked(r.Body)
	} else {
		body, err = io.ReadAll(r.Body)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}
	if r.ContentLength >= 0 && !strings.HasPrefix(hash, "STREAMING-") && int64(len(body)) != r.ContentLength {
		writeError(w, http.StatusBadRequest, "IncompleteBody", "body does not match Content-Length")
		return
	}

	s.mu.Lock()
	s.objects[key] = body
	s.puts = append(s.puts, Put{Key: key, Body: body, PayloadHash: hash, ContentLength: r.ContentLength})
	s.mu.Unlock()

	w.Header().Set("ETag", etag(body))
	w.WriteHeader(http.StatusOK)
}

// decodeChunked strips aws-chunked framing: "<hex size>;chunk-signature=<sig>\r\n<data>\r\n",
// ending with a zero-size chunk
func decodeChunked(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	var out []byte
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read chunk header: %w", err)
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("bad chunk size %q: %w", sizeHex, err)
		}
		if size == 0 {
			return out, nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, fmt.Errorf("read chunk: %w", err)
		}
		out = append(out, chunk...)
		if _, err := br.Discard(2); err != nil {
			return nil, fmt.Errorf("read chunk trailer: %w", err)
		}
	}
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request, key string) {
	body, ok := s.Object(key)
	if !ok {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeError(w, http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("ETag", etag(body))
	h.Set("Last-Modified", "Wed, 01 May 2024 12:00:00 GMT")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(body)
	}
}

type deleteRequest struct {
	Quiet   bool
	Objects []struct {
		Key string
	} `xml:"Object"`
}

type deleteResult struct {
	XMLName xml.Name        `xml:"DeleteResult"`
	Xmlns   string          `xml:"xmlns,attr"`
	Deleted []deletedObject `xml:"Deleted"`
	Errors  []deleteError   `xml:"Error"`
}

type deletedObject struct {
	Key string
}

type deleteError struct {
	Key     string
	Code    string
	Message string
}

func (s *Server) deleteObjects(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "MalformedXML", err.Error())
		return
	}
	if len(req.Objects) > maxKeys {
		writeError(w, http.StatusBadRequest, "MalformedXML", "too many keys in one request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteBatches = append(s.deleteBatches, len(req.Objects))

	res := deleteResult{Xmlns: namespace}
	for _, obj := range req.Objects {
		if code, ok := s.failures[obj.Key]; ok {
			res.Errors = append(res.Errors, deleteError{Key: obj.Key, Code: code, Message: code + " for " + obj.Key})
			continue
		}
		delete(s.objects, obj.Key)
		if !req.Quiet {
			res.Deleted = append(res.Deleted, deletedObject{Key: obj.Key})
		}
	}
	writeXML(w, http.StatusOK, res)
}

type errorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string
	Message   string
	RequestID string `xml:"RequestId"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeXML(w, status, errorResponse{Code: code, Message: message, RequestID: "s3test"})
}

func writeXML(w http.ResponseWriter, status int, v any) {
	out, err := xml.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Length", strconv.Itoa(len(xml.Header)+len(out)))
	w.WriteHeader(status)
	_, _ = io.WriteString(w, xml.Header)
	_, _ = w.Write(out)
}

func etag(body []byte) string {
	sum := md5.Sum(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
