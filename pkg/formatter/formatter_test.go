package formatter

import (
	"errors"
	"strings"
	"testing"
	"time"

	"bucketdeck/internal/transfer"
	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	"github.com/stretchr/testify/assert"
)

func TestTableAlignsWideCharacters(t *testing.T) {
	table := NewTable([]string{"NAME", "SIZE"})
	table.AddRow([]string{"报告.pdf", "1 KB"})
	table.AddRow([]string{"a.txt", "12 B"})

	lines := strings.Split(table.String(), "\n")
	assert.Len(t, lines, 6)
	assert.Equal(t, "+----------+------+", lines[0])
	assert.Contains(t, lines[3], "| 报告.pdf | 1 KB |")
	assert.Contains(t, lines[4], "| a.txt    | 12 B |")
}

func TestTableAlignmentAndTruncation(t *testing.T) {
	table := NewTable([]string{"KEY", "SIZE", "NOTE"}).AlignRight(1).Truncate(2, 6)
	table.AddRow([]string{"a", "5 B", "a very long note"})
	table.AddRow([]string{"b"})

	lines := strings.Split(table.String(), "\n")
	assert.Equal(t, "| a   |  5 B | a ver… | ", lines[3])
	assert.Equal(t, "| b   |      |        | ", lines[4])
}

func TestEmptyTable(t *testing.T) {
	assert.Equal(t, "", NewTable(nil).String())
}

func TestFormatListing(t *testing.T) {
	modified := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := NewStorageFormatter().FormatListing([]storage.Object{
		storage.NewFolder("docs/"),
		{Key: "readme.md", Size: 2048, LastModified: &modified, StorageClass: "STANDARD"},
	})

	assert.Contains(t, out, "| docs/ ")
	assert.Contains(t, out, "| readme.md ")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "STANDARD")
	assert.Contains(t, out, modified.Local().Format(dateLayout))
}

func TestFormatBucketDetails(t *testing.T) {
	out := NewStorageFormatter().FormatBucketDetails(storage.BucketInfo{
		Name:       "media",
		Service:    common.GCS,
		Location:   "EU",
		UsageBytes: -1,
		Private:    false,
		Versioning: &storage.Versioning{Enabled: true},
		Labels:     map[string]string{"team": "web", "env": "prod"},
	})

	assert.Contains(t, out, "Bucket: media")
	assert.Contains(t, out, "Google Cloud Storage")
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "Public read")
	assert.Contains(t, out, "Enabled")
	assert.NotContains(t, out, "Created On")
	assert.Less(t, strings.Index(out, "env"), strings.Index(out, "team"), "labels are sorted")
}

func TestFormatMetadata(t *testing.T) {
	out := NewStorageFormatter().FormatMetadata(storage.Metadata{Key: "a/b.bin", Size: 1536, ContentType: "application/octet-stream"})

	assert.Contains(t, out, "Object: a/b.bin")
	assert.Contains(t, out, "1.5 KB (1536 bytes)")
	assert.Contains(t, out, "| Last Modified | -")
}

func TestFormatTransfers(t *testing.T) {
	out := NewStorageFormatter().FormatTransfers([]transfer.Job{
		{Ref: transfer.NewJobRef(transfer.Upload, "x/big.iso"), Total: 200, Transferred: 50, Status: transfer.Running, LocalPath: "/tmp/big.iso"},
		{Ref: transfer.NewJobRef(transfer.Download, "y.txt"), Status: transfer.Failed, Err: errors.New("boom")},
	})

	assert.Contains(t, out, " 25.0% of 200 B")
	assert.Contains(t, out, "failed: boom")
	assert.Contains(t, out, "download")
}
