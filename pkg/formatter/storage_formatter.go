package formatter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"bucketdeck/internal/transfer"
	"bucketdeck/pkg/storage"
)

const (
	dateLayout = "2006-01-02 15:04"
	// statusWidth keeps long transfer errors from stretching the table
	statusWidth = 60
)

type StorageFormatter struct{}

func NewStorageFormatter() *StorageFormatter {
	return &StorageFormatter{}
}

// FormatListing renders folders and files as a table; folders show no size
func (f *StorageFormatter) FormatListing(entries []storage.Object) string {
	table := NewTable([]string{"NAME", "SIZE", "LAST MODIFIED", "STORAGE CLASS"}).AlignRight(1)

	for _, obj := range entries {
		size, modified := "-", "-"
		if !obj.IsFolder() {
			size = storage.FormatBytes(int64(obj.Size))
			modified = formatTime(obj.LastModified, dateLayout)
		}
		table.AddRow([]string{obj.Name(), size, modified, obj.StorageClass})
	}

	return table.String()
}

func (f *StorageFormatter) FormatMetadata(meta storage.Metadata) string {
	var sb strings.Builder

	sb.WriteString(FormatHeaderSection("Object: " + meta.Key))
	sb.WriteString("\n\n")

	table := NewTable([]string{"Parameter", "Value"})
	table.AddRow([]string{"Size", fmt.Sprintf("%s (%d bytes)", storage.FormatBytes(int64(meta.Size)), meta.Size)})
	table.AddRow([]string{"Content Type", meta.ContentType})
	table.AddRow([]string{"Last Modified", formatTime(meta.LastModified, time.RFC1123)})
	table.AddRow([]string{"ETag", meta.ETag})
	table.AddRow([]string{"Storage Class", meta.StorageClass})
	sb.WriteString(table.String())

	return sb.String()
}

func (f *StorageFormatter) FormatBucketDetails(bucket storage.BucketInfo) string {
	var result string

	result += FormatHeaderSection("Bucket: " + bucket.Name)
	result += "\n\n"

	result += FormatSectionTitle("Overview")
	result += "\n"

	overviewTable := NewTable([]string{"Parameter", "Value"})

	details := []struct {
		Key   string
		Value string
	}{
		{"Service", bucket.Service.DisplayName()},
		{"Location / Region", bucket.Location},
		{"Storage Class", bucket.StorageClass},
		{"Usage", storage.FormatBytes(bucket.UsageBytes)},
		{"Access", accessLabel(bucket.Private)},
		{"Versioning", versioningLabel(bucket.Versioning)},
		{"Public Access Prevention", bucket.PublicAccessPrevention},
	}
	if !bucket.CreatedAt.IsZero() {
		details = append(details, struct {
			Key   string
			Value string
		}{"Created On", bucket.CreatedAt.Format(time.RFC1123)})
	}

	for _, detail := range details {
		if detail.Value == "" {
			continue
		}
		overviewTable.AddRow([]string{detail.Key, detail.Value})
	}

	result += overviewTable.String()
	result += "\n\n"

	if len(bucket.Labels) > 0 {
		result += FormatSectionTitle("Labels")
		result += "\n"
		keys := make([]string, 0, len(bucket.Labels))
		for k := range bucket.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		labelsTable := NewTable([]string{"Key", "Value"})
		for _, k := range keys {
			labelsTable.AddRow([]string{k, bucket.Labels[k]})
		}
		result += labelsTable.String()
		result += "\n\n"
	}

	return result
}

// FormatTransfers renders the job registry
func (f *StorageFormatter) FormatTransfers(jobs []transfer.Job) string {
	table := NewTable([]string{"DIRECTION", "KEY", "PROGRESS", "STATUS", "LOCAL PATH"}).
		AlignRight(2).
		Truncate(3, statusWidth)

	for _, job := range jobs {
		status := job.Status.String()
		if job.Err != nil {
			status += ": " + job.Err.Error()
		}
		table.AddRow([]string{
			job.Ref.Direction.String(),
			job.Ref.Key,
			fmt.Sprintf("%5.1f%% of %s", job.Rate()*100, storage.FormatBytes(int64(job.Total))),
			status,
			job.LocalPath,
		})
	}

	return table.String()
}

func formatTime(t *time.Time, layout string) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(layout)
}

func accessLabel(private bool) string {
	if private {
		return "Private"
	}
	return "Public read"
}

func versioningLabel(v *storage.Versioning) string {
	switch {
	case v == nil:
		return ""
	case v.Enabled:
		return "Enabled"
	default:
		return "Disabled"
	}
}
