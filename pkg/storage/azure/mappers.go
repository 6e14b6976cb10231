package azure

import (
	"strings"

	"bucketdeck/pkg/storage"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

func mapBlobItem(item *container.BlobItem) storage.Object {
	obj := storage.Object{
		Key:  deref(item.Name),
		Kind: storage.KindFile,
	}
	if p := item.Properties; p != nil {
		obj.Size = uint64(max(deref(p.ContentLength), 0))
		obj.LastModified = p.LastModified
		obj.Owner = deref(p.Owner)
		if p.ETag != nil {
			obj.ETag = strings.Trim(string(*p.ETag), `"`)
		}
		if p.AccessTier != nil {
			obj.StorageClass = string(*p.AccessTier)
		}
	}
	return obj
}

// A container with any public access level lets anonymous users read blobs
func accessIsPrivate(access *container.PublicAccessType) bool {
	return access == nil || *access == ""
}

func mapMetadata(md map[string]*string) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = deref(v)
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
