package gcp

import (
	"bucketdeck/pkg/storage"

	gcpstorage "cloud.google.com/go/storage"
)

// Maps GCP SDK object attributes to the domain model
func mapObjectAttributes(attrs *gcpstorage.ObjectAttrs) storage.Object {
	if attrs == nil {
		return storage.Object{}
	}

	obj := storage.Object{
		Key:          attrs.Name,
		Kind:         storage.KindFile,
		Size:         uint64(max(attrs.Size, 0)),
		StorageClass: attrs.StorageClass,
		ETag:         attrs.Etag,
		Owner:        attrs.Owner,
	}
	if !attrs.Updated.IsZero() {
		updated := attrs.Updated
		obj.LastModified = &updated
	}
	return obj
}

func mapPublicAccessPrevention(pap gcpstorage.PublicAccessPrevention) string {
	switch pap {
	case gcpstorage.PublicAccessPreventionEnforced:
		return "Enforced"
	case gcpstorage.PublicAccessPreventionInherited:
		return "Inherited"
	default:
		return "Unknown"
	}
}
