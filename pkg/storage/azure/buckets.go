package azure

import (
	"context"
	"net/url"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"
)

func (a *AzureStorage) BucketInfo(ctx context.Context) (storage.BucketInfo, error) {
	a.logger.Debug("Starting Azure GetProperties operation", "container", a.cfg.Bucket)

	props, err := a.container.GetProperties(ctx, nil)
	if err != nil {
		return storage.BucketInfo{}, classify("bucket info", a.cfg.Bucket, err)
	}

	info := storage.BucketInfo{
		Name:       a.cfg.Bucket,
		Service:    common.AzureBlob,
		Location:   a.cfg.Region,
		UsageBytes: -1,
		Labels:     mapMetadata(props.Metadata),
		Private:    accessIsPrivate(props.BlobPublicAccess),
	}
	// Region is not part of container properties; fall back to the account host
	if info.Location == "" {
		if u, err := url.Parse(a.container.URL()); err == nil {
			info.Location = u.Hostname()
		}
	}
	return info, nil
}
