package minio

import (
	"context"
	"encoding/json"
	"fmt"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	"github.com/minio/minio-go/v7/pkg/policy"
)

func (m *MinioStorage) BucketInfo(ctx context.Context) (storage.BucketInfo, error) {
	m.logger.Debug("Starting DescribeBucket operation", "bucket", m.cfg.Bucket)

	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return storage.BucketInfo{}, classify("bucket info", m.cfg.Bucket, err)
	}
	if !exists {
		return storage.BucketInfo{}, storage.NewOpError("bucket info", m.cfg.Bucket, storage.ErrNotFound, nil)
	}

	info := storage.BucketInfo{
		Name:       m.cfg.Bucket,
		Service:    common.S3Compatible,
		Location:   m.cfg.Region,
		UsageBytes: -1,
		Private:    m.cfg.Private,
	}

	if loc, err := m.client.GetBucketLocation(ctx, m.cfg.Bucket); err != nil {
		m.logger.Warn("Could not retrieve bucket location", "bucket", m.cfg.Bucket, "error", err)
	} else if loc != "" {
		info.Location = loc
	}
	if info.Location == "" {
		info.Location = defaultRegion
	}

	if raw, err := m.client.GetBucketPolicy(ctx, m.cfg.Bucket); err != nil {
		m.logger.Warn("Could not retrieve bucket policy", "bucket", m.cfg.Bucket, "error", err)
	} else if private, err := policyIsPrivate(raw, m.cfg.Bucket); err != nil {
		m.logger.Warn("Could not parse bucket policy", "bucket", m.cfg.Bucket, "error", err)
	} else {
		info.Private = private
	}

	if v, err := m.client.GetBucketVersioning(ctx, m.cfg.Bucket); err != nil {
		m.logger.Warn("Could not retrieve versioning state", "bucket", m.cfg.Bucket, "error", err)
	} else {
		info.Versioning = &storage.Versioning{Enabled: v.Enabled()}
	}

	return info, nil
}

// policyIsPrivate reports whether anonymous users are denied reads on the whole bucket.
// An empty policy means no anonymous access at all
func policyIsPrivate(raw, bucket string) (bool, error) {
	if raw == "" {
		return true, nil
	}
	var p policy.BucketAccessPolicy
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return false, fmt.Errorf("failed to decode bucket policy: %w", err)
	}
	switch policy.GetPolicy(p.Statements, bucket, "") {
	case policy.BucketPolicyReadOnly, policy.BucketPolicyReadWrite:
		return false, nil
	default:
		return true, nil
	}
}
