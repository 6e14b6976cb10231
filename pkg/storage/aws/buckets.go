package aws

import (
	"context"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func (s *S3Storage) BucketInfo(ctx context.Context) (storage.BucketInfo, error) {
	s.logger.Debug("Starting S3 DescribeBucket operation", "bucket", s.cfg.Bucket)

	head, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: s.bucket()})
	if err != nil {
		return storage.BucketInfo{}, classify("bucket info", s.cfg.Bucket, err)
	}

	info := storage.BucketInfo{
		Name:       s.cfg.Bucket,
		Service:    s.cfg.Service,
		Location:   awssdk.ToString(head.BucketRegion),
		UsageBytes: -1, // S3 has no cheap usage query; CloudWatch metrics lag a day
		Private:    s.cfg.Private,
	}

	if info.Location == "" {
		loc, err := s.client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: s.bucket()})
		if err != nil {
			s.logger.Warn("Could not retrieve bucket location", "bucket", s.cfg.Bucket, "error", err)
		} else {
			info.Location = string(loc.LocationConstraint)
		}
	}
	if info.Location == "" {
		info.Location = resolveRegion(s.cfg)
	}

	// A failed ACL read leaves the configured privacy hint in place
	acl, err := s.client.GetBucketAcl(ctx, &s3.GetBucketAclInput{Bucket: s.bucket()})
	if err != nil {
		s.logger.Warn("Could not retrieve ACLs for bucket", "bucket", s.cfg.Bucket, "error", err)
	} else {
		info.Private = !grantsArePublic(acl.Grants)
	}

	versioning, err := s.client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: s.bucket()})
	if err != nil {
		s.logger.Warn("Could not retrieve versioning state", "bucket", s.cfg.Bucket, "error", err)
	} else {
		info.Versioning = &storage.Versioning{Enabled: versioning.Status == "Enabled"}
	}

	if s.cfg.Service == common.S3 {
		pab, err := s.client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: s.bucket()})
		if err != nil {
			s.logger.Debug("No public access block for bucket", "bucket", s.cfg.Bucket, "error", err)
			info.PublicAccessPrevention = mapPublicAccessBlock(nil)
		} else {
			info.PublicAccessPrevention = mapPublicAccessBlock(pab.PublicAccessBlockConfiguration)
		}
	}

	return info, nil
}
