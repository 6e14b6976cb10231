package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	gcpstorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// Principals that make a binding or ACL entry public
var publicPrincipals = []string{"allUsers", "allAuthenticatedUsers"}

func (g *GCPStorage) BucketInfo(ctx context.Context) (storage.BucketInfo, error) {
	g.logger.Debug("Starting GCP DescribeBucket operation", "bucket", g.cfg.Bucket)

	bucketHandle := g.bucket()
	attrs, err := bucketHandle.Attrs(ctx)
	if err != nil {
		return storage.BucketInfo{}, classify("bucket info", g.cfg.Bucket, err)
	}

	usage, err := g.bucketUsage(ctx)
	if err != nil {
		logLevel := slog.LevelWarn
		logMsg := "Failed to retrieve usage metrics due to API error, usage will be reported as N/A"

		if errors.Is(err, ErrMetricsNotFound) || errors.Is(err, errNoProject) {
			logLevel = slog.LevelInfo
			logMsg = "Usage metrics not available, usage will be reported as N/A"
		}

		g.logger.Log(ctx, logLevel, logMsg, "bucket", g.cfg.Bucket, "error", err)
		usage = -1
	}

	info := storage.BucketInfo{
		Name:                   attrs.Name,
		Service:                common.GCS,
		Location:               attrs.Location,
		StorageClass:           attrs.StorageClass,
		CreatedAt:              attrs.Created,
		UsageBytes:             usage,
		Labels:                 attrs.Labels,
		Private:                g.cfg.Private,
		Versioning:             &storage.Versioning{Enabled: attrs.VersioningEnabled},
		PublicAccessPrevention: mapPublicAccessPrevention(attrs.PublicAccessPrevention),
	}

	// Enforced prevention overrides any binding, so the other lookups are moot
	if attrs.PublicAccessPrevention == gcpstorage.PublicAccessPreventionEnforced {
		info.Private = true
		return info, nil
	}

	public, err := g.iamIsPublic(ctx, bucketHandle)
	if err != nil {
		g.logger.Warn("Could not retrieve IAM policy for bucket. Requires 'storage.buckets.getIamPolicy' permission.", "bucket", g.cfg.Bucket, "error", err)
		return info, nil
	}
	if !public && !attrs.UniformBucketLevelAccess.Enabled {
		if public, err = g.aclIsPublic(ctx, bucketHandle); err != nil {
			// Log a warning but don't fail the entire operation, as ACLs might not be readable
			g.logger.Warn("Could not retrieve ACLs for bucket", "bucket", g.cfg.Bucket, "error", err)
			return info, nil
		}
	}
	info.Private = !public

	return info, nil
}

// iamIsPublic reports whether any unconditional binding grants a role to everyone
func (g *GCPStorage) iamIsPublic(ctx context.Context, bucketHandle *gcpstorage.BucketHandle) (bool, error) {
	policy, err := bucketHandle.IAM().V3().Policy(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get IAM policy: %w", err)
	}

	for _, binding := range policy.Bindings {
		if binding.Condition != nil {
			g.logger.Debug("Skipping conditional IAM binding", "role", binding.Role, "condition", binding.Condition.Title)
			continue
		}
		if bindingIsPublic(binding.Members) {
			return true, nil
		}
	}
	return false, nil
}

func bindingIsPublic(members []string) bool {
	for _, member := range members {
		if slices.Contains(publicPrincipals, member) {
			return true
		}
	}
	return false
}

func (g *GCPStorage) aclIsPublic(ctx context.Context, bucketHandle *gcpstorage.BucketHandle) (bool, error) {
	rules, err := bucketHandle.ACL().List(ctx)
	if err != nil {
		var gcsErr *googleapi.Error
		// If UBLA is enabled, GCP returns a 400 error when trying to list ACLs (treating as expected behavior)
		if errors.As(err, &gcsErr) && gcsErr.Code == 400 {
			return false, nil
		}
		return false, fmt.Errorf("failed to list ACLs: %w", err)
	}

	for _, rule := range rules {
		if rule.Entity == gcpstorage.AllUsers || rule.Entity == gcpstorage.AllAuthenticatedUsers {
			return true, nil
		}
	}
	return false, nil
}
