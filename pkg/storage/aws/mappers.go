package aws

import (
	"strings"

	"bucketdeck/pkg/storage"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	allUsersURI           = "http://acs.amazonaws.com/groups/global/AllUsers"
	authenticatedUsersURI = "http://acs.amazonaws.com/groups/global/AuthenticatedUsers"
)

// Maps an S3 listing entry to the domain model
func mapObject(obj types.Object) storage.Object {
	out := storage.Object{
		Key:          awssdk.ToString(obj.Key),
		Kind:         storage.KindFile,
		Size:         uint64(max(awssdk.ToInt64(obj.Size), 0)),
		LastModified: obj.LastModified,
		ETag:         strings.Trim(awssdk.ToString(obj.ETag), `"`),
		StorageClass: string(obj.StorageClass),
	}
	if obj.Owner != nil {
		out.Owner = awssdk.ToString(obj.Owner.DisplayName)
		if out.Owner == "" {
			out.Owner = awssdk.ToString(obj.Owner.ID)
		}
	}
	return out
}

// grantsArePublic reports whether any grant opens the bucket to anonymous or any-account readers
func grantsArePublic(grants []types.Grant) bool {
	for _, g := range grants {
		if g.Grantee == nil || g.Grantee.Type != types.TypeGroup {
			continue
		}
		uri := awssdk.ToString(g.Grantee.URI)
		if uri != allUsersURI && uri != authenticatedUsersURI {
			continue
		}
		switch g.Permission {
		case types.PermissionRead, types.PermissionFullControl:
			return true
		}
	}
	return false
}

func mapPublicAccessBlock(cfg *types.PublicAccessBlockConfiguration) string {
	if cfg == nil {
		return "Unknown"
	}
	if awssdk.ToBool(cfg.BlockPublicAcls) && awssdk.ToBool(cfg.IgnorePublicAcls) &&
		awssdk.ToBool(cfg.BlockPublicPolicy) && awssdk.ToBool(cfg.RestrictPublicBuckets) {
		return "Enforced"
	}
	return "Partial"
}
