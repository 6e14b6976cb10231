package aws

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
)

func TestResolveRegion(t *testing.T) {
	tests := []struct {
		name string
		cfg  storage.ClientConfig
		want string
	}{
		{"explicit", storage.ClientConfig{Service: common.S3, Region: "eu-west-1"}, "eu-west-1"},
		{"s3 default", storage.ClientConfig{Service: common.S3}, defaultRegion},
		{"oss host", storage.ClientConfig{Service: common.OSS, Endpoint: "https://oss-cn-hangzhou.aliyuncs.com"}, "cn-hangzhou"},
		{"oss internal host", storage.ClientConfig{Service: common.OSS, Endpoint: "https://oss-cn-beijing-internal.aliyuncs.com"}, "cn-beijing"},
		{"oss custom host", storage.ClientConfig{Service: common.OSS, Endpoint: "https://storage.example.com"}, defaultRegion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveRegion(tt.cfg))
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, storage.ErrNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, storage.ErrPermission},
		{"bad signature", &smithy.GenericAPIError{Code: "SignatureDoesNotMatch"}, storage.ErrPermission},
		{"head 404", responseError(http.StatusNotFound), storage.ErrNotFound},
		{"head 403", responseError(http.StatusForbidden), storage.ErrPermission},
		{"server error", responseError(http.StatusInternalServerError), storage.ErrTransport},
		{"dial failure", errors.New("dial tcp: connection refused"), storage.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, kindOf(tt.err), tt.want)
		})
	}
}

func responseError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      fmt.Errorf("status %d", status),
		},
	}
}

func TestClassifyKeepsKey(t *testing.T) {
	err := classify("stat", "a/b.txt", &smithy.GenericAPIError{Code: "NotFound"})

	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), "stat a/b.txt")
	assert.NoError(t, classify("stat", "a", nil))
}

func TestCopySource(t *testing.T) {
	assert.Equal(t, "bkt/dir/file.txt", copySource("bkt", "dir/file.txt"))
	assert.Equal(t, "bkt/my%20dir/a+b%3Fc.txt", copySource("bkt", "my dir/a+b?c.txt"))
	assert.Equal(t, "bkt/%E6%96%87%E4%BB%B6", copySource("bkt", "文件"))
}

func TestGrantsArePublic(t *testing.T) {
	owner := types.Grant{
		Grantee:    &types.Grantee{Type: types.TypeCanonicalUser, ID: awssdk.String("owner")},
		Permission: types.PermissionFullControl,
	}
	publicRead := types.Grant{
		Grantee:    &types.Grantee{Type: types.TypeGroup, URI: awssdk.String(allUsersURI)},
		Permission: types.PermissionRead,
	}
	publicAcpRead := types.Grant{
		Grantee:    &types.Grantee{Type: types.TypeGroup, URI: awssdk.String(allUsersURI)},
		Permission: types.PermissionReadAcp,
	}

	assert.False(t, grantsArePublic([]types.Grant{owner}))
	assert.False(t, grantsArePublic([]types.Grant{owner, publicAcpRead}))
	assert.True(t, grantsArePublic([]types.Grant{owner, publicRead}))
}

func TestMapObject(t *testing.T) {
	obj := mapObject(types.Object{
		Key:          awssdk.String("dir/a.txt"),
		Size:         awssdk.Int64(42),
		ETag:         awssdk.String(`"abc"`),
		StorageClass: types.ObjectStorageClassStandard,
		Owner:        &types.Owner{ID: awssdk.String("id-1")},
	})

	assert.Equal(t, "dir/a.txt", obj.Key)
	assert.Equal(t, uint64(42), obj.Size)
	assert.Equal(t, "abc", obj.ETag)
	assert.Equal(t, "STANDARD", obj.StorageClass)
	assert.Equal(t, "id-1", obj.Owner)
	assert.False(t, obj.IsFolder())
}

func TestCheckConfig(t *testing.T) {
	assert.Error(t, checkConfig(storage.ClientConfig{Service: common.OSS, AddressingStyle: storage.AddressingPath}))
	assert.NoError(t, checkConfig(storage.ClientConfig{Service: common.S3, AddressingStyle: storage.AddressingPath}))
}
