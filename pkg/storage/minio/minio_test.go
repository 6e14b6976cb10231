package minio

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name       string
		cfg        storage.ClientConfig
		wantHost   string
		wantSecure bool
		wantLookup miniogo.BucketLookupType
		wantRegion string
	}{
		{
			name:       "local minio over http",
			cfg:        storage.ClientConfig{Service: common.S3Compatible, Endpoint: "http://localhost:9000"},
			wantHost:   "localhost:9000",
			wantSecure: false,
			wantLookup: miniogo.BucketLookupPath,
			wantRegion: defaultRegion,
		},
		{
			name:       "vendor domain uses virtual host",
			cfg:        storage.ClientConfig{Service: common.S3Compatible, Endpoint: "https://cos.ap-guangzhou.myqcloud.com", Region: "ap-guangzhou"},
			wantHost:   "cos.ap-guangzhou.myqcloud.com",
			wantSecure: true,
			wantLookup: miniogo.BucketLookupDNS,
			wantRegion: "ap-guangzhou",
		},
		{
			name:       "forced path style",
			cfg:        storage.ClientConfig{Service: common.S3Compatible, Endpoint: "https://nyc3.digitaloceanspaces.com", AddressingStyle: storage.AddressingPath},
			wantHost:   "nyc3.digitaloceanspaces.com",
			wantSecure: true,
			wantLookup: miniogo.BucketLookupPath,
			wantRegion: defaultRegion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, host, err := clientOptions(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantSecure, opts.Secure)
			assert.Equal(t, tt.wantLookup, opts.BucketLookup)
			assert.Equal(t, tt.wantRegion, opts.Region)
			assert.Equal(t, 1, opts.MaxRetries)
		})
	}
}

func TestCheckConfigRejectsPath(t *testing.T) {
	assert.Error(t, checkConfig(storage.ClientConfig{Endpoint: "http://localhost:9000/minio"}))
	assert.NoError(t, checkConfig(storage.ClientConfig{Endpoint: "http://localhost:9000/"}))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", miniogo.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, storage.ErrNotFound},
		{"access denied", miniogo.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, storage.ErrPermission},
		{"bare 404", miniogo.ErrorResponse{StatusCode: http.StatusNotFound}, storage.ErrNotFound},
		{"server error", miniogo.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, storage.ErrTransport},
		{"network", errors.New("connection reset"), storage.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, kindOf(tt.err), tt.want)
		})
	}
}

func TestPolicyIsPrivate(t *testing.T) {
	private, err := policyIsPrivate("", "bkt")
	require.NoError(t, err)
	assert.True(t, private)

	public := `{"Version":"2012-10-17","Statement":[
		{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetBucketLocation","s3:ListBucket"],"Resource":["arn:aws:s3:::bkt"]},
		{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::bkt/*"]}]}`
	private, err = policyIsPrivate(public, "bkt")
	require.NoError(t, err)
	assert.False(t, private)

	_, err = policyIsPrivate("{not json", "bkt")
	assert.Error(t, err)
}

func TestMapObjectInfo(t *testing.T) {
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	obj := mapObjectInfo(miniogo.ObjectInfo{
		Key:          "a/b.txt",
		Size:         12,
		ETag:         `"etag"`,
		LastModified: modified,
		StorageClass: "STANDARD",
	})

	assert.Equal(t, uint64(12), obj.Size)
	assert.Equal(t, "etag", obj.ETag)
	require.NotNil(t, obj.LastModified)
	assert.Equal(t, modified, *obj.LastModified)

	assert.Nil(t, mapObjectInfo(miniogo.ObjectInfo{Key: "x"}).LastModified)
}
