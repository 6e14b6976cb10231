package aws

import (
	"errors"
	"net/http"

	"bucketdeck/pkg/storage"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

var notFoundCodes = map[string]bool{
	"NoSuchKey":    true,
	"NotFound":     true,
	"NoSuchBucket": true,
}

var permissionCodes = map[string]bool{
	"AccessDenied":          true,
	"Forbidden":             true,
	"AllAccessDisabled":     true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
}

// classify maps an SDK error onto the storage error kinds
func classify(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return storage.NewOpError(op, key, kindOf(err), err)
}

func kindOf(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case notFoundCodes[code]:
			return storage.ErrNotFound
		case permissionCodes[code]:
			return storage.ErrPermission
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return storage.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return storage.ErrPermission
		}
	}
	return storage.ErrTransport
}
