package minio

import (
	"net/http"

	"bucketdeck/pkg/storage"

	miniogo "github.com/minio/minio-go/v7"
)

func classify(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return storage.NewOpError(op, key, kindOf(err), err)
}

func kindOf(err error) error {
	resp := miniogo.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return storage.ErrNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return storage.ErrPermission
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return storage.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return storage.ErrPermission
	}
	return storage.ErrTransport
}
