package gcp

import (
	"errors"
	"net/http"

	"bucketdeck/pkg/storage"

	gcpstorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

func classify(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return storage.NewOpError(op, key, kindOf(err), err)
}

func kindOf(err error) error {
	if errors.Is(err, gcpstorage.ErrObjectNotExist) || errors.Is(err, gcpstorage.ErrBucketNotExist) {
		return storage.ErrNotFound
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return storage.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return storage.ErrPermission
		}
	}
	return storage.ErrTransport
}
