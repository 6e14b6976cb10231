package azure

import (
	"errors"
	"net/http"

	"bucketdeck/pkg/storage"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

func classify(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return storage.NewOpError(op, key, kindOf(err), err)
}

func kindOf(err error) error {
	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound):
		return storage.ErrNotFound
	case bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.AuthorizationFailure,
		bloberror.AuthorizationPermissionMismatch, bloberror.InsufficientAccountPermissions):
		return storage.ErrPermission
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return storage.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return storage.ErrPermission
		}
	}
	return storage.ErrTransport
}
