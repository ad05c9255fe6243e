package client

import (
	"errors"
	"net/http"

	apperrors "github.com/mathhub/mdh-explorer/internal/errors"
)

// ResponseError indicates a request that completed with a non-2xx status.
type ResponseError struct {
	Status int
	URL    string
}

func (e *ResponseError) Error() string {
	return "Request to " + e.URL + " failed. "
}

// IsNotFound reports whether the backend answered 404.
func (e *ResponseError) IsNotFound() bool {
	return e.Status == http.StatusNotFound
}

// newResponseError wraps a bad status in the matching error category:
// 404 is NotFound, everything else is a transport failure.
func newResponseError(status int, url string) error {
	re := &ResponseError{Status: status, URL: url}
	if re.IsNotFound() {
		return apperrors.Wrap(apperrors.ErrCategoryNotFound, apperrors.CodeObjectNotFound, re.Error(), re)
	}
	return apperrors.Wrap(apperrors.ErrCategoryTransport, apperrors.CodeBadStatus, re.Error(), re).
		WithDetails(map[string]interface{}{"status": status})
}

// IsNotFound reports whether err means the requested collection or item
// does not exist, as opposed to a transport or server failure.
func IsNotFound(err error) bool {
	if apperrors.IsNotFound(err) {
		return true
	}
	var re *ResponseError
	return errors.As(err, &re) && re.IsNotFound()
}

// notFound re-tags a NotFound error with a more specific code.
func notFound(err error, code, message string) error {
	if !IsNotFound(err) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrCategoryNotFound, code, message, err)
}
