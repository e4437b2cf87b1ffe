package linkedin

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedRequest is a 400 response: check the author URN and the payload
	ErrMalformedRequest = errors.New("linkedin: malformed request")
	// ErrUnauthorized is a 401 response: the access token expired or is invalid
	ErrUnauthorized = errors.New("linkedin: unauthorized")
	// ErrScope is a 403 response: the token lacks w_member_social or w_organization_social
	ErrScope = errors.New("linkedin: token is missing required scopes")
	// ErrUploadForbidden is a 403 on the image byte upload. It also matches ErrScope.
	ErrUploadForbidden = errors.New("linkedin: image upload forbidden")
	// ErrNotFound is a 404 response
	ErrNotFound = errors.New("linkedin: resource not found, verify the author and media URNs")
	// ErrHTTP is any other non-2xx response
	ErrHTTP = errors.New("linkedin: unexpected http status")
)

// StatusError carries a non-2xx response of a LinkedIn call. It matches one
// of the sentinel errors above with errors.Is.
type StatusError struct {
	Op     string
	Status int
	Body   string
	kinds  []error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d (%v): %s", e.Op, e.Status, e.kinds[0], e.Body)
}

func (e *StatusError) Unwrap() []error {
	return e.kinds
}

// NetworkError is a transport failure that persisted through every retry
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error contacting %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func statusError(op string, status int, body []byte) error {
	var kind error
	switch status {
	case http.StatusBadRequest:
		kind = ErrMalformedRequest
	case http.StatusUnauthorized:
		kind = ErrUnauthorized
	case http.StatusForbidden:
		kind = ErrScope
	case http.StatusNotFound:
		kind = ErrNotFound
	default:
		kind = ErrHTTP
	}
	return &StatusError{Op: op, Status: status, Body: truncateBody(body), kinds: []error{kind}}
}

func uploadStatusError(status int, body []byte) error {
	if status == http.StatusForbidden {
		return &StatusError{
			Op:     "image upload",
			Status: status,
			Body:   truncateBody(body),
			kinds:  []error{ErrUploadForbidden, ErrScope},
		}
	}
	return statusError("image upload", status, body)
}

func truncateBody(body []byte) string {
	const max = 2048
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
