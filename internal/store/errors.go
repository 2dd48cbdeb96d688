package store

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound indicates no receipt row exists for the given id.
	ErrNotFound = errors.New("receipt not found")

	// ErrDuplicateID indicates a generated receipt id collided with an
	// existing row. Ids are issued inside the insert transaction, so
	// this only surfaces when an external writer shares the database.
	ErrDuplicateID = errors.New("generated receipt id already exists")
)

// MapHTTPStatus translates store errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
