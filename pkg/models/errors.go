package models

import "errors"

var (
	// ErrInvalidOrganization is returned when the organization does not exist.
	ErrInvalidOrganization = errors.New("invalid organization")

	// ErrInvalidSelection is returned for a malformed assessment selection.
	ErrInvalidSelection = errors.New("invalid assessment selection")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable is returned when the data store cannot be reached.
	ErrStoreUnavailable = errors.New("data store unavailable")
)
