package jobs

import "github.com/cockroachdb/errors"

var (
	ErrMalformedHandler = errors.New("malformed handler name")
	ErrHandlerExists    = errors.New("handler already registered")
	ErrInvalidArgs      = errors.New("invalid job arguments")
)
