package jobs

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Separator splits a handler name into scope and method.
const Separator = "::"

// ParseHandlerName splits "scope::method". Both halves must be non-empty.
func ParseHandlerName(name string) (scope, method string, err error) {
	scope, method, found := strings.Cut(name, Separator)
	scope = strings.TrimSpace(scope)
	method = strings.TrimSpace(method)

	switch {
	case scope == "":
		return "", "", errors.Wrapf(ErrMalformedHandler, "%q has no scope", name)
	case !found || method == "":
		return "", "", errors.Wrapf(ErrMalformedHandler, "%q has no method", name)
	}
	return scope, method, nil
}

// HandlerName joins scope and method.
func HandlerName(scope, method string) string {
	return scope + Separator + method
}
