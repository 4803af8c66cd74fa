package app

import "errors"

// ErrModelNotAllowed is returned for models outside the configured menu.
var ErrModelNotAllowed = errors.New("model not allowed")
