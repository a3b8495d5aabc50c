package domain

import "errors"

// ErrAPIKeyNotConfigured marks failures to obtain the upstream API key.
var ErrAPIKeyNotConfigured = errors.New("API key not configured")
