package flows

import "errors"

// ErrInvalidInput is returned before any model call when the flow input is unusable.
var ErrInvalidInput = errors.New("invalid flow input")
