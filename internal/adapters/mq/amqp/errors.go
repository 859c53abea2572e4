package amqp

import "errors"

// ErrInvalidMessage is returned for batch messages that cannot be decoded.
var ErrInvalidMessage = errors.New("invalid batch message")
