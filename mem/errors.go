package mem

import "errors"

// ErrInvalidConfig marks a configuration value that is malformed or out of
// range. It is reported before anything is wired.
var ErrInvalidConfig = errors.New("invalid config")

// ErrResourceExhausted is returned when a component cannot take a request
// because an internal table is full. The requester keeps the request and
// retries after the component announces it is available again.
var ErrResourceExhausted = errors.New("resource exhausted")

// ErrAddressOutOfRange marks an access beyond the end of the backing store.
// It travels back to the requester inside a response and is never retried.
var ErrAddressOutOfRange = errors.New("address out of range")

// ErrCrossesLine marks an access that does not fit in one cache line.
var ErrCrossesLine = errors.New("access crosses a cache line")
