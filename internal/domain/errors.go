package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedMessage    = errors.New("malformed message")
	ErrWSDisconnect        = errors.New("websocket disconnected")
)
