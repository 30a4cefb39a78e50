package domain

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("invalid signature")
	ErrNotFound       = errors.New("order not found")
	ErrProcessor      = errors.New("payment processor error")
	ErrNotConfigured  = errors.New("payment processor not configured")
)
