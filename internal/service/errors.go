package service

import "errors"

var (
	// ErrSessionUnavailable means no connected session exists for the
	// requested session ID. Surfaced to clients as 503.
	ErrSessionUnavailable = errors.New("whatsapp session not connected")

	// ErrDeliveryFailed wraps transport-level send rejections.
	ErrDeliveryFailed = errors.New("message delivery failed")

	// ErrSessionNotFound means the session ID is unknown to the manager.
	ErrSessionNotFound = errors.New("session not found")
)
