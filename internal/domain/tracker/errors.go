package tracker

import "errors"

var (
	// ErrUnavailable wraps transport failures talking to the api
	ErrUnavailable = errors.New("attendance api is unreachable")

	ErrEmployeeNotConfigured = errors.New("agent has no employee configured")
)
