package idle

import "errors"

var (
	ErrAlreadyIdle = errors.New("an idle session is already active")
	ErrNotIdle     = errors.New("no idle session is active")
)
