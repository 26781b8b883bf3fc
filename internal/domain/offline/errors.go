package offline

import "errors"

var (
	ErrSyncInProgress = errors.New("a sync is already in progress")
	ErrItemNotFound   = errors.New("queue item not found")
	ErrInvalidAction  = errors.New("invalid offline action")
)
