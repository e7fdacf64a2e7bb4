package bridge

import "errors"

var (
	ErrMessageMalformed    = errors.New("message payload is not valid json")
	ErrMessageFromRequired = errors.New("message from is required")
	ErrMessageToRequired   = errors.New("message to is required")
	ErrMessageTextRequired = errors.New("message text is required")
)
