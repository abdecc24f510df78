package app

import "errors"

var (
	ErrLocationRequired      = errors.New("location is not selected")
	ErrStatusRequired        = errors.New("status is not selected")
	ErrStepLocked            = errors.New("step is not available yet")
	ErrNotScanning           = errors.New("session is not in scan step")
	ErrItemNotFound          = errors.New("item is not in session")
	ErrNoPendingConfirmation = errors.New("no pending confirmation for code")
)

// ErrFeedInactive кадры некуда принять: активен бэкенд камеры
var ErrFeedInactive = errors.New("image feed is not the active capture backend")
