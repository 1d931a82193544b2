package queue

import "errors"

var (
	ErrStorageNil        = errors.New("storage is nil")
	ErrNoHandlers        = errors.New("no job handlers registered")
	ErrDuplicateHandler  = errors.New("duplicate handler for job type")
	ErrHandlerNotFound   = errors.New("no handler registered for job type")
	ErrNoJobToClaim      = errors.New("no job available to claim")
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidPayload    = errors.New("invalid job payload")
	ErrWorkerNotRunning  = errors.New("worker is not running")
	ErrHealthcheckFailed = errors.New("queue healthcheck failed")
)
