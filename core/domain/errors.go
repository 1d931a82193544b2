package domain

import "errors"

var (
	ErrRepositoryNil          = errors.New("repository is nil")
	ErrProviderNil            = errors.New("status provider is nil")
	ErrCheckerNil             = errors.New("delegation checker is nil")
	ErrEnqueuerNil            = errors.New("enqueuer is nil")
	ErrDomainNotFound         = errors.New("domain not found")
	ErrIssuanceAlreadyStarted = errors.New("issuance already requested for domain")
	ErrNotIssued              = errors.New("domain has no certificate to renew")
	ErrPollerNotRunning       = errors.New("poller is not running")
)
