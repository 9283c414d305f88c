package validator

import "errors"

var (
	// ErrEmptyRegistry is returned when there is no peer to select from.
	ErrEmptyRegistry = errors.New("peer registry is empty")
	// ErrForwardFailure marks failed forward call, either transport error or non-success outcome code.
	ErrForwardFailure = errors.New("forward failed")
	// ErrCommitFailure marks weight submission which did not finalize.
	ErrCommitFailure = errors.New("weight commit failed")
	// ErrResyncFailure marks failed registry fetch, previous snapshot is retained.
	ErrResyncFailure = errors.New("registry resync failed")
)
