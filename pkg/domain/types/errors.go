package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify pipeline failures. Tags are attached where the error
// originates and inspected at the retry/commit boundaries, so callers never
// string-match error messages.
var (
	// ErrTagTransient marks provider errors worth retrying (network, timeout,
	// rate limit).
	ErrTagTransient = goerr.NewTag("transient_provider")

	// ErrTagChunkFailure marks a chunk whose retry budget is exhausted. The
	// chunk is committed as a gap placeholder and the session continues.
	ErrTagChunkFailure = goerr.NewTag("irrecoverable_chunk")

	// ErrTagFinalizeTimeout marks chunks force-failed because they did not
	// resolve within the finalize timeout.
	ErrTagFinalizeTimeout = goerr.NewTag("finalize_timeout")

	// ErrTagStoreUnavailable marks memory store failures. Session output is
	// still produced locally.
	ErrTagStoreUnavailable = goerr.NewTag("store_unavailable")
)
