package blobstore

import (
	"errors"
	"fmt"
)

var (
	// ErrRetrievalFailed matches every download failure, timeouts included.
	ErrRetrievalFailed = errors.New("blob retrieval failed")
	ErrTimeout         = fmt.Errorf("%w: timed out", ErrRetrievalFailed)
	ErrDownloadFailed  = fmt.Errorf("%w: download failed", ErrRetrievalFailed)

	ErrStoreFailed   = errors.New("blob store failed")
	ErrNoMirrors     = errors.New("no aggregator mirrors configured")
	ErrMissingDigest = errors.New("register digest is required")
	ErrNodeRejected  = errors.New("storage node rejected sliver")
	ErrBadResponse   = errors.New("unexpected storage response")
)
