package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/suifan/internal/logging"
	"github.com/dmitrijs2005/suifan/internal/netx"
)

// StoreResult describes a blob after the publisher accepted it. ObjectID is
// empty when the blob was already certified by someone else.
type StoreResult struct {
	BlobID           string
	ObjectID         string
	Size             int64
	EndEpoch         uint64
	AlreadyCertified bool
}

type storeResponse struct {
	NewlyCreated *struct {
		BlobObject struct {
			ID     string `json:"id"`
			BlobID string `json:"blobId"`
			Size   int64  `json:"size"`
		} `json:"blobObject"`
	} `json:"newlyCreated"`
	AlreadyCertified *struct {
		BlobID   string `json:"blobId"`
		EndEpoch uint64 `json:"endEpoch"`
	} `json:"alreadyCertified"`
}

// Publisher stores whole blobs through a publisher endpoint that pays for
// registration and certification itself.
type Publisher struct {
	base   string
	client *http.Client
	logger logging.Logger
}

func NewPublisher(base string, client *http.Client, logger logging.Logger) *Publisher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Publisher{
		base:   strings.TrimRight(base, "/"),
		client: client,
		logger: logger.With("module", "publisher"),
	}
}

func (p *Publisher) Store(ctx context.Context, data []byte, epochs int, deletable bool) (*StoreResult, error) {
	q := url.Values{}
	q.Set("epochs", strconv.Itoa(epochs))
	if deletable {
		q.Set("deletable", "true")
	}

	body, err := netx.PutBytes(ctx, p.client, p.base+"/v1/blobs?"+q.Encode(), data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	var sr storeResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	var res *StoreResult
	switch {
	case sr.NewlyCreated != nil:
		bo := sr.NewlyCreated.BlobObject
		res = &StoreResult{BlobID: bo.BlobID, ObjectID: bo.ID, Size: bo.Size}
	case sr.AlreadyCertified != nil:
		ac := sr.AlreadyCertified
		res = &StoreResult{BlobID: ac.BlobID, EndEpoch: ac.EndEpoch, AlreadyCertified: true}
	default:
		return nil, fmt.Errorf("%w: neither newlyCreated nor alreadyCertified", ErrBadResponse)
	}

	if res.BlobID == "" {
		return nil, fmt.Errorf("%w: empty blob id", ErrBadResponse)
	}

	p.logger.Info(ctx, "blob stored", "blob_id", res.BlobID, "object_id", res.ObjectID, "already_certified", res.AlreadyCertified)
	return res, nil
}
