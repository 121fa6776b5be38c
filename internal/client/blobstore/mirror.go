package blobstore

import (
	"context"
	"net/url"
	"strings"
)

// Mirror resolves the download URL of a blob on one aggregator.
type Mirror interface {
	Name() string
	BlobURL(ctx context.Context, blobID string) (string, error)
}

// HTTPMirror is a plain aggregator serving GET {base}/v1/blobs/{id}.
type HTTPMirror struct {
	Base string
}

func NewHTTPMirrors(bases []string) []Mirror {
	mirrors := make([]Mirror, 0, len(bases))
	for _, b := range bases {
		mirrors = append(mirrors, HTTPMirror{Base: b})
	}
	return mirrors
}

func (m HTTPMirror) Name() string {
	return m.Base
}

func (m HTTPMirror) BlobURL(_ context.Context, blobID string) (string, error) {
	return strings.TrimRight(m.Base, "/") + "/v1/blobs/" + url.PathEscape(blobID), nil
}
