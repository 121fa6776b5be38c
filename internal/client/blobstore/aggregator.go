package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/suifan/internal/logging"
)

const DefaultDownloadTimeout = 10 * time.Second

// Aggregators downloads blobs from one of several equivalent mirrors, chosen
// per call by a Selector.
type Aggregators struct {
	mirrors  []Mirror
	selector Selector
	timeout  time.Duration
	client   *http.Client
	logger   logging.Logger
}

type AggregatorOption func(*Aggregators)

func WithSelector(s Selector) AggregatorOption {
	return func(a *Aggregators) { a.selector = s }
}

func WithTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregators) { a.timeout = d }
}

func WithHTTPClient(c *http.Client) AggregatorOption {
	return func(a *Aggregators) { a.client = c }
}

func NewAggregators(mirrors []Mirror, logger logging.Logger, opts ...AggregatorOption) *Aggregators {
	a := &Aggregators{
		mirrors:  mirrors,
		selector: RandomSelector{},
		timeout:  DefaultDownloadTimeout,
		client:   http.DefaultClient,
		logger:   logger.With("module", "blobstore"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Read downloads blobID from one mirror. The whole exchange, body included,
// is bounded by the configured timeout; exceeding it yields ErrTimeout.
func (a *Aggregators) Read(ctx context.Context, blobID string) ([]byte, error) {
	if len(a.mirrors) == 0 {
		return nil, ErrNoMirrors
	}
	mirror := a.mirrors[a.selector.Pick(len(a.mirrors))]

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.logger.Debug(ctx, "downloading blob", "blob_id", blobID, "mirror", mirror.Name())

	data, err := a.fetch(ctx, mirror, blobID)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			a.logger.Warn(ctx, "blob download timed out", "blob_id", blobID, "mirror", mirror.Name(), "timeout", a.timeout)
			return nil, fmt.Errorf("%w after %s from %s", ErrTimeout, a.timeout, mirror.Name())
		}
		a.logger.Error(ctx, "blob download failed", "blob_id", blobID, "mirror", mirror.Name(), "error", err)
		return nil, err
	}
	return data, nil
}

func (a *Aggregators) fetch(ctx context.Context, mirror Mirror, blobID string) ([]byte, error) {
	u, err := mirror.BlobURL(ctx, blobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s; body: %s", ErrDownloadFailed, resp.Status, string(b))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	return data, nil
}

// URL returns a shareable link to blobID on the first plain HTTP mirror, or
// "" when none is configured.
func (a *Aggregators) URL(blobID string) string {
	for _, m := range a.mirrors {
		if hm, ok := m.(HTTPMirror); ok {
			u, _ := hm.BlobURL(context.Background(), blobID)
			return u
		}
	}
	return ""
}
