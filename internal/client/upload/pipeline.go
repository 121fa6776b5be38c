package upload

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/common"
	"github.com/dmitrijs2005/suifan/internal/logging"
)

const DefaultUploadAttempts = 3

type Config struct {
	Contract       Contract
	Nodes          []string
	DataShards     int
	ParityShards   int
	UploadAttempts int
}

// Request is one file to store.
type Request struct {
	Data        []byte
	Identifier  string
	ContentType string
	Epochs      int
	Deletable   bool
}

// Result is returned only for certified blobs.
type Result struct {
	BlobID string
	// MetadataObjectID is the registered blob object, or BlobID when the
	// register event could not be read (see Degraded).
	MetadataObjectID string
	Degraded         bool
	Size             int
	ContentType      string
	Identifier       string
	Timestamp        time.Time
	RegisterDigest   string
	CertifyDigest    string
	AggregatorURL    string
}

// Pipeline runs upload flows against one storage system.
type Pipeline struct {
	exec   Executor
	store  SliverStore
	cfg    Config
	logger logging.Logger
	now    func() time.Time
	link   func(blobID string) string
}

type Option func(*Pipeline)

// WithLinker sets how Result.AggregatorURL is built.
func WithLinker(fn func(blobID string) string) Option {
	return func(p *Pipeline) { p.link = fn }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(exec Executor, store SliverStore, cfg Config, logger logging.Logger, opts ...Option) *Pipeline {
	if cfg.UploadAttempts < 1 {
		cfg.UploadAttempts = DefaultUploadAttempts
	}
	p := &Pipeline{
		exec:   exec,
		store:  store,
		cfg:    cfg,
		logger: logger.With("module", "upload"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Upload runs every step in order and returns the certified blob. Any
// failure is a *StepError naming the step; nothing is returned for a blob
// that was not certified.
func (p *Pipeline) Upload(ctx context.Context, wallet ledger.Wallet, req Request) (*Result, error) {
	if wallet == nil {
		return nil, common.ErrWalletNotConnected
	}
	if req.Identifier == "" {
		return nil, ErrMissingIdentity
	}
	if req.ContentType == "" {
		req.ContentType = common.DefaultContentType
	}

	flow := NewFlow(
		File{Contents: req.Data, Identifier: req.Identifier, ContentType: req.ContentType},
		Options{Epochs: req.Epochs, Deletable: req.Deletable, DataShards: p.cfg.DataShards, ParityShards: p.cfg.ParityShards},
		p.logger,
	)
	logger := flow.logger
	logger.Info(ctx, "upload started", "identifier", req.Identifier, "size", len(req.Data))

	fail := func(step Step, err error) (*Result, error) {
		logger.Error(ctx, "upload failed", "step", step, "error", err)
		return nil, &StepError{Step: step, Err: err}
	}

	encoded, err := flow.Encode(ctx)
	if err != nil {
		return fail(StepEncode, err)
	}
	registered, err := encoded.Register(ctx, p.exec, wallet, p.cfg.Contract)
	if err != nil {
		return fail(StepRegister, err)
	}
	uploaded, err := registered.Upload(ctx, p.store, p.cfg.Nodes, p.cfg.UploadAttempts)
	if err != nil {
		return fail(StepUpload, err)
	}
	certified, err := uploaded.Certify(ctx, p.exec, wallet, p.cfg.Contract)
	if err != nil {
		return fail(StepCertify, err)
	}
	files, err := certified.ListFiles()
	if err != nil {
		return fail(StepList, errors.Join(common.ErrInvariant, err))
	}

	f := files[0]
	res := &Result{
		BlobID:           f.BlobID,
		MetadataObjectID: f.MetadataObjectID,
		Degraded:         registered.Degraded,
		Size:             f.Size,
		ContentType:      f.ContentType,
		Identifier:       f.Identifier,
		Timestamp:        p.now(),
		RegisterDigest:   registered.Digest,
		CertifyDigest:    certified.Digest,
	}
	if p.link != nil {
		res.AggregatorURL = p.link(f.BlobID)
	}
	logger.Info(ctx, "upload complete", "blob_id", res.BlobID, "metadata_id", res.MetadataObjectID)
	return res, nil
}
