package upload

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/blobstore"
	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/logging"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// Executor signs, submits and awaits one ledger transaction.
type Executor interface {
	SignAndExecute(ctx context.Context, wallet ledger.Wallet, tx *ledger.Transaction) (*ledger.TransactionResponse, error)
}

// SliverStore accepts slivers on behalf of storage nodes.
type SliverStore interface {
	StoreSliver(ctx context.Context, node, blobID string, index int, sliver []byte, registerDigest string) (*blobstore.Confirmation, error)
}

// Contract locates the storage system on the ledger.
type Contract struct {
	Package      string
	SystemObject string
}

func (c Contract) target(fn string) string {
	return c.Package + "::system::" + fn
}

type File struct {
	Contents    []byte
	Identifier  string
	ContentType string
}

type Options struct {
	Epochs       int
	Deletable    bool
	DataShards   int
	ParityShards int
}

// stage guards a single forward transition. A failed attempt leaves the
// stage usable; a successful one spends it.
type stage struct {
	mu    sync.Mutex
	spent bool
}

func (s *stage) advance(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spent {
		return ErrFlowSpent
	}
	if err := fn(); err != nil {
		return err
	}
	s.spent = true
	return nil
}

// Flow is a created upload. It lives in memory only; a crash means starting
// over.
type Flow struct {
	stage
	id     string
	file   File
	opts   Options
	logger logging.Logger
}

func NewFlow(file File, opts Options, logger logging.Logger) *Flow {
	id := uuid.NewString()
	return &Flow{id: id, file: file, opts: opts, logger: logger.With("flow_id", id)}
}

func (f *Flow) ID() string { return f.id }

// Encode erasure-codes the contents.
func (f *Flow) Encode(ctx context.Context) (*EncodedFlow, error) {
	var next *EncodedFlow
	err := f.advance(func() error {
		enc, err := Encode(f.file.Contents, f.opts.DataShards, f.opts.ParityShards)
		if err != nil {
			return err
		}
		f.logger.Debug(ctx, "encoded", "blob_id", enc.BlobID, "size", enc.Size, "slivers", len(enc.Slivers))
		next = &EncodedFlow{flow: f, Encoded: enc}
		return nil
	})
	return next, err
}

type EncodedFlow struct {
	stage
	flow    *Flow
	Encoded *Encoded
}

// RegisterTx declares the blob on the ledger: blob id, root hash, size,
// encoding, storage term, deletable flag, owner and the gas coin as payment.
func (f *EncodedFlow) RegisterTx(c Contract, owner string) *ledger.Transaction {
	e := f.Encoded
	tx := ledger.NewTransaction()
	tx.MoveCall(c.target("register_blob"),
		tx.Object(c.SystemObject),
		tx.PureString(e.BlobID),
		tx.PureBytes(e.RootHash[:]),
		tx.PureU64(uint64(e.Size)),
		tx.PureU8(EncodingRS),
		tx.PureU32(uint32(f.flow.opts.Epochs)),
		tx.PureBool(f.flow.opts.Deletable),
		tx.PureAddress(owner),
		tx.Gas(),
	)
	return tx
}

// Register signs and executes the register transaction and waits for
// finality. The metadata object id comes from the BlobRegistered event;
// without one the blob id stands in and the flow is marked degraded.
func (f *EncodedFlow) Register(ctx context.Context, exec Executor, wallet ledger.Wallet, c Contract) (*RegisteredFlow, error) {
	var next *RegisteredFlow
	err := f.advance(func() error {
		res, err := exec.SignAndExecute(ctx, wallet, f.RegisterTx(c, wallet.Address()))
		if err != nil {
			return err
		}

		next = &RegisteredFlow{enc: f, Digest: res.Digest}
		if id, ok := ledger.FindRegisteredObjectID(res.Events); ok {
			next.MetadataObjectID = id
		} else {
			f.flow.logger.Warn(ctx, "BlobRegistered event missing, using blob id as metadata id",
				"digest", res.Digest, "blob_id", f.Encoded.BlobID, "events", len(res.Events))
			next.MetadataObjectID = f.Encoded.BlobID
			next.Degraded = true
		}
		f.flow.logger.Info(ctx, "blob registered", "digest", res.Digest, "metadata_id", next.MetadataObjectID)
		return nil
	})
	return next, err
}

// RegisteredFlow holds the confirmed register digest that storage nodes
// accept as proof of registration.
type RegisteredFlow struct {
	stage
	enc              *EncodedFlow
	Digest           string
	MetadataObjectID string
	// Degraded is set when MetadataObjectID fell back to the blob id.
	Degraded bool
}

// Upload pushes every sliver to nodes (sliver i goes to node i mod n). Each
// sliver is retried up to attempts times with the same digest. On failure
// the flow stays registered and Upload may be called again.
func (f *RegisteredFlow) Upload(ctx context.Context, store SliverStore, nodes []string, attempts int) (*UploadedFlow, error) {
	if len(nodes) == 0 {
		return nil, ErrNoStorageNodes
	}
	if attempts < 1 {
		attempts = 1
	}
	logger := f.enc.flow.logger
	e := f.enc.Encoded

	var next *UploadedFlow
	err := f.advance(func() error {
		confirmations := make([]blobstore.Confirmation, len(e.Slivers))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(len(nodes))
		for i, sliver := range e.Slivers {
			node := nodes[i%len(nodes)]
			g.Go(func() error {
				b := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(100*time.Millisecond))
				return retry.Do(gctx, b, func(ctx context.Context) error {
					c, err := store.StoreSliver(ctx, node, e.BlobID, i, sliver, f.Digest)
					if err != nil {
						if errors.Is(err, blobstore.ErrMissingDigest) || ctx.Err() != nil {
							return err
						}
						logger.Debug(ctx, "sliver upload failed", "node", node, "index", i, "error", err)
						return retry.RetryableError(err)
					}
					confirmations[i] = *c
					return nil
				})
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		slices.SortFunc(confirmations, func(a, b blobstore.Confirmation) int { return cmp.Compare(a.Index, b.Index) })
		next = &UploadedFlow{reg: f, Confirmations: confirmations}
		logger.Info(ctx, "slivers stored", "blob_id", e.BlobID, "count", len(confirmations))
		return nil
	})
	return next, err
}

type UploadedFlow struct {
	stage
	reg           *RegisteredFlow
	Confirmations []blobstore.Confirmation
}

// CertifyTx presents the node confirmations for the blob.
func (f *UploadedFlow) CertifyTx(c Contract) *ledger.Transaction {
	sigs := make([][]byte, len(f.Confirmations))
	indices := make([]byte, len(f.Confirmations))
	for i, conf := range f.Confirmations {
		sigs[i] = conf.Signature
		indices[i] = byte(conf.Index)
	}
	tx := ledger.NewTransaction()
	tx.MoveCall(c.target("certify_blob"),
		tx.Object(c.SystemObject),
		tx.PureString(f.reg.enc.Encoded.BlobID),
		tx.PureBytesList(sigs),
		tx.PureBytes(indices),
	)
	return tx
}

// Certify makes the blob durable. Until it succeeds the blob must be
// treated as not stored.
func (f *UploadedFlow) Certify(ctx context.Context, exec Executor, wallet ledger.Wallet, c Contract) (*CertifiedFlow, error) {
	var next *CertifiedFlow
	err := f.advance(func() error {
		res, err := exec.SignAndExecute(ctx, wallet, f.CertifyTx(c))
		if err != nil {
			return err
		}
		blobID, _ := ledger.FindCertifiedBlobID(res.Events)
		next = &CertifiedFlow{up: f, Digest: res.Digest, blobID: blobID}
		f.reg.enc.flow.logger.Info(ctx, "blob certified", "digest", res.Digest, "blob_id", blobID)
		return nil
	})
	return next, err
}

type CertifiedFlow struct {
	up     *UploadedFlow
	Digest string
	blobID string
}

// FileInfo describes one stored file.
type FileInfo struct {
	BlobID           string
	MetadataObjectID string
	Identifier       string
	ContentType      string
	Size             int
}

// ListFiles returns the certified files. A certification that reported no
// blob id, or a different one, is an error.
func (f *CertifiedFlow) ListFiles() ([]FileInfo, error) {
	reg := f.up.reg
	enc := reg.enc.Encoded
	switch {
	case f.blobID == "":
		return nil, ErrMissingBlobID
	case f.blobID != enc.BlobID:
		return nil, fmt.Errorf("%w: %s != %s", ErrBlobIDMismatch, f.blobID, enc.BlobID)
	}
	file := reg.enc.flow.file
	return []FileInfo{{
		BlobID:           f.blobID,
		MetadataObjectID: reg.MetadataObjectID,
		Identifier:       file.Identifier,
		ContentType:      file.ContentType,
		Size:             enc.Size,
	}}, nil
}
