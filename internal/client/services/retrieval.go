package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/seal"
	"github.com/dmitrijs2005/suifan/internal/common"
	"github.com/dmitrijs2005/suifan/internal/logging"
)

const opDecrypt = "decrypt"

// Downloader fetches a blob from one of the aggregator mirrors.
type Downloader interface {
	Read(ctx context.Context, blobID string) ([]byte, error)
}

// KeyService fetches key shares and opens encrypted objects.
type KeyService interface {
	FetchKeys(ctx context.Context, req seal.FetchKeysRequest) error
	Decrypt(ctx context.Context, req seal.DecryptRequest) ([]byte, error)
}

// SessionProvider hands out cached session credentials.
type SessionProvider interface {
	GetOrCreate(ctx context.Context, signer seal.Signer, packageID string) (*seal.SessionCredential, error)
}

// MediaStore turns plaintext into a playable URL.
type MediaStore interface {
	Create(data []byte, contentType string) string
	Revoke(url string)
}

type DecryptRequest struct {
	BlobID    string
	CreatorID string
}

type RetrievalConfig struct {
	PackageID   string
	ContentType string
}

type RetrievalDeps struct {
	Catalog    CatalogService
	Sessions   SessionProvider
	Downloader Downloader
	Keys       KeyService
	// Resolver fills object versions into the access proof.
	Resolver ledger.ObjectResolver
	Media    MediaStore
}

type RetrievalService interface {
	// DecryptContent returns a playable URL for an encrypted blob the
	// wallet is entitled to. Errors are *common.Failure.
	DecryptContent(ctx context.Context, wallet ledger.Wallet, req DecryptRequest) (string, error)
}

type retrievalService struct {
	deps   RetrievalDeps
	cfg    RetrievalConfig
	logger logging.Logger
}

func NewRetrievalService(deps RetrievalDeps, cfg RetrievalConfig, logger logging.Logger) RetrievalService {
	if cfg.ContentType == "" {
		cfg.ContentType = common.VideoContentType
	}
	return &retrievalService{deps: deps, cfg: cfg, logger: logger.With("module", "retrieval")}
}

func (s *retrievalService) DecryptContent(ctx context.Context, wallet ledger.Wallet, req DecryptRequest) (string, error) {
	logger := s.logger.With("blob_id", req.BlobID, "creator_id", req.CreatorID)
	fail := func(err error) (string, error) {
		f := Classify(opDecrypt, err)
		logger.Error(ctx, "decrypt failed", "kind", f.Kind, "error", err)
		return "", f
	}

	if wallet == nil {
		return fail(common.ErrWalletNotConnected)
	}
	if req.BlobID == "" || req.CreatorID == "" {
		return fail(fmt.Errorf("%w: blob id and creator id are required", common.ErrInvalidArgument))
	}

	session, err := s.deps.Sessions.GetOrCreate(ctx, wallet, s.cfg.PackageID)
	if err != nil {
		return fail(fmt.Errorf("session: %w", err))
	}

	entitlement, err := s.deps.Catalog.SelectEntitlement(ctx, wallet.Address(), req.CreatorID)
	if err != nil {
		return fail(err)
	}
	logger.Debug(ctx, "entitlement selected", "subscription", entitlement.ID, "created_at", entitlement.CreatedAt)

	data, err := s.deps.Downloader.Read(ctx, req.BlobID)
	if err != nil {
		return fail(err)
	}

	obj, err := seal.ParseEncryptedObject(data)
	if err != nil {
		return fail(err)
	}

	proof, err := s.accessProof(ctx, obj.ID, entitlement.ID, req.CreatorID)
	if err != nil {
		return fail(fmt.Errorf("access proof: %w", err))
	}

	if err := s.deps.Keys.FetchKeys(ctx, seal.FetchKeysRequest{
		IDs:       []string{obj.IDHex()},
		ProofTx:   proof,
		Session:   session,
		Threshold: int(obj.Threshold),
		Services:  obj.Services,
	}); err != nil {
		return fail(err)
	}

	plain, err := s.deps.Keys.Decrypt(ctx, seal.DecryptRequest{Data: data, Session: session, ProofTx: proof})
	if err != nil {
		return fail(err)
	}

	url := s.deps.Media.Create(plain, s.cfg.ContentType)
	logger.Info(ctx, "content decrypted", "size", len(plain))
	return url, nil
}

// accessProof builds the never-submitted seal_approve transaction that key
// servers evaluate.
func (s *retrievalService) accessProof(ctx context.Context, id []byte, subscription, creator string) ([]byte, error) {
	tx := ledger.NewTransaction()
	tx.MoveCall(s.cfg.PackageID+"::"+moduleName+"::seal_approve",
		tx.PureBytes(id),
		tx.ReadObject(subscription),
		tx.ReadObject(creator),
		tx.ReadObject(ledger.ClockObjectID),
	)
	return tx.BuildKind(ctx, s.deps.Resolver)
}
