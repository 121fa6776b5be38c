package services

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/models"
	"github.com/dmitrijs2005/suifan/internal/client/seal"
	"github.com/dmitrijs2005/suifan/internal/client/upload"
	"github.com/dmitrijs2005/suifan/internal/common"
	"github.com/dmitrijs2005/suifan/internal/logging"
)

const opPublish = "publish"

// Encrypter seals plaintext for a policy object.
type Encrypter interface {
	Encrypt(ctx context.Context, req seal.EncryptRequest) (*seal.EncryptResult, error)
}

// Uploader runs the register/upload/certify pipeline.
type Uploader interface {
	Upload(ctx context.Context, wallet ledger.Wallet, req upload.Request) (*upload.Result, error)
}

// HistoryRecorder keeps the local publish history.
type HistoryRecorder interface {
	Insert(ctx context.Context, u models.Upload) (int64, error)
}

type PublishRequest struct {
	Title       string
	Description string
	Filename    string
	ContentType string
	Data        []byte
	// Encrypt seals the file so that only the creator's subscribers can
	// open it.
	Encrypt bool
	// ViaPublisher stores the blob through the publisher endpoint instead
	// of registering and certifying it from this wallet.
	ViaPublisher bool
}

type PublishResult struct {
	BlobID           string
	MetadataObjectID string
	Degraded         bool
	// EncryptionID is the policy identity of an encrypted file.
	EncryptionID   string
	Size           int
	ContentDigest  string
	RegisterDigest string
	CertifyDigest  string
	AggregatorURL  string
}

type PublicationConfig struct {
	PackageID string
	Threshold int
	Epochs    int
	Deletable bool
	// Link builds the aggregator URL for publisher-stored blobs.
	Link func(blobID string) string
}

type PublicationDeps struct {
	Catalog     CatalogService
	Marketplace MarketplaceService
	Encrypter   Encrypter
	Uploader    Uploader
	Publisher   BlobPublisher
	// History is optional.
	History HistoryRecorder
}

type PublicationService interface {
	Publish(ctx context.Context, wallet ledger.Wallet, req PublishRequest) (*PublishResult, error)
}

type publicationService struct {
	deps   PublicationDeps
	cfg    PublicationConfig
	logger logging.Logger
	now    func() time.Time
}

func NewPublicationService(deps PublicationDeps, cfg PublicationConfig, logger logging.Logger) PublicationService {
	return &publicationService{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With("module", "publication"),
		now:    time.Now,
	}
}

// Publish encrypts (optionally), stores and certifies a file, then records
// it under the wallet's CreatorCap. Errors are *common.Failure.
func (s *publicationService) Publish(ctx context.Context, wallet ledger.Wallet, req PublishRequest) (*PublishResult, error) {
	if wallet == nil {
		return nil, Classify(opPublish, common.ErrWalletNotConnected)
	}
	if req.Title == "" || req.Filename == "" {
		return nil, Classify(opPublish, fmt.Errorf("%w: title and file are required", common.ErrInvalidArgument))
	}
	logger := s.logger.With("filename", req.Filename)

	creatorCap, err := s.deps.Catalog.FindCreatorCap(ctx, wallet.Address())
	if err != nil {
		return nil, s.fail(ctx, logger, err)
	}

	payload := req.Data
	res := &PublishResult{}
	if req.Encrypt {
		enc, err := s.deps.Encrypter.Encrypt(ctx, seal.EncryptRequest{
			PackageID:    s.cfg.PackageID,
			PolicyObject: creatorCap.CreatorID,
			Threshold:    s.cfg.Threshold,
			Data:         req.Data,
		})
		if err != nil {
			return nil, s.fail(ctx, logger, fmt.Errorf("encrypt: %w", err))
		}
		payload = enc.Object
		res.EncryptionID = enc.ID
		logger.Debug(ctx, "encrypted", "id", enc.ID, "creator_id", creatorCap.CreatorID)
	}

	if err := s.store(ctx, wallet, req, payload, res); err != nil {
		return nil, s.fail(ctx, logger, err)
	}

	res.ContentDigest, err = s.deps.Marketplace.UploadContent(ctx, wallet, UploadContentRequest{
		Title:       req.Title,
		Description: req.Description,
		BlobID:      res.BlobID,
	})
	if err != nil {
		return nil, s.fail(ctx, logger, err)
	}

	if s.deps.History != nil {
		_, err := s.deps.History.Insert(ctx, models.Upload{
			BlobID:         res.BlobID,
			MetadataID:     res.MetadataObjectID,
			Filename:       filepath.Base(req.Filename),
			ContentType:    req.ContentType,
			Size:           int64(res.Size),
			Encrypted:      req.Encrypt,
			RegisterDigest: res.RegisterDigest,
			CertifyDigest:  res.CertifyDigest,
			CreatedAt:      s.now(),
		})
		if err != nil {
			// The content is on chain; a lost history row is not a failure.
			logger.Warn(ctx, "history not recorded", "blob_id", res.BlobID, "error", err)
		}
	}

	logger.Info(ctx, "published", "blob_id", res.BlobID, "metadata_id", res.MetadataObjectID, "encrypted", req.Encrypt)
	return res, nil
}

func (s *publicationService) store(ctx context.Context, wallet ledger.Wallet, req PublishRequest, payload []byte, res *PublishResult) error {
	if req.ViaPublisher {
		stored, err := s.deps.Publisher.Store(ctx, payload, s.cfg.Epochs, s.cfg.Deletable)
		if err != nil {
			return err
		}
		res.BlobID = stored.BlobID
		res.MetadataObjectID = stored.ObjectID
		if res.MetadataObjectID == "" {
			res.MetadataObjectID = stored.BlobID
			res.Degraded = true
		}
		res.Size = len(payload)
		if s.cfg.Link != nil {
			res.AggregatorURL = s.cfg.Link(stored.BlobID)
		}
		return nil
	}

	up, err := s.deps.Uploader.Upload(ctx, wallet, upload.Request{
		Data:        payload,
		Identifier:  filepath.Base(req.Filename),
		ContentType: req.ContentType,
		Epochs:      s.cfg.Epochs,
		Deletable:   s.cfg.Deletable,
	})
	if err != nil {
		return err
	}
	res.BlobID = up.BlobID
	res.MetadataObjectID = up.MetadataObjectID
	res.Degraded = up.Degraded
	res.Size = up.Size
	res.RegisterDigest = up.RegisterDigest
	res.CertifyDigest = up.CertifyDigest
	res.AggregatorURL = up.AggregatorURL
	return nil
}

func (s *publicationService) fail(ctx context.Context, logger logging.Logger, err error) error {
	f := Classify(opPublish, err)
	logger.Error(ctx, "publish failed", "kind", f.Kind, "error", err)
	return f
}
