package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/suifan/internal/client/blobstore"
	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/common"
	"github.com/dmitrijs2005/suifan/internal/logging"
)

// Executor signs, submits and awaits one ledger transaction.
type Executor interface {
	SignAndExecute(ctx context.Context, wallet ledger.Wallet, tx *ledger.Transaction) (*ledger.TransactionResponse, error)
}

// BlobPublisher stores a whole blob through a publisher.
type BlobPublisher interface {
	Store(ctx context.Context, data []byte, epochs int, deletable bool) (*blobstore.StoreResult, error)
}

type CreateCreatorRequest struct {
	Name        string
	Description string
	Price       uint64
	// Image, when set, is stored unencrypted and its blob id used as the
	// avatar; otherwise ImageBlobID is used as given.
	Image       []byte
	ImageBlobID string
}

type UploadContentRequest struct {
	Title       string
	Description string
	BlobID      string
}

type MarketplaceService interface {
	Subscribe(ctx context.Context, wallet ledger.Wallet, creatorID string) (string, error)
	CreateCreator(ctx context.Context, wallet ledger.Wallet, req CreateCreatorRequest) (string, error)
	UploadContent(ctx context.Context, wallet ledger.Wallet, req UploadContentRequest) (string, error)
}

type marketplaceService struct {
	exec        Executor
	catalog     CatalogService
	publisher   BlobPublisher
	packageID   string
	allCreators string
	epochs      int
	logger      logging.Logger
}

func NewMarketplaceService(exec Executor, catalog CatalogService, publisher BlobPublisher, packageID, allCreatorsObject string, epochs int, logger logging.Logger) MarketplaceService {
	return &marketplaceService{
		exec:        exec,
		catalog:     catalog,
		publisher:   publisher,
		packageID:   packageID,
		allCreators: allCreatorsObject,
		epochs:      epochs,
		logger:      logger.With("module", "marketplace"),
	}
}

func (s *marketplaceService) target(fn string) string {
	return s.packageID + "::" + moduleName + "::" + fn
}

// Subscribe pays exactly the creator's monthly price, split from the gas
// coin.
func (s *marketplaceService) Subscribe(ctx context.Context, wallet ledger.Wallet, creatorID string) (string, error) {
	if wallet == nil {
		return "", common.ErrWalletNotConnected
	}
	price, err := s.catalog.GetPrice(ctx, creatorID)
	if err != nil {
		return "", err
	}

	tx := ledger.NewTransaction()
	fee := tx.SplitCoins(tx.Gas(), tx.PureU64(price))
	tx.MoveCall(s.target("subscribe"), fee[0], tx.ReadObject(creatorID), tx.ReadObject(ledger.ClockObjectID))

	res, err := s.exec.SignAndExecute(ctx, wallet, tx)
	if err != nil {
		return "", fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info(ctx, "subscribed", "creator_id", creatorID, "price", price, "digest", res.Digest)
	return res.Digest, nil
}

func (s *marketplaceService) CreateCreator(ctx context.Context, wallet ledger.Wallet, req CreateCreatorRequest) (string, error) {
	if wallet == nil {
		return "", common.ErrWalletNotConnected
	}
	if req.Name == "" {
		return "", fmt.Errorf("%w: creator name is required", common.ErrInvalidArgument)
	}

	image := req.ImageBlobID
	if len(req.Image) > 0 {
		stored, err := s.publisher.Store(ctx, req.Image, s.epochs, false)
		if err != nil {
			return "", fmt.Errorf("avatar: %w", err)
		}
		image = stored.BlobID
	}

	tx := ledger.NewTransaction()
	tx.MoveCall(s.target("create_creator"),
		tx.Object(s.allCreators),
		tx.PureString(req.Name),
		tx.PureU64(req.Price),
		tx.PureString(req.Description),
		tx.PureString(image),
	)

	res, err := s.exec.SignAndExecute(ctx, wallet, tx)
	if err != nil {
		return "", fmt.Errorf("create creator: %w", err)
	}
	s.logger.Info(ctx, "creator created", "name", req.Name, "digest", res.Digest)
	return res.Digest, nil
}

// UploadContent records a content item under the wallet's first CreatorCap.
func (s *marketplaceService) UploadContent(ctx context.Context, wallet ledger.Wallet, req UploadContentRequest) (string, error) {
	if wallet == nil {
		return "", common.ErrWalletNotConnected
	}
	if req.Title == "" || req.BlobID == "" {
		return "", fmt.Errorf("%w: title and blob id are required", common.ErrInvalidArgument)
	}
	creatorCap, err := s.catalog.FindCreatorCap(ctx, wallet.Address())
	if err != nil {
		return "", err
	}

	tx := ledger.NewTransaction()
	tx.MoveCall(s.target("upload_content"),
		tx.ReadObject(creatorCap.ID),
		tx.PureString(req.Title),
		tx.PureString(req.Description),
		tx.PureString(req.BlobID),
	)

	res, err := s.exec.SignAndExecute(ctx, wallet, tx)
	if err != nil {
		return "", fmt.Errorf("upload content: %w", err)
	}
	s.logger.Info(ctx, "content recorded", "blob_id", req.BlobID, "digest", res.Digest)
	return res.Digest, nil
}
