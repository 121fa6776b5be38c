package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/models"
	"github.com/dmitrijs2005/suifan/internal/common"
	"github.com/dmitrijs2005/suifan/internal/logging"
)

const (
	moduleName = "content_creator"

	typeCreator      = "ContentCreator"
	typeContent      = "Content"
	typeSubscription = "Subscription"
	typeCreatorCap   = "CreatorCap"

	fieldsPageSize = 50
)

var ErrNoCreatorCap = errors.New("no CreatorCap found for the current wallet")

// LedgerReader is the read side of the ledger RPC.
type LedgerReader interface {
	GetObject(ctx context.Context, id string, opts ledger.ObjectOptions) (*ledger.ObjectData, error)
	MultiGetObjects(ctx context.Context, ids []string, opts ledger.ObjectOptions) ([]ledger.ObjectResponse, error)
	AllOwnedObjects(ctx context.Context, owner, structType string) ([]ledger.ObjectData, error)
	GetDynamicFields(ctx context.Context, parent string, cursor *string, limit int) (*ledger.DynamicFieldsPage, error)
}

type CatalogService interface {
	GetCreator(ctx context.Context, id string) (*models.Creator, error)
	ListAllCreators(ctx context.Context) ([]models.Creator, error)
	ListCreatorsOwnedBy(ctx context.Context, owner string) ([]models.Creator, error)
	ListCreatorContent(ctx context.Context, creatorID string) ([]models.Content, error)
	// ListEntitlements returns owner's subscriptions; an empty creatorID
	// returns all of them.
	ListEntitlements(ctx context.Context, owner, creatorID string) ([]models.Entitlement, error)
	SelectEntitlement(ctx context.Context, owner, creatorID string) (*models.Entitlement, error)
	GetPrice(ctx context.Context, creatorID string) (uint64, error)
	FindCreatorCap(ctx context.Context, owner string) (*models.CreatorCap, error)
}

type catalogService struct {
	reader      LedgerReader
	packageID   string
	allCreators string
	logger      logging.Logger
}

func NewCatalogService(reader LedgerReader, packageID, allCreatorsObject string, logger logging.Logger) CatalogService {
	return &catalogService{
		reader:      reader,
		packageID:   packageID,
		allCreators: allCreatorsObject,
		logger:      logger.With("module", "catalog"),
	}
}

func (s *catalogService) structType(name string) string {
	return s.packageID + "::" + moduleName + "::" + name
}

var showContent = ledger.ObjectOptions{ShowContent: true, ShowType: true}

func creatorFrom(o *ledger.ObjectData) models.Creator {
	f := o.Fields()
	owner := f.Address("wallet")
	if owner == "" {
		owner = f.Address("owner")
	}
	price, _ := f.Uint64("price_per_month")
	id := f.ID("id")
	if id == "" {
		id = o.ObjectID
	}
	return models.Creator{
		ID:          id,
		Name:        f.String("pseudo"),
		Description: f.String("description"),
		Owner:       owner,
		ImageBlobID: f.String("image_url"),
		Price:       price,
	}
}

func (s *catalogService) GetCreator(ctx context.Context, id string) (*models.Creator, error) {
	o, err := s.reader.GetObject(ctx, id, showContent)
	if err != nil {
		return nil, fmt.Errorf("creator %s: %w", id, err)
	}
	if o.Content == nil {
		return nil, fmt.Errorf("creator %s: %w", id, ledger.ErrObjectNotFound)
	}
	c := creatorFrom(o)
	return &c, nil
}

// ListAllCreators walks the registry table: AllCreators.creators is a
// Table<address, ID> whose entries are dynamic fields holding creator ids.
func (s *catalogService) ListAllCreators(ctx context.Context) ([]models.Creator, error) {
	if s.allCreators == "" {
		return nil, fmt.Errorf("%w: registry object not configured", common.ErrInvalidArgument)
	}
	registry, err := s.reader.GetObject(ctx, s.allCreators, showContent)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	table := registry.Fields().Nested("creators").ID("id")
	if table == "" {
		s.logger.Warn(ctx, "registry has no creators table", "object", s.allCreators)
		return nil, nil
	}

	var (
		entryIDs []string
		cursor   *string
	)
	for {
		page, err := s.reader.GetDynamicFields(ctx, table, cursor, fieldsPageSize)
		if err != nil {
			return nil, fmt.Errorf("registry entries: %w", err)
		}
		for _, f := range page.Data {
			entryIDs = append(entryIDs, f.ObjectID)
		}
		if !page.HasNextPage || page.NextCursor == nil || len(page.Data) == 0 {
			break
		}
		cursor = page.NextCursor
	}
	if len(entryIDs) == 0 {
		return nil, nil
	}

	entries, err := s.reader.MultiGetObjects(ctx, entryIDs, showContent)
	if err != nil {
		return nil, fmt.Errorf("registry entries: %w", err)
	}
	var creatorIDs []string
	for _, e := range entries {
		if id := e.Data.Fields().ID("value"); id != "" {
			creatorIDs = append(creatorIDs, id)
		}
	}
	if len(creatorIDs) == 0 {
		return nil, nil
	}

	objs, err := s.reader.MultiGetObjects(ctx, creatorIDs, showContent)
	if err != nil {
		return nil, fmt.Errorf("creators: %w", err)
	}
	out := make([]models.Creator, 0, len(objs))
	for _, o := range objs {
		if o.Data == nil || o.Data.Content == nil {
			continue
		}
		out = append(out, creatorFrom(o.Data))
	}
	return out, nil
}

func (s *catalogService) ListCreatorsOwnedBy(ctx context.Context, owner string) ([]models.Creator, error) {
	objs, err := s.reader.AllOwnedObjects(ctx, owner, s.structType(typeCreator))
	if err != nil {
		return nil, err
	}
	out := make([]models.Creator, 0, len(objs))
	for i := range objs {
		out = append(out, creatorFrom(&objs[i]))
	}
	return out, nil
}

// ListCreatorContent lists Content objects owned by the creator's wallet.
func (s *catalogService) ListCreatorContent(ctx context.Context, creatorID string) ([]models.Content, error) {
	creator, err := s.GetCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if creator.Owner == "" {
		s.logger.Warn(ctx, "creator has no wallet", "creator_id", creatorID)
		return nil, nil
	}

	objs, err := s.reader.AllOwnedObjects(ctx, creator.Owner, s.structType(typeContent))
	if err != nil {
		return nil, err
	}
	out := make([]models.Content, 0, len(objs))
	for _, o := range objs {
		f := o.Fields()
		out = append(out, models.Content{
			ID:          o.ObjectID,
			Owner:       creator.Owner,
			Title:       f.String("content_name"),
			Description: f.String("content_description"),
			BlobID:      f.String("blob_id"),
		})
	}
	return out, nil
}

func (s *catalogService) ListEntitlements(ctx context.Context, owner, creatorID string) ([]models.Entitlement, error) {
	objs, err := s.reader.AllOwnedObjects(ctx, owner, s.structType(typeSubscription))
	if err != nil {
		return nil, err
	}
	var out []models.Entitlement
	for _, o := range objs {
		f := o.Fields()
		created, _ := f.Uint64("created_at")
		e := models.Entitlement{ID: o.ObjectID, CreatorID: f.ID("creator_id"), CreatedAt: created}
		if creatorID != "" && !ledger.SameAddress(e.CreatorID, creatorID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// SelectEntitlement returns owner's newest subscription to creatorID, or
// common.ErrEntitlementNotFound.
func (s *catalogService) SelectEntitlement(ctx context.Context, owner, creatorID string) (*models.Entitlement, error) {
	subs, err := s.ListEntitlements(ctx, owner, creatorID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, common.ErrEntitlementNotFound
	}
	newest := slices.MaxFunc(subs, func(a, b models.Entitlement) int { return cmp.Compare(a.CreatedAt, b.CreatedAt) })
	return &newest, nil
}

func (s *catalogService) GetPrice(ctx context.Context, creatorID string) (uint64, error) {
	o, err := s.reader.GetObject(ctx, creatorID, showContent)
	if err != nil {
		return 0, fmt.Errorf("creator %s: %w", creatorID, err)
	}
	price, ok := o.Fields().Uint64("price_per_month")
	if !ok {
		return 0, fmt.Errorf("creator %s: unable to read price_per_month", creatorID)
	}
	return price, nil
}

// FindCreatorCap returns the first CreatorCap owned by owner.
func (s *catalogService) FindCreatorCap(ctx context.Context, owner string) (*models.CreatorCap, error) {
	objs, err := s.reader.AllOwnedObjects(ctx, owner, s.structType(typeCreatorCap))
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, ErrNoCreatorCap
	}
	return &models.CreatorCap{ID: objs[0].ObjectID, CreatorID: objs[0].Fields().ID("creator_id")}, nil
}
