package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/suifan/internal/client/blobstore"
	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/ledger/ledgertest"
	"github.com/dmitrijs2005/suifan/internal/common"
	"github.com/dmitrijs2005/suifan/internal/logging"
)

type fakePublisher struct {
	stored    [][]byte
	deletable []bool
	err       error
}

func (p *fakePublisher) Store(_ context.Context, data []byte, epochs int, deletable bool) (*blobstore.StoreResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.stored = append(p.stored, data)
	p.deletable = append(p.deletable, deletable)
	return &blobstore.StoreResult{BlobID: "pub-blob", ObjectID: "0xb10b", Size: int64(len(data))}, nil
}

func newMarketplace(w *world, pub BlobPublisher) MarketplaceService {
	return NewMarketplaceService(w.chain, w.catalog, pub, testPackage, registryID, 3, logging.Nop())
}

func pureString(t *testing.T, c ledgertest.Call, i int) string {
	t.Helper()
	b, err := ledger.DecodeBytes(c.PureArg(i))
	require.NoError(t, err)
	return string(b)
}

func pureU64(t *testing.T, c ledgertest.Call, i int) uint64 {
	t.Helper()
	v, err := ledger.DecodeU64(c.PureArg(i))
	require.NoError(t, err)
	return v
}

func TestMarketplace_SubscribePaysExactPrice(t *testing.T) {
	w := newWorld(t)
	m := newMarketplace(w, &fakePublisher{})

	digest, err := m.Subscribe(context.Background(), w.fan, otherCreatorID)
	require.NoError(t, err)
	require.NotEmpty(t, digest)

	calls := w.chain.Calls()
	require.Len(t, calls, 1)
	c := calls[0]
	assert.Equal(t, "subscribe", c.Command.Function)
	assert.True(t, ledger.SameAddress(testPackage, c.Command.Package))
	assert.True(t, ledger.SameAddress(otherCreatorID, c.ObjectArg(1)))
	assert.True(t, ledger.SameAddress(ledger.ClockObjectID, c.ObjectArg(2)))

	// The fee is the first result of a SplitCoins on the gas coin.
	fee := c.Command.Args[0]
	require.Equal(t, ledger.ArgNestedResult, fee.Kind)
	split := c.Kind.Commands[fee.Index]
	assert.Equal(t, ledger.ArgGasCoin, split.Coin.Kind)
	require.Len(t, split.Amounts, 1)
	amount, err := ledger.DecodeU64(c.Kind.Inputs[split.Amounts[0].Index].Pure)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500), amount)
}

func TestMarketplace_SubscribeUnknownCreator(t *testing.T) {
	w := newWorld(t)
	m := newMarketplace(w, &fakePublisher{})

	_, err := m.Subscribe(context.Background(), w.fan, freshID())
	require.ErrorIs(t, err, ledger.ErrObjectNotFound)
	assert.Empty(t, w.chain.Calls())
}

func TestMarketplace_CreateCreatorStoresAvatar(t *testing.T) {
	w := newWorld(t)
	pub := &fakePublisher{}
	m := newMarketplace(w, pub)

	_, err := m.CreateCreator(context.Background(), w.fan, CreateCreatorRequest{
		Name:        "dana",
		Description: "cooking",
		Price:       42,
		Image:       []byte("png"),
	})
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("png")}, pub.stored)
	assert.Equal(t, []bool{false}, pub.deletable)

	c := w.chain.Calls()[0]
	assert.Equal(t, "create_creator", c.Command.Function)
	assert.True(t, ledger.SameAddress(registryID, c.ObjectArg(0)))
	assert.Equal(t, "dana", pureString(t, c, 1))
	assert.Equal(t, uint64(42), pureU64(t, c, 2))
	assert.Equal(t, "cooking", pureString(t, c, 3))
	assert.Equal(t, "pub-blob", pureString(t, c, 4))
	assert.True(t, c.Kind.Inputs[c.Command.Args[0].Index].Mutable)
}

func TestMarketplace_CreateCreatorValidation(t *testing.T) {
	w := newWorld(t)
	pub := &fakePublisher{err: errors.New("publisher down")}
	m := newMarketplace(w, pub)

	_, err := m.CreateCreator(context.Background(), nil, CreateCreatorRequest{Name: "x"})
	require.ErrorIs(t, err, common.ErrWalletNotConnected)

	_, err = m.CreateCreator(context.Background(), w.fan, CreateCreatorRequest{})
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = m.CreateCreator(context.Background(), w.fan, CreateCreatorRequest{Name: "x", Image: []byte{1}})
	require.ErrorContains(t, err, "publisher down")
	assert.Empty(t, w.chain.Calls())
}

func TestMarketplace_UploadContentUsesCreatorCap(t *testing.T) {
	w := newWorld(t)
	m := newMarketplace(w, &fakePublisher{})

	_, err := m.UploadContent(context.Background(), w.creator, UploadContentRequest{Title: "ep1", Description: "pilot", BlobID: "blob-1"})
	require.NoError(t, err)

	creatorCap, err := w.catalog.FindCreatorCap(context.Background(), w.creator.Address())
	require.NoError(t, err)

	c := w.chain.Calls()[0]
	assert.Equal(t, "upload_content", c.Command.Function)
	assert.True(t, ledger.SameAddress(creatorCap.ID, c.ObjectArg(0)))
	assert.Equal(t, "ep1", pureString(t, c, 1))
	assert.Equal(t, "pilot", pureString(t, c, 2))
	assert.Equal(t, "blob-1", pureString(t, c, 3))
}

func TestMarketplace_UploadContentWithoutCap(t *testing.T) {
	w := newWorld(t)
	m := newMarketplace(w, &fakePublisher{})

	_, err := m.UploadContent(context.Background(), w.fan, UploadContentRequest{Title: "x", BlobID: "b"})
	require.ErrorIs(t, err, ErrNoCreatorCap)

	_, err = m.UploadContent(context.Background(), w.creator, UploadContentRequest{Title: "x"})
	require.ErrorIs(t, err, common.ErrInvalidArgument)
}
